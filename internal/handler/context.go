// Package handler provides the console command handlers. Each handler reads
// its arguments from a Context, calls the App and replies with plain text.
package handler

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// HandlerFunc handles one command.
type HandlerFunc func(c *Context) error

// MiddlewareFunc wraps a HandlerFunc.
type MiddlewareFunc func(next HandlerFunc) HandlerFunc

// SecretReader reads a line without echoing it.
type SecretReader func(prompt string) (string, error)

// Context carries one parsed command line.
type Context struct {
	ctx    context.Context
	name   string
	args   []string
	out    io.Writer
	secret SecretReader

	// User is the logged-in username, set by the session guard.
	User string
}

// NewContext creates a Context for the command name with args.
func NewContext(ctx context.Context, name string, args []string, out io.Writer, secret SecretReader) *Context {
	return &Context{ctx: ctx, name: name, args: args, out: out, secret: secret}
}

// Context returns the request context.
func (c *Context) Context() context.Context { return c.ctx }

// Name returns the command name.
func (c *Context) Name() string { return c.name }

// Args returns the arguments after the command name.
func (c *Context) Args() []string { return c.args }

// Arg returns the i-th argument or "".
func (c *Context) Arg(i int) string {
	if i < 0 || i >= len(c.args) {
		return ""
	}
	return c.args[i]
}

// Text returns the command line as typed, minus extra spacing.
func (c *Context) Text() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// Reply writes one line of output.
func (c *Context) Reply(text string) error {
	_, err := fmt.Fprintln(c.out, text)
	return err
}

// Replyf formats and writes one line of output.
func (c *Context) Replyf(format string, a ...any) error {
	return c.Reply(fmt.Sprintf(format, a...))
}

// Secret returns argument i when present, otherwise prompts for it without
// echo.
func (c *Context) Secret(i int, prompt string) (string, error) {
	if v := c.Arg(i); v != "" {
		return v, nil
	}
	if c.secret == nil {
		return "", fmt.Errorf("no input available for %q", prompt)
	}
	return c.secret(prompt)
}

// parseAdIndex converts the 1-based slot number users type into an index.
func parseAdIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("ad number must be an integer, got %q", s)
	}
	return n - 1, nil
}

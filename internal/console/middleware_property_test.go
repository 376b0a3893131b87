package console

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"clickearn/internal/handler"
)

// TestChainOrderProperty checks that middleware runs in the order given,
// outermost first, and unwinds in reverse.
func TestChainOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "n")

		var trace []string
		mw := make([]handler.MiddlewareFunc, n)
		for i := 0; i < n; i++ {
			name := fmt.Sprint(i)
			mw[i] = func(next handler.HandlerFunc) handler.HandlerFunc {
				return func(c *handler.Context) error {
					trace = append(trace, "in"+name)
					err := next(c)
					trace = append(trace, "out"+name)
					return err
				}
			}
		}
		h := Chain(func(*handler.Context) error {
			trace = append(trace, "handler")
			return nil
		}, mw...)

		if err := h(handler.NewContext(context.Background(), "x", nil, &bytes.Buffer{}, nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(trace) != 2*n+1 {
			t.Fatalf("trace length %d, want %d", len(trace), 2*n+1)
		}
		for i := 0; i < n; i++ {
			if trace[i] != "in"+fmt.Sprint(i) || trace[2*n-i] != "out"+fmt.Sprint(i) {
				t.Fatalf("bad order: %v", trace)
			}
		}
		if trace[n] != "handler" {
			t.Fatalf("handler not innermost: %v", trace)
		}
	})
}

// TestSessionGuardProperty checks that an auth command reaches its handler
// if and only if someone is logged in.
func TestSessionGuardProperty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.app.Register(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		loggedIn := rapid.Bool().Draw(t, "loggedIn")
		if loggedIn {
			if _, err := env.app.Login(ctx, "alice", "secret1"); err != nil {
				t.Fatalf("login: %v", err)
			}
		} else if err := env.app.Logout(ctx); err != nil {
			t.Fatalf("logout: %v", err)
		}

		reached := false
		var user string
		h := SessionMiddleware(env.app)(func(c *handler.Context) error {
			reached = true
			user = c.User
			return nil
		})
		out := &bytes.Buffer{}
		if err := h(handler.NewContext(ctx, "balance", nil, out, nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if reached != loggedIn {
			t.Fatalf("reached=%v loggedIn=%v", reached, loggedIn)
		}
		if loggedIn && user != "alice" {
			t.Fatalf("user = %q", user)
		}
		if !loggedIn && !strings.Contains(out.String(), "log in") {
			t.Fatalf("missing rejection message: %q", out.String())
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	out := &bytes.Buffer{}
	h := RecoveryMiddleware()(func(*handler.Context) error {
		panic("boom")
	})

	err := h(handler.NewContext(context.Background(), "x", nil, out, nil))
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "Internal error")
}

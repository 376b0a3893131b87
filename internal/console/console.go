// Package console is the text front end of clickearn. It reads command
// lines either from an interactive line editor or, when stdin is not a
// terminal, from a script, and dispatches them through the middleware chain
// to the handlers.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"clickearn/internal/app"
	"clickearn/internal/handler"
)

// ErrExit is returned by Execute when the user asks to quit.
var ErrExit = errors.New("exit requested")

// Dependencies holds everything New needs.
type Dependencies struct {
	App *app.App
	Out *Output
	// In is read in script mode. Interactive mode uses the terminal.
	In          io.Reader
	HistoryFile string
}

// Console dispatches command lines.
type Console struct {
	app         *app.App
	out         *Output
	in          io.Reader
	historyFile string
	registry    *Registry
	secret      handler.SecretReader

	accountHandler *handler.AccountHandler
	walletHandler  *handler.WalletHandler
	taskHandler    *handler.TaskHandler
	adminHandler   *handler.AdminHandler
}

// New creates a Console with every command registered.
func New(deps *Dependencies) (*Console, error) {
	if deps.App == nil || deps.Out == nil {
		return nil, errors.New("console needs an app and an output")
	}

	c := &Console{
		app:         deps.App,
		out:         deps.Out,
		in:          deps.In,
		historyFile: deps.HistoryFile,
		registry:    NewRegistry(),
	}

	c.accountHandler = handler.NewAccountHandler(deps.App)
	c.walletHandler = handler.NewWalletHandler(deps.App)
	c.taskHandler = handler.NewTaskHandler(deps.App, deps.Out)
	c.adminHandler = handler.NewAdminHandler(deps.App)

	if err := c.registerCommands(); err != nil {
		return nil, err
	}
	return c, nil
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Registry exposes the registered commands.
func (c *Console) Registry() *Registry {
	return c.registry
}

func (c *Console) registerCommands() error {
	commands := []*Command{
		// Account
		{Name: "register", Usage: "register <username> <email> [password]", Summary: "create an account and log in", Handler: c.accountHandler.HandleRegister},
		{Name: "login", Usage: "login <username|email> [password]", Summary: "log in", Handler: c.accountHandler.HandleLogin},
		{Name: "logout", Usage: "logout", Summary: "log out", Handler: c.accountHandler.HandleLogout},
		{Name: "whoami", Usage: "whoami", Summary: "show your account", Auth: true, Handler: c.accountHandler.HandleWhoami},
		{Name: "profile", Usage: "profile <new-username> <new-email>", Summary: "change username and email", Auth: true, Handler: c.accountHandler.HandleProfile},
		{Name: "delete-account", Usage: "delete-account yes", Summary: "erase your account", Auth: true, Handler: c.accountHandler.HandleDeleteAccount},

		// Wallet
		{Name: "balance", Usage: "balance", Summary: "show your balance", Auth: true, Handler: c.walletHandler.HandleBalance},
		{Name: "wallet", Usage: "wallet", Summary: "show earnings and recent credits", Auth: true, Handler: c.walletHandler.HandleWallet},
		{Name: "withdraw", Usage: "withdraw", Summary: "request a withdrawal of your balance", Auth: true, Handler: c.walletHandler.HandleWithdraw},

		// Tasks
		{Name: "tasks", Usage: "tasks", Summary: "list tasks", Auth: true, Handler: c.taskHandler.HandleTasks},
		{Name: "task", Usage: "task <id>", Summary: "show one task", Auth: true, Handler: c.taskHandler.HandleTask},
		{Name: "click", Usage: "click <task> <ad>", Summary: "open an ad (ads count from 1)", Auth: true, Handler: c.taskHandler.HandleClick},
		{Name: "back", Usage: "back", Summary: "return from an ad and get it counted", Handler: c.taskHandler.HandleBack},
		{Name: "watch", Usage: "watch", Summary: "follow task cooldowns", Auth: true, Handler: c.taskHandler.HandleWatch},
		{Name: "unwatch", Usage: "unwatch", Summary: "stop following cooldowns", Handler: c.taskHandler.HandleUnwatch},
		{Name: "renew", Usage: "renew <task>", Summary: "end a task cooldown now (debug)", Auth: true, Handler: c.taskHandler.HandleRenew},

		// Settings
		{Name: "theme", Usage: "theme [dark|light]", Summary: "show or set the theme", Handler: c.adminHandler.HandleTheme},
		{Name: "erase", Usage: "erase yes", Summary: "erase all data (debug)", Handler: c.adminHandler.HandleErase},

		{Name: "help", Usage: "help", Summary: "list commands", Handler: c.handleHelp},
		{Name: "exit", Usage: "exit", Summary: "quit", Handler: c.handleExit},
	}

	for _, cmd := range commands {
		if err := c.registry.Register(cmd); err != nil {
			return fmt.Errorf("failed to register %q: %w", cmd.Name, err)
		}
	}

	log.Debug().
		Int("command_count", c.registry.Count()).
		Msg("Console commands registered")
	return nil
}

// Execute runs one command line. Blank lines and # comments are ignored.
func (c *Console) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	fields := strings.Fields(line)
	cmd, ok := c.registry.Get(strings.ToLower(fields[0]))
	if !ok {
		_, err := fmt.Fprintf(c.out, "Unknown command %q, type 'help'\n", fields[0])
		return err
	}

	mw := []handler.MiddlewareFunc{RecoveryMiddleware(), LoggingMiddleware()}
	if cmd.Auth {
		mw = append(mw, SessionMiddleware(c.app))
	}
	hc := handler.NewContext(ctx, cmd.Name, fields[1:], c.out, c.secret)
	return Chain(cmd.Handler, mw...)(hc)
}

// Run reads commands until exit, end of input or ctx cancellation.
func (c *Console) Run(ctx context.Context, interactive bool) error {
	if interactive {
		return c.RunInteractive(ctx)
	}
	return c.RunScript(ctx)
}

// RunScript executes In line by line. A command that prompts for a
// password consumes the following line.
func (c *Console) RunScript(ctx context.Context) error {
	if c.in == nil {
		return errors.New("no script input")
	}

	scanner := bufio.NewScanner(c.in)
	c.secret = func(string) (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return strings.TrimSpace(scanner.Text()), nil
	}
	defer func() { c.secret = nil }()

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		err := c.Execute(ctx, scanner.Text())
		if errors.Is(err, ErrExit) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return scanner.Err()
}

// RunInteractive runs the line editor on the terminal.
func (c *Console) RunInteractive(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.prompt(ctx),
		HistoryFile:     c.historyFile,
		AutoComplete:    c.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	prev := c.out.Redirect(rl.Stdout())
	defer c.out.Redirect(prev)

	c.secret = func(prompt string) (string, error) {
		b, err := rl.ReadPassword(prompt)
		return string(b), err
	}
	defer func() { c.secret = nil }()

	stop := context.AfterFunc(ctx, func() { _ = rl.Close() })
	defer stop()

	_, _ = fmt.Fprintln(c.out, "clickearn: watch ads, earn rewards. Type 'help' for commands.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				_, _ = fmt.Fprintln(c.out, "Use 'exit' to quit.")
			}
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		err = c.Execute(ctx, line)
		if errors.Is(err, ErrExit) {
			return nil
		}
		if err != nil {
			log.Error().Err(err).Msg("Command failed")
		}
		rl.SetPrompt(c.prompt(ctx))
	}
}

func (c *Console) prompt(ctx context.Context) string {
	username, ok, err := c.app.CurrentUser(ctx)
	if err != nil || !ok {
		return "clickearn> "
	}
	return username + "@clickearn> "
}

func (c *Console) completer() *readline.PrefixCompleter {
	taskItems := make([]readline.PrefixCompleterInterface, 0, c.app.Catalog().Len())
	for _, id := range c.app.Catalog().IDs() {
		taskItems = append(taskItems, readline.PcItem(id))
	}

	items := make([]readline.PrefixCompleterInterface, 0, c.registry.Count())
	for _, name := range c.registry.Names() {
		switch name {
		case "task", "click", "renew":
			items = append(items, readline.PcItem(name, taskItems...))
		case "theme":
			items = append(items, readline.PcItem(name, readline.PcItem("dark"), readline.PcItem("light")))
		default:
			items = append(items, readline.PcItem(name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}

func (c *Console) handleHelp(hc *handler.Context) error {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, cmd := range c.registry.List() {
		fmt.Fprintf(&b, "  %-40s %s\n", cmd.Usage, cmd.Summary)
	}
	return hc.Reply(strings.TrimRight(b.String(), "\n"))
}

func (c *Console) handleExit(*handler.Context) error {
	return ErrExit
}

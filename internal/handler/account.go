package handler

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"clickearn/internal/app"
)

// AccountHandler handles register, login, logout and profile commands.
type AccountHandler struct {
	app *app.App
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(a *app.App) *AccountHandler {
	return &AccountHandler{app: a}
}

// HandleRegister handles register <username> <email> [password].
func (h *AccountHandler) HandleRegister(c *Context) error {
	if len(c.Args()) < 2 {
		return c.Reply("Usage: register <username> <email> [password]")
	}
	password, err := c.Secret(2, "Password: ")
	if err != nil {
		return err
	}

	sess, err := h.app.Register(c.Context(), c.Arg(0), c.Arg(1), password)
	if err != nil {
		return c.Reply(Describe(err))
	}
	return c.Replyf("🎉 Welcome %s! Your account is ready. Type 'tasks' to start earning.", sess.Username)
}

// HandleLogin handles login <username|email> [password].
func (h *AccountHandler) HandleLogin(c *Context) error {
	if len(c.Args()) < 1 {
		return c.Reply("Usage: login <username|email> [password]")
	}
	password, err := c.Secret(1, "Password: ")
	if err != nil {
		return err
	}

	username, err := h.app.Login(c.Context(), c.Arg(0), password)
	if err != nil {
		return c.Reply(Describe(err))
	}
	balance, err := h.app.GetBalance(c.Context())
	if err != nil {
		return c.Reply(Describe(err))
	}
	return c.Replyf("👋 Welcome back %s! Balance: %s", username, money(balance))
}

// HandleLogout handles logout.
func (h *AccountHandler) HandleLogout(c *Context) error {
	if err := h.app.Logout(c.Context()); err != nil {
		return c.Reply(Describe(err))
	}
	return c.Reply("Logged out")
}

// HandleWhoami shows the logged-in account.
func (h *AccountHandler) HandleWhoami(c *Context) error {
	acc, err := h.app.Account(c.Context())
	if err != nil {
		return c.Reply(Describe(err))
	}
	return c.Replyf("👤 %s <%s>, member since %s",
		acc.Username, acc.Email, acc.CreatedAt.Local().Format("2006-01-02"))
}

// HandleProfile handles profile <new-username> <new-email>.
func (h *AccountHandler) HandleProfile(c *Context) error {
	if len(c.Args()) < 2 {
		return c.Reply("Usage: profile <new-username> <new-email>")
	}

	acc, err := h.app.UpdateProfile(c.Context(), c.Arg(0), c.Arg(1))
	if err != nil {
		return c.Reply(Describe(err))
	}
	return c.Replyf("✅ Profile updated: %s <%s>", acc.Username, acc.Email)
}

// HandleDeleteAccount handles delete-account yes.
func (h *AccountHandler) HandleDeleteAccount(c *Context) error {
	if c.Arg(0) != "yes" {
		return c.Reply("This erases your account, wallet and tasks. Type 'delete-account yes' to confirm.")
	}

	username := c.User
	if err := h.app.DeleteAccount(c.Context()); err != nil {
		return c.Reply(Describe(err))
	}
	log.Info().Str("username", username).Msg("Account deleted from console")
	return c.Reply(fmt.Sprintf("Account %s deleted", username))
}

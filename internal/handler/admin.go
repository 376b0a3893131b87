package handler

import (
	"github.com/rs/zerolog/log"

	"clickearn/internal/app"
)

// AdminHandler handles preferences and the data-wiping debug commands.
type AdminHandler struct {
	app *app.App
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(a *app.App) *AdminHandler {
	return &AdminHandler{app: a}
}

// HandleTheme handles theme [dark|light]. Without an argument it shows the
// current theme.
func (h *AdminHandler) HandleTheme(c *Context) error {
	if len(c.Args()) == 0 {
		theme, err := h.app.GetThemePreference(c.Context())
		if err != nil {
			return c.Reply(Describe(err))
		}
		return c.Replyf("🎨 Theme: %s", theme)
	}

	if err := h.app.SetThemePreference(c.Context(), c.Arg(0)); err != nil {
		return c.Reply(Describe(err))
	}
	return c.Replyf("🎨 Theme set to %s", c.Arg(0))
}

// HandleErase handles erase yes. It wipes every key of the namespace.
func (h *AdminHandler) HandleErase(c *Context) error {
	if c.Arg(0) != "yes" {
		return c.Reply("This erases ALL accounts and data. Type 'erase yes' to confirm.")
	}
	if err := h.app.EraseAllData(c.Context()); err != nil {
		return c.Reply(Describe(err))
	}
	log.Warn().Msg("Erase requested from console")
	return c.Reply("🧹 All data erased")
}

package console

import (
	"github.com/rs/zerolog/log"

	"clickearn/internal/app"
	"clickearn/internal/handler"
)

// Chain applies middleware so that the first one runs outermost.
func Chain(h handler.HandlerFunc, mw ...handler.MiddlewareFunc) handler.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// LoggingMiddleware logs every command. Arguments are counted, not logged,
// since they may hold passwords.
func LoggingMiddleware() handler.MiddlewareFunc {
	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(c *handler.Context) error {
			log.Debug().
				Str("command", c.Name()).
				Int("args", len(c.Args())).
				Msg("Received command")
			return next(c)
		}
	}
}

// RecoveryMiddleware turns a handler panic into an error reply.
func RecoveryMiddleware() handler.MiddlewareFunc {
	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(c *handler.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("command", c.Name()).
						Msg("Recovered from panic in handler")
					err = c.Reply("❌ Internal error, please try again")
				}
			}()
			return next(c)
		}
	}
}

// SessionMiddleware rejects commands when nobody is logged in and records
// the username on the context otherwise.
func SessionMiddleware(a *app.App) handler.MiddlewareFunc {
	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(c *handler.Context) error {
			username, ok, err := a.CurrentUser(c.Context())
			if err != nil {
				return c.Reply(handler.Describe(err))
			}
			if !ok {
				log.Debug().Str("command", c.Name()).Msg("Command rejected: no session")
				return c.Reply("❌ Please log in first")
			}
			c.User = username
			return next(c)
		}
	}
}

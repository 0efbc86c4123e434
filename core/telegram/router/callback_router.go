package router

import (
	"log/slog"

	tg "github.com/m3rciful/growbot/core/telegram"
	"github.com/m3rciful/growbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound is used when the registry has no fallback of its own.
	NotFound tele.HandlerFunc
}

// CallbackRoute routes inline button presses by key. Callback handlers
// answer the query themselves.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key, _ := middleware.ParseCallback(cb)
		s := begin(c, "callback."+normalizeHandlerName(key), slog.String("cb_key", key))

		if h, ok := reg.GetCallback(key); ok {
			return s.run(c, h)
		}
		s.extras = append(s.extras, slog.String("reason", "not_found"))
		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		return s.run(c, fallback)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

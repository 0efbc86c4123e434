package router

import (
	tg "github.com/m3rciful/growbot/core/telegram"
	"github.com/m3rciful/growbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Dialog consumes free text for users with an open multi-step conversation.
// Handle reports false when the user has no conversation to continue.
type Dialog interface {
	Handle(c tele.Context) (bool, error)
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds the text and document routes. Text is matched in this
// order: keyboard labels, the open dialog, commands typed without a slash,
// then the fallbacks. Labels come first so the menu always works.
func TextRoutes(dlg Dialog, reg *tg.Registry, opts TextOptions) []tg.Route {
	onText := func(c tele.Context) error {
		text := c.Text()
		if h, ok := reg.LookupText(text); ok {
			return begin(c, "text."+normalizeHandlerName(text)).run(c, h)
		}
		if dlg != nil {
			s := begin(c, "dialog")
			handled, err := dlg.Handle(c)
			if handled || err != nil {
				s.end(c, err)
				return err
			}
		}
		if reg != nil {
			if name, cmd, ok := reg.LookupCommand(text); ok {
				return begin(c, normalizeHandlerName(name)).run(c, cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return begin(c, "fallback").run(c, fb)
			}
		}
		return unclaimed(c, "unknown_text", opts.UnknownText)
	}
	onDocument := func(c tele.Context) error {
		return unclaimed(c, "unexpected_document", opts.UnknownDocument)
	}
	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(onText)},
		{Endpoint: tele.OnDocument, Handler: wrap(onDocument)},
	}
}

// unclaimed runs fallback if set; otherwise the update is logged as skipped.
func unclaimed(c tele.Context, name string, fallback tele.HandlerFunc) error {
	s := begin(c, name)
	if fallback == nil {
		s.skipped()
	}
	return s.run(c, fallback)
}

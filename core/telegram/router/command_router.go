package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/growbot/core/logger"
	tg "github.com/m3rciful/growbot/core/telegram"
	"github.com/m3rciful/growbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes returns one route per registered slash command.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, cmd := range cmds {
		handler := func(c tele.Context) error {
			return begin(c, normalizeHandlerName(name)).run(c, cmd.Handler)
		}
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		})
	}

	logger.Info(context.Background(), "tg.wire", "complete",
		slog.Int("commands", len(cmds)),
		slog.Int("texts", reg.Texts()),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

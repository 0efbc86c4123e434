package middleware

import (
	"time"

	tghelpers "github.com/m3rciful/growbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// UpdateObserver receives one call per update that reached the handlers.
type UpdateObserver func(kind string, took time.Duration, messages int)

// MessageMetricsMiddleware resets the response counters of the update and,
// when observe is set, reports the update once the handler returns.
func MessageMetricsMiddleware(observe UpdateObserver) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			tghelpers.ResetCounters(c)
			start := time.Now()
			err := next(c)
			if observe != nil {
				msgs, _ := tghelpers.Counters(c)
				observe(updateKind(c.Update()), time.Since(start), msgs)
			}
			return err
		}
	}
}

package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/growbot/core/config"
	"github.com/m3rciful/growbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareHooks lets the application observe the shared chain.
type MiddlewareHooks struct {
	// OnLimited runs for updates dropped by the rate limiter.
	OnLimited tele.HandlerFunc
	// Observe runs once per update that reached the handlers.
	Observe middleware.UpdateObserver
}

// DefaultMiddlewares builds the shared middleware chain for bots. Handlers of
// one user never overlap; rate limiting runs before serialization so dropped
// updates do not wait for the lock.
func DefaultMiddlewares(cfg *coreconfig.Config, hooks MiddlewareHooks) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, t := range cfg.RateLimit.ExcludeUpdates {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				ex[t] = struct{}{}
			}
		}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Exclude:   ex,
				OnLimited: hooks.OnLimited,
			}),
		})
	}

	return append(mws,
		Middleware{Name: "serialize", Use: middleware.Serialize()},
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware(hooks.Observe)},
	)
}

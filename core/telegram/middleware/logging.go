package middleware

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/growbot/core/logger"
	tghelpers "github.com/m3rciful/growbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// receipts remembers recently logged update ids; the middleware runs both
// globally and per route.
type receipts struct {
	mu   sync.Mutex
	seen map[int]time.Time
	keep time.Duration
}

var recent = &receipts{seen: make(map[int]time.Time), keep: 10 * time.Second}

func (r *receipts) first(updateID int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ts := range r.seen {
		if now.Sub(ts) > r.keep {
			delete(r.seen, id)
		}
	}
	if _, ok := r.seen[updateID]; ok {
		return false
	}
	r.seen[updateID] = now
	return true
}

// LoggerMiddleware stores the update context (rid, ids, component logger) and
// logs one sampled update.received line per update. Message text is never
// logged: dialog answers carry payout details.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if user := c.Sender(); user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(context.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		kind := updateKind(upd)
		if logger.ShouldSampleDebug(kind) && recent.first(upd.ID, time.Now()) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c, kind)...)
		}
		return next(c)
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	}
	return "other"
}

func receiptAttrs(c tele.Context, kind string) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("op", kind),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil && user.LanguageCode != "" {
		attrs = append(attrs, slog.String("lang", user.LanguageCode))
	}
	switch kind {
	case "callback":
		key, payload := ParseCallback(c.Callback())
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case "message":
		text := c.Text()
		if strings.HasPrefix(text, "/") {
			attrs = append(attrs, slog.String("command", logger.SanitizeLimit(strings.Fields(text)[0], 64)))
		}
		attrs = append(attrs, slog.Int("text_len", len([]rune(text))))
	}
	return attrs
}

// ParseCallback splits callback data into the button's unique key and its payload.
// Data produced by telebot buttons starts with a form feed.
func ParseCallback(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(strings.TrimPrefix(cb.Data, "\f"), `\f`)
	key, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(key), payload
}

package router

import (
	"cmp"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/growbot/core/logger"
	tghelpers "github.com/m3rciful/growbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// span is one routed update. Its summary line is written once the handler
// returns, with the number of messages it queued.
type span struct {
	handler string
	start   time.Time
	status  string
	extras  []slog.Attr
}

func begin(c tele.Context, handler string, extras ...slog.Attr) *span {
	tghelpers.WithHandler(c, handler)
	return &span{handler: handler, start: time.Now(), extras: extras}
}

// skipped marks an update no handler claimed.
func (s *span) skipped() *span {
	s.status = "skip"
	return s
}

// run calls fn and logs the summary.
func (s *span) run(c tele.Context, fn tele.HandlerFunc) error {
	var err error
	if fn != nil {
		err = fn(c)
	}
	s.end(c, err)
	return err
}

func (s *span) end(c tele.Context, err error) {
	status, outcome := "ok", "ok"
	switch {
	case err != nil && isRefusal(err):
		outcome = "refused"
	case err != nil:
		status, outcome = "fail", "fail"
	}
	status = cmp.Or(s.status, status)

	msgs, kb := tghelpers.Counters(c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.handler),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(s.start)),
	}, s.extras...)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(tghelpers.WithHandler(c, s.handler), logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

// isRefusal reports errors that describe a declined request rather than a failure.
func isRefusal(err error) bool {
	var r interface{ Refused() bool }
	return errors.As(err, &r) && r.Refused()
}

func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// deriveErrorCode prefers an explicit Code() and falls back to the error's
// type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c interface{ Code() string }
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}

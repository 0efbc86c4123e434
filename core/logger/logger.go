// Package logger is the structured logging layer shared by every component.
// Lines carry a fixed leading key order (ts, level, component, event, status)
// followed by request metadata pulled from the context.
package logger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/growbot/core/buildinfo"
	coreconfig "github.com/m3rciful/growbot/core/config"
)

var (
	base     atomic.Pointer[slog.Logger]
	levelVar slog.LevelVar

	debugSampler  = newKeySampler(1, 50)
	traceOverride atomic.Bool

	state struct {
		sync.Mutex
		started bool
		stopped bool
		writer  *asyncWriter
		files   []io.Closer
	}
)

var errAlreadyInit = errors.New("logger: already initialized")

// settings is the logging section after defaults were applied.
type settings struct {
	format   logFormat
	level    slog.Level
	order    []string
	num, den int
	profile  string
	dir      string
	files    []fileSink
}

type fileSink struct {
	name     string
	minLevel slog.Leveler
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{format: formatJSON, level: slog.LevelInfo, num: 1, den: 50, profile: "prod"}
	if cfg == nil {
		s.order = slices.Clone(defaultKeyOrder)
		return s
	}
	lc := cfg.Logging
	s.profile = strings.ToLower(cmp.Or(strings.TrimSpace(lc.Profile), "prod"))

	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	s.order = splitKeys(lc.KeysOrder)

	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		switch num, den := parseRatioSpec(spec); {
		case num == 0 && den == 0:
			s.num, s.den = 0, 0
		case num > 0 && den > 0:
			s.num, s.den = num, den
		}
	}

	s.dir = strings.TrimSpace(lc.Dir)
	s.files = []fileSink{
		{name: strings.TrimSpace(lc.BotFile)},
		{name: strings.TrimSpace(lc.ErrorsFile), minLevel: slog.LevelWarn},
	}
	return s
}

// splitKeys parses a comma separated key order; empty or "default" keeps the
// built-in order.
func splitKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return slices.Clone(defaultKeyOrder)
	}
	var order []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return slices.Clone(defaultKeyOrder)
	}
	return order
}

// InitLogger installs the global logger. A second call returns an error.
func InitLogger(cfg *coreconfig.Config) error {
	state.Lock()
	defer state.Unlock()
	if state.started {
		return errAlreadyInit
	}

	s := resolve(cfg)
	sinks, files, err := openSinks(s)
	if err != nil {
		return err
	}
	state.started = true
	state.files = files
	state.writer = newAsyncWriter(sinks, 64*1024)

	levelVar.Set(s.level)
	debugSampler.Set(s.num, s.den)
	traceOverride.Store(envFlag("TRACE") || envFlag("LOG_TRACE"))

	l := slog.New(newStructuredHandler(handlerConfig{
		level:    &levelVar,
		writer:   state.writer,
		format:   s.format,
		keyOrder: s.order,
	}))
	base.Store(l)
	slog.SetDefault(l)

	Info(context.Background(), "app", "startup",
		slog.String("go_version", runtime.Version()),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", s.profile),
	)
	return nil
}

// openSinks always includes stdout. bot_file receives every line and
// errors_file WARN and above; both live under dir.
func openSinks(s settings) ([]sink, []io.Closer, error) {
	sinks := []sink{{w: os.Stdout}}
	if s.dir == "" {
		return sinks, nil, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logger: create %s: %w", s.dir, err)
	}
	var files []io.Closer
	for _, f := range s.files {
		if f.name == "" {
			continue
		}
		path := filepath.Join(s.dir, f.name)
		fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			for _, c := range files {
				_ = c.Close()
			}
			return nil, nil, fmt.Errorf("logger: open %s: %w", path, err)
		}
		sinks = append(sinks, sink{w: fh, minLevel: f.minLevel})
		files = append(files, fh)
	}
	return sinks, files, nil
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Shutdown flushes pending lines and closes the log files. Later calls are no-ops.
func Shutdown() error {
	state.Lock()
	defer state.Unlock()
	if state.stopped || !state.started {
		return nil
	}
	state.stopped = true

	var errs []error
	if w := state.writer; w != nil {
		errs = append(errs, w.Flush(), w.Close())
	}
	for _, c := range state.files {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Component returns the global logger scoped to name, or nil before InitLogger.
func Component(name string) *slog.Logger {
	l := base.Load()
	if l == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return l
	}
	return l.With("component", name)
}

// LogEvent writes event through logg, falling back to the context logger and
// then the global one. Nothing is written before InitLogger.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Event logs under component at the given level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line of the given
// kind should be written. TRACE=1 in the environment disables sampling.
func ShouldSampleDebug(kind string) bool {
	return traceOverride.Load() || debugSampler.Allow(kind)
}

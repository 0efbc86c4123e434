package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/growbot/core/config"
)

func TestResolveDefaults(t *testing.T) {
	s := resolve(nil)
	if s.format != formatJSON || s.level != slog.LevelInfo {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.num != 1 || s.den != 50 {
		t.Fatalf("default sampling = %d/%d", s.num, s.den)
	}
	if len(s.order) != len(defaultKeyOrder) {
		t.Fatalf("default key order not used")
	}
}

func TestResolveLoggingSection(t *testing.T) {
	cfg := &coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Level:       "WARNING",
		Profile:     " Dev ",
		KeysOrder:   "event, ,level",
		DebugSample: "off",
		Dir:         " logs ",
		BotFile:     "bot.log",
	}}
	s := resolve(cfg)
	if s.format != formatKV {
		t.Fatalf("dev profile without format should log kv, got %s", s.format)
	}
	if s.level != slog.LevelWarn {
		t.Fatalf("level = %v", s.level)
	}
	if s.profile != "dev" {
		t.Fatalf("profile = %q", s.profile)
	}
	if len(s.order) != 2 || s.order[0] != "event" || s.order[1] != "level" {
		t.Fatalf("order = %v", s.order)
	}
	if s.num != 0 || s.den != 0 {
		t.Fatalf("sampling should be disabled, got %d/%d", s.num, s.den)
	}
	if s.dir != "logs" {
		t.Fatalf("dir = %q", s.dir)
	}

	cfg.Logging.Format = "json"
	cfg.Logging.DebugSample = "5/0"
	s = resolve(cfg)
	if s.format != formatJSON {
		t.Fatalf("explicit json ignored")
	}
	if s.num != 1 || s.den != 50 {
		t.Fatalf("invalid sample ratio should keep default, got %d/%d", s.num, s.den)
	}
}

func TestOpenSinksCreatesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s := resolve(&coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Dir:        dir,
		BotFile:    "bot.log",
		ErrorsFile: "errors.log",
	}})
	sinks, files, err := openSinks(s)
	if err != nil {
		t.Fatalf("openSinks: %v", err)
	}
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	if len(sinks) != 3 || len(files) != 2 {
		t.Fatalf("got %d sinks and %d files", len(sinks), len(files))
	}
	if sinks[1].minLevel != nil {
		t.Fatal("bot_file must receive every level")
	}
	if sinks[2].minLevel == nil || sinks[2].minLevel.Level() != slog.LevelWarn {
		t.Fatal("errors_file must start at WARN")
	}
	for _, name := range []string{"bot.log", "errors.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s not created: %v", name, err)
		}
	}
}

func TestOpenSinksStdoutOnly(t *testing.T) {
	sinks, files, err := openSinks(resolve(nil))
	if err != nil || len(sinks) != 1 || files != nil {
		t.Fatalf("sinks=%d files=%v err=%v", len(sinks), files, err)
	}
}

func TestEventBeforeInitIsSilent(t *testing.T) {
	if base.Load() != nil {
		t.Skip("global logger already installed")
	}
	Info(context.Background(), "app", "noop")
	if Component("app") != nil {
		t.Fatal("Component must be nil before InitLogger")
	}
}

func TestContextMetaIsCopied(t *testing.T) {
	parent := WithUpdateMeta(WithRID(context.Background(), "1:2:3"), 1, 3, 2)
	child := WithHandler(parent, "checkin")

	if HandlerFrom(parent) != "" {
		t.Fatal("child handler leaked into parent")
	}
	if HandlerFrom(child) != "checkin" || RIDFrom(child) != "1:2:3" {
		t.Fatalf("child lost metadata: handler=%q rid=%q", HandlerFrom(child), RIDFrom(child))
	}
	if UpdateIDFrom(child) != 1 || UserIDFrom(child) != 3 || ChatIDFrom(child) != 2 {
		t.Fatal("update ids not carried")
	}
	if WithHandler(child, "") != child {
		t.Fatal("empty handler must keep the context")
	}
	if RIDFrom(nil) != "" || FromContext(nil) != base.Load() {
		t.Fatal("nil context must read as empty")
	}
}

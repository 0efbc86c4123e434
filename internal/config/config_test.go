package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/growbot/internal/ledger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "telegram:\n  token: \"123:abc\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, SessionMemory, cfg.Session.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, ":3000", cfg.HTTP.Listen)
	assert.Equal(t, "Asia/Kolkata", cfg.Ledger.Location.String())

	want := ledger.DefaultRules()
	want.Location = cfg.Ledger.Location
	assert.Equal(t, want, cfg.Ledger)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "from-yaml"
storage:
  driver: Postgres
session:
  backend: redis
  ttl: 10m
redis:
  addr: "redis:6379"
ledger:
  plan_price: 500
payments:
  purchase_url: "https://pay.example/plan"
http:
  port: "9000"
timezone: UTC
`)
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("LEDGER_CHECKIN_REWARD", "50")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, SessionRedis, cfg.Session.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, int64(500), cfg.Ledger.PlanPrice)
	assert.Equal(t, int64(50), cfg.Ledger.CheckInReward)
	assert.Equal(t, int64(150), cfg.Ledger.ReactivationPrice)
	assert.Equal(t, "https://pay.example/plan", cfg.Payments.PurchaseURL)
	assert.NotEmpty(t, cfg.Payments.ProofFormURL)
	assert.Equal(t, ":9000", cfg.HTTP.Listen)
	assert.Equal(t, time.UTC, cfg.Ledger.Location)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing token":  "storage:\n  driver: memory\n",
		"bad driver":     "telegram:\n  token: t\nstorage:\n  driver: sqlite\n",
		"redis no addr":  "telegram:\n  token: t\nsession:\n  backend: redis\nredis:\n  addr: \"\"\n",
		"bad timezone":   "telegram:\n  token: t\ntimezone: Mars/Olympus\n",
		"bad withdrawal": "telegram:\n  token: t\nledger:\n  min_withdrawal: 2000\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/growbot/core/config"
	coredatabase "github.com/m3rciful/growbot/core/database"
	"github.com/m3rciful/growbot/internal/handlers"
	"github.com/m3rciful/growbot/internal/ledger"
)

const (
	// StorageMemory keeps the ledger in process memory.
	StorageMemory = "memory"
	// StoragePostgres keeps the ledger in PostgreSQL.
	StoragePostgres = "postgres"

	// SessionMemory keeps dialog sessions in process memory.
	SessionMemory = "memory"
	// SessionRedis keeps dialog sessions in Redis.
	SessionRedis = "redis"

	defaultTimezone      = "Asia/Kolkata"
	defaultSessionTTL    = 30 * time.Minute
	defaultSweepInterval = 5 * time.Minute
	defaultHTTPPort      = "3000"
)

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

// SessionConfig controls dialog session lifetime.
type SessionConfig struct {
	Backend       string        `yaml:"backend" envconfig:"SESSION_BACKEND"`
	TTL           time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL"`
}

// RedisConfig holds the Redis connection used by the session store.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// HTTPConfig configures the keep-alive, health and metrics listener.
// Listen wins over Port; Port follows the PORT convention of hosting platforms.
type HTTPConfig struct {
	Listen  string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	Port    string `yaml:"port" envconfig:"PORT"`
	Metrics bool   `yaml:"metrics" envconfig:"HTTP_METRICS"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Storage  StorageConfig       `yaml:"storage"`
	Session  SessionConfig       `yaml:"session"`
	Redis    RedisConfig         `yaml:"redis"`
	Ledger   ledger.Rules        `yaml:"ledger"`
	Payments handlers.Payments   `yaml:"payments"`
	HTTP     HTTPConfig          `yaml:"http"`
	Timezone string              `yaml:"timezone" envconfig:"TIMEZONE"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Defaults returns the configuration used before YAML and env overrides.
func Defaults() Config {
	return Config{
		Storage:  StorageConfig{Driver: StorageMemory},
		Session:  SessionConfig{Backend: SessionMemory, TTL: defaultSessionTTL, SweepInterval: defaultSweepInterval},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Ledger:   ledger.DefaultRules(),
		Payments: handlers.DefaultPayments(),
		HTTP:     HTTPConfig{Metrics: true},
		Timezone: defaultTimezone,
	}
}

// Load reads an optional .env file, then the YAML file at path, then the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the application sections and resolves derived values.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch cfg.Storage.Driver {
	case "":
		cfg.Storage.Driver = StorageMemory
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: memory, postgres", cfg.Storage.Driver)
	}

	cfg.Session.Backend = strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	switch cfg.Session.Backend {
	case "":
		cfg.Session.Backend = SessionMemory
	case SessionMemory:
	case SessionRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", cfg.Session.Backend)
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = defaultSessionTTL
	}
	if cfg.Session.SweepInterval <= 0 {
		cfg.Session.SweepInterval = defaultSweepInterval
	}

	if strings.TrimSpace(cfg.Timezone) == "" {
		cfg.Timezone = defaultTimezone
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Ledger.Location = loc
	if err := cfg.Ledger.Validate(); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		port := strings.TrimSpace(cfg.HTTP.Port)
		if port == "" {
			port = defaultHTTPPort
		}
		cfg.HTTP.Listen = ":" + port
	}
	return nil
}

// Package app assembles growbot from configuration: storage, dialog sessions,
// handlers, the Telegram runtime and the HTTP side server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/growbot/core/bootstrap"
	corecmd "github.com/m3rciful/growbot/core/cmd"
	"github.com/m3rciful/growbot/core/logger"
	tg "github.com/m3rciful/growbot/core/telegram"
	"github.com/m3rciful/growbot/internal/bot"
	"github.com/m3rciful/growbot/internal/config"
	"github.com/m3rciful/growbot/internal/dialog"
	"github.com/m3rciful/growbot/internal/dialog/redisstore"
	"github.com/m3rciful/growbot/internal/handlers"
	"github.com/m3rciful/growbot/internal/httpapi"
	"github.com/m3rciful/growbot/internal/ledger"
	"github.com/m3rciful/growbot/internal/ledger/memstore"
	"github.com/m3rciful/growbot/internal/ledger/postgres"
	"github.com/m3rciful/growbot/internal/metrics"

	tele "gopkg.in/telebot.v4"
)

// App owns every long-lived component of a running bot.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	rdb      *redis.Client
	sweeper  *dialog.MemoryStore
	metrics  *metrics.Metrics
	handlers *handlers.Handlers
	bot      *bot.Bot
	server   *httpapi.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Bootstrap runs the shared bootstrap pipeline and builds the App. The
// database is only opened for postgres storage.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:       cfg.CoreConfig(),
		Database:     cfg.Database,
		SkipDatabase: cfg.Storage.Driver != config.StoragePostgres,
	})
	if err != nil {
		return nil, err
	}
	a, err := New(ctx, cfg, res.DB)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	return a, nil
}

// New wires the components selected by cfg. db must be set for postgres storage.
func New(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	a := &App{cfg: cfg, db: db, metrics: metrics.New(true)}

	var store ledger.Store
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		if db == nil {
			return nil, errors.New("app: postgres storage requires a database connection")
		}
		store = postgres.New(db)
	default:
		store = memstore.New()
	}

	var sessions dialog.Store
	switch cfg.Session.Backend {
	case config.SessionRedis:
		rdb, err := redisstore.Connect(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.rdb = rdb
		sessions = redisstore.New(rdb, cfg.Session.TTL)
	default:
		a.sweeper = dialog.NewMemoryStore(cfg.Session.TTL)
		sessions = a.sweeper
	}

	svc := ledger.NewService(store, cfg.Ledger)
	a.handlers = handlers.New(svc, sessions,
		handlers.WithRecorder(a.metrics),
		handlers.WithPayments(cfg.Payments),
	)
	a.bot = bot.New(a.handlers)

	opts := httpapi.Options{Checks: a.checks()}
	if cfg.HTTP.Metrics {
		opts.Metrics = a.metrics.Handler()
	}
	a.server = httpapi.NewServer(cfg.HTTP.Listen, httpapi.NewRouter(opts))

	logger.Info(ctx, "app", "wired",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("sessions", cfg.Session.Backend),
		slog.String("http", cfg.HTTP.Listen),
	)
	return a, nil
}

func (a *App) checks() map[string]httpapi.Check {
	checks := map[string]httpapi.Check{}
	if a.db != nil {
		checks["database"] = a.db.PingContext
	}
	if a.rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.rdb.Ping(ctx).Err()
		}
	}
	return checks
}

// TelegramRunOptions describes the bot runtime for core/cmd.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	return tg.RunOptions{
		Config:      core,
		Registry:    tg.NewRegistry(),
		Middlewares: tg.DefaultMiddlewares(core, tg.MiddlewareHooks{
			OnLimited: func(tele.Context) error {
				a.metrics.RateLimited()
				return nil
			},
			Observe: a.metrics.Update,
		}),
		Build:   a.bot.Routes,
		OnStart: a.start,
		OnStop:  a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	bg, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.sweeper != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.sweeper.Run(bg, a.cfg.Session.SweepInterval)
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Run(bg); err != nil {
			logger.Error(bg, "http", "serve.fail", slog.String("err", err.Error()))
		}
	}()
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn(ctx, "app", "close.fail", slog.String("err", err.Error()))
		return err
	}
	return nil
}

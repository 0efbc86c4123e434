// Package sender delivers outbound Telegram calls off the update goroutine.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/growbot/core/logger"
	"github.com/m3rciful/growbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue once Close was called.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the target worker has no free slot.
	ErrQueueFull = errors.New("telegram sender: queue full")

	errNilRun = errors.New("telegram sender: nil run function")
)

const component = "tg.sender"

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher runs queued Telegram calls on a fixed set of workers. Jobs for
// one chat always share a worker, so a chat receives messages in enqueue order.
type Dispatcher struct {
	opts   Options
	mu     sync.RWMutex
	closed bool
	shards []chan job
	wg     sync.WaitGroup
	failed atomic.Uint64
	rr     atomic.Uint64
}

// NewDispatcher starts the workers. Zero options fall back to defaults.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	depth := (opts.QueueSize + opts.Workers - 1) / opts.Workers
	d := &Dispatcher{opts: opts, shards: make([]chan job, opts.Workers)}
	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan job, depth)
		go d.work(d.shards[i])
	}
	return d
}

// Enqueue schedules run without blocking. run may be called more than once
// when the failure is retryable.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.shard(ctx) <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// shard picks the worker by chat, then by user, else round robin.
func (d *Dispatcher) shard(ctx context.Context) chan job {
	n := uint64(len(d.shards))
	key := logger.ChatIDFrom(ctx)
	if key == 0 {
		key = logger.UserIDFrom(ctx)
	}
	switch {
	case key == 0:
		return d.shards[d.rr.Add(1)%n]
	case key < 0:
		key = -key
	}
	return d.shards[uint64(key)%n]
}

// ErrorCount returns how many jobs were given up on.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close drains the queues and waits for the workers. Safe to call twice.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		if err := d.deliver(j); err != nil {
			d.failed.Add(1)
		}
	}
}

// deliver runs j until it succeeds, fails permanently or runs out of attempts
// or time. The final error has already been logged.
func (d *Dispatcher) deliver(j job) error {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	logger.Debug(j.ctx, component, "send.start", j.attrs()...)

	var err error
	for n := 1; n <= attempts; n++ {
		if err = j.run(); err == nil {
			j.logDone(n, time.Since(start))
			return nil
		}
		if n == attempts || !netutil.ShouldRetry(err) {
			break
		}
		backoff := d.opts.RetryBackoff * time.Duration(n)
		if werr := sleep(ctx, backoff); werr != nil {
			err = errors.Join(err, werr)
			break
		}
		logger.Debug(j.ctx, component, "send.retry",
			append(j.attrs(), slog.Int("attempt", n), slog.Duration("backoff", backoff))...)
	}
	j.logFail(err, attempts, time.Since(start))
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (j job) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}

func (j job) logDone(attempt int, took time.Duration) {
	attrs := append(j.attrs(), slog.Duration("duration", took))
	if attempt == 1 {
		logger.Debug(j.ctx, component, "send.ok", attrs...)
		return
	}
	logger.Info(j.ctx, component, "send.ok", append(attrs, slog.Int("attempts", attempt))...)
}

func (j job) logFail(err error, attempts int, took time.Duration) {
	logger.Error(j.ctx, component, "send.fail", append(j.attrs(),
		slog.String("err", redactToken(err)),
		slog.String("err_code", errorKind(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", took),
	)...)
}

package dialog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/growbot/core/logger"
)

// Store keeps at most one session per user.
type Store interface {
	// Load returns ErrNoSession when nothing is stored and ErrSessionExpired
	// (deleting the entry) when the session outlived its TTL.
	Load(ctx context.Context, uid int64) (*Session, error)
	Save(ctx context.Context, uid int64, s *Session) error
	Delete(ctx context.Context, uid int64) error
}

// DefaultGrace is how long an expired session is kept so Load can still
// report it as expired instead of missing.
const DefaultGrace = 24 * time.Hour

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// WithGrace overrides DefaultGrace.
func WithGrace(d time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.grace = d }
}

// MemoryStore is an in-process Store with TTL expiry.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	ttl      time.Duration
	grace    time.Duration
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs a MemoryStore. ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		grace:    DefaultGrace,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) Load(ctx context.Context, uid int64) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[uid]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoSession
	}
	if s.Expired(m.ttl, m.now()) {
		m.mu.Lock()
		if cur, ok := m.sessions[uid]; ok && cur == s {
			delete(m.sessions, uid)
		}
		m.mu.Unlock()
		logger.Debug(ctx, "dialog", "dialog.expired",
			slog.Int64("user_id", uid),
			slog.String("flow", string(s.Flow)),
			slog.String("step", string(s.Step)),
		)
		return nil, ErrSessionExpired
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, uid int64, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[uid] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, uid int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, uid)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than ttl plus grace and returns how
// many were removed.
func (m *MemoryStore) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.ttl + m.grace
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for uid, s := range m.sessions {
		if s.Expired(cutoff, now) {
			delete(m.sessions, uid)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Debug(ctx, "dialog", "dialog.sweep",
					slog.String("status", "ok"),
					slog.Int("removed", n),
				)
			}
		}
	}
}

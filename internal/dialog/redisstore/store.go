// Package redisstore keeps dialog sessions in Redis so they survive restarts
// and can be shared between bot replicas.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/growbot/internal/dialog"
)

const keyPrefix = "growbot:dialog:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// Store is a dialog.Store backed by one string key per user.
type Store struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	grace time.Duration
	now   func() time.Time
}

var _ dialog.Store = (*Store)(nil)

// New builds a Store. Keys live for ttl plus grace so an expired session can
// still be reported as such on the next Load.
func New(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, grace: dialog.DefaultGrace, now: time.Now}
}

// WithClock replaces the time source used for expiry checks.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func key(uid int64) string {
	return keyPrefix + strconv.FormatInt(uid, 10)
}

func (s *Store) Load(ctx context.Context, uid int64) (*dialog.Session, error) {
	raw, err := s.rdb.Get(ctx, key(uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, dialog.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session %d: %w", uid, err)
	}

	var sess dialog.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", uid, err)
	}
	if sess.Expired(s.ttl, s.now()) {
		if err := s.rdb.Del(ctx, key(uid)).Err(); err != nil {
			return nil, fmt.Errorf("redis del session %d: %w", uid, err)
		}
		return nil, dialog.ErrSessionExpired
	}
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, uid int64, sess *dialog.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", uid, err)
	}
	var exp time.Duration
	if s.ttl > 0 {
		exp = s.ttl + s.grace
	}
	if err := s.rdb.Set(ctx, key(uid), raw, exp).Err(); err != nil {
		return fmt.Errorf("redis set session %d: %w", uid, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, uid int64) error {
	if err := s.rdb.Del(ctx, key(uid)).Err(); err != nil {
		return fmt.Errorf("redis del session %d: %w", uid, err)
	}
	return nil
}

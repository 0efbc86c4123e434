// Package memstore keeps the ledger in process memory. It backs the
// tests and the "memory" storage driver.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/growbot/internal/ledger"
)

// Store is a ledger.Store held in maps. Per-user transactions snapshot the
// user's aggregate and restore it when the callback fails.
type Store struct {
	mu        sync.RWMutex
	users     map[int64]ledger.User
	usernames map[string]int64
	deposits  map[int64][]ledger.Deposit
	withdraws map[int64][]ledger.Withdraw

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
	regMu   sync.Mutex
}

var _ ledger.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:     make(map[int64]ledger.User),
		usernames: make(map[string]int64),
		deposits:  make(map[int64][]ledger.Deposit),
		withdraws: make(map[int64][]ledger.Withdraw),
		locks:     make(map[int64]*sync.Mutex),
	}
}

func (s *Store) userLock(uid int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[uid]
	if !ok {
		l = &sync.Mutex{}
		s.locks[uid] = l
	}
	return l
}

type snapshot struct {
	user      ledger.User
	hasUser   bool
	deposits  []ledger.Deposit
	withdraws []ledger.Withdraw
}

func (s *Store) snapshot(uid int64) snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	return snapshot{
		user:      u,
		hasUser:   ok,
		deposits:  append([]ledger.Deposit(nil), s.deposits[uid]...),
		withdraws: append([]ledger.Withdraw(nil), s.withdraws[uid]...),
	}
}

func (s *Store) restore(uid int64, snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.users[uid]; ok {
		delete(s.usernames, cur.Username)
	}
	if snap.hasUser {
		s.users[uid] = snap.user
		s.usernames[snap.user.Username] = uid
	} else {
		delete(s.users, uid)
	}
	s.deposits[uid] = snap.deposits
	s.withdraws[uid] = snap.withdraws
}

// WithinUser serialises writers of one user and rolls back on error.
func (s *Store) WithinUser(ctx context.Context, uid int64, fn func(q ledger.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.userLock(uid)
	l.Lock()
	defer l.Unlock()

	snap := s.snapshot(uid)
	if err := fn(s); err != nil {
		s.restore(uid, snap)
		return err
	}
	return nil
}

// RegisterUser checks the cap and uniqueness under a global registration lock.
func (s *Store) RegisterUser(ctx context.Context, u ledger.User, limit int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.regMu.Lock()
	defer s.regMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.users) >= limit {
		return ledger.Refusal(ledger.KindCapacityExceeded, "")
	}
	if _, ok := s.users[u.UID]; ok {
		return ledger.Refusal(ledger.KindDuplicateIdentity, "uid already registered")
	}
	if _, ok := s.usernames[u.Username]; ok {
		return ledger.Refusal(ledger.KindDuplicateIdentity, "username taken")
	}
	s.users[u.UID] = u
	s.usernames[u.Username] = u.UID
	return nil
}

func (s *Store) FindUserByID(_ context.Context, uid int64) (*ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &u, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid, ok := s.usernames[username]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	u := s.users[uid]
	return &u, nil
}

func (s *Store) CountUsers(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *Store) CreateUser(_ context.Context, u ledger.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.UID]; ok {
		return ledger.Refusal(ledger.KindDuplicateIdentity, "uid already registered")
	}
	if _, ok := s.usernames[u.Username]; ok {
		return ledger.Refusal(ledger.KindDuplicateIdentity, "username taken")
	}
	s.users[u.UID] = u
	s.usernames[u.Username] = u.UID
	return nil
}

func (s *Store) SaveUser(_ context.Context, u ledger.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.UID]
	if !ok {
		return ledger.ErrNotFound
	}
	if cur.Username != u.Username {
		if _, taken := s.usernames[u.Username]; taken {
			return ledger.Refusal(ledger.KindDuplicateIdentity, "username taken")
		}
		delete(s.usernames, cur.Username)
		s.usernames[u.Username] = u.UID
	}
	s.users[u.UID] = u
	return nil
}

func (s *Store) CountReferrals(_ context.Context, uid int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.ReferredBy != nil && *u.ReferredBy == uid {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountDeposits(_ context.Context, uid int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deposits[uid]), nil
}

func (s *Store) FindOldestDeposit(_ context.Context, uid int64) (*ledger.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds := s.deposits[uid]
	if len(ds) == 0 {
		return nil, ledger.ErrNotFound
	}
	d := ds[0]
	return &d, nil
}

func (s *Store) DeleteDeposit(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uid, ds := range s.deposits {
		for i, d := range ds {
			if d.ID == id {
				s.deposits[uid] = append(ds[:i:i], ds[i+1:]...)
				return nil
			}
		}
	}
	return ledger.ErrNotFound
}

// CreateDeposit keeps each user's deposits ordered by creation time.
func (s *Store) CreateDeposit(_ context.Context, d ledger.Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds := s.deposits[d.UID]
	i := sort.Search(len(ds), func(i int) bool {
		return ds[i].CreatedAt.After(d.CreatedAt)
	})
	ds = append(ds, ledger.Deposit{})
	copy(ds[i+1:], ds[i:])
	ds[i] = d
	s.deposits[d.UID] = ds
	return nil
}

func (s *Store) FindDepositsByUser(_ context.Context, uid int64) ([]ledger.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds := s.deposits[uid]
	out := make([]ledger.Deposit, 0, len(ds))
	for i := len(ds) - 1; i >= 0; i-- {
		out = append(out, ds[i])
	}
	return out, nil
}

func (s *Store) FindWithdrawsByUserInRange(_ context.Context, uid int64, start, end time.Time) ([]ledger.Withdraw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Withdraw
	for _, w := range s.withdraws[uid] {
		if !w.CreatedAt.Before(start) && w.CreatedAt.Before(end) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) FindWithdrawsByUser(_ context.Context, uid int64, desc bool, limit int) ([]ledger.Withdraw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws := s.withdraws[uid]
	out := make([]ledger.Withdraw, 0, len(ws))
	if desc {
		for i := len(ws) - 1; i >= 0; i-- {
			out = append(out, ws[i])
		}
	} else {
		out = append(out, ws...)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateWithdraw(_ context.Context, w ledger.Withdraw) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.withdraws[w.UID]
	i := sort.Search(len(ws), func(i int) bool {
		return ws[i].CreatedAt.After(w.CreatedAt)
	})
	ws = append(ws, ledger.Withdraw{})
	copy(ws[i+1:], ws[i:])
	ws[i] = w
	s.withdraws[w.UID] = ws
	return nil
}

package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/blackjackd/internal/blackjack"
)

// MemoryStore is an in-process Store backed by a map and a per-key lock
// table.
type MemoryStore struct {
	clock quartz.Clock

	mu    sync.Mutex
	games map[string]*blackjack.Game
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewMemoryStore creates an empty store. Expiry checks in Get use clock.
func NewMemoryStore(clock quartz.Clock) *MemoryStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemoryStore{
		clock: clock,
		games: make(map[string]*blackjack.Game),
		locks: make(map[string]*keyLock),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*blackjack.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[id]
	if !ok {
		return nil, blackjack.Errorf(blackjack.KindNotFound, "get session", id, "no such game")
	}
	// Expired sessions are left for SweepExpired; a lookup never mutates.
	if g.Expired(s.clock.Now("session", "get")) {
		return nil, blackjack.Errorf(blackjack.KindNotFound, "get session", id, "game expired")
	}
	return g.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, g *blackjack.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g == nil || g.ID == "" {
		return blackjack.Errorf(blackjack.KindValidation, "put session", "", "game has no id")
	}

	s.mu.Lock()
	s.games[g.ID] = g.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.games, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, g := range s.games {
		if g.Expired(now) {
			delete(s.games, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

// Lock blocks until the lock for id is free or ctx is done. Waiters are
// granted the lock in arrival order. Locking an id does not create a
// session.
func (s *MemoryStore) Lock(ctx context.Context, id string) (func(), error) {
	s.mu.Lock()
	kl, ok := s.locks[id]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		s.locks[id] = kl
	}
	kl.refs++
	s.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		s.release(id, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			s.release(id, kl)
		})
	}, nil
}

func (s *MemoryStore) release(id string, kl *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(s.locks, id)
	}
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

var _ Store = (*MemoryStore)(nil)

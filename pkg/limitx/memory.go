package limitx

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process CounterStore. Each key carries its own mutex
// so unrelated identities never serialize on each other. Counters for
// elapsed windows are purged lazily.
//
// Known limitation: state is process-local, so limiting is only correct for
// a single instance. Multi-instance deployments must use RedisStore.
type MemoryStore struct {
	entries sync.Map // key -> *memCounter

	purgeMu   sync.Mutex
	lastPurge time.Time
}

type memCounter struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lastPurge: time.Now()}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	v, _ := s.entries.LoadOrStore(key, &memCounter{})
	c := v.(*memCounter)

	now := time.Now()

	c.mu.Lock()
	if !c.resetAt.After(now) {
		c.count = 0
		c.resetAt = now.Add(window)
	}
	c.count++
	count, resetAt := c.count, c.resetAt
	c.mu.Unlock()

	s.maybePurge(now)

	return count, resetAt, nil
}

func (s *MemoryStore) Entries(_ context.Context) ([]Entry, error) {
	now := time.Now()
	var out []Entry

	s.entries.Range(func(key, v any) bool {
		c := v.(*memCounter)
		c.mu.Lock()
		count, resetAt := c.count, c.resetAt
		c.mu.Unlock()

		if !resetAt.After(now) {
			s.entries.Delete(key)
			return true
		}

		out = append(out, Entry{Key: key.(string), Count: count, ResetAt: resetAt})
		return true
	})

	return out, nil
}

func (s *MemoryStore) DeleteIdentity(_ context.Context, identity string) (int, error) {
	removed := 0
	s.entries.Range(func(key, _ any) bool {
		if identityOf(key.(string)) == identity {
			s.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

func (s *MemoryStore) Clear(_ context.Context) (int, error) {
	removed := 0
	s.entries.Range(func(key, _ any) bool {
		s.entries.Delete(key)
		removed++
		return true
	})
	return removed, nil
}

// maybePurge drops counters whose window has fully elapsed. Runs at most
// once every five minutes to keep Incr cheap.
func (s *MemoryStore) maybePurge(now time.Time) {
	s.purgeMu.Lock()
	if now.Sub(s.lastPurge) < 5*time.Minute {
		s.purgeMu.Unlock()
		return
	}
	s.lastPurge = now
	s.purgeMu.Unlock()

	s.entries.Range(func(key, v any) bool {
		c := v.(*memCounter)
		c.mu.Lock()
		expired := !c.resetAt.After(now)
		c.mu.Unlock()

		if expired {
			s.entries.Delete(key)
		}
		return true
	})
}

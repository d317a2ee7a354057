package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultLRUSize = 10000

type lruStore struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	cache  *expirable.LRU[string, time.Time]
}

// NewLRU keeps cooldowns in process memory. Entries age out of the cache
// after window; the stored timestamp is still checked so an injected clock
// decides the outcome.
func NewLRU(size int, window time.Duration) Store {
	return newLRUWithClock(size, window, time.Now)
}

func newLRUWithClock(size int, window time.Duration, now func() time.Time) *lruStore {
	if size <= 0 {
		size = defaultLRUSize
	}
	return &lruStore{
		window: window,
		now:    now,
		cache:  expirable.NewLRU[string, time.Time](size, nil, window),
	}
}

func (s *lruStore) Acquire(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if last, ok := s.cache.Get(key); ok && now.Sub(last) < s.window {
		return false, nil
	}
	s.cache.Add(key, now)
	return true, nil
}

func (s *lruStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(key)
	return nil
}

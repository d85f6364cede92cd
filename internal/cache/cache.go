package cache

import (
	"context"
	"sync"
	"time"

	"priceoracle/internal/clock"
)

const (
	DefaultTTL           = 30 * time.Second
	DefaultSweepInterval = 5 * time.Minute
)

// entry stores a cached value with its absolute expiry.
type entry[V any] struct {
	expiresAt time.Time
	value     V
}

// Options configures a Store. Zero values fall back to the package defaults.
type Options struct {
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	// MaxEntries caps the store size. Expired entries are evicted first,
	// then the ones closest to expiry. <= 0 means unbounded.
	MaxEntries int
	Clock      clock.Clock
}

// Store is a key/value store with per-entry expiry.
// An entry is absent once now >= expiry, whether or not it was purged yet.
type Store[V any] struct {
	ttl      time.Duration
	interval time.Duration
	max      int
	clock    clock.Clock

	mu    sync.Mutex
	items map[string]entry[V]

	stopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New[V any](opts Options) *Store[V] {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	return &Store[V]{
		ttl:      opts.DefaultTTL,
		interval: opts.SweepInterval,
		max:      opts.MaxEntries,
		clock:    opts.Clock,
		items:    make(map[string]entry[V]),
	}
}

// Put stores value under key. ttl <= 0 uses the store default.
func (s *Store[V]) Put(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.clock.Now()

	s.mu.Lock()
	s.items[key] = entry[V]{expiresAt: now.Add(ttl), value: value}
	if s.max > 0 && len(s.items) > s.max {
		s.evictLocked(now, key)
	}
	s.mu.Unlock()
}

// Get returns the value for key, or false if it is missing or expired.
// Expired entries are deleted on the way out.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return zero, false
	}
	if !now.Before(e.expiresAt) {
		delete(s.items, key)
		return zero, false
	}
	return e.value, true
}

func (s *Store[V]) Remove(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

func (s *Store[V]) Clear() {
	s.mu.Lock()
	s.items = make(map[string]entry[V])
	s.mu.Unlock()
}

// Len counts physically present entries, expired or not.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep deletes every expired entry and reports how many were removed.
func (s *Store[V]) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// Start runs Sweep every SweepInterval until ctx is done or Close is called.
// Calling Start on a running store is a no-op.
func (s *Store[V]) Start(ctx context.Context) {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}

// Close stops the background sweep and waits for it to exit.
func (s *Store[V]) Close() {
	s.stopMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.stopMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// evictLocked trims the map back to max. keep is never evicted.
func (s *Store[V]) evictLocked(now time.Time, keep string) {
	for k, e := range s.items {
		if len(s.items) <= s.max {
			return
		}
		if k != keep && !now.Before(e.expiresAt) {
			delete(s.items, k)
		}
	}
	for len(s.items) > s.max {
		victim := ""
		var soonest time.Time
		for k, e := range s.items {
			if k == keep {
				continue
			}
			if victim == "" || e.expiresAt.Before(soonest) {
				victim, soonest = k, e.expiresAt
			}
		}
		if victim == "" {
			return
		}
		delete(s.items, victim)
	}
}

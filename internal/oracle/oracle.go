// Package oracle is the read API of the price oracle: a cached quote table
// rebuilt on demand with at most one aggregation pass in flight.
package oracle

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"priceoracle/internal/aggregate"
	"priceoracle/internal/asset"
	"priceoracle/internal/cache"
	"priceoracle/internal/clock"
	"priceoracle/internal/fallback"
	"priceoracle/internal/metrics"
	"priceoracle/internal/provider"
)

const tableKey = "quotes"

// Aggregator builds a fresh quote table.
type Aggregator interface {
	Aggregate(ctx context.Context) aggregate.Table
}

type Config struct {
	Aggregator Aggregator
	Registry   *asset.Registry

	// TTL of the cached table. Defaults to cache.DefaultTTL.
	TTL           time.Duration
	SweepInterval time.Duration
	// RefreshInterval > 0 makes Start refresh the table on a ticker.
	RefreshInterval time.Duration

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Service owns the quote cache. Construct one per process and share it.
type Service struct {
	agg      Aggregator
	reg      *asset.Registry
	ttl      time.Duration
	interval time.Duration
	clock    clock.Clock
	log      *slog.Logger
	metrics  *metrics.Metrics

	store *cache.Store[aggregate.Table]
	sf    singleflight.Group

	refreshMu  sync.Mutex
	refreshing *refreshCall

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// refreshCall is an in-flight refresh that cache misses can wait on.
type refreshCall struct {
	done  chan struct{}
	table aggregate.Table
}

func New(cfg Config) *Service {
	if cfg.Registry == nil {
		cfg.Registry = asset.DefaultRegistry()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = cache.DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		agg:      cfg.Aggregator,
		reg:      cfg.Registry,
		ttl:      cfg.TTL,
		interval: cfg.RefreshInterval,
		clock:    cfg.Clock,
		log:      log.With("component", "oracle"),
		metrics:  cfg.Metrics,
		store: cache.New[aggregate.Table](cache.Options{
			DefaultTTL:    cfg.TTL,
			SweepInterval: cfg.SweepInterval,
			Clock:         cfg.Clock,
		}),
	}
}

// GetPrices returns the cached table, building it first if it is missing or
// expired. Concurrent misses share one aggregation pass, and a miss during a
// refresh waits for that refresh instead. The returned map is the caller's
// own copy.
func (s *Service) GetPrices(ctx context.Context) aggregate.Table {
	if t, ok := s.store.Get(tableKey); ok {
		s.metrics.CacheHit()
		return maps.Clone(t)
	}
	s.metrics.CacheMiss()

	v, _, _ := s.sf.Do("load", func() (any, error) {
		// A pass may have finished between our miss and this flight.
		if t, ok := s.store.Get(tableKey); ok {
			return t, nil
		}
		if rc := s.inflightRefresh(); rc != nil {
			<-rc.done
			return rc.table, nil
		}
		return s.pass(ctx, "read"), nil
	})
	return maps.Clone(v.(aggregate.Table))
}

// RefreshPrices runs a new aggregation pass regardless of cache freshness and
// caches the result when it is non-empty. Concurrent refreshes share a pass.
func (s *Service) RefreshPrices(ctx context.Context) aggregate.Table {
	v, _, _ := s.sf.Do("refresh", func() (any, error) {
		rc := &refreshCall{done: make(chan struct{})}
		s.refreshMu.Lock()
		s.refreshing = rc
		s.refreshMu.Unlock()
		defer func() {
			s.refreshMu.Lock()
			if s.refreshing == rc {
				s.refreshing = nil
			}
			s.refreshMu.Unlock()
			close(rc.done)
		}()

		rc.table = s.pass(ctx, "refresh")
		return rc.table, nil
	})
	return maps.Clone(v.(aggregate.Table))
}

func (s *Service) inflightRefresh() *refreshCall {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refreshing
}

// GetPrice resolves symbol against the current table. See Resolve.
func (s *Service) GetPrice(ctx context.Context, symbol string) (aggregate.Quote, bool) {
	if strings.TrimSpace(symbol) == "" {
		return aggregate.Quote{}, false
	}
	return s.Resolve(s.GetPrices(ctx), symbol)
}

// Resolve looks symbol up in t: exact key, uppercase, lowercase, then alias.
// Critical assets missing from t still resolve to their compiled-in price.
// It reports false only for untracked symbols. Use it to resolve many
// symbols against one GetPrices snapshot.
func (s *Service) Resolve(t aggregate.Table, symbol string) (aggregate.Quote, bool) {
	if strings.TrimSpace(symbol) == "" {
		return aggregate.Quote{}, false
	}
	trimmed := strings.TrimSpace(symbol)
	for _, k := range []string{symbol, strings.ToUpper(trimmed), strings.ToLower(trimmed)} {
		if q, ok := t[k]; ok {
			return q, true
		}
	}
	canon, tracked := s.reg.Resolve(symbol)
	if tracked {
		if q, ok := t[canon]; ok {
			return q, true
		}
	} else {
		canon = asset.Canonical(symbol)
	}

	if p, ok := fallback.Critical(canon); ok {
		name := canon
		if a, ok := s.reg.Lookup(canon); ok {
			name = a.Name
		}
		return aggregate.Quote{
			Symbol:     canon,
			Name:       name,
			Price:      p,
			ReceivedAt: s.clock.Now().UTC(),
			Source:     provider.SourceFallback,
		}, true
	}
	return aggregate.Quote{}, false
}

// Peek returns the cached table without triggering a pass.
func (s *Service) Peek() (aggregate.Table, bool) {
	t, ok := s.store.Get(tableKey)
	if !ok {
		return nil, false
	}
	return maps.Clone(t), true
}

// Start launches the cache sweep and, if configured, the periodic refresh.
// The first refresh runs immediately. Start on a running service is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.store.Start(ctx)

	if s.interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			s.RefreshPrices(ctx)
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}

// Close stops background work and waits for it to finish.
func (s *Service) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.store.Close()
}

// pass runs the aggregator detached from the caller's cancellation: other
// waiters share the result. Adapters bound themselves by timeout.
func (s *Service) pass(ctx context.Context, trigger string) aggregate.Table {
	t := s.agg.Aggregate(context.WithoutCancel(ctx))
	if t == nil {
		t = aggregate.Table{}
	}
	now := s.clock.Now()
	counts := t.CountBySource()
	s.metrics.Pass(trigger, counts, now)

	if len(t) == 0 {
		// Keep whatever is cached; lazy expiry deals with it.
		s.log.Warn("aggregation produced no quotes; not caching", "trigger", trigger)
		return t
	}
	s.store.Put(tableKey, t, s.ttl)
	s.log.Info("quote table refreshed",
		"trigger", trigger,
		"quotes", len(t),
		provider.SourceIDs, counts[provider.SourceIDs],
		provider.SourceAddresses, counts[provider.SourceAddresses],
		provider.SourceFallback, counts[provider.SourceFallback],
	)
	return t
}

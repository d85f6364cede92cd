// Package aggregate merges provider results, fallback constants and alias
// keys into one quote table.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"priceoracle/internal/asset"
	"priceoracle/internal/clock"
	"priceoracle/internal/fallback"
	"priceoracle/internal/metrics"
	"priceoracle/internal/provider"
)

const (
	DefaultIDTimeout      = 5 * time.Second
	DefaultAddressTimeout = 3 * time.Second
)

type Config struct {
	Registry *asset.Registry
	// Either source may be nil when that provider is disabled.
	IDSource      provider.IDSource
	AddressSource provider.AddressSource
	Fallback      fallback.Table

	IDTimeout      time.Duration
	AddressTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Clock   clock.Clock
}

// Aggregator builds quote tables. Safe for concurrent use.
type Aggregator struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config) *Aggregator {
	if cfg.Registry == nil {
		cfg.Registry = asset.DefaultRegistry()
	}
	if cfg.IDTimeout <= 0 {
		cfg.IDTimeout = DefaultIDTimeout
	}
	if cfg.AddressTimeout <= 0 {
		cfg.AddressTimeout = DefaultAddressTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{cfg: cfg, log: log.With("component", "aggregate")}
}

// Aggregate queries both providers concurrently and builds a table. Provider
// failures only shrink their contribution; the result is never empty.
func (a *Aggregator) Aggregate(ctx context.Context) Table {
	var (
		byID   map[string]provider.Price
		byAddr map[string]float64
		g      errgroup.Group
	)
	g.Go(func() error {
		byID = a.fetchIDs(ctx)
		return nil
	})
	g.Go(func() error {
		byAddr = a.fetchAddresses(ctx)
		return nil
	})
	_ = g.Wait()

	now := a.cfg.Clock.Now().UTC()
	reg := a.cfg.Registry
	out := make(Table, len(reg.Assets())*3)

	for id, p := range byID {
		as, ok := reg.ByCoinGeckoID(id)
		if !ok || !provider.ValidPrice(p.Value) {
			continue
		}
		at := p.ObservedAt
		if at.IsZero() {
			at = now
		}
		out[as.Symbol] = Quote{Symbol: as.Symbol, Name: as.Name, Price: p.Value, ReceivedAt: at, Source: provider.SourceIDs}
	}

	// On-chain quotes overwrite id-based ones for the same symbol.
	for addr, v := range byAddr {
		as, ok := reg.ByAddress(addr)
		if !ok || !provider.ValidPrice(v) {
			continue
		}
		out[as.Symbol] = Quote{Symbol: as.Symbol, Name: as.Name, Price: v, ReceivedAt: now, Source: provider.SourceAddresses}
	}

	fillMissing(out, reg, a.cfg.Fallback.Prices, now)

	if len(out) == 0 {
		a.log.Warn("no provider or fallback data; serving safety table")
		fillMissing(out, reg, fallback.Safety(), now)
	}

	addAliases(out, reg)

	a.log.Debug("aggregation pass",
		"provider_a", len(byID),
		"provider_b", len(byAddr),
		"quotes", len(out),
	)
	return out
}

func fillMissing(out Table, reg *asset.Registry, prices map[string]float64, now time.Time) {
	for sym, p := range prices {
		sym = asset.Canonical(sym)
		if _, ok := out[sym]; ok || !provider.ValidPrice(p) {
			continue
		}
		name := sym
		if as, ok := reg.Lookup(sym); ok {
			name = as.Name
		}
		out[sym] = Quote{Symbol: sym, Name: name, Price: p, ReceivedAt: now, Source: provider.SourceFallback}
	}
}

func addAliases(out Table, reg *asset.Registry) {
	for _, as := range reg.Assets() {
		q, ok := out[as.Symbol]
		if !ok {
			continue
		}
		for _, k := range reg.AliasKeys(as.Symbol) {
			out[k] = q
		}
	}
}

func (a *Aggregator) fetchIDs(ctx context.Context) map[string]provider.Price {
	src := a.cfg.IDSource
	ids := a.cfg.Registry.CoinGeckoIDs()
	if src == nil || len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.IDTimeout)
	defer cancel()

	var out map[string]provider.Price
	err := a.guard(src.Name(), func() error {
		var err error
		out, err = src.FetchByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return nil
	}
	return out
}

func (a *Aggregator) fetchAddresses(ctx context.Context) map[string]float64 {
	src := a.cfg.AddressSource
	addrs := a.cfg.Registry.Addresses()
	if src == nil || len(addrs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.AddressTimeout)
	defer cancel()

	var out map[string]float64
	err := a.guard(src.Name(), func() error {
		var err error
		out, err = src.FetchByAddresses(ctx, addrs)
		return err
	})
	if err != nil {
		return nil
	}
	return out
}

// guard runs one adapter call, turning panics into errors and recording the
// outcome. A failed call is logged and contributes nothing.
func (a *Aggregator) guard(name string, call func() error) (err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s: panic: %v", name, rec)
		}
		a.cfg.Metrics.AdapterCall(name, time.Since(start), err)
		if err != nil {
			a.log.Warn("provider failed", "provider", name, "err", err)
		}
	}()
	return call()
}

// Package app wires configuration into a running price service.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"priceoracle/internal/aggregate"
	"priceoracle/internal/clock"
	"priceoracle/internal/config"
	"priceoracle/internal/fallback"
	"priceoracle/internal/httpx"
	"priceoracle/internal/metrics"
	"priceoracle/internal/oracle"
	"priceoracle/internal/provider"
	"priceoracle/internal/provider/coingecko"
	"priceoracle/internal/provider/jupiter"
	"priceoracle/internal/provider/ratelimit"
)

type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Aggregator *aggregate.Aggregator
	Service    *oracle.Service
}

// New builds the adapters, aggregator and price service described by cfg.
// clk may be nil for the wall clock.
func New(cfg config.Config, log *slog.Logger, clk clock.Clock) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	if clk == nil {
		clk = clock.System{}
	}

	fb := fallback.Default()
	if cfg.FallbackFile != "" {
		t, err := fallback.Load(cfg.FallbackFile)
		if err != nil {
			return nil, err
		}
		fb = t
	}
	log.Info("fallback table loaded", "version", fb.Version, "effective_as_of", fb.EffectiveAsOf.Format(time.DateOnly), "symbols", len(fb.Prices))

	hc := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	reg := cfg.Registry()
	m := metrics.New()

	var ids provider.IDSource
	if cfg.CoinGecko.Enabled {
		src, err := newCoinGecko(cfg.CoinGecko, hc, clk)
		if err != nil {
			return nil, err
		}
		ids = src
	} else {
		log.Warn("coingecko disabled; id-based quotes unavailable")
	}

	var addrs provider.AddressSource
	if cfg.Jupiter.Enabled {
		addrs = newJupiter(cfg.Jupiter, hc)
	} else {
		log.Warn("jupiter disabled; address-based quotes unavailable")
	}

	agg := aggregate.New(aggregate.Config{
		Registry:       reg,
		IDSource:       ids,
		AddressSource:  addrs,
		Fallback:       fb,
		IDTimeout:      cfg.CoinGecko.Timeout(),
		AddressTimeout: cfg.Jupiter.Timeout(),
		Logger:         log,
		Metrics:        m,
		Clock:          clk,
	})
	svc := oracle.New(oracle.Config{
		Aggregator:      agg,
		Registry:        reg,
		TTL:             cfg.Oracle.CacheTTL(),
		SweepInterval:   cfg.Oracle.SweepInterval(),
		RefreshInterval: cfg.Oracle.RefreshInterval(),
		Clock:           clk,
		Logger:          log,
		Metrics:         m,
	})
	return &App{Config: cfg, Logger: log, Metrics: m, Aggregator: agg, Service: svc}, nil
}

func newCoinGecko(c config.CoinGecko, hc *httpx.Client, clk clock.Clock) (provider.IDSource, error) {
	opts := []coingecko.ClientOption{coingecko.WithHTTPClient(httpx.Doer{C: hc})}
	if c.ProAPIKey != "" {
		opts = append(opts, coingecko.WithProKey(c.ProAPIKey))
	}
	// An explicit endpoint wins over the pro host.
	if c.Endpoint != "" {
		opts = append(opts, coingecko.WithBaseURL(c.Endpoint))
	}
	client, err := coingecko.NewClient(c.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("coingecko client: %w", err)
	}
	var src provider.IDSource = coingecko.New(coingecko.Config{Timeout: c.Timeout(), Clock: clk}, client)
	if l := ratelimit.NewLimiter(c.MaxRequestsPerMinute, c.Burst, 0); l != nil {
		src = &ratelimit.IDSource{P: src, L: l}
	}
	return src, nil
}

func newJupiter(c config.Jupiter, hc *httpx.Client) provider.AddressSource {
	var src provider.AddressSource = jupiter.New(jupiter.Config{
		URL:              c.Endpoint,
		APIKey:           c.APIKey,
		Timeout:          c.Timeout(),
		MaxIDsPerRequest: c.MaxIDsPerRequest,
	}, hc)
	if l := ratelimit.NewLimiter(c.MaxRequestsPerMinute, c.Burst, 0); l != nil {
		src = &ratelimit.AddressSource{P: src, L: l}
	}
	return src
}

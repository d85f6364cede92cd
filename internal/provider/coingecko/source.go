package coingecko

import (
	"context"
	"time"

	"priceoracle/internal/clock"
	"priceoracle/internal/provider"
)

const DefaultTimeout = 5 * time.Second

type Config struct {
	Name       string        // display name, default: CoinGecko
	VsCurrency string        // quote currency, default: usd
	Timeout    time.Duration // per-call bound, default: 5s
	// Clock stamps quotes the upstream sent without last_updated_at.
	Clock clock.Clock
}

// Source adapts Client to provider.IDSource.
type Source struct {
	cfg    Config
	client *Client
}

func New(cfg Config, client *Client) *Source {
	if cfg.Name == "" {
		cfg.Name = "CoinGecko"
	}
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = "usd"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	return &Source{cfg: cfg, client: client}
}

func (s *Source) Name() string { return s.cfg.Name }

// FetchByIDs returns the USD price per coin id. Any failure yields an empty map.
func (s *Source) FetchByIDs(ctx context.Context, ids []string) (map[string]provider.Price, error) {
	ids = provider.Unique(ids)
	if len(ids) == 0 {
		return map[string]provider.Price{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	prices, err := s.client.GetSimplePrice(ctx, ids, s.cfg.VsCurrency)
	if err != nil {
		return map[string]provider.Price{}, err
	}

	now := s.cfg.Clock.Now().UTC()
	out := make(map[string]provider.Price, len(prices))
	for id, sp := range prices {
		if !provider.ValidPrice(sp.Price) {
			continue
		}
		observed := now
		if sp.LastUpdatedAt != nil {
			observed = *sp.LastUpdatedAt
		}
		out[id] = provider.Price{Value: sp.Price, ObservedAt: observed}
	}
	return out, nil
}

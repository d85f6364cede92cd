package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"priceoracle/internal/provider"
)

// NewLimiter builds a token bucket from a per-minute budget. When rpm is
// zero, minInterval spaces calls instead; when both are zero it returns nil
// (no limiting).
func NewLimiter(rpm, burst int, minInterval time.Duration) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	switch {
	case rpm > 0:
		return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
	case minInterval > 0:
		return rate.NewLimiter(rate.Every(minInterval), 1)
	default:
		return nil
	}
}

// IDSource gates an id-based source behind a limiter.
type IDSource struct {
	P provider.IDSource
	L *rate.Limiter
}

func (s *IDSource) Name() string { return s.P.Name() }

func (s *IDSource) FetchByIDs(ctx context.Context, ids []string) (map[string]provider.Price, error) {
	if err := wait(ctx, s.L, s.P.Name()); err != nil {
		return map[string]provider.Price{}, err
	}
	return s.P.FetchByIDs(ctx, ids)
}

// AddressSource gates an address-based source behind a limiter.
type AddressSource struct {
	P provider.AddressSource
	L *rate.Limiter
}

func (s *AddressSource) Name() string { return s.P.Name() }

func (s *AddressSource) FetchByAddresses(ctx context.Context, addrs []string) (map[string]float64, error) {
	if err := wait(ctx, s.L, s.P.Name()); err != nil {
		return map[string]float64{}, err
	}
	return s.P.FetchByAddresses(ctx, addrs)
}

// wait blocks for a token. A wait that cannot finish before the context
// deadline fails immediately instead of sleeping into it.
func wait(ctx context.Context, l *rate.Limiter, name string) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit: %w", name, err)
	}
	return nil
}

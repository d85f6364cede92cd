// Package providertest has in-memory price sources for tests.
package providertest

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"priceoracle/internal/provider"
)

// IDs is a scripted provider.IDSource that counts its calls.
type IDs struct {
	mu     sync.Mutex
	prices map[string]provider.Price
	err    error
	// Block, when set, is waited on (or ctx) before answering.
	Block <-chan struct{}

	calls atomic.Int32
	last  atomic.Value // []string
}

func NewIDs(prices map[string]float64) *IDs {
	s := &IDs{}
	s.Set(prices)
	return s
}

func (s *IDs) Name() string { return "fake-ids" }

// Set replaces the scripted prices. Observation times are left zero.
func (s *IDs) Set(prices map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = make(map[string]provider.Price, len(prices))
	for k, v := range prices {
		s.prices[k] = provider.Price{Value: v}
	}
}

// SetObserved scripts one price with an explicit observation time.
func (s *IDs) SetObserved(id string, v float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[id] = provider.Price{Value: v, ObservedAt: at}
}

// Fail makes every call return an empty map and err. A nil err clears it.
func (s *IDs) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *IDs) Calls() int { return int(s.calls.Load()) }

// LastRequest returns the ids passed to the latest call.
func (s *IDs) LastRequest() []string {
	v, _ := s.last.Load().([]string)
	return v
}

func (s *IDs) FetchByIDs(ctx context.Context, ids []string) (map[string]provider.Price, error) {
	s.calls.Add(1)
	s.last.Store(append([]string(nil), ids...))
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return map[string]provider.Price{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return map[string]provider.Price{}, s.err
	}
	out := make(map[string]provider.Price, len(ids))
	for _, id := range ids {
		if p, ok := s.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// Addresses is a scripted provider.AddressSource that counts its calls.
type Addresses struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
	Block  <-chan struct{}

	calls atomic.Int32
}

func NewAddresses(prices map[string]float64) *Addresses {
	s := &Addresses{}
	s.Set(prices)
	return s
}

func (s *Addresses) Name() string { return "fake-addresses" }

func (s *Addresses) Set(prices map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = maps.Clone(prices)
}

func (s *Addresses) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Addresses) Calls() int { return int(s.calls.Load()) }

func (s *Addresses) FetchByAddresses(ctx context.Context, addrs []string) (map[string]float64, error) {
	s.calls.Add(1)
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return map[string]float64{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return map[string]float64{}, s.err
	}
	out := make(map[string]float64, len(addrs))
	for _, a := range addrs {
		if v, ok := s.prices[a]; ok {
			out[a] = v
		}
	}
	return out, nil
}

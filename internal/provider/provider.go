package provider

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"
)

// Provenance tags carried by every quote.
const (
	SourceIDs       = "provider-a"
	SourceAddresses = "provider-b"
	SourceFallback  = "fallback"
)

// ErrUnexpectedStatus wraps non-2xx upstream responses.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Price is one observation from the id-based provider.
type Price struct {
	Value      float64
	ObservedAt time.Time
}

// IDSource quotes assets by provider-specific id.
// On failure it returns an empty, non-nil map and the error; it never returns
// a partial map together with an error.
type IDSource interface {
	Name() string
	FetchByIDs(ctx context.Context, ids []string) (map[string]Price, error)
}

// AddressSource quotes assets by on-chain address. Same failure contract as IDSource.
type AddressSource interface {
	Name() string
	FetchByAddresses(ctx context.Context, addrs []string) (map[string]float64, error)
}

// ValidPrice reports whether v can be published as a quote.
func ValidPrice(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Unique drops empty and duplicate keys and sorts the rest, so batched
// requests are deterministic.
func Unique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseEpochMaybeMillis accepts unix seconds or milliseconds.
func ParseEpochMaybeMillis(v int64, fallback time.Time) time.Time {
	if v <= 0 {
		return fallback
	}
	if v > 1_000_000_000_000 { // ms
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

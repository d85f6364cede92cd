// Package asset holds the fixed list of tracked assets and the alias graph
// that maps user-facing spellings onto canonical symbols.
package asset

import (
	"fmt"
	"sort"
	"strings"
)

const ChainSolana = "solana"

// Asset is a tracked asset. Symbol is the canonical uppercase ticker.
type Asset struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
	// CoinGeckoID is the id used by the id-based quote provider. Optional.
	CoinGeckoID string `json:"coingecko_id,omitempty" yaml:"coingecko_id,omitempty"`
	// Address and Chain locate the asset for the address-based provider. Optional.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	Chain   string `json:"chain,omitempty" yaml:"chain,omitempty"`
	// Aliases are alternate names (e.g. "solana" for SOL).
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	// Common assets are also published under their lowercase symbol and aliases.
	Common bool `json:"common,omitempty" yaml:"common,omitempty"`
}

// Canonical normalizes a ticker to its canonical form.
func Canonical(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Registry is an immutable index over a set of assets.
type Registry struct {
	assets    []Asset
	bySymbol  map[string]int
	byID      map[string]int
	byAddress map[string]int
	// alias (lowercased) -> canonical symbol
	aliases map[string]string
}

// NewRegistry indexes assets. Symbols are canonicalized; duplicate symbols,
// ids, addresses or aliases claimed by two different assets are rejected.
func NewRegistry(assets []Asset) (*Registry, error) {
	r := &Registry{
		assets:    make([]Asset, 0, len(assets)),
		bySymbol:  make(map[string]int, len(assets)),
		byID:      make(map[string]int, len(assets)),
		byAddress: make(map[string]int, len(assets)),
		aliases:   make(map[string]string, len(assets)*2),
	}
	for _, a := range assets {
		a.Symbol = Canonical(a.Symbol)
		if a.Symbol == "" {
			return nil, fmt.Errorf("asset %q: empty symbol", a.Name)
		}
		if _, dup := r.bySymbol[a.Symbol]; dup {
			return nil, fmt.Errorf("asset %s: duplicate symbol", a.Symbol)
		}
		a.Aliases = append([]string(nil), a.Aliases...)
		idx := len(r.assets)
		r.assets = append(r.assets, a)
		r.bySymbol[a.Symbol] = idx

		if a.CoinGeckoID != "" {
			if prev, dup := r.byID[a.CoinGeckoID]; dup {
				return nil, fmt.Errorf("asset %s: id %q already used by %s", a.Symbol, a.CoinGeckoID, r.assets[prev].Symbol)
			}
			r.byID[a.CoinGeckoID] = idx
		}
		if a.Address != "" {
			if prev, dup := r.byAddress[a.Address]; dup {
				return nil, fmt.Errorf("asset %s: address %q already used by %s", a.Symbol, a.Address, r.assets[prev].Symbol)
			}
			r.byAddress[a.Address] = idx
		}
		for _, al := range a.Aliases {
			key := strings.ToLower(strings.TrimSpace(al))
			if key == "" {
				continue
			}
			if prev, dup := r.aliases[key]; dup && prev != a.Symbol {
				return nil, fmt.Errorf("asset %s: alias %q already used by %s", a.Symbol, al, prev)
			}
			r.aliases[key] = a.Symbol
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry for static lists known to be valid.
func MustRegistry(assets []Asset) *Registry {
	r, err := NewRegistry(assets)
	if err != nil {
		panic(err)
	}
	return r
}

// Assets returns the tracked assets in declaration order.
func (r *Registry) Assets() []Asset {
	out := make([]Asset, len(r.assets))
	copy(out, r.assets)
	return out
}

func (r *Registry) Lookup(symbol string) (Asset, bool) {
	i, ok := r.bySymbol[Canonical(symbol)]
	if !ok {
		return Asset{}, false
	}
	return r.assets[i], true
}

// CoinGeckoIDs lists the ids of every asset mapped to the id-based provider, sorted.
func (r *Registry) CoinGeckoIDs() []string {
	return sortedKeys(r.byID)
}

// Addresses lists the addresses of every asset mapped to the address-based provider, sorted.
func (r *Registry) Addresses() []string {
	return sortedKeys(r.byAddress)
}

func (r *Registry) ByCoinGeckoID(id string) (Asset, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Asset{}, false
	}
	return r.assets[i], true
}

func (r *Registry) ByAddress(addr string) (Asset, bool) {
	i, ok := r.byAddress[addr]
	if !ok {
		return Asset{}, false
	}
	return r.assets[i], true
}

// Resolve maps any accepted spelling (symbol in any case, or alias) to a
// canonical symbol of a tracked asset.
func (r *Registry) Resolve(s string) (string, bool) {
	if _, ok := r.bySymbol[Canonical(s)]; ok {
		return Canonical(s), true
	}
	canon, ok := r.aliases[strings.ToLower(strings.TrimSpace(s))]
	return canon, ok
}

// AliasKeys returns the extra table keys a common asset is published under:
// its lowercase symbol followed by its lowercased aliases, without duplicates
// of the canonical key. Non-common assets have none.
func (r *Registry) AliasKeys(symbol string) []string {
	a, ok := r.Lookup(symbol)
	if !ok || !a.Common {
		return nil
	}
	seen := map[string]struct{}{a.Symbol: {}}
	keys := make([]string, 0, len(a.Aliases)+1)
	add := func(k string) {
		if k == "" {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	add(strings.ToLower(a.Symbol))
	for _, al := range a.Aliases {
		add(strings.ToLower(strings.TrimSpace(al)))
	}
	return keys
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package fallback provides the static prices used when no live provider
// supplies data: a versioned, operator-replaceable table and a compiled-in
// safety table for the platform's critical assets.
package fallback

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"priceoracle/internal/asset"
)

//go:embed fallback.yaml
var defaultYAML []byte

const dateLayout = "2006-01-02"

// Table maps canonical symbols to last-known-good USD prices.
type Table struct {
	Version       int
	EffectiveAsOf time.Time
	Prices        map[string]float64
}

type document struct {
	Version       int                `yaml:"version"`
	EffectiveAsOf string             `yaml:"effective_as_of"`
	Prices        map[string]float64 `yaml:"prices"`
}

// Parse decodes a YAML fallback document. Symbols are canonicalized and
// negative or non-finite prices are rejected.
func Parse(r io.Reader) (Table, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Table{Prices: map[string]float64{}}, nil
		}
		return Table{}, fmt.Errorf("decode fallback table: %w", err)
	}

	t := Table{Version: doc.Version, Prices: make(map[string]float64, len(doc.Prices))}
	if doc.EffectiveAsOf != "" {
		asOf, err := time.Parse(dateLayout, doc.EffectiveAsOf)
		if err != nil {
			return Table{}, fmt.Errorf("decode fallback table: effective_as_of: %w", err)
		}
		t.EffectiveAsOf = asOf
	}
	for sym, p := range doc.Prices {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return Table{}, fmt.Errorf("decode fallback table: %s: invalid price %v", sym, p)
		}
		t.Prices[asset.Canonical(sym)] = p
	}
	return t, nil
}

// Load reads a fallback table from path.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open fallback table: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Default returns the embedded fallback table.
func Default() Table {
	t, err := Parse(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the fallback price for a canonical symbol.
func (t Table) Lookup(symbol string) (float64, bool) {
	p, ok := t.Prices[asset.Canonical(symbol)]
	return p, ok
}

// safety covers the native gas token and the stablecoins. It never comes from
// configuration so a broken fallback file cannot remove it.
var safety = map[string]float64{
	"SOL":  60.0,
	"USDC": 1.0,
	"USDT": 1.0,
}

// Critical returns the hardcoded price of a critical asset.
func Critical(symbol string) (float64, bool) {
	p, ok := safety[asset.Canonical(symbol)]
	return p, ok
}

// Safety returns a copy of the minimal safety table.
func Safety() map[string]float64 {
	out := make(map[string]float64, len(safety))
	for k, v := range safety {
		out[k] = v
	}
	return out
}

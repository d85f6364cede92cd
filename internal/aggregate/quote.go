package aggregate

import (
	"encoding/json"
	"time"
)

// Quote is one published USD price.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	ReceivedAt time.Time `json:"received_at"`
	// Source is the provenance tag: provider-a, provider-b or fallback.
	Source string `json:"source"`
}

// MarshalJSON adds the quote time as unix milliseconds under "timestamp".
func (q Quote) MarshalJSON() ([]byte, error) {
	type plain Quote
	return json.Marshal(struct {
		plain
		Timestamp int64 `json:"timestamp"`
	}{plain(q), q.ReceivedAt.UnixMilli()})
}

// Table maps canonical symbols and their alias keys to quotes. An alias key
// holds a copy of its canonical entry.
type Table map[string]Quote

// Canonical returns only the entries stored under their own symbol.
func (t Table) Canonical() Table {
	out := make(Table, len(t))
	for k, q := range t {
		if k == q.Symbol {
			out[k] = q
		}
	}
	return out
}

// CountBySource counts canonical entries per provenance tag.
func (t Table) CountBySource() map[string]int {
	out := map[string]int{}
	for k, q := range t {
		if k == q.Symbol {
			out[q.Source]++
		}
	}
	return out
}

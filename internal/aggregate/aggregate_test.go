package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"priceoracle/internal/asset"
	"priceoracle/internal/clock"
	"priceoracle/internal/fallback"
	"priceoracle/internal/provider"
	"priceoracle/internal/provider/providertest"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func scenarioFallback() fallback.Table {
	return fallback.Table{Version: 1, Prices: map[string]float64{
		"SOL": 60, "ETH": 3000, "BTC": 50000, "USDC": 1, "USDT": 1,
	}}
}

func newAggregator(ids provider.IDSource, addrs provider.AddressSource, fb fallback.Table) *Aggregator {
	return New(Config{
		IDSource:      ids,
		AddressSource: addrs,
		Fallback:      fb,
		Clock:         clock.NewManual(t0),
	})
}

func price(t *testing.T, tbl Table, key string) Quote {
	t.Helper()
	q, ok := tbl[key]
	if !ok {
		t.Fatalf("missing %q in table: %+v", key, tbl)
	}
	return q
}

func TestAggregate_AddressBasedOverwritesIDBased(t *testing.T) {
	ids := providertest.NewIDs(map[string]float64{"solana": 100, "ethereum": 3500})
	addrs := providertest.NewAddresses(map[string]float64{solMint: 101})

	tbl := newAggregator(ids, addrs, scenarioFallback()).Aggregate(t.Context())

	sol := price(t, tbl, "SOL")
	if sol.Price != 101 || sol.Source != provider.SourceAddresses {
		t.Fatalf("want on-chain SOL quote, got %+v", sol)
	}
	eth := price(t, tbl, "ETH")
	if eth.Price != 3500 || eth.Source != provider.SourceIDs {
		t.Fatalf("want id-based ETH quote, got %+v", eth)
	}
	if got := price(t, tbl, "solana"); got != sol {
		t.Fatalf("alias diverged from canonical: %+v vs %+v", got, sol)
	}
}

func TestAggregate_ScenarioA_BothEmpty(t *testing.T) {
	tbl := newAggregator(providertest.NewIDs(nil), providertest.NewAddresses(nil), scenarioFallback()).Aggregate(t.Context())

	want := map[string]float64{"SOL": 60, "ETH": 3000, "BTC": 50000, "USDC": 1, "USDT": 1, "solana": 60, "ethereum": 3000}
	for k, v := range want {
		q := price(t, tbl, k)
		if q.Price != v || q.Source != provider.SourceFallback {
			t.Fatalf("%s: want fallback %v, got %+v", k, v, q)
		}
		if !q.ReceivedAt.Equal(t0) {
			t.Fatalf("%s: fallback quotes carry the current time, got %v", k, q.ReceivedAt)
		}
	}
	if n := len(tbl.Canonical()); n != 5 {
		t.Fatalf("want 5 canonical entries, got %d", n)
	}
}

func TestAggregate_ScenarioB_IDBasedOnly(t *testing.T) {
	observed := t0.Add(-time.Minute)
	ids := providertest.NewIDs(nil)
	ids.SetObserved("solana", 142.37, observed)

	tbl := newAggregator(ids, providertest.NewAddresses(nil), scenarioFallback()).Aggregate(t.Context())

	for _, k := range []string{"SOL", "sol", "solana"} {
		q := price(t, tbl, k)
		if q.Price != 142.37 || q.Source != provider.SourceIDs || !q.ReceivedAt.Equal(observed) {
			t.Fatalf("%s: unexpected quote %+v", k, q)
		}
	}
	if q := price(t, tbl, "ETH"); q.Source != provider.SourceFallback {
		t.Fatalf("ETH should fill from fallback, got %+v", q)
	}
}

func TestAggregate_TotalOutageUsesFallback(t *testing.T) {
	ids := providertest.NewIDs(map[string]float64{"solana": 150})
	ids.Fail(errors.New("503"))
	addrs := providertest.NewAddresses(map[string]float64{solMint: 151})
	addrs.Fail(errors.New("timeout"))

	tbl := newAggregator(ids, addrs, scenarioFallback()).Aggregate(t.Context())

	for sym := range scenarioFallback().Prices {
		if q := price(t, tbl, sym); q.Source != provider.SourceFallback {
			t.Fatalf("%s: want fallback, got %+v", sym, q)
		}
	}
}

func TestAggregate_EmptyFallbackServesSafetyTable(t *testing.T) {
	ids := providertest.NewIDs(nil)
	ids.Fail(errors.New("down"))

	tbl := newAggregator(ids, nil, fallback.Table{}).Aggregate(t.Context())

	for _, k := range []string{"SOL", "sol", "solana", "USDC", "usdc", "USDT", "tether"} {
		if q := price(t, tbl, k); q.Source != provider.SourceFallback {
			t.Fatalf("%s: want safety quote, got %+v", k, q)
		}
	}
	if q := price(t, tbl, "USDC"); q.Price != 1 {
		t.Fatalf("USDC safety price = %v", q.Price)
	}
}

func TestAggregate_AliasesCostNoExtraCalls(t *testing.T) {
	ids := providertest.NewIDs(map[string]float64{"solana": 142, "jupiter-exchange-solana": 0.9})
	addrs := providertest.NewAddresses(nil)

	tbl := newAggregator(ids, addrs, fallback.Table{}).Aggregate(t.Context())

	if ids.Calls() != 1 || addrs.Calls() != 1 {
		t.Fatalf("want one call per provider, got ids=%d addrs=%d", ids.Calls(), addrs.Calls())
	}
	for _, k := range []string{"JUP", "jup", "jupiter"} {
		if q := price(t, tbl, k); q.Price != 0.9 {
			t.Fatalf("%s: got %+v", k, q)
		}
	}
	if got := strings.Join(ids.LastRequest(), ","); !strings.Contains(got, "solana") {
		t.Fatalf("registry ids not requested: %s", got)
	}
}

func TestAggregate_NonCommonAssetHasNoAliases(t *testing.T) {
	addrs := providertest.NewAddresses(map[string]float64{"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": 0.00002})

	tbl := newAggregator(nil, addrs, fallback.Table{}).Aggregate(t.Context())

	price(t, tbl, "BONK")
	if _, ok := tbl["bonk"]; ok {
		t.Fatalf("BONK is not common and must not get a lowercase key")
	}
}

func TestAggregate_DropsInvalidAndUnknown(t *testing.T) {
	ids := providertest.NewIDs(map[string]float64{"solana": -1})
	addrs := providertest.NewAddresses(map[string]float64{"not-a-tracked-mint": 5, usdcMint: 0.9999})

	tbl := newAggregator(ids, addrs, scenarioFallback()).Aggregate(t.Context())

	if q := price(t, tbl, "SOL"); q.Source != provider.SourceFallback || q.Price != 60 {
		t.Fatalf("negative price should be replaced by fallback, got %+v", q)
	}
	if q := price(t, tbl, "USDC"); q.Source != provider.SourceAddresses {
		t.Fatalf("got %+v", q)
	}
	if _, ok := tbl["not-a-tracked-mint"]; ok {
		t.Fatalf("untracked address leaked into the table")
	}
}

type panicking struct{}

func (panicking) Name() string { return "panicking" }
func (panicking) FetchByIDs(context.Context, []string) (map[string]provider.Price, error) {
	panic("boom")
}

func TestAggregate_AdapterPanicIsContained(t *testing.T) {
	tbl := newAggregator(panicking{}, nil, scenarioFallback()).Aggregate(t.Context())
	if q := price(t, tbl, "BTC"); q.Source != provider.SourceFallback {
		t.Fatalf("got %+v", q)
	}
}

func TestAggregate_SlowAdapterIsBounded(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	ids := providertest.NewIDs(map[string]float64{"solana": 142})
	ids.Block = block

	agg := New(Config{
		IDSource:  ids,
		Fallback:  scenarioFallback(),
		IDTimeout: 20 * time.Millisecond,
		Clock:     clock.NewManual(t0),
	})

	start := time.Now()
	tbl := agg.Aggregate(t.Context())
	if time.Since(start) > 2*time.Second {
		t.Fatalf("aggregation was not bounded by the adapter timeout")
	}
	if q := price(t, tbl, "SOL"); q.Source != provider.SourceFallback {
		t.Fatalf("timed out id source should contribute nothing, got %+v", q)
	}
}

func TestAggregate_CustomRegistry(t *testing.T) {
	reg := asset.MustRegistry([]asset.Asset{{Symbol: "pyth", Name: "Pyth", CoinGeckoID: "pyth-network", Aliases: []string{"pyth-network"}, Common: true}})
	agg := New(Config{
		Registry: reg,
		IDSource: providertest.NewIDs(map[string]float64{"pyth-network": 0.4}),
		Clock:    clock.NewManual(t0),
	})

	tbl := agg.Aggregate(t.Context())
	for _, k := range []string{"PYTH", "pyth", "pyth-network"} {
		if q := price(t, tbl, k); q.Name != "Pyth" || q.Price != 0.4 {
			t.Fatalf("%s: got %+v", k, q)
		}
	}
}

func TestQuote_MarshalJSON(t *testing.T) {
	q := Quote{Symbol: "SOL", Name: "Solana", Price: 142.37, ReceivedAt: t0, Source: provider.SourceIDs}
	b, err := json.Marshal(q)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got["timestamp"] != float64(t0.UnixMilli()) || got["symbol"] != "SOL" || got["source"] != "provider-a" {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestTable_CountBySource(t *testing.T) {
	tbl := newAggregator(providertest.NewIDs(map[string]float64{"solana": 1}), nil, scenarioFallback()).Aggregate(t.Context())
	got := tbl.CountBySource()
	if got[provider.SourceIDs] != 1 || got[provider.SourceFallback] != 4 {
		t.Fatalf("unexpected counts: %v", got)
	}
}

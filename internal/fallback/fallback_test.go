package fallback

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault_EmbeddedTable(t *testing.T) {
	tbl := Default()

	require.Equal(t, 3, tbl.Version)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), tbl.EffectiveAsOf)
	require.Equal(t, map[string]float64{
		"SOL": 60.0, "ETH": 3000.0, "BTC": 50000.0, "USDC": 1.0, "USDT": 1.0,
	}, tbl.Prices)
}

func TestParse_CanonicalizesSymbols(t *testing.T) {
	tbl, err := Parse(strings.NewReader("version: 1\nprices:\n  sol: 10\n  Jup: 0.5\n"))
	require.NoError(t, err)

	p, ok := tbl.Lookup("SOL")
	require.True(t, ok)
	require.InDelta(t, 10.0, p, 1e-9)
	p, ok = tbl.Lookup("jup")
	require.True(t, ok)
	require.InDelta(t, 0.5, p, 1e-9)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"negative price": "prices:\n  SOL: -1\n",
		"bad date":       "effective_as_of: yesterday\n",
		"unknown field":  "price:\n  SOL: 1\n",
		"not yaml":       "prices: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	tbl, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, tbl.Prices)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 7\nprices:\n  BTC: 42000\n"), 0o600))

	tbl, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, tbl.Version)
	require.Len(t, tbl.Prices, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestCritical(t *testing.T) {
	for _, sym := range []string{"SOL", "sol", "USDC", "usdt"} {
		_, ok := Critical(sym)
		require.Truef(t, ok, "%s should be critical", sym)
	}
	_, ok := Critical("BTC")
	require.False(t, ok)

	s := Safety()
	s["SOL"] = 0
	p, _ := Critical("SOL")
	require.InDelta(t, 60.0, p, 1e-9, "Safety must return a copy")
}

package provider

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnique_DedupesAndSorts(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, Unique([]string{"c", "", "a", "b", "a"}))
	require.Empty(t, Unique(nil))
}

func TestValidPrice(t *testing.T) {
	require.True(t, ValidPrice(0))
	require.True(t, ValidPrice(142.37))
	require.False(t, ValidPrice(-0.01))
	require.False(t, ValidPrice(math.NaN()))
	require.False(t, ValidPrice(math.Inf(1)))
}

func TestParseEpochMaybeMillis(t *testing.T) {
	fb := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, fb, ParseEpochMaybeMillis(0, fb))
	require.Equal(t, time.Unix(1_700_000_000, 0).UTC(), ParseEpochMaybeMillis(1_700_000_000, fb))
	require.Equal(t, time.UnixMilli(1_700_000_000_123).UTC(), ParseEpochMaybeMillis(1_700_000_000_123, fb))
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManual(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewManual(start)
	require.Equal(t, start, c.Now())

	c.Advance(31 * time.Second)
	require.Equal(t, start.Add(31*time.Second), c.Now())

	c.Set(start)
	require.Equal(t, start, c.Now())
}

func TestSystem(t *testing.T) {
	before := time.Now()
	require.False(t, System{}.Now().Before(before))
}

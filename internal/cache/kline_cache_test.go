package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantPilot/internal/models"
)

func series() []models.KLine {
	return []models.KLine{
		{Symbol: "AAPL", Date: "2025-03-13", Open: decimal.RequireFromString("211.25"), High: decimal.RequireFromString("213.9"),
			Low: decimal.RequireFromString("209.58"), Close: decimal.RequireFromString("213.49"), Volume: 60107582},
		{Symbol: "AAPL", Date: "2025-03-14", Open: decimal.RequireFromString("213.49"), High: decimal.RequireFromString("215.15"),
			Low: decimal.RequireFromString("211.49"), Close: decimal.RequireFromString("213.49"), Volume: 50011244},
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestFetchCachesInMemoryAndOnDisk(t *testing.T) {
	dir := t.TempDir()
	clk := &clock{t: time.Unix(1_741_950_000, 0)}
	c := New(dir, WithClock(clk.now))

	calls := 0
	load := func(context.Context) ([]models.KLine, error) {
		calls++
		return series(), nil
	}

	got, err := c.Fetch(context.Background(), "aapl", "day", 2, load)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = c.Fetch(context.Background(), "AAPL", "day", 2, load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = os.Stat(filepath.Join(dir, "AAPL", "AAPL_day_2.csv"))
	require.NoError(t, err)

	// A second process sees the file.
	fresh := New(dir, WithClock(clk.now))
	fromDisk, ok := fresh.Get("AAPL", "day", 2)
	require.True(t, ok)
	require.Len(t, fromDisk, 2)
	assert.True(t, fromDisk[0].High.Equal(decimal.RequireFromString("213.9")))
	assert.Equal(t, int64(50011244), fromDisk[1].Volume)
}

func TestEntriesExpire(t *testing.T) {
	clk := &clock{t: time.Unix(1_741_950_000, 0)}
	c := New(t.TempDir(), WithClock(clk.now), WithTTL(time.Minute, 10*time.Minute))
	require.NoError(t, c.Set("AAPL", "day", 2, series()))

	clk.t = clk.t.Add(2 * time.Minute)
	_, ok := c.Get("AAPL", "day", 2)
	assert.True(t, ok, "file copy still fresh")

	clk.t = clk.t.Add(20 * time.Minute)
	c.Clear()
	_, ok = c.Get("AAPL", "day", 2)
	assert.False(t, ok)
}

func TestFetchPropagatesLoadError(t *testing.T) {
	c := New("")
	boom := errors.New("boom")
	_, err := c.Fetch(context.Background(), "AAPL", "day", 2, func(context.Context) ([]models.KLine, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("AAPL", "day", 2)
	assert.False(t, ok)
}

func TestCleanExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, c.Set("MSFT", "week", 10, series()))

	path := filepath.Join(dir, "MSFT", "MSFT_week_10.csv")
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, c.CleanExpiredFiles(24*time.Hour))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

// Package cache keeps recent candlestick series in memory and in CSV files
// under the data directory, so repeated chart reads skip the network.
package cache

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dyike/QuantPilot/internal/models"
)

const (
	DefaultMemoryTTL = 5 * time.Minute
	DefaultFileTTL   = 30 * time.Minute
)

var csvHeader = []string{"Symbol", "Date", "Open", "High", "Low", "Close", "Volume", "Timestamp"}

type KLineCache struct {
	mu        sync.RWMutex
	memory    map[string]cachedKLines
	dir       string
	memoryTTL time.Duration
	fileTTL   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

type cachedKLines struct {
	data     []models.KLine
	storedAt time.Time
}

type Option func(*KLineCache)

func WithTTL(memory, file time.Duration) Option {
	return func(c *KLineCache) {
		if memory > 0 {
			c.memoryTTL = memory
		}
		if file > 0 {
			c.fileTTL = file
		}
	}
}

func WithClock(now func() time.Time) Option { return func(c *KLineCache) { c.now = now } }

func WithLogger(logger *zap.Logger) Option {
	return func(c *KLineCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a cache persisting to dir. An empty dir keeps it memory-only.
func New(dir string, opts ...Option) *KLineCache {
	c := &KLineCache{
		memory:    make(map[string]cachedKLines),
		dir:       dir,
		memoryTTL: DefaultMemoryTTL,
		fileTTL:   DefaultFileTTL,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func key(symbol, period string, limit int) string {
	return fmt.Sprintf("%s-%s-%d", strings.ToUpper(symbol), period, limit)
}

// Get returns a fresh series from memory, then from disk.
func (c *KLineCache) Get(symbol, period string, limit int) ([]models.KLine, bool) {
	k := key(symbol, period, limit)
	now := c.now()

	c.mu.RLock()
	cached, ok := c.memory[k]
	c.mu.RUnlock()
	if ok && now.Sub(cached.storedAt) <= c.memoryTTL {
		return cached.data, true
	}

	if c.dir == "" {
		return nil, false
	}
	data, storedAt, err := readCSV(c.filePath(symbol, period, limit))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("read kline cache", zap.String("symbol", symbol), zap.Error(err))
		}
		return nil, false
	}
	if now.Sub(storedAt) > c.fileTTL {
		c.logger.Debug("kline cache expired", zap.String("symbol", symbol), zap.Duration("age", now.Sub(storedAt)))
		return nil, false
	}

	c.mu.Lock()
	c.memory[k] = cachedKLines{data: data, storedAt: storedAt}
	c.mu.Unlock()
	return data, true
}

// Set stores the series in memory and on disk. The disk write is
// synchronous; a failed write leaves the memory entry in place.
func (c *KLineCache) Set(symbol, period string, limit int, data []models.KLine) error {
	now := c.now()
	c.mu.Lock()
	c.memory[key(symbol, period, limit)] = cachedKLines{data: data, storedAt: now}
	c.mu.Unlock()

	if c.dir == "" {
		return nil
	}
	return writeCSV(c.filePath(symbol, period, limit), data, now)
}

// Fetch returns the cached series or calls load and caches its result.
func (c *KLineCache) Fetch(ctx context.Context, symbol, period string, limit int,
	load func(ctx context.Context) ([]models.KLine, error)) ([]models.KLine, error) {
	if data, ok := c.Get(symbol, period, limit); ok {
		return data, nil
	}
	data, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Set(symbol, period, limit, data); err != nil {
		c.logger.Warn("write kline cache", zap.String("symbol", symbol), zap.Error(err))
	}
	return data, nil
}

func (c *KLineCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory = make(map[string]cachedKLines)
}

// CleanExpiredFiles removes cache files older than maxAge.
func (c *KLineCache) CleanExpiredFiles(maxAge time.Duration) error {
	if c.dir == "" {
		return nil
	}
	cutoff := c.now().Add(-maxAge)
	return filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".csv" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			return os.Remove(path)
		}
		return nil
	})
}

func (c *KLineCache) filePath(symbol, period string, limit int) string {
	symbol = strings.ToUpper(symbol)
	return filepath.Join(c.dir, symbol, fmt.Sprintf("%s_%s_%d.csv", symbol, period, limit))
}

func writeCSV(path string, data []models.KLine, at time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "kline-*.tmp")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		tmp.Close()
		return err
	}
	ts := strconv.FormatInt(at.Unix(), 10)
	for _, k := range data {
		row := []string{
			k.Symbol, k.Date,
			k.Open.String(), k.High.String(), k.Low.String(), k.Close.String(),
			strconv.FormatInt(k.Volume, 10),
			ts,
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readCSV(path string) ([]models.KLine, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read csv: %w", err)
	}
	if len(records) <= 1 {
		return nil, time.Time{}, fmt.Errorf("no data in %s", filepath.Base(path))
	}

	var storedAt time.Time
	out := make([]models.KLine, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < len(csvHeader) {
			continue
		}
		k := models.KLine{Symbol: rec[0], Date: rec[1]}
		for j, dst := range []*decimal.Decimal{&k.Open, &k.High, &k.Low, &k.Close} {
			v, err := decimal.NewFromString(rec[2+j])
			if err != nil {
				return nil, time.Time{}, fmt.Errorf("row %d: %w", i+1, err)
			}
			*dst = v
		}
		k.Volume, _ = strconv.ParseInt(rec[6], 10, 64)
		if i == 0 {
			if ts, err := strconv.ParseInt(rec[7], 10, 64); err == nil {
				storedAt = time.Unix(ts, 0)
			}
		}
		out = append(out, k)
	}
	return out, storedAt, nil
}

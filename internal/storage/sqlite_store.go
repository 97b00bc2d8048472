package storage

import (
	"errors"
	"strings"

	"github.com/dyike/QuantPilot/config"
	"github.com/dyike/QuantPilot/internal/storage/sqlite"
)

// ErrDataDirNotConfigured indicates config.DataDir is empty.
var ErrDataDirNotConfigured = errors.New("data_dir is not configured")

// OpenHistory opens the local conversation mirror under cfg.DataDir.
func OpenHistory(cfg *config.Config) (*sqlite.Store, error) {
	if cfg == nil || strings.TrimSpace(cfg.DataDir) == "" {
		return nil, ErrDataDirNotConfigured
	}
	return sqlite.Open(cfg.HistoryDBPath())
}

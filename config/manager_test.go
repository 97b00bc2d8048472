package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantPilot/internal/models"
)

func TestManagerCreatesAndUpdates(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)

	path := filepath.Join(dir, "config.json")
	_, err = os.Stat(path)
	require.NoError(t, err, "config file not created")

	cfg := mgr.Get()
	cfg.APIBaseURL = "https://quant.example.com/api"
	cfg.ExportDir = filepath.Join(dir, "exports")
	require.NoError(t, mgr.Update(cfg))

	updated := mgr.Get()
	assert.Equal(t, cfg.APIBaseURL, updated.APIBaseURL)
	assert.Equal(t, 90*time.Second, updated.RequestTimeout.Std())

	reopened, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)
	assert.Equal(t, cfg.APIBaseURL, reopened.Get().APIBaseURL)
}

func TestManagerRejectsInvalidConfig(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)

	cfg := mgr.Get()
	cfg.AI.Temperature = 1.5
	require.Error(t, mgr.Update(cfg))
	assert.Equal(t, 0.7, mgr.Get().AI.Temperature)
}

func TestManagerSaveAISettings(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)

	want := models.AISettings{Model: "quant-pro", Temperature: 0.2, RiskTolerance: models.RiskLow}
	require.NoError(t, mgr.SaveAISettings(want))

	reopened, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)
	got, err := reopened.LoadAISettings()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 1)
	require.NoError(t, mgr.Watch(ctx, func(cfg Config) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	}))

	cfg := mgr.Get()
	cfg.APIBaseURL = "http://changed.local/api"
	require.NoError(t, configFile{path: mgr.Path()}.write(cfg))

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on config change")
	}
	assert.Equal(t, "http://changed.local/api", mgr.Get().APIBaseURL)
}

func TestManagerMutateNotifiesListeners(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	require.NoError(t, mgr.Watch(ctx, func(cfg Config) { seen = append(seen, cfg.AI.Model) }))
	require.NoError(t, mgr.Mutate(func(c *Config) { c.AI.Model = "quant-lite" }))

	assert.Equal(t, []string{"quant-lite"}, seen)
}

func TestManagerReloadRecreatesDeletedFile(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, os.Remove(mgr.Path()))

	require.NoError(t, mgr.Reload())
	_, err = os.Stat(mgr.Path())
	assert.NoError(t, err)
}

func TestManagerReloadKeepsConfigOnInvalidFile(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mgr.Path(), []byte(`{"retry_count": -1}`), 0o644))

	assert.Error(t, mgr.Reload())
	assert.Equal(t, 1, mgr.Get().RetryCount)
}

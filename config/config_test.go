package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("QUANTPILOT_API_BASE_URL", "https://api.quant.test")
	t.Setenv("QUANTPILOT_MARKET_TIMEOUT", "12s")
	t.Setenv("QUANTPILOT_RETRY_COUNT", "3")
	t.Setenv("QUANTPILOT_DEBUG", "true")
	t.Setenv("QUANTPILOT_VERIFY_TIMEOUT", "not-a-duration")

	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.loadFromEnv()

	assert.Equal(t, "https://api.quant.test", cfg.APIBaseURL)
	assert.Equal(t, 12*time.Second, cfg.MarketTimeout.Std())
	assert.Equal(t, 3*time.Second, cfg.VerifyTimeout.Std())
	assert.Equal(t, 3, cfg.RetryCount)
	assert.True(t, cfg.Debug)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	require.NoError(t, cfg.Validate())

	cfg.APIBaseURL = " "
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfigWithRoot(t.TempDir())
	cfg.VerifyTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfigWithRoot(t.TempDir())
	cfg.AI.RiskTolerance = "reckless"
	assert.Error(t, cfg.Validate())
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())

	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(b))
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dyike/QuantPilot/internal/models"
)

type Config struct {
	APIBaseURL    string `json:"api_base_url"`
	DataDir       string `json:"data_dir"`
	ExportDir     string `json:"export_dir"`
	DefaultUserID string `json:"default_user_id"`
	Debug         bool   `json:"debug"`

	// Timeouts. RequestTimeout covers AI-latency endpoints, MarketTimeout
	// covers market reads that must fail fast.
	RequestTimeout Duration `json:"request_timeout"`
	MarketTimeout  Duration `json:"market_timeout"`
	QuoteTimeout   Duration `json:"quote_timeout"`
	VerifyTimeout  Duration `json:"verify_timeout"`
	RetryCount     int      `json:"retry_count"`

	AI models.AISettings `json:"ai"`
}

// Duration marshals as a Go duration string ("90s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := DefaultConfigWithRoot(filepath.Join(currentDir, "data"))
	cfg.ExportDir = filepath.Join(currentDir, "exports")

	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv loads .env from the working directory, then overrides fields
// from QUANTPILOT_* environment variables.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()
	c.loadFromEnv()
}

// DefaultConfigWithRoot returns the defaults with data stored under root.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		APIBaseURL:     "http://localhost:8000/api",
		DataDir:        root,
		ExportDir:      filepath.Join(root, "exports"),
		DefaultUserID:  "default_user",
		RequestTimeout: Duration(90 * time.Second),
		MarketTimeout:  Duration(15 * time.Second),
		QuoteTimeout:   Duration(10 * time.Second),
		VerifyTimeout:  Duration(3 * time.Second),
		RetryCount:     1,
		AI:             models.DefaultAISettings(),
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("QUANTPILOT_API_BASE_URL"); val != "" {
		c.APIBaseURL = val
	}
	if val := os.Getenv("QUANTPILOT_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("QUANTPILOT_EXPORT_DIR"); val != "" {
		c.ExportDir = val
	}
	if val := os.Getenv("QUANTPILOT_DEFAULT_USER_ID"); val != "" {
		c.DefaultUserID = val
	}

	if val := os.Getenv("QUANTPILOT_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}

	durations := map[string]*Duration{
		"QUANTPILOT_REQUEST_TIMEOUT": &c.RequestTimeout,
		"QUANTPILOT_MARKET_TIMEOUT":  &c.MarketTimeout,
		"QUANTPILOT_QUOTE_TIMEOUT":   &c.QuoteTimeout,
		"QUANTPILOT_VERIFY_TIMEOUT":  &c.VerifyTimeout,
	}
	for key, dst := range durations {
		if val := os.Getenv(key); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = Duration(d)
			}
		}
	}

	if val := os.Getenv("QUANTPILOT_RETRY_COUNT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.RetryCount = v
		}
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("api_base_url is required")
	}
	if c.RequestTimeout <= 0 || c.MarketTimeout <= 0 || c.QuoteTimeout <= 0 || c.VerifyTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("retry_count %d must not be negative", c.RetryCount)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai settings: %w", err)
	}
	return nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, c.ExportDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) SessionDBPath() string {
	return filepath.Join(c.DataDir, "session.db")
}

func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

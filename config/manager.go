package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dyike/QuantPilot/internal/models"
)

// DefaultDebounce is how long file events settle before a reload.
const DefaultDebounce = 300 * time.Millisecond

// Manager owns the on-disk config file. Writes are atomic, and Watch
// reloads the file when it is edited by something else.
type Manager struct {
	file     configFile
	debounce time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	cfg       Config
	listeners []func(Config)
	watching  bool

	// Events before this UnixNano deadline come from our own writes.
	ignoreUntil atomic.Int64
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
	logger        *zap.Logger
}

type ManagerOption func(*managerOptions)

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{debounce: DefaultDebounce, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&options)
	}

	path := options.configPath
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{
		file:     configFile{path: path},
		debounce: options.debounce,
		logger:   options.logger,
	}
	cfg, err := m.file.readOrCreate(options.initialConfig)
	if err != nil {
		return nil, err
	}
	m.cfg = cfg
	return m, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string { return m.file.path }

// Update validates cfg, writes it and notifies listeners. Writing an
// unchanged config is a no-op.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}

	m.ignoreUntil.Store(time.Now().Add(m.debounce).UnixNano())
	if err := m.file.write(cfg); err != nil {
		m.ignoreUntil.Store(0)
		return err
	}
	m.publish(cfg)
	return nil
}

// Mutate applies fn to a copy of the current config and saves the result.
func (m *Manager) Mutate(fn func(*Config)) error {
	cfg := m.Get()
	fn(&cfg)
	return m.Update(cfg)
}

// LoadAISettings returns the committed assistant settings.
func (m *Manager) LoadAISettings() (models.AISettings, error) {
	return m.Get().AI, nil
}

// SaveAISettings persists s as the committed assistant settings.
func (m *Manager) SaveAISettings(s models.AISettings) error {
	return m.Mutate(func(c *Config) { c.AI = s })
}

// Watch registers onChange and, on the first call, starts watching the
// config directory until ctx is done.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	if onChange != nil {
		m.listeners = append(m.listeners, onChange)
	}
	if m.watching {
		m.mu.Unlock()
		return nil
	}
	m.watching = true
	m.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		err = watcher.Add(filepath.Dir(m.file.path))
	}
	if err != nil {
		if watcher != nil {
			watcher.Close()
		}
		m.mu.Lock()
		m.watching = false
		m.mu.Unlock()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go m.watch(ctx, watcher)
	return nil
}

func (m *Manager) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !m.file.touchedBy(evt) || time.Now().UnixNano() < m.ignoreUntil.Load() {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(m.debounce)
			} else {
				timer.Reset(m.debounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			if err := m.Reload(); err != nil {
				m.logger.Warn("config reload failed", zap.String("path", m.file.path), zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// Reload re-reads the file. A deleted file is recreated with defaults; an
// invalid one is rejected and the current config kept.
func (m *Manager) Reload() error {
	cfg, err := m.file.read()
	if errors.Is(err, os.ErrNotExist) {
		cfg = *DefaultConfigWithRoot(m.file.dir())
		err = m.file.write(cfg)
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}
	m.logger.Info("config reloaded", zap.String("path", m.file.path))
	m.publish(cfg)
	return nil
}

func (m *Manager) publish(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

// configFile is the JSON file behind a Manager.
type configFile struct {
	path string
}

func (f configFile) dir() string { return filepath.Dir(f.path) }

func (f configFile) touchedBy(evt fsnotify.Event) bool {
	return filepath.Clean(evt.Name) == filepath.Clean(f.path) &&
		evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// read decodes the file over the defaults, so keys missing from older
// files keep their default values.
func (f configFile) read() (Config, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return Config{}, err
	}
	cfg := *DefaultConfigWithRoot(f.dir())
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (f configFile) readOrCreate(initial *Config) (Config, error) {
	cfg, err := f.read()
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		if initial != nil {
			cfg = *initial
		} else {
			cfg = *DefaultConfigWithRoot(f.dir())
		}
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
		if err := f.write(cfg); err != nil {
			return Config{}, fmt.Errorf("write initial config: %w", err)
		}
		return cfg, nil
	default:
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// write replaces the file through a temp file and rename.
func (f configFile) write(cfg Config) (err error) {
	tmp, err := os.CreateTemp(f.dir(), "cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err = enc.Encode(&cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("flush config: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "QuantPilot", "config.json"), nil
}

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.configPath = filepath.Join(dir, "config.json")
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) { o.initialConfig = cfg }
}

func WithLogger(logger *zap.Logger) ManagerOption {
	return func(o *managerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

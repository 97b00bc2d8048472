// Package settings stages edits to the assistant settings. Changes go to a
// draft and only reach the committed copy, and disk, on Save.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dyike/QuantPilot/internal/models"
)

var ErrInvalid = errors.New("invalid ai settings")

// Persister stores committed settings. config.Manager implements it.
type Persister interface {
	LoadAISettings() (models.AISettings, error)
	SaveAISettings(models.AISettings) error
}

type Editor struct {
	mu        sync.Mutex
	store     Persister
	committed models.AISettings
	draft     *models.AISettings
}

// NewEditor loads the committed settings from store. A nil store keeps
// settings in memory only, starting from the defaults.
func NewEditor(store Persister) (*Editor, error) {
	e := &Editor{store: store, committed: models.DefaultAISettings()}
	if store == nil {
		return e, nil
	}
	s, err := store.LoadAISettings()
	if err != nil {
		return nil, fmt.Errorf("load ai settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	e.committed = s
	return e, nil
}

// Current returns the committed settings, which is what requests use.
func (e *Editor) Current() models.AISettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.committed
}

// Draft returns the staged settings and whether an edit is in progress.
func (e *Editor) Draft() (models.AISettings, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return e.committed, false
	}
	return *e.draft, true
}

// Edit starts staging from the committed settings. Calling it during an
// edit keeps the existing draft.
func (e *Editor) Edit() models.AISettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.ensureDraft()
}

func (e *Editor) SetModel(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureDraft().Model = strings.TrimSpace(name)
}

func (e *Editor) SetTemperature(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureDraft().Temperature = t
}

func (e *Editor) SetRiskTolerance(r models.RiskTolerance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureDraft().RiskTolerance = models.RiskTolerance(strings.ToLower(string(r)))
}

// Save validates the draft, persists it and makes it current. On any error
// both the committed settings and the draft are left as they were.
func (e *Editor) Save() (models.AISettings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return e.committed, nil
	}
	next := *e.draft
	if err := next.Validate(); err != nil {
		return e.committed, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if e.store != nil {
		if err := e.store.SaveAISettings(next); err != nil {
			return e.committed, fmt.Errorf("save ai settings: %w", err)
		}
	}
	e.committed = next
	e.draft = nil
	return next, nil
}

// Reload replaces the committed settings with s, typically after the
// config file changed on disk. It reports false and keeps the current
// settings when s is invalid or an edit is in progress, so a reload never
// clobbers a draft.
func (e *Editor) Reload(s models.AISettings) bool {
	if s.Validate() != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft != nil {
		return false
	}
	e.committed = s
	return true
}

// Cancel drops the draft.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = nil
}

func (e *Editor) ensureDraft() *models.AISettings {
	if e.draft == nil {
		d := e.committed
		e.draft = &d
	}
	return e.draft
}

// Package clipboard copies text to the system clipboard and falls back to
// printing it for manual selection when no clipboard is available.
package clipboard

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
)

// Backend is the system clipboard. The default wraps atotto/clipboard.
type Backend interface {
	WriteAll(text string) error
	ReadAll() (string, error)
	Unsupported() bool
}

type systemBackend struct{}

func (systemBackend) WriteAll(text string) error { return clipboard.WriteAll(text) }
func (systemBackend) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemBackend) Unsupported() bool          { return clipboard.Unsupported }

// Clipboard never returns errors: failures degrade to the manual fallback.
type Clipboard struct {
	mu       sync.Mutex
	backend  Backend
	fallback io.Writer
}

func New(backend Backend, fallback io.Writer) *Clipboard {
	if backend == nil {
		backend = systemBackend{}
	}
	if fallback == nil {
		fallback = os.Stdout
	}
	return &Clipboard{backend: backend, fallback: fallback}
}

var std = New(nil, nil)

// Copy puts text on the system clipboard. It reports false when the text was
// instead printed for manual selection.
func (c *Clipboard) Copy(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.backend.Unsupported() {
		if err := c.backend.WriteAll(text); err == nil {
			return true
		}
	}
	c.manualSelect(text)
	return false
}

// Read returns the clipboard text, or false when it cannot be read.
func (c *Clipboard) Read() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend.Unsupported() {
		return "", false
	}
	text, err := c.backend.ReadAll()
	if err != nil {
		return "", false
	}
	return text, true
}

func (c *Clipboard) manualSelect(text string) {
	rule := strings.Repeat("-", 40)
	fmt.Fprintf(c.fallback, "Clipboard unavailable, select the text below to copy:\n%s\n%s\n%s\n", rule, text, rule)
}

func Copy(text string) bool { return std.Copy(text) }
func Read() (string, bool)  { return std.Read() }

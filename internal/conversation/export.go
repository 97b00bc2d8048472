package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dyike/QuantPilot/internal/models"
	"github.com/dyike/QuantPilot/internal/timefmt"
)

const exportSeparator = "=================================================="

type ExportOptions struct {
	// Dir receives the exported file. Empty means the working directory.
	Dir string
	// Now stamps the file name. Defaults to time.Now.
	Now func() time.Time
}

// Document renders a conversation as plain text: title, timestamps, a
// separator, then one "[time] Role: content" block per message in order.
func Document(conv models.Conversation, msgs []models.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", conv.Title)
	fmt.Fprintf(&b, "Created: %s\n", timefmt.FormatLong(conv.CreatedAt))
	fmt.Fprintf(&b, "Updated: %s\n", timefmt.FormatLong(conv.LastActivity()))
	b.WriteString(exportSeparator)
	b.WriteString("\n\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s: %s\n\n", timefmt.FormatLong(m.Timestamp), m.Role.Label(), m.Content)
	}
	return b.String()
}

// FileName is "<title>_<epochMillis>.txt" with path-unsafe characters in the
// title replaced by underscores.
func FileName(title string, at time.Time) string {
	return fmt.Sprintf("%s_%d.txt", SafeFileTitle(title), at.UnixMilli())
}

// SafeFileTitle replaces characters that are not allowed in file names on
// common filesystems.
func SafeFileTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = FallbackTitle
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, title)
}

// Export writes the conversation document into opts.Dir and returns the
// file path.
func Export(conv models.Conversation, msgs []models.Message, opts ExportOptions) (string, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(dir, FileName(conv.Title, now()))
	if err := os.WriteFile(path, []byte(Document(conv, msgs)), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

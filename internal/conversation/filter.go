// Package conversation holds the pure helpers behind the conversation list:
// filtering, title extraction, category styling and plain-text export.
package conversation

import (
	"sort"
	"strings"
	"time"

	"github.com/dyike/QuantPilot/internal/models"
)

// FilterKind selects a subset of conversations. Besides the fixed kinds any
// category value may be used.
type FilterKind string

const (
	FilterAll    FilterKind = "all"
	FilterPinned FilterKind = "pinned"
	FilterRecent FilterKind = "recent"
)

// RecentWindow is how far back the recent filter reaches.
const RecentWindow = 7 * 24 * time.Hour

// Filter returns the conversations matching query and kind, in input order.
// The query is a case-insensitive substring of the title or last message,
// matched as typed: only the empty query matches everything.
// now anchors the recent window; pass time.Now() on every call.
func Filter(convs []models.Conversation, query string, kind FilterKind, now time.Time) []models.Conversation {
	q := strings.ToLower(query)
	out := make([]models.Conversation, 0, len(convs))
	for _, c := range convs {
		if !matchesQuery(c, q) {
			continue
		}
		if !matchesKind(c, kind, now) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func matchesQuery(c models.Conversation, q string) bool {
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Title), q) ||
		strings.Contains(strings.ToLower(c.LastMessage), q)
}

func matchesKind(c models.Conversation, kind FilterKind, now time.Time) bool {
	switch kind {
	case "", FilterAll:
		return true
	case FilterPinned:
		return c.IsPinned
	case FilterRecent:
		return now.Sub(c.LastActivity()) <= RecentWindow
	default:
		return c.Category == models.Category(kind)
	}
}

// SortPinnedFirst returns a copy with pinned conversations moved to the
// front. Relative order inside each group is kept.
func SortPinnedFirst(convs []models.Conversation) []models.Conversation {
	out := make([]models.Conversation, len(convs))
	copy(out, convs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsPinned && !out[j].IsPinned
	})
	return out
}

package timefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatZero(t *testing.T) {
	assert.Equal(t, "-", FormatTime(time.Time{}))
	assert.Equal(t, "-", FormatLong(time.Time{}))
	assert.Equal(t, "-", FormatRelative(time.Time{}, time.Now()))
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	assert.Equal(t, "2025-03-14 09:26:53", FormatTime(ts))
	assert.Equal(t, "March 14, 2025 09:26:53", FormatLong(ts))
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", FormatRelative(now.Add(-20*time.Second), now))
	assert.Equal(t, "5 minutes ago", FormatRelative(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3 hours ago", FormatRelative(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2 days ago", FormatRelative(now.Add(-48*time.Hour), now))
}

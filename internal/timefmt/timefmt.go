// Package timefmt formats timestamps for transcripts, exports and lists.
package timefmt

import (
	"time"

	"github.com/dustin/go-humanize"
)

const (
	layoutShort = "2006-01-02 15:04:05"
	layoutLong  = "January 2, 2006 15:04:05"
	placeholder = "-"
)

// FormatTime renders t in local time as "2006-01-02 15:04:05".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return placeholder
	}
	return t.Local().Format(layoutShort)
}

// FormatLong renders t in local time in long form, used by exports.
func FormatLong(t time.Time) string {
	if t.IsZero() {
		return placeholder
	}
	return t.Local().Format(layoutLong)
}

// FormatRelative describes t relative to now ("just now", "3 hours ago").
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return placeholder
	}
	d := now.Sub(t)
	if d < time.Minute && d > -time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

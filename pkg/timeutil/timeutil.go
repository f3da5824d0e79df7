// Package timeutil provides time helpers for challenge windows, daily
// streaks, and reminder scheduling.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAY BOUNDARIES
// ══════════════════════════════════════════════════════════════════════════════

// StartOfDay returns midnight of the given time's day, in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last instant of the given time's day, in UTC.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// SameDay reports whether two instants fall on the same UTC calendar day.
func SameDay(t1, t2 time.Time) bool {
	return StartOfDay(t1).Equal(StartOfDay(t2))
}

// ConsecutiveDays reports whether t2 falls on the UTC calendar day directly
// after t1's. Daily streaks advance exactly when this holds.
func ConsecutiveDays(t1, t2 time.Time) bool {
	return StartOfDay(t1).AddDate(0, 0, 1).Equal(StartOfDay(t2))
}

// DaysBetween returns the number of UTC calendar days from t1 to t2.
// Negative when t2 precedes t1.
func DaysBetween(t1, t2 time.Time) int {
	return int(StartOfDay(t2).Sub(StartOfDay(t1)) / (24 * time.Hour))
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE WINDOWS
// ══════════════════════════════════════════════════════════════════════════════

// Remaining returns the time left until the deadline, floored at zero.
func Remaining(now, deadline time.Time) time.Duration {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatRemaining renders a duration the way reminder messages show it:
// "3d 4h", "5h 20m", "45m", or "ended" once nothing is left.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "ended"
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		if hours == 0 {
			return fmt.Sprintf("%dd", days)
		}
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		if minutes == 0 {
			minutes = 1
		}
		return fmt.Sprintf("%dm", minutes)
	}
}

// WindowProgress returns how far through [start, end] the instant now is,
// clamped to [0, 1]. A degenerate window counts as finished.
func WindowProgress(start, end, now time.Time) float64 {
	total := end.Sub(start)
	if total <= 0 {
		return 1
	}

	elapsed := now.Sub(start)
	if elapsed < 0 {
		return 0
	}
	if elapsed > total {
		return 1
	}
	return float64(elapsed) / float64(total)
}

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER SCHEDULING
// ══════════════════════════════════════════════════════════════════════════════

// Quiet hours bound when reminder notifications may be sent (UTC).
const (
	quietHourStart = 22
	quietHourEnd   = 8
)

// IsQuietHours reports whether the instant falls inside the nightly quiet
// window when reminders are held back.
func IsQuietHours(t time.Time) bool {
	h := t.UTC().Hour()
	return h >= quietHourStart || h < quietHourEnd
}

// NextActiveTime returns the earliest instant at or after t outside the
// quiet window.
func NextActiveTime(t time.Time) time.Time {
	u := t.UTC()
	if !IsQuietHours(u) {
		return u
	}

	next := time.Date(u.Year(), u.Month(), u.Day(), quietHourEnd, 0, 0, 0, time.UTC)
	if !next.After(u) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

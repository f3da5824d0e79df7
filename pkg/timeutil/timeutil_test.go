package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayBoundaries(t *testing.T) {
	noon := time.Date(2024, 3, 15, 12, 30, 45, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), StartOfDay(noon))
	assert.Equal(t, 23, EndOfDay(noon).Hour())
	assert.Equal(t, 15, EndOfDay(noon).Day())
}

func TestSameDay(t *testing.T) {
	morning := time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)
	night := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)
	nextDay := time.Date(2024, 3, 16, 0, 1, 0, 0, time.UTC)

	assert.True(t, SameDay(morning, night))
	assert.False(t, SameDay(night, nextDay))
}

func TestConsecutiveDays(t *testing.T) {
	day1 := time.Date(2024, 3, 15, 22, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 16, 6, 0, 0, 0, time.UTC)
	day3 := time.Date(2024, 3, 17, 6, 0, 0, 0, time.UTC)

	assert.True(t, ConsecutiveDays(day1, day2))
	assert.False(t, ConsecutiveDays(day1, day3))
	assert.False(t, ConsecutiveDays(day2, day1))
}

func TestDaysBetween(t *testing.T) {
	start := time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 18, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, DaysBetween(start, end))
	assert.Equal(t, -3, DaysBetween(end, start))
	assert.Equal(t, 0, DaysBetween(start, start))
}

func TestRemaining(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 2*time.Hour, Remaining(now, now.Add(2*time.Hour)))
	assert.Equal(t, time.Duration(0), Remaining(now, now.Add(-time.Minute)))
}

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{3*24*time.Hour + 4*time.Hour, "3d 4h"},
		{2 * 24 * time.Hour, "2d"},
		{5*time.Hour + 20*time.Minute, "5h 20m"},
		{3 * time.Hour, "3h"},
		{45 * time.Minute, "45m"},
		{30 * time.Second, "1m"},
		{0, "ended"},
		{-time.Hour, "ended"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatRemaining(tc.d), "duration %s", tc.d)
	}
}

func TestWindowProgress(t *testing.T) {
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Hour)

	assert.InDelta(t, 0.5, WindowProgress(start, end, start.Add(5*time.Hour)), 0.001)
	assert.InDelta(t, 0.0, WindowProgress(start, end, start.Add(-time.Hour)), 0.001)
	assert.InDelta(t, 1.0, WindowProgress(start, end, end.Add(time.Hour)), 0.001)
	assert.InDelta(t, 1.0, WindowProgress(end, start, end), 0.001)
}

func TestQuietHours(t *testing.T) {
	assert.True(t, IsQuietHours(time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC)))
	assert.True(t, IsQuietHours(time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC)))
	assert.False(t, IsQuietHours(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)))
}

func TestNextActiveTime(t *testing.T) {
	noon := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, noon, NextActiveTime(noon))

	night := time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC), NextActiveTime(night))

	earlyMorning := time.Date(2024, 3, 15, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC), NextActiveTime(earlyMorning))
}

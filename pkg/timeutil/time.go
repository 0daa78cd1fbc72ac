package timeutil

import (
	"math"
	"time"
)

// Day is a calendar-agnostic 24 hour span used for trial and billing arithmetic.
const Day = 24 * time.Hour

// Now returns the current time in UTC
// Always use this instead of time.Now() to ensure timezone consistency
func Now() time.Time {
	return time.Now().UTC()
}

// Clock supplies the current time. Services take a Clock so tests can pin "now".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock
func (SystemClock) Now() time.Time {
	return Now()
}

// FixedClock always returns the same instant. Advance moves it forward.
type FixedClock struct {
	T time.Time
}

// Now implements Clock
func (c *FixedClock) Now() time.Time {
	return c.T
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.T = c.T.Add(d)
}

// StartOfDay returns the start of the day (midnight) in UTC
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC
func EndOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 23, 59, 59, 999999999, time.UTC)
}

// DaysUntil returns max(0, floor((end - now) / 24h)).
func DaysUntil(now, end time.Time) int {
	if !end.After(now) {
		return 0
	}
	return int(math.Floor(float64(end.Sub(now)) / float64(Day)))
}

// DateKey formats t as the UTC calendar date, e.g. 2025-01-31.
func DateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

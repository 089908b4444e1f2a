// Package timeutil provides timezone-aware calendar helpers and an injectable
// clock. Dashboards anchor their revenue windows to the first day of the
// current month in the platform's reporting timezone.
package timeutil

import (
	"fmt"
	"sync"
	"time"

	// Containers often ship without zoneinfo.
	_ "time/tzdata"
)

// Clock abstracts the wall clock so handlers can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock returns time.Now in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Safe for concurrent use.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set moves the frozen instant.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance moves the frozen instant forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// LoadLocation resolves an IANA zone name. An empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// StartOfMonth returns midnight on the first day of t's month in loc.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// ─────────────────────────────────────────────────────────────────────────────
// Revenue windows
// ─────────────────────────────────────────────────────────────────────────────

// DefaultWindowDays is the length of one revenue window.
const DefaultWindowDays = 30

// Window is a closed time range [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
	// Label is the calendar month name of Start, e.g. "March 2026".
	Label string
}

// Contains reports whether t falls inside the closed range.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// RevenueWindows returns count windows of windowDays each. Window i starts at
// the first of now's month minus windowDays*i days. The result is ordered
// oldest first. Adjacent windows may overlap or leave gaps because they are
// fixed-length windows, not calendar months.
func RevenueWindows(now time.Time, loc *time.Location, count, windowDays int) []Window {
	if count <= 0 {
		return nil
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	anchor := StartOfMonth(now, loc)
	windows := make([]Window, count)
	for i := 0; i < count; i++ {
		start := anchor.AddDate(0, 0, -windowDays*i)
		windows[count-1-i] = Window{
			Start: start,
			End:   start.AddDate(0, 0, windowDays),
			Label: start.Format("January 2006"),
		}
	}
	return windows
}

// DateStamp formats t as yyyymmdd in UTC.
func DateStamp(t time.Time) string {
	return t.UTC().Format("20060102")
}

// Package timeutil provides day-granularity helpers for progress logs.
// A "day" is a calendar date in the configured school timezone, carried
// as midnight UTC so it compares and serializes without zone surprises.
package timeutil

import (
	"fmt"
	"time"
)

// DayLayout is the wire/storage format of a calendar day.
const DayLayout = "2006-01-02"

// Clock returns the current time. Swapped in tests.
type Clock func() time.Time

// SystemClock returns time.Now in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock frozen at t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Day truncates t to its calendar date in loc and returns that date at
// midnight UTC. A nil loc means UTC.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar day in loc.
func Today(clock Clock, loc *time.Location) time.Time {
	return Day(clock(), loc)
}

// FormatDay formats a day as YYYY-MM-DD.
func FormatDay(d time.Time) string {
	return d.UTC().Format(DayLayout)
}

// ParseDay parses YYYY-MM-DD into a day at midnight UTC.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return d, nil
}

// LoadLocation loads a timezone by name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MaxTime returns the later of a and b.
func MaxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

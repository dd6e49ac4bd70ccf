// Package timeutil provides day-boundary helpers bound to a configured timezone.
// Daily challenges and streak-like features are keyed by the user's calendar day,
// not by UTC midnight.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical day key layout (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock returns wall-clock time in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now implements Clock.
func (c FixedClock) Now() time.Time {
	return c.T
}

// LoadLocation resolves an IANA zone name. Empty and "UTC" map to time.UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(orUTC(loc))
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

// EndOfDay returns the last nanosecond of the day containing t.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DayKey formats the local calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(orUTC(loc)).Format(DateLayout)
}

// ParseDayKey parses a YYYY-MM-DD key into local midnight.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, key, orUTC(loc))
}

// IsSameDay reports whether t1 and t2 fall on the same local calendar day.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	return DayKey(t1, loc) == DayKey(t2, loc)
}

// DaysBetween counts calendar days from t1 to t2 (negative if t2 is earlier).
func DaysBetween(t1, t2 time.Time, loc *time.Location) int {
	d1 := StartOfDay(t1, loc)
	d2 := StartOfDay(t2, loc)
	// Dates are normalized through UTC so DST shifts do not skew the count.
	u1 := time.Date(d1.Year(), d1.Month(), d1.Day(), 0, 0, 0, 0, time.UTC)
	u2 := time.Date(d2.Year(), d2.Month(), d2.Day(), 0, 0, 0, 0, time.UTC)
	return int(u2.Sub(u1).Hours() / 24)
}

// UntilNextDay returns the duration until the next local midnight.
func UntilNextDay(t time.Time, loc *time.Location) time.Duration {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Sub(t)
}

// Package timeutil provides timezone-aware time primitives shared by the
// intent extractor, slot generator and availability grid.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a UTC time range, half-open on the right.
type Interval struct {
	Start time.Time `json:"startIso"`
	End   time.Time `json:"endIso"`
}

// NewInterval builds an interval in UTC. Returns an error unless end > start.
func NewInterval(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, fmt.Errorf("interval end %s is not after start %s", end, start)
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether i and other intersect under closed-open semantics.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// Contains reports whether other lies entirely within i.
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// ParseISO parses an ISO-8601 / RFC 3339 timestamp with explicit offset.
func ParseISO(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(value))
}

// FormatISO renders t as RFC 3339 in UTC.
func FormatISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// LoadLocation resolves an IANA timezone name. Empty and invalid names
// resolve to UTC with ok=false so callers can fall back cleanly.
func LoadLocation(name string) (*time.Location, bool) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// IsValidTimezone reports whether name is a loadable IANA timezone.
func IsValidTimezone(name string) bool {
	_, ok := LoadLocation(name)
	return ok
}

// WeekdayAbbr returns the three-letter weekday name of t ("Mon".."Sun").
func WeekdayAbbr(t time.Time) string {
	return t.Format("Mon")
}

// NormalizeWeekdayAbbr maps weekday spellings ("monday", "MON") to the
// canonical three-letter form. Returns "" for unknown input.
func NormalizeWeekdayAbbr(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mon", "monday":
		return "Mon"
	case "tue", "tues", "tuesday":
		return "Tue"
	case "wed", "weds", "wednesday":
		return "Wed"
	case "thu", "thur", "thurs", "thursday":
		return "Thu"
	case "fri", "friday":
		return "Fri"
	case "sat", "saturday":
		return "Sat"
	case "sun", "sunday":
		return "Sun"
	}
	return ""
}

// WeekdayFromAbbr converts a canonical abbreviation to time.Weekday.
func WeekdayFromAbbr(abbr string) (time.Weekday, bool) {
	switch abbr {
	case "Sun":
		return time.Sunday, true
	case "Mon":
		return time.Monday, true
	case "Tue":
		return time.Tuesday, true
	case "Wed":
		return time.Wednesday, true
	case "Thu":
		return time.Thursday, true
	case "Fri":
		return time.Friday, true
	case "Sat":
		return time.Saturday, true
	}
	return time.Sunday, false
}

// StartOfDay returns midnight of t's calendar day in loc.
// Constructing via time.Date keeps the arithmetic DST-correct.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayAt returns the wall-clock moment (hour, min) on the calendar day of t in loc.
func DayAt(t time.Time, loc *time.Location, hour, min int) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, min, 0, 0, loc)
}

// AddDays advances t by n calendar days in loc, preserving wall-clock time.
func AddDays(t time.Time, loc *time.Location, n int) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+n, local.Hour(), local.Minute(), local.Second(), 0, loc)
}

// NextWeekday returns the next occurrence of target strictly after t's day when
// t already falls on target, otherwise the first upcoming occurrence.
func NextWeekday(t time.Time, loc *time.Location, target time.Weekday) time.Time {
	day := StartOfDay(t, loc)
	delta := (int(target) - int(day.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return AddDays(day, loc, delta)
}

package timeutil

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, ok := LoadLocation(name)
	if !ok {
		t.Fatalf("expected %s to load", name)
	}
	return loc
}

func TestIntervalOverlapsHalfOpen(t *testing.T) {
	a := Interval{Start: time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 3, 17, 30, 0, 0, time.UTC)}
	b := Interval{Start: time.Date(2026, 3, 3, 17, 30, 0, 0, time.UTC), End: time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC)}

	if a.Overlaps(b) {
		t.Fatalf("adjacent intervals must not overlap under half-open semantics")
	}

	c := Interval{Start: time.Date(2026, 3, 3, 17, 15, 0, 0, time.UTC), End: time.Date(2026, 3, 3, 17, 45, 0, 0, time.UTC)}
	if !a.Overlaps(c) {
		t.Fatalf("expected overlap between %v and %v", a, c)
	}
}

func TestNewIntervalRejectsInverted(t *testing.T) {
	end := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	start := end.Add(time.Hour)
	if _, err := NewInterval(start, end); err == nil {
		t.Fatalf("expected error for inverted interval")
	}
	if _, err := NewInterval(end, end); err == nil {
		t.Fatalf("expected error for empty interval")
	}
}

func TestLoadLocationFallsBackToUTC(t *testing.T) {
	loc, ok := LoadLocation("Not/AZone")
	if ok {
		t.Fatalf("expected invalid zone to report ok=false")
	}
	if loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", loc)
	}
}

func TestNextWeekdaySkipsSameDay(t *testing.T) {
	loc := mustLoc(t, "America/Los_Angeles")
	// Wednesday 2026-03-04
	ref := time.Date(2026, 3, 4, 10, 0, 0, 0, loc)

	next := NextWeekday(ref, loc, time.Wednesday)
	if next.Day() != 11 {
		t.Fatalf("expected next Wednesday to be the 11th, got %v", next)
	}

	fri := NextWeekday(ref, loc, time.Friday)
	if fri.Day() != 6 {
		t.Fatalf("expected Friday the 6th, got %v", fri)
	}
}

func TestStartOfDayDSTBoundary(t *testing.T) {
	loc := mustLoc(t, "America/Los_Angeles")
	// 2026-03-08 is the US spring-forward date.
	ref := time.Date(2026, 3, 8, 15, 0, 0, 0, loc)

	day := StartOfDay(ref, loc)
	if day.Hour() != 0 || day.Day() != 8 {
		t.Fatalf("expected local midnight on the 8th, got %v", day)
	}

	next := AddDays(day, loc, 1)
	if next.Day() != 9 || next.Hour() != 0 {
		t.Fatalf("expected midnight on the 9th across DST, got %v", next)
	}
	// The shortened day is 23 hours long.
	if next.Sub(day) != 23*time.Hour {
		t.Fatalf("expected 23h spring-forward day, got %v", next.Sub(day))
	}
}

package slots

import (
	"testing"
	"time"

	"spike_backend/internal/timeutil"
)

func utc(t *testing.T, iso string) time.Time {
	t.Helper()
	ts, err := timeutil.ParseISO(iso)
	if err != nil {
		t.Fatalf("bad timestamp %q: %v", iso, err)
	}
	return ts.UTC()
}

func baseParams(t *testing.T) Params {
	return Params{
		HostTimezone:     "America/Los_Angeles",
		AdvisingWeekdays: []string{"Tue", "Wed"},
		SearchStart:      utc(t, "2026-03-03T00:00:00Z"),
		SearchEnd:        utc(t, "2026-03-05T00:00:00Z"),
		WorkdayStartHour: 9,
		WorkdayEndHour:   17,
		DurationMinutes:  30,
		MaxSuggestions:   2,
	}
}

func TestGenerateStepsAroundBusy(t *testing.T) {
	p := baseParams(t)
	p.BusyUTC = []timeutil.Interval{
		{Start: utc(t, "2026-03-03T17:00:00Z"), End: utc(t, "2026-03-03T17:30:00Z")},
	}

	got := Generate(p)
	if len(got) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(got))
	}
	if !got[0].StartUTC.Equal(utc(t, "2026-03-03T17:30:00Z")) {
		t.Fatalf("expected first slot 17:30Z, got %v", got[0].StartUTC)
	}
	if !got[1].StartUTC.Equal(utc(t, "2026-03-03T18:00:00Z")) {
		t.Fatalf("expected second slot 18:00Z, got %v", got[1].StartUTC)
	}
	if got[0].HostTimezone != "America/Los_Angeles" || got[0].StartHostLocal.Hour() != 9 || got[0].StartHostLocal.Minute() != 30 {
		t.Fatalf("expected host-local 9:30, got %v", got[0].StartHostLocal)
	}
}

func TestGenerateSkipsNonAdvisingDays(t *testing.T) {
	p := baseParams(t)
	p.AdvisingWeekdays = []string{"Wed"}
	p.MaxSuggestions = 1

	got := Generate(p)
	if len(got) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(got))
	}
	if got[0].StartHostLocal.Weekday() != time.Wednesday {
		t.Fatalf("expected a Wednesday slot, got %v", got[0].StartHostLocal)
	}
}

func TestGenerateHonorsRequestedWindows(t *testing.T) {
	p := baseParams(t)
	p.MaxSuggestions = 10
	// Wed 10:00-11:00 PT is 18:00-19:00Z.
	p.RequestedWindows = []timeutil.Interval{
		{Start: utc(t, "2026-03-04T18:00:00Z"), End: utc(t, "2026-03-04T19:00:00Z")},
	}

	got := Generate(p)
	if len(got) != 2 {
		t.Fatalf("expected 2 slots inside the window, got %d", len(got))
	}
	for _, s := range got {
		slot := timeutil.Interval{Start: s.StartUTC, End: s.EndUTC}
		if !p.RequestedWindows[0].Contains(slot) {
			t.Fatalf("slot %v escapes requested window", slot)
		}
	}
}

func TestGenerateRespectsMaxSuggestions(t *testing.T) {
	p := baseParams(t)
	p.MaxSuggestions = 3

	got := Generate(p)
	if len(got) != 3 {
		t.Fatalf("expected exactly 3 slots, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].StartUTC.After(got[i-1].StartUTC) {
			t.Fatalf("slots not strictly ascending")
		}
	}
}

func TestGenerateNoBusyOverlapInvariant(t *testing.T) {
	p := baseParams(t)
	p.MaxSuggestions = 50
	p.BusyUTC = []timeutil.Interval{
		{Start: utc(t, "2026-03-03T17:00:00Z"), End: utc(t, "2026-03-03T19:00:00Z")},
		{Start: utc(t, "2026-03-04T20:00:00Z"), End: utc(t, "2026-03-04T20:15:00Z")},
	}

	got := Generate(p)
	if len(got) == 0 {
		t.Fatalf("expected some free slots")
	}
	for _, s := range got {
		slot := timeutil.Interval{Start: s.StartUTC, End: s.EndUTC}
		for _, b := range p.BusyUTC {
			if b.Overlaps(slot) {
				t.Fatalf("slot %v overlaps busy %v", slot, b)
			}
		}
		if s.EndUTC.Sub(s.StartUTC) != 30*time.Minute {
			t.Fatalf("slot duration mismatch: %v", s)
		}
	}
}

func TestGenerateInvalidBoundsReturnsEmpty(t *testing.T) {
	p := baseParams(t)
	p.SearchEnd = p.SearchStart
	if got := Generate(p); got != nil {
		t.Fatalf("expected nil for empty search range, got %v", got)
	}

	p = baseParams(t)
	p.SearchStart = time.Time{}
	if got := Generate(p); got != nil {
		t.Fatalf("expected nil for zero start, got %v", got)
	}

	p = baseParams(t)
	p.WorkdayEndHour = p.WorkdayStartHour
	if got := Generate(p); got != nil {
		t.Fatalf("expected nil for empty workday, got %v", got)
	}
}

func TestGenerateClipsToSearchBounds(t *testing.T) {
	p := baseParams(t)
	// Search ends mid-workday Wednesday: 18:00Z is 10:00 PT.
	p.SearchEnd = utc(t, "2026-03-04T18:00:00Z")
	p.MaxSuggestions = 100
	p.AdvisingWeekdays = []string{"Wed"}

	got := Generate(p)
	for _, s := range got {
		if s.EndUTC.After(p.SearchEnd) {
			t.Fatalf("slot %v leaks past search end", s.EndUTC)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 slots (9:00 and 9:30 PT), got %d", len(got))
	}
}

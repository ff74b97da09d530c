package grid

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
		SlotMinutes:      30,
		MaxCells:         800,
	}
}

func TestBuildCountsAndShape(t *testing.T) {
	p := baseParams(t)
	p.BusyUTC = []timeutil.Interval{
		// Tue 9:00-10:00 PT.
		{Start: utc(t, "2026-03-03T17:00:00Z"), End: utc(t, "2026-03-03T18:00:00Z")},
	}

	g := Build(p)
	if len(g.Days) != 2 {
		t.Fatalf("expected 2 advising days, got %d", len(g.Days))
	}
	rows := len(g.Rows)
	if rows != 16 {
		t.Fatalf("expected 16 rows for 9-17 at 30min, got %d", rows)
	}
	if g.OpenCount+g.BusyCount != rows*len(g.Days) {
		t.Fatalf("counter invariant broken: %d+%d != %d", g.OpenCount, g.BusyCount, rows*len(g.Days))
	}
	if g.BusyCount != 2 {
		t.Fatalf("expected 2 busy cells, got %d", g.BusyCount)
	}
	if g.Rows[0] != "9:00 AM" || g.Rows[1] != "9:30 AM" {
		t.Fatalf("unexpected row labels %q %q", g.Rows[0], g.Rows[1])
	}
}

func TestBuildClassifiesClientMeeting(t *testing.T) {
	p := baseParams(t)
	meeting := Meeting{
		Start:  utc(t, "2026-03-03T17:00:00Z"),
		End:    utc(t, "2026-03-03T18:30:00Z"),
		Title:  "Advising session",
		Status: MeetingAccepted,
	}
	p.ClientMeetingsUTC = []Meeting{meeting}
	p.BusyUTC = []timeutil.Interval{{Start: meeting.Start, End: meeting.End}}

	g := Build(p)
	cells := g.Days[0].Cells
	for r := 0; r < 3; r++ {
		c := cells[r]
		if c.Status != StatusBusy || !c.HasClientMeeting {
			t.Fatalf("row %d: expected busy client-meeting cell, got %+v", r, c)
		}
		if c.ClientMeetingState != MeetingAccepted {
			t.Fatalf("row %d: expected accepted state, got %q", r, c.ClientMeetingState)
		}
		if c.HasOverlap {
			t.Fatalf("row %d: busy fully covered by the meeting must not flag overlap", r)
		}
	}
	if cells[3].Status != StatusOpen {
		t.Fatalf("row 3 should be open, got %q", cells[3].Status)
	}
}

func TestBuildFlagsOverlapOutsideMeetings(t *testing.T) {
	p := baseParams(t)
	// Busy Tue 9:15-9:45 PT with no client meeting behind it.
	p.BusyUTC = []timeutil.Interval{
		{Start: utc(t, "2026-03-03T17:15:00Z"), End: utc(t, "2026-03-03T17:45:00Z")},
	}

	g := Build(p)
	cells := g.Days[0].Cells
	if !cells[0].HasOverlap || !cells[1].HasOverlap {
		t.Fatalf("expected overlap flags on rows 0 and 1")
	}
	if cells[0].Status != StatusBusy {
		t.Fatalf("partially covered cell is still busy")
	}
}

func TestBuildNonClientBusyFlagsOverlapOnly(t *testing.T) {
	p := baseParams(t)
	p.NonClientBusyUTC = []timeutil.Interval{
		{Start: utc(t, "2026-03-03T17:00:00Z"), End: utc(t, "2026-03-03T17:30:00Z")},
	}

	g := Build(p)
	c := g.Days[0].Cells[0]
	if c.Status != StatusOpen {
		t.Fatalf("non-client busy must not change status, got %q", c.Status)
	}
	if !c.HasOverlap {
		t.Fatalf("non-client busy must flag a potential conflict")
	}
}

func TestBuildRequestedDurationHighlight(t *testing.T) {
	p := baseParams(t)
	p.RequestedDurationMinutes = 60
	// Busy Tue 10:00-10:30 PT.
	p.BusyUTC = []timeutil.Interval{
		{Start: utc(t, "2026-03-03T18:00:00Z"), End: utc(t, "2026-03-03T18:30:00Z")},
	}

	g := Build(p)
	cells := g.Days[0].Cells
	if !cells[0].FitsRequestedDuration {
		t.Fatalf("9:00 starts a free hour, should fit")
	}
	if cells[1].FitsRequestedDuration {
		t.Fatalf("9:30 runs into the busy row, should not fit")
	}
	if cells[2].FitsRequestedDuration {
		t.Fatalf("busy cell can never fit")
	}
	if !cells[3].FitsRequestedDuration {
		t.Fatalf("10:30 starts a free hour, should fit")
	}
}

func TestBuildMaxCellsClampsDays(t *testing.T) {
	p := baseParams(t)
	p.SearchEnd = utc(t, "2026-03-26T00:00:00Z")
	p.MaxCells = 16 // exactly one day at 16 rows

	g := Build(p)
	if len(g.Days) != 1 {
		t.Fatalf("expected day clamp to 1, got %d", len(g.Days))
	}
}

func TestBuildInvalidBoundsReturnsEmpty(t *testing.T) {
	p := baseParams(t)
	p.SearchEnd = p.SearchStart
	g := Build(p)
	if len(g.Days) != 0 || len(g.Rows) != 0 {
		t.Fatalf("expected empty grid, got %d days", len(g.Days))
	}
}

func TestMergePlanCollapsesSingleMeeting(t *testing.T) {
	p := baseParams(t)
	meeting := Meeting{
		Start:  utc(t, "2026-03-03T17:00:00Z"), // 9:00 PT
		End:    utc(t, "2026-03-03T18:30:00Z"), // 10:30 PT
		Title:  "Advising session",
		Status: MeetingAccepted,
	}
	p.ClientMeetingsUTC = []Meeting{meeting}
	p.BusyUTC = []timeutil.Interval{{Start: meeting.Start, End: meeting.End}}

	g := Build(p)
	plan := MergePlan(&g)

	col := plan[0]
	if !col[0].Render || col[0].Rowspan != 3 {
		t.Fatalf("expected one rendered cell with rowspan 3, got %+v", col[0])
	}
	if col[0].Label != "9:00 AM - 10:30 AM" {
		t.Fatalf("unexpected label %q", col[0].Label)
	}
	if col[1].Render || col[2].Render {
		t.Fatalf("rows 1 and 2 must be hidden by the merge")
	}
	if !col[3].Render || col[3].Rowspan != 1 {
		t.Fatalf("row 3 renders on its own, got %+v", col[3])
	}
}

func TestMergePlanRowspanInvariant(t *testing.T) {
	p := baseParams(t)
	p.ClientMeetingsUTC = []Meeting{
		{Start: utc(t, "2026-03-03T17:00:00Z"), End: utc(t, "2026-03-03T18:00:00Z"), Title: "A", Status: MeetingPending},
		{Start: utc(t, "2026-03-04T19:00:00Z"), End: utc(t, "2026-03-04T20:30:00Z"), Title: "B", Status: MeetingAccepted},
	}
	p.BusyUTC = []timeutil.Interval{
		{Start: utc(t, "2026-03-03T21:00:00Z"), End: utc(t, "2026-03-03T21:45:00Z")},
	}

	g := Build(p)
	plan := MergePlan(&g)
	for d, col := range plan {
		sum := 0
		for _, rc := range col {
			if rc.Render {
				sum += rc.Rowspan
			}
		}
		if sum != len(g.Rows) {
			t.Fatalf("day %d: rowspan sum %d != rows %d", d, sum, len(g.Rows))
		}
	}
}

func TestMergePlanDistinctMeetingsDoNotMerge(t *testing.T) {
	p := baseParams(t)
	p.ClientMeetingsUTC = []Meeting{
		{Start: utc(t, "2026-03-03T17:00:00Z"), End: utc(t, "2026-03-03T17:30:00Z"), Title: "A", Status: MeetingAccepted},
		{Start: utc(t, "2026-03-03T17:30:00Z"), End: utc(t, "2026-03-03T18:00:00Z"), Title: "B", Status: MeetingAccepted},
	}

	g := Build(p)
	plan := MergePlan(&g)
	col := plan[0]
	if col[0].Rowspan != 1 || col[1].Rowspan != 1 {
		t.Fatalf("different titles must not merge: %+v %+v", col[0], col[1])
	}
}

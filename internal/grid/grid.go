// Package grid projects advisor busy time and the requesting client's own
// meetings into a day-by-row availability calendar for the portal view.
package grid

import (
	"sort"
	"time"

	"spike_backend/internal/timeutil"
)

const (
	StatusOpen = "open"
	StatusBusy = "busy"

	MeetingAccepted = "accepted"
	MeetingPending  = "pending"
)

// Meeting is one of the requesting client's own calendar events.
type Meeting struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Title  string    `json:"title"`
	Status string    `json:"status"`
}

// Cell is one (day, row) slot in the calendar.
type Cell struct {
	Status                string    `json:"status"`
	SlotStartUTC          time.Time `json:"slotStartUtc"`
	SlotEndUTC            time.Time `json:"slotEndUtc"`
	SlotStartLocal        time.Time `json:"-"`
	SlotEndLocal          time.Time `json:"-"`
	HasClientMeeting      bool      `json:"hasClientMeeting"`
	ClientMeetingState    string    `json:"clientMeetingState,omitempty"`
	HasOverlap            bool      `json:"hasOverlap"`
	FitsRequestedDuration bool      `json:"fitsRequestedDuration"`
	Meetings              []Meeting `json:"meetings,omitempty"`
}

// Day is one advising-day column.
type Day struct {
	Date  time.Time `json:"date"` // local midnight in the host timezone
	Label string    `json:"label"`
	Cells []Cell    `json:"cells"`
}

// Grid is the full calendar projection.
type Grid struct {
	Days                     []Day    `json:"days"`
	Rows                     []string `json:"rows"` // local clock labels, one per row
	SlotMinutes              int      `json:"slotMinutes"`
	RequestedDurationMinutes int      `json:"requestedDurationMinutes"`
	OpenCount                int      `json:"openCount"`
	BusyCount                int      `json:"busyCount"`
	HostTimezone             string   `json:"hostTimezone"`
}

// Params bounds one build.
type Params struct {
	BusyUTC                  []timeutil.Interval
	ClientMeetingsUTC        []Meeting
	NonClientBusyUTC         []timeutil.Interval
	HostTimezone             string
	AdvisingWeekdays         []string
	SearchStart              time.Time
	SearchEnd                time.Time
	WorkdayStartHour         int
	WorkdayEndHour           int
	SlotMinutes              int
	RequestedDurationMinutes int
	MaxCells                 int
}

// Build projects the inputs into a grid. Invalid bounds yield an empty grid;
// Build never fails.
func Build(p Params) Grid {
	g := Grid{
		SlotMinutes:              p.SlotMinutes,
		RequestedDurationMinutes: p.RequestedDurationMinutes,
		HostTimezone:             p.HostTimezone,
	}
	if p.SearchStart.IsZero() || p.SearchEnd.IsZero() || !p.SearchEnd.After(p.SearchStart) {
		return g
	}
	if p.SlotMinutes <= 0 || p.WorkdayEndHour <= p.WorkdayStartHour {
		return g
	}

	rows := (p.WorkdayEndHour - p.WorkdayStartHour) * 60 / p.SlotMinutes
	if rows <= 0 {
		return g
	}

	loc, _ := timeutil.LoadLocation(p.HostTimezone)
	advising := make(map[string]struct{}, len(p.AdvisingWeekdays))
	for _, d := range p.AdvisingWeekdays {
		if abbr := timeutil.NormalizeWeekdayAbbr(d); abbr != "" {
			advising[abbr] = struct{}{}
		}
	}

	maxDays := -1
	if p.MaxCells > 0 {
		maxDays = p.MaxCells / rows
	}

	var dayStarts []time.Time
	day := timeutil.StartOfDay(p.SearchStart, loc)
	lastDay := timeutil.StartOfDay(p.SearchEnd, loc)
	for !day.After(lastDay) {
		if _, ok := advising[timeutil.WeekdayAbbr(day)]; ok {
			dayStarts = append(dayStarts, day)
			if maxDays >= 0 && len(dayStarts) >= maxDays {
				break
			}
		}
		day = timeutil.AddDays(day, loc, 1)
	}

	for r := 0; r < rows; r++ {
		min := p.WorkdayStartHour*60 + r*p.SlotMinutes
		label := time.Date(2000, 1, 1, 0, min, 0, 0, time.UTC).Format("3:04 PM")
		g.Rows = append(g.Rows, label)
	}

	for _, d := range dayStarts {
		col := Day{Date: d, Label: d.Format("Mon Jan 2")}
		for r := 0; r < rows; r++ {
			startMin := p.WorkdayStartHour*60 + r*p.SlotMinutes
			startLocal := timeutil.DayAt(d, loc, 0, startMin)
			endLocal := timeutil.DayAt(d, loc, 0, startMin+p.SlotMinutes)
			cell := buildCell(startLocal, endLocal, p)
			if cell.Status == StatusOpen {
				g.OpenCount++
			} else {
				g.BusyCount++
			}
			col.Cells = append(col.Cells, cell)
		}
		g.Days = append(g.Days, col)
	}

	markRequestedDuration(&g)
	return g
}

func buildCell(startLocal, endLocal time.Time, p Params) Cell {
	cell := Cell{
		SlotStartUTC:   startLocal.UTC(),
		SlotEndUTC:     endLocal.UTC(),
		SlotStartLocal: startLocal,
		SlotEndLocal:   endLocal,
	}
	slot := timeutil.Interval{Start: cell.SlotStartUTC, End: cell.SlotEndUTC}

	var busyInSlot []timeutil.Interval
	for _, b := range p.BusyUTC {
		if b.Overlaps(slot) {
			busyInSlot = append(busyInSlot, b)
		}
	}
	for _, m := range p.ClientMeetingsUTC {
		iv := timeutil.Interval{Start: m.Start.UTC(), End: m.End.UTC()}
		if iv.Overlaps(slot) {
			cell.Meetings = append(cell.Meetings, m)
		}
	}
	cell.HasClientMeeting = len(cell.Meetings) > 0

	if len(busyInSlot) > 0 || cell.HasClientMeeting {
		cell.Status = StatusBusy
	} else {
		cell.Status = StatusOpen
	}

	for _, m := range cell.Meetings {
		if m.Status == MeetingAccepted {
			cell.ClientMeetingState = MeetingAccepted
			break
		}
	}
	if cell.ClientMeetingState == "" && cell.HasClientMeeting {
		cell.ClientMeetingState = MeetingPending
	}

	cell.HasOverlap = overlapInCell(slot, busyInSlot, cell.Meetings)
	if !cell.HasOverlap {
		for _, n := range p.NonClientBusyUTC {
			if n.Overlaps(slot) {
				cell.HasOverlap = true
				break
			}
		}
	}
	return cell
}

// overlapInCell reports whether some sub-range of the cell is covered by a
// busy interval but by no client meeting. Sampling the midpoint between
// adjacent breakpoints is exact because coverage is constant between them.
func overlapInCell(slot timeutil.Interval, busy []timeutil.Interval, meetings []Meeting) bool {
	if len(busy) == 0 {
		return false
	}
	points := []time.Time{slot.Start, slot.End}
	for _, b := range busy {
		points = append(points, b.Start, b.End)
	}
	for _, m := range meetings {
		points = append(points, m.Start.UTC(), m.End.UTC())
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })

	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		if !b.After(a) {
			continue
		}
		mid := a.Add(b.Sub(a) / 2)
		if mid.Before(slot.Start) || !mid.Before(slot.End) {
			continue
		}
		if coveredByBusy(mid, busy) && !coveredByMeeting(mid, meetings) {
			return true
		}
	}
	return false
}

func coveredByBusy(t time.Time, busy []timeutil.Interval) bool {
	for _, b := range busy {
		if !t.Before(b.Start) && t.Before(b.End) {
			return true
		}
	}
	return false
}

func coveredByMeeting(t time.Time, meetings []Meeting) bool {
	for _, m := range meetings {
		if !t.Before(m.Start.UTC()) && t.Before(m.End.UTC()) {
			return true
		}
	}
	return false
}

// markRequestedDuration flags open cells that begin a run long enough for the
// client's requested duration.
func markRequestedDuration(g *Grid) {
	if g.RequestedDurationMinutes <= g.SlotMinutes {
		return
	}
	required := (g.RequestedDurationMinutes + g.SlotMinutes - 1) / g.SlotMinutes
	for d := range g.Days {
		cells := g.Days[d].Cells
		for r := range cells {
			if cells[r].Status != StatusOpen || r+required > len(cells) {
				continue
			}
			fits := true
			for k := r; k < r+required; k++ {
				if cells[k].Status != StatusOpen {
					fits = false
					break
				}
			}
			cells[r].FitsRequestedDuration = fits
		}
	}
}

// Package slots enumerates free candidate meeting slots from advisor busy
// intervals and client-requested windows. The generator is deterministic:
// output is ordered days-ascending, then within-day ascending.
package slots

import (
	"time"

	"spike_backend/internal/timeutil"
)

// Slot is one proposed meeting time, carried in both UTC and the advisor's
// local wall clock for rendering.
type Slot struct {
	StartUTC       time.Time `json:"startUtc"`
	EndUTC         time.Time `json:"endUtc"`
	StartHostLocal time.Time `json:"startHostLocal"`
	EndHostLocal   time.Time `json:"endHostLocal"`
	HostTimezone   string    `json:"hostTimezone"`
}

// Params bounds the search.
type Params struct {
	BusyUTC          []timeutil.Interval
	RequestedWindows []timeutil.Interval
	HostTimezone     string
	AdvisingWeekdays []string // three-letter abbreviations, e.g. "Mon"
	SearchStart      time.Time
	SearchEnd        time.Time
	WorkdayStartHour int // [0,23]
	WorkdayEndHour   int // (start,24]
	DurationMinutes  int
	MaxSuggestions   int
}

// Generate returns up to MaxSuggestions free slots. Invalid bounds yield an
// empty result; Generate never fails.
func Generate(p Params) []Slot {
	if p.SearchStart.IsZero() || p.SearchEnd.IsZero() || !p.SearchEnd.After(p.SearchStart) {
		return nil
	}
	if p.DurationMinutes <= 0 || p.MaxSuggestions <= 0 {
		return nil
	}
	if p.WorkdayStartHour < 0 || p.WorkdayStartHour > 23 ||
		p.WorkdayEndHour <= p.WorkdayStartHour || p.WorkdayEndHour > 24 {
		return nil
	}

	loc, _ := timeutil.LoadLocation(p.HostTimezone)
	advising := make(map[string]struct{}, len(p.AdvisingWeekdays))
	for _, d := range p.AdvisingWeekdays {
		if abbr := timeutil.NormalizeWeekdayAbbr(d); abbr != "" {
			advising[abbr] = struct{}{}
		}
	}

	search := timeutil.Interval{Start: p.SearchStart.UTC(), End: p.SearchEnd.UTC()}
	duration := time.Duration(p.DurationMinutes) * time.Minute

	var out []Slot
	day := timeutil.StartOfDay(p.SearchStart, loc)
	lastDay := timeutil.StartOfDay(p.SearchEnd, loc)

	for !day.After(lastDay) {
		if _, ok := advising[timeutil.WeekdayAbbr(day)]; !ok {
			day = timeutil.AddDays(day, loc, 1)
			continue
		}

		workdayEnd := timeutil.DayAt(day, loc, 0, p.WorkdayEndHour*60)
		slotStart := timeutil.DayAt(day, loc, p.WorkdayStartHour, 0)

		for !slotStart.Add(duration).After(workdayEnd) {
			slotEnd := slotStart.Add(duration)
			candidate := timeutil.Interval{Start: slotStart.UTC(), End: slotEnd.UTC()}

			if accept(candidate, search, p.RequestedWindows, p.BusyUTC) {
				out = append(out, Slot{
					StartUTC:       candidate.Start,
					EndUTC:         candidate.End,
					StartHostLocal: slotStart,
					EndHostLocal:   slotEnd,
					HostTimezone:   p.HostTimezone,
				})
				if len(out) >= p.MaxSuggestions {
					return out
				}
			}
			slotStart = slotStart.Add(duration)
		}
		day = timeutil.AddDays(day, loc, 1)
	}
	return out
}

func accept(candidate, search timeutil.Interval, requested, busy []timeutil.Interval) bool {
	if !search.Contains(candidate) {
		return false
	}
	if len(requested) > 0 {
		inside := false
		for _, w := range requested {
			if w.Contains(candidate) {
				inside = true
				break
			}
		}
		if !inside {
			return false
		}
	}
	for _, b := range busy {
		if b.Overlaps(candidate) {
			return false
		}
	}
	return true
}

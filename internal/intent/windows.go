package intent

import (
	"regexp"
	"time"

	"spike_backend/internal/timeutil"
)

// isoRe matches ISO-8601 datetimes with an explicit offset.
var isoRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[Tt]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:[Zz]|[+-]\d{2}:\d{2})`)

var clauseSplitRe = regexp.MustCompile(`[\n.;]+`)

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

// isoWindows collects explicit ISO timestamps and consumes them as
// (start, end) pairs. Pairs where end is not after start are dropped.
func isoWindows(text string) []timeutil.Interval {
	matches := isoRe.FindAllString(text, -1)
	var out []timeutil.Interval
	for i := 0; i+1 < len(matches); i += 2 {
		start, ok1 := parseISOAny(matches[i])
		end, ok2 := parseISOAny(matches[i+1])
		if !ok1 || !ok2 {
			continue
		}
		if w, err := timeutil.NewInterval(start, end); err == nil {
			out = append(out, w)
		}
	}
	return out
}

func parseISOAny(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// pointWindows runs the natural-language point layer: each clause may
// contribute one window when it carries a day descriptor plus a time range
// or daypart.
func pointWindows(text string, ref time.Time, loc *time.Location) []timeutil.Interval {
	// Stray ISO fragments (an unpaired timestamp) would otherwise confuse the
	// clock-range matcher.
	cleaned := isoRe.ReplaceAllString(text, " ")

	var out []timeutil.Interval
	for _, clause := range clauseSplitRe.Split(cleaned, -1) {
		if w, ok := clauseWindow(clause, ref, loc); ok {
			out = append(out, w)
		}
	}
	return out
}

// clauseWindow resolves one clause to a concrete local window.
func clauseWindow(clause string, ref time.Time, loc *time.Location) (timeutil.Interval, bool) {
	desc, ok := findDayDescriptor(clause)
	if !ok {
		return timeutil.Interval{}, false
	}
	day, ok := desc.resolve(ref, loc)
	if !ok {
		return timeutil.Interval{}, false
	}

	// Strip the descriptor text so date digits ("3/5", "2026-03-04") cannot be
	// re-read as clock tokens.
	rest := clause[:desc.lo] + " " + clause[desc.hi:]

	var dpp *daypart
	dp, hasDaypart := findDaypart(rest)
	if hasDaypart {
		dpp = &dp
	}

	if r, ok := findTimeRange(rest, dpp); ok {
		return anchorRange(day, loc, r)
	}
	if hasDaypart {
		start := timeutil.DayAt(day, loc, dp.startHour, dp.startMin)
		end := timeutil.DayAt(day, loc, dp.endHour, dp.endMin)
		w, err := timeutil.NewInterval(start, end)
		return w, err == nil
	}
	return timeutil.Interval{}, false
}

// anchorRange pins a clock range onto a local day and applies the end-minute
// roll-forward: an end at or before the start gains 12 hours when that fixes
// the ordering, otherwise 24.
func anchorRange(day time.Time, loc *time.Location, r clockRange) (timeutil.Interval, bool) {
	start := timeutil.DayAt(day, loc, r.startHour, r.startMin)
	end := timeutil.DayAt(day, loc, r.endHour, r.endMin)

	if !end.After(start) {
		bumped := end.Add(12 * time.Hour)
		if bumped.After(start) {
			end = bumped
		} else {
			end = end.Add(24 * time.Hour)
		}
	}

	w, err := timeutil.NewInterval(start, end)
	return w, err == nil
}

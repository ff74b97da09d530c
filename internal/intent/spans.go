package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"spike_backend/internal/timeutil"
)

const monthAlt = `january|february|march|april|may|june|july|august|september|october|november|december`

var (
	weekOfMonthRe = regexp.MustCompile(`(?i)\b(first|1st|second|2nd|third|3rd|fourth|4th|last)\s+week\s+of\s+(` + monthAlt + `)(?:\s+(\d{4}))?\b`)
	monthWeekRe   = regexp.MustCompile(`(?i)\b(` + monthAlt + `)\s+(first|1st|second|2nd|third|3rd|fourth|4th|last)\s+week(?:\s+(\d{4}))?\b`)
	monthOnlyRe   = regexp.MustCompile(`(?i)\b(` + monthAlt + `)\b(?:\s+(\d{4}))?`)
	leadingDayRe  = regexp.MustCompile(`^\s+\d{1,2}(?:st|nd|rd|th)?\b`)
)

// daySpan is an inclusive run of calendar days in the working timezone.
type daySpan struct {
	first time.Time // local midnight
	days  int
	lo    int // matched text span, for stripping
	hi    int
}

// spanWindows runs the broad span layer: week-of-month and month-only
// phrases expand day-by-day, intersected with the clause's time range,
// daypart, or the full day.
func spanWindows(text string, ref time.Time, loc *time.Location) []timeutil.Interval {
	cleaned := isoRe.ReplaceAllString(text, " ")

	var out []timeutil.Interval
	for _, clause := range clauseSplitRe.Split(cleaned, -1) {
		span, ok := findSpan(clause, ref, loc)
		if !ok {
			continue
		}

		rest := clause[:span.lo] + " " + clause[span.hi:]
		var dpp *daypart
		dp, hasDaypart := findDaypart(rest)
		if hasDaypart {
			dpp = &dp
		}
		r, hasRange := findTimeRange(rest, dpp)

		for i := 0; i < span.days; i++ {
			day := timeutil.AddDays(span.first, loc, i)
			switch {
			case hasRange:
				if w, ok := anchorRange(day, loc, r); ok {
					out = append(out, w)
				}
			case hasDaypart:
				start := timeutil.DayAt(day, loc, dp.startHour, dp.startMin)
				end := timeutil.DayAt(day, loc, dp.endHour, dp.endMin)
				if w, err := timeutil.NewInterval(start, end); err == nil {
					out = append(out, w)
				}
			default:
				start := day
				end := timeutil.AddDays(day, loc, 1)
				if w, err := timeutil.NewInterval(start, end); err == nil {
					out = append(out, w)
				}
			}
		}
	}
	return out
}

// findSpan recognises week-of-month phrases (both orders) and bare month
// spans in a clause.
func findSpan(clause string, ref time.Time, loc *time.Location) (daySpan, bool) {
	if m := weekOfMonthRe.FindStringSubmatchIndex(clause); m != nil {
		ordinal := clause[m[2]:m[3]]
		month := monthByName[strings.ToLower(clause[m[4]:m[5]])]
		year := optionalYear(clause, m, 3)
		return weekSpan(ordinal, month, year, ref, loc, m[0], m[1])
	}
	if m := monthWeekRe.FindStringSubmatchIndex(clause); m != nil {
		month := monthByName[strings.ToLower(clause[m[2]:m[3]])]
		ordinal := clause[m[4]:m[5]]
		year := optionalYear(clause, m, 3)
		return weekSpan(ordinal, month, year, ref, loc, m[0], m[1])
	}

	for _, m := range monthOnlyRe.FindAllStringSubmatchIndex(clause, -1) {
		// "<month> 3" is a calendar date, not a month span. RE2 has no
		// look-ahead, so peek at the trailing text by hand.
		tail := clause[m[3]:]
		if m[4] < 0 && leadingDayRe.MatchString(tail) {
			continue
		}
		month := monthByName[strings.ToLower(clause[m[2]:m[3]])]
		year := optionalYear(clause, m, 2)
		first, days := monthSpan(month, year, ref, loc)
		return daySpan{first: first, days: days, lo: m[0], hi: m[1]}, true
	}

	return daySpan{}, false
}

func optionalYear(clause string, m []int, group int) int {
	lo, hi := m[2*group], m[2*group+1]
	if lo < 0 {
		return 0
	}
	year, _ := strconv.Atoi(clause[lo:hi])
	return year
}

// monthSpan resolves a month (optionally yearless) to its first day and
// length. A yearless month that has fully passed rolls to the next year.
func monthSpan(month time.Month, year int, ref time.Time, loc *time.Location) (time.Time, int) {
	refDay := timeutil.StartOfDay(ref, loc)
	hasYear := year != 0
	if !hasYear {
		year = refDay.Year()
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	days := daysInMonth(year, month)
	last := time.Date(year, month, days, 0, 0, 0, 0, loc)

	if !hasYear && last.Before(refDay) {
		year++
		first = time.Date(year, month, 1, 0, 0, 0, 0, loc)
		days = daysInMonth(year, month)
	}
	return first, days
}

func weekSpan(ordinal string, month time.Month, year int, ref time.Time, loc *time.Location, lo, hi int) (daySpan, bool) {
	first, days := monthSpan(month, year, ref, loc)

	startDay := 1
	switch strings.ToLower(ordinal) {
	case "first", "1st":
		startDay = 1
	case "second", "2nd":
		startDay = 8
	case "third", "3rd":
		startDay = 15
	case "fourth", "4th":
		startDay = 22
	case "last":
		startDay = days - 6
	default:
		return daySpan{}, false
	}

	length := 7
	if startDay+length-1 > days {
		length = days - startDay + 1
	}
	return daySpan{
		first: timeutil.AddDays(first, loc, startDay-1),
		days:  length,
		lo:    lo,
		hi:    hi,
	}, true
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

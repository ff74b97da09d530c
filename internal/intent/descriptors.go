package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"spike_backend/internal/timeutil"
)

// descriptorKind tags the variants of a parsed day descriptor.
type descriptorKind int

const (
	descWeekday descriptorKind = iota
	descRelative
	descYMD
	descSlash
	descMonthDay
)

// dateDescriptor is a tagged variant of the day forms the parser recognises.
// Exactly the fields for its kind are populated.
type dateDescriptor struct {
	kind descriptorKind

	weekday time.Weekday
	next    bool

	tomorrow bool

	year  int
	month time.Month
	day   int
	// hasYear is false for slash and month-name dates written without a year.
	hasYear bool

	// span of the matched text inside the clause, for stripping.
	lo, hi int
}

var (
	ymdRe      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashRe    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	monthDayRe = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s*(\d{4}))?\b`)
	relativeRe = regexp.MustCompile(`(?i)\b(today|tomorrow)\b`)
	weekdayRe  = regexp.MustCompile(`(?i)\b(?:(next|this)\s+(?:week\s+)?)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tues?|weds?|thur?s?|fri|sat|sun)\b`)
)

var monthByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// findDayDescriptor locates the first recognisable day form in the clause.
// Explicit dates are checked before weekday words so "Wednesday March 4"
// resolves to the calendar date.
func findDayDescriptor(clause string) (dateDescriptor, bool) {
	if m := ymdRe.FindStringSubmatchIndex(clause); m != nil {
		year, _ := strconv.Atoi(clause[m[2]:m[3]])
		month, _ := strconv.Atoi(clause[m[4]:m[5]])
		day, _ := strconv.Atoi(clause[m[6]:m[7]])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return dateDescriptor{kind: descYMD, year: year, month: time.Month(month), day: day, hasYear: true, lo: m[0], hi: m[1]}, true
		}
	}

	if m := monthDayRe.FindStringSubmatchIndex(clause); m != nil {
		month := monthByName[strings.ToLower(clause[m[2]:m[3]])]
		day, _ := strconv.Atoi(clause[m[4]:m[5]])
		d := dateDescriptor{kind: descMonthDay, month: month, day: day, lo: m[0], hi: m[1]}
		if m[6] >= 0 {
			d.year, _ = strconv.Atoi(clause[m[6]:m[7]])
			d.hasYear = true
		}
		if day >= 1 && day <= 31 {
			return d, true
		}
	}

	if m := slashRe.FindStringSubmatchIndex(clause); m != nil {
		month, _ := strconv.Atoi(clause[m[2]:m[3]])
		day, _ := strconv.Atoi(clause[m[4]:m[5]])
		d := dateDescriptor{kind: descSlash, month: time.Month(month), day: day, lo: m[0], hi: m[1]}
		if m[6] >= 0 {
			year, _ := strconv.Atoi(clause[m[6]:m[7]])
			if year < 100 {
				year += 2000
			}
			d.year = year
			d.hasYear = true
		}
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return d, true
		}
	}

	if m := relativeRe.FindStringSubmatchIndex(clause); m != nil {
		word := strings.ToLower(clause[m[2]:m[3]])
		return dateDescriptor{kind: descRelative, tomorrow: word == "tomorrow", lo: m[0], hi: m[1]}, true
	}

	if m := weekdayRe.FindStringSubmatchIndex(clause); m != nil {
		abbr := timeutil.NormalizeWeekdayAbbr(clause[m[4]:m[5]])
		wd, ok := timeutil.WeekdayFromAbbr(abbr)
		if ok {
			d := dateDescriptor{kind: descWeekday, weekday: wd, lo: m[0], hi: m[1]}
			if m[2] >= 0 && strings.EqualFold(clause[m[2]:m[3]], "next") {
				d.next = true
			}
			return d, true
		}
	}

	return dateDescriptor{}, false
}

// resolve anchors the descriptor against the reference time in loc and
// returns local midnight of the resolved day.
func (d dateDescriptor) resolve(ref time.Time, loc *time.Location) (time.Time, bool) {
	refDay := timeutil.StartOfDay(ref, loc)

	switch d.kind {
	case descWeekday:
		day := timeutil.NextWeekday(ref, loc, d.weekday)
		// "next <weekday>" pushes one further week out. When the reference
		// already falls on the weekday this lands 14 days ahead; that is the
		// documented behavior, not an accident.
		if d.next {
			day = timeutil.AddDays(day, loc, 7)
		}
		return day, true

	case descRelative:
		if d.tomorrow {
			return timeutil.AddDays(refDay, loc, 1), true
		}
		return refDay, true

	case descYMD:
		return validDate(d.year, d.month, d.day, loc)

	case descSlash, descMonthDay:
		year := d.year
		if !d.hasYear {
			year = refDay.Year()
		}
		day, ok := validDate(year, d.month, d.day, loc)
		if !ok {
			return time.Time{}, false
		}
		// A yearless date already in the past rolls to the next year.
		if !d.hasYear && day.Before(refDay) {
			day, ok = validDate(year+1, d.month, d.day, loc)
		}
		return day, ok
	}

	return time.Time{}, false
}

// validDate rejects normalized overflow like February 31.
func validDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

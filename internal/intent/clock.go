package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// daypart is a named time-of-day window with default hours and the default
// meridiem it lends to bare clock tokens in the same clause.
type daypart struct {
	name      string
	startHour int
	startMin  int
	endHour   int
	endMin    int
	morning   bool
}

// Ordered longest-phrase-first so "late afternoon" wins over "afternoon".
var dayparts = []daypart{
	{name: "early morning", startHour: 7, endHour: 9, morning: true},
	{name: "late morning", startHour: 10, endHour: 12, morning: true},
	{name: "late afternoon", startHour: 15, endHour: 17},
	{name: "morning", startHour: 9, endHour: 12, morning: true},
	{name: "noon", startHour: 12, endHour: 13},
	{name: "lunch", startHour: 12, endHour: 13},
	{name: "afternoon", startHour: 13, endHour: 17},
	{name: "evening", startHour: 17, endHour: 20},
	{name: "night", startHour: 19, endHour: 21},
}

func findDaypart(clause string) (daypart, bool) {
	lower := strings.ToLower(clause)
	for _, dp := range dayparts {
		if idx := strings.Index(lower, dp.name); idx >= 0 {
			before := idx == 0 || !isWordChar(lower[idx-1])
			afterIdx := idx + len(dp.name)
			after := afterIdx >= len(lower) || !isWordChar(lower[afterIdx])
			if before && after {
				return dp, true
			}
		}
	}
	return daypart{}, false
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// timeRangeRe matches "<t1> (-|to|and|until) <t2>" with optional minutes and meridiem.
var timeRangeRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?\s*(?:-|–|—|to|until|and)\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?`)

// clockRange is a wall-clock start/end pair before day anchoring.
type clockRange struct {
	startHour, startMin int
	endHour, endMin     int
}

// findTimeRange extracts a clock range from the clause. At least one token
// must carry a meridiem, or a daypart must supply the default, otherwise the
// range is rejected as too ambiguous.
func findTimeRange(clause string, dp *daypart) (clockRange, bool) {
	m := timeRangeRe.FindStringSubmatch(clause)
	if m == nil {
		return clockRange{}, false
	}

	startHour, startMin := atoiPair(m[1], m[2])
	endHour, endMin := atoiPair(m[4], m[5])
	startMer := normalizeMeridiem(m[3])
	endMer := normalizeMeridiem(m[6])

	if startHour > 23 || endHour > 23 || startMin > 59 || endMin > 59 {
		return clockRange{}, false
	}

	if startMer == "" && endMer == "" && dp == nil {
		return clockRange{}, false
	}

	defaultMer := ""
	if dp != nil {
		defaultMer = "pm"
		if dp.morning {
			defaultMer = "am"
		}
	}
	// A bare token borrows the other token's meridiem before the daypart default.
	if startMer == "" {
		startMer = firstNonEmpty(endMer, defaultMer)
	}
	if endMer == "" {
		endMer = firstNonEmpty(startMer, defaultMer)
	}

	r := clockRange{
		startHour: applyMeridiem(startHour, startMer),
		startMin:  startMin,
		endHour:   applyMeridiem(endHour, endMer),
		endMin:    endMin,
	}
	return r, true
}

func atoiPair(hour, min string) (int, int) {
	h, _ := strconv.Atoi(hour)
	m := 0
	if min != "" {
		m, _ = strconv.Atoi(min)
	}
	return h, m
}

func normalizeMeridiem(s string) string {
	switch strings.ToLower(strings.ReplaceAll(s, ".", "")) {
	case "am":
		return "am"
	case "pm":
		return "pm"
	}
	return ""
}

func applyMeridiem(hour int, mer string) int {
	switch mer {
	case "pm":
		if hour < 12 {
			return hour + 12
		}
	case "am":
		if hour == 12 {
			return 0
		}
	}
	return hour
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

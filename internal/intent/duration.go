package intent

import (
	"regexp"
	"strconv"
	"strings"
)

var durationRe = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(minutes?|mins?|min|hours?|hrs?|hr)\b`)

var inPersonRe = regexp.MustCompile(`(?i)\b(?:in[\s-]person|onsite)\b`)

// detectDuration returns the first stated duration in minutes, or def.
func detectDuration(text string, def int) int {
	m := durationRe.FindStringSubmatch(text)
	if m == nil {
		return def
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 999 {
		return def
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "h") {
		n *= 60
	}
	return n
}

func detectMeetingType(text string) string {
	if inPersonRe.MatchString(text) {
		return MeetingInPerson
	}
	return MeetingOnline
}

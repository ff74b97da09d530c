package intent

import (
	"regexp"

	"spike_backend/internal/timeutil"
)

// ianaTimezoneRe matches an explicit "timezone: Area/City" declaration.
var ianaTimezoneRe = regexp.MustCompile(`(?i)\btime\s?zone\s*[:=]\s*([A-Za-z_]+(?:/[A-Za-z_+\-0-9]+)+)`)

// usAbbrevRe matches the closed set of common zone abbreviations.
var usAbbrevRe = regexp.MustCompile(`\b(PST|PDT|MST|MDT|CST|CDT|EST|EDT|UTC|GMT)\b`)

var abbrevToIANA = map[string]string{
	"PST": "America/Los_Angeles",
	"PDT": "America/Los_Angeles",
	"MST": "America/Denver",
	"MDT": "America/Denver",
	"CST": "America/Chicago",
	"CDT": "America/Chicago",
	"EST": "America/New_York",
	"EDT": "America/New_York",
	"UTC": "UTC",
	"GMT": "UTC",
}

// detectTimezone returns the client's IANA timezone, or "" when the text
// names none. Invalid IANA names are treated as absent.
func detectTimezone(text string) string {
	if m := ianaTimezoneRe.FindStringSubmatch(text); m != nil {
		if timeutil.IsValidTimezone(m[1]) {
			return m[1]
		}
	}
	if m := usAbbrevRe.FindStringSubmatch(text); m != nil {
		return abbrevToIANA[m[1]]
	}
	return ""
}

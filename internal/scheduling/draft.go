package scheduling

import (
	"fmt"
	"regexp"
	"strings"

	"spike_backend/internal/slots"
	"spike_backend/internal/timeutil"
)

var (
	greetingRe = regexp.MustCompile(`(?i)^(hi|hello)\b[^\n]*`)
	signOffRe  = regexp.MustCompile(`(?im)^(best regards|best|regards)[,!]?[ \t]*$`)
)

// slotLabel renders one option in the advisor's local clock with the client's
// timezone annotated when it is known and differs.
func slotLabel(s slots.Slot, clientTimezone string) string {
	label := s.StartHostLocal.Format("Mon, Jan 2 at 3:04 PM") + " " + s.StartHostLocal.Format("MST")
	if clientTimezone == "" || clientTimezone == s.HostTimezone {
		return label
	}
	loc, ok := timeutil.LoadLocation(clientTimezone)
	if !ok {
		return label
	}
	clientLocal := s.StartUTC.In(loc)
	return fmt.Sprintf("%s (%s %s your time)", label, clientLocal.Format("3:04 PM"), clientLocal.Format("MST"))
}

// templateDraft is the deterministic reply body: numbered options, one per
// line, no greeting and no sign-off. The LLM drafter replaces this when it
// succeeds.
func templateDraft(options []string, durationMinutes, searchDays int) string {
	if len(options) == 0 {
		return fmt.Sprintf(
			"Thanks for reaching out. I could not find an open %d-minute slot in the next %d days. "+
				"Could you share a few more times that work for you?",
			durationMinutes, searchDays)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for reaching out. Here are some %d-minute times that work:\n\n", durationMinutes)
	for i, opt := range options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt)
	}
	b.WriteString("\nLet me know which option works best for you.")
	return b.String()
}

// linkBlock is the fixed paragraph appended once a link token exists.
func linkBlock(url string) string {
	return "\n\nYou can also pick a time directly from my live availability:\n" + url
}

// injectGreeting puts "Hi <name>," on top. An existing leading greeting line
// is replaced rather than stacked.
func injectGreeting(draft, name string) string {
	greeting := "Hi " + name + ","
	trimmed := strings.TrimLeft(draft, " \t\n")
	if loc := greetingRe.FindStringIndex(trimmed); loc != nil && loc[0] == 0 {
		return greeting + trimmed[loc[1]:]
	}
	return greeting + "\n\n" + trimmed
}

// injectSignOff closes with "Best regards,\n<advisor>". An existing sign-off
// line and the name line under it are replaced.
func injectSignOff(draft, advisorDisplay string) string {
	signOff := "Best regards,\n" + advisorDisplay

	if loc := signOffRe.FindStringIndex(draft); loc != nil {
		// Drop the matched line and at most one following non-empty name line.
		rest := draft[loc[1]:]
		rest = strings.TrimPrefix(rest, "\r")
		if cut, ok := strings.CutPrefix(rest, "\n"); ok {
			if idx := strings.IndexByte(cut, '\n'); idx >= 0 && strings.TrimSpace(cut[:idx]) != "" {
				rest = cut[idx:]
			} else if strings.TrimSpace(cut) != "" {
				rest = ""
			} else {
				rest = "\n" + cut
			}
		}
		return strings.TrimRight(draft[:loc[0]], " \t\n") + "\n\n" + signOff + rest
	}
	return strings.TrimRight(draft, " \t\n") + "\n\n" + signOff
}

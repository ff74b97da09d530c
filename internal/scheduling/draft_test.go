package scheduling

import (
	"strings"
	"testing"
	"time"

	"spike_backend/internal/slots"
)

func TestTemplateDraftNumbersOptions(t *testing.T) {
	draft := templateDraft([]string{"Tue, Mar 3 at 9:30 AM PST", "Tue, Mar 3 at 10:00 AM PST"}, 30, 14)
	if !strings.Contains(draft, "1. Tue, Mar 3 at 9:30 AM PST") {
		t.Fatalf("first option not numbered:\n%s", draft)
	}
	if !strings.Contains(draft, "2. Tue, Mar 3 at 10:00 AM PST") {
		t.Fatalf("second option not numbered:\n%s", draft)
	}
	if strings.Contains(draft, "Hi ") || strings.Contains(draft, "Best regards") {
		t.Fatalf("template must carry no greeting or sign-off:\n%s", draft)
	}
}

func TestTemplateDraftNoOptions(t *testing.T) {
	draft := templateDraft(nil, 45, 7)
	if !strings.Contains(draft, "45-minute") || !strings.Contains(draft, "7 days") {
		t.Fatalf("empty draft should name duration and horizon:\n%s", draft)
	}
}

func TestSlotLabelAnnotatesClientTimezone(t *testing.T) {
	pt, _ := time.LoadLocation("America/Los_Angeles")
	start := time.Date(2026, 3, 3, 9, 30, 0, 0, pt)
	s := slots.Slot{
		StartUTC:       start.UTC(),
		EndUTC:         start.Add(30 * time.Minute).UTC(),
		StartHostLocal: start,
		EndHostLocal:   start.Add(30 * time.Minute),
		HostTimezone:   "America/Los_Angeles",
	}

	label := slotLabel(s, "America/New_York")
	if !strings.Contains(label, "9:30 AM PST") {
		t.Fatalf("host clock missing: %q", label)
	}
	if !strings.Contains(label, "12:30 PM EST your time") {
		t.Fatalf("client annotation missing: %q", label)
	}

	// Same timezone drops the annotation.
	if l := slotLabel(s, "America/Los_Angeles"); strings.Contains(l, "your time") {
		t.Fatalf("no annotation expected for same tz: %q", l)
	}
	// Unknown timezone falls back to the plain label.
	if l := slotLabel(s, "Neverwhere/Nowhere"); strings.Contains(l, "your time") {
		t.Fatalf("no annotation expected for bad tz: %q", l)
	}
}

func TestInjectGreeting(t *testing.T) {
	got := injectGreeting("Thanks for reaching out.", "Dana")
	if !strings.HasPrefix(got, "Hi Dana,\n\nThanks") {
		t.Fatalf("greeting not prepended:\n%s", got)
	}

	got = injectGreeting("Hello team, great to hear from you!\nMore text.", "Dana")
	if !strings.HasPrefix(got, "Hi Dana,\nMore text.") {
		t.Fatalf("existing greeting line not replaced:\n%s", got)
	}
	if strings.Contains(got, "Hello team") {
		t.Fatalf("old greeting survived:\n%s", got)
	}
}

func TestInjectSignOff(t *testing.T) {
	got := injectSignOff("Body text.", "Jordan Reyes")
	if !strings.HasSuffix(got, "Body text.\n\nBest regards,\nJordan Reyes") {
		t.Fatalf("sign-off not appended:\n%s", got)
	}

	got = injectSignOff("Body text.\n\nRegards,\nThe Model\n", "Jordan Reyes")
	if strings.Contains(got, "The Model") || strings.Contains(got, "Regards,\nThe") {
		t.Fatalf("old sign-off and name survived:\n%s", got)
	}
	if !strings.Contains(got, "Best regards,\nJordan Reyes") {
		t.Fatalf("replacement sign-off missing:\n%s", got)
	}
}

func TestNormalizeFromEmail(t *testing.T) {
	cases := map[string]string{
		"Dana Lee <Dana@Example.com>": "dana@example.com",
		"dana@example.com":            "dana@example.com",
		"  dana@example.com  ":        "dana@example.com",
		"":                            "",
		"not an address":              "",
	}
	for in, want := range cases {
		if got := normalizeFromEmail(in); got != want {
			t.Fatalf("normalizeFromEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDisplayNameFromEmail(t *testing.T) {
	if got := displayNameFromEmail("dana.lee@example.com"); got != "Dana Lee" {
		t.Fatalf("got %q", got)
	}
	if got := firstName("Dana Lee"); got != "Dana" {
		t.Fatalf("got %q", got)
	}
	if got := firstName(""); got != "there" {
		t.Fatalf("got %q", got)
	}
}

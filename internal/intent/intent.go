// Package intent extracts structured scheduling intent from unstructured
// email text. The extractor is a pure function: given the same inputs and
// reference time it always yields the same record, and it never fails on
// malformed input — it simply returns what it could parse.
package intent

import (
	"sort"
	"strings"
	"time"

	"spike_backend/internal/timeutil"
)

// Meeting types.
const (
	MeetingOnline   = "online"
	MeetingInPerson = "in_person"
)

// Record is the immutable result of extraction.
type Record struct {
	ClientEmail      string              `json:"clientEmail"`
	MeetingType      string              `json:"meetingType"`
	DurationMinutes  int                 `json:"durationMinutes"`
	RequestedWindows []timeutil.Interval `json:"requestedWindows"`
	ClientTimezone   string              `json:"clientTimezone,omitempty"`
}

// Options tunes extraction. Zero values select the documented defaults.
type Options struct {
	// ReferenceNow anchors relative dates ("tomorrow", "next Wednesday").
	// Zero means time.Now().
	ReferenceNow time.Time
	// FallbackTimezone is used when the text names no timezone. Empty means UTC.
	FallbackTimezone string
	// DefaultDurationMinutes is used when the text names no duration. Zero means 30.
	DefaultDurationMinutes int
}

// Extract runs the full pipeline over subject and body.
func Extract(subject, body, fromEmail string, opts Options) Record {
	if opts.ReferenceNow.IsZero() {
		opts.ReferenceNow = time.Now()
	}
	if opts.FallbackTimezone == "" {
		opts.FallbackTimezone = "UTC"
	}
	if opts.DefaultDurationMinutes <= 0 {
		opts.DefaultDurationMinutes = 30
	}

	text := subject + "\n" + body

	clientTZ := detectTimezone(text)

	workingTZ := clientTZ
	if workingTZ == "" {
		workingTZ = opts.FallbackTimezone
	}
	loc, ok := timeutil.LoadLocation(workingTZ)
	if !ok {
		loc = time.UTC
	}

	rec := Record{
		ClientEmail:     strings.ToLower(strings.TrimSpace(fromEmail)),
		MeetingType:     detectMeetingType(text),
		DurationMinutes: detectDuration(text, opts.DefaultDurationMinutes),
		ClientTimezone:  clientTZ,
	}

	rec.RequestedWindows = extractWindows(text, opts.ReferenceNow, loc)
	return rec
}

// extractWindows walks the fallback ladder: explicit ISO pairs win, then
// natural-language points, then broad month/week spans.
func extractWindows(text string, ref time.Time, loc *time.Location) []timeutil.Interval {
	if windows := isoWindows(text); len(windows) > 0 {
		return dedupeSort(windows)
	}
	if windows := pointWindows(text, ref, loc); len(windows) > 0 {
		return dedupeSort(windows)
	}
	if windows := spanWindows(text, ref, loc); len(windows) > 0 {
		return dedupeSort(windows)
	}
	return nil
}

func dedupeSort(windows []timeutil.Interval) []timeutil.Interval {
	seen := make(map[string]struct{}, len(windows))
	out := make([]timeutil.Interval, 0, len(windows))
	for _, w := range windows {
		key := timeutil.FormatISO(w.Start) + "|" + timeutil.FormatISO(w.End)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

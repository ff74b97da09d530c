// Package calendar abstracts the advisor's calendar backend. The scheduler
// needs busy intervals; the availability view additionally needs the
// requesting client's own events.
package calendar

import (
	"context"
	"time"

	"spike_backend/internal/timeutil"
)

// Event is one calendar entry in the queried window.
type Event struct {
	Start     time.Time
	End       time.Time
	Title     string
	Status    string // "accepted" or "pending"
	Attendees []string
}

// Query bounds one lookup. CalendarID defaults to the provider's primary
// calendar when empty.
type Query struct {
	CalendarID string
	Start      time.Time
	End        time.Time
}

// Provider is implemented by the Google client and the mock.
type Provider interface {
	BusyIntervals(ctx context.Context, q Query) ([]timeutil.Interval, error)
	Events(ctx context.Context, q Query) ([]Event, error)
}

// MockProvider serves fixed data. The webhook path builds one per request
// when the deployment runs without a real calendar.
type MockProvider struct {
	Busy []timeutil.Interval
	Evts []Event
}

func (m *MockProvider) BusyIntervals(_ context.Context, q Query) ([]timeutil.Interval, error) {
	window := timeutil.Interval{Start: q.Start.UTC(), End: q.End.UTC()}
	var out []timeutil.Interval
	for _, b := range m.Busy {
		if b.Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MockProvider) Events(_ context.Context, q Query) ([]Event, error) {
	window := timeutil.Interval{Start: q.Start.UTC(), End: q.End.UTC()}
	var out []Event
	for _, e := range m.Evts {
		iv := timeutil.Interval{Start: e.Start.UTC(), End: e.End.UTC()}
		if iv.Overlaps(window) {
			out = append(out, e)
		}
	}
	return out, nil
}

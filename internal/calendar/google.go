package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"spike_backend/internal/timeutil"
)

const (
	freeBusyURL  = "https://www.googleapis.com/calendar/v3/freeBusy"
	eventsURLFmt = "https://www.googleapis.com/calendar/v3/calendars/%s/events"

	// Google rejects free/busy queries much wider than three months, so long
	// windows are chunked.
	maxChunk = 85 * 24 * time.Hour

	callTimeout = 20 * time.Second
)

// GoogleProvider talks to the Google Calendar REST API with an OAuth2 token
// source (either the deployment's refresh token or a per-advisor connection).
type GoogleProvider struct {
	http *http.Client
}

func NewGoogleProvider(ctx context.Context, ts oauth2.TokenSource) *GoogleProvider {
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = callTimeout
	return &GoogleProvider{http: client}
}

type freeBusyRequest struct {
	TimeMin string               `json:"timeMin"`
	TimeMax string               `json:"timeMax"`
	Items   []map[string]string  `json:"items"`
}

type freeBusyResponse struct {
	Calendars map[string]struct {
		Busy []struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"busy"`
	} `json:"calendars"`
}

func (g *GoogleProvider) BusyIntervals(ctx context.Context, q Query) ([]timeutil.Interval, error) {
	calID := q.CalendarID
	if calID == "" {
		calID = "primary"
	}

	var out []timeutil.Interval
	for chunkStart := q.Start; chunkStart.Before(q.End); chunkStart = chunkStart.Add(maxChunk) {
		chunkEnd := chunkStart.Add(maxChunk)
		if chunkEnd.After(q.End) {
			chunkEnd = q.End
		}

		body, err := json.Marshal(freeBusyRequest{
			TimeMin: timeutil.FormatISO(chunkStart),
			TimeMax: timeutil.FormatISO(chunkEnd),
			Items:   []map[string]string{{"id": calID}},
		})
		if err != nil {
			return nil, err
		}

		var resp freeBusyResponse
		if err := g.postJSON(ctx, freeBusyURL, body, &resp); err != nil {
			return nil, fmt.Errorf("freebusy query failed: %w", err)
		}

		for _, b := range resp.Calendars[calID].Busy {
			start, err1 := timeutil.ParseISO(b.Start)
			end, err2 := timeutil.ParseISO(b.End)
			if err1 != nil || err2 != nil {
				continue
			}
			if iv, err := timeutil.NewInterval(start, end); err == nil {
				out = append(out, iv)
			}
		}
	}
	return out, nil
}

type eventsResponse struct {
	Items []struct {
		Summary string `json:"summary"`
		Status  string `json:"status"`
		Start   struct {
			DateTime string `json:"dateTime"`
		} `json:"start"`
		End struct {
			DateTime string `json:"dateTime"`
		} `json:"end"`
		Attendees []struct {
			Email          string `json:"email"`
			ResponseStatus string `json:"responseStatus"`
		} `json:"attendees"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

func (g *GoogleProvider) Events(ctx context.Context, q Query) ([]Event, error) {
	calID := q.CalendarID
	if calID == "" {
		calID = "primary"
	}

	var out []Event
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("timeMin", timeutil.FormatISO(q.Start))
		params.Set("timeMax", timeutil.FormatISO(q.End))
		params.Set("singleEvents", "true")
		params.Set("orderBy", "startTime")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		endpoint := fmt.Sprintf(eventsURLFmt, url.PathEscape(calID)) + "?" + params.Encode()
		var resp eventsResponse
		if err := g.getJSON(ctx, endpoint, &resp); err != nil {
			return nil, fmt.Errorf("events query failed: %w", err)
		}

		for _, it := range resp.Items {
			if it.Status == "cancelled" || it.Start.DateTime == "" || it.End.DateTime == "" {
				continue
			}
			start, err1 := timeutil.ParseISO(it.Start.DateTime)
			end, err2 := timeutil.ParseISO(it.End.DateTime)
			if err1 != nil || err2 != nil {
				continue
			}
			ev := Event{
				Start:  start.UTC(),
				End:    end.UTC(),
				Title:  it.Summary,
				Status: eventState(it.Status),
			}
			for _, a := range it.Attendees {
				ev.Attendees = append(ev.Attendees, a.Email)
			}
			out = append(out, ev)
		}

		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

func eventState(status string) string {
	if status == "confirmed" {
		return "accepted"
	}
	return "pending"
}

func (g *GoogleProvider) postJSON(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g *GoogleProvider) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return g.do(req, out)
}

func (g *GoogleProvider) do(req *http.Request, out any) error {
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("calendar api status %d: %s", resp.StatusCode, payload)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package portal

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"spike_backend/internal/calendar"
	"spike_backend/internal/grid"
	"spike_backend/internal/links"
	"spike_backend/internal/profiles"
	"spike_backend/internal/timeutil"
	"spike_backend/platform/apperr"
)

const (
	minWeekOffset = -8
	maxWeekOffset = 52
)

// linkContext is the resolved identity behind an availability token,
// regardless of which token format carried it.
type linkContext struct {
	AdvisorID         string
	ClientEmail       string
	ClientDisplayName string
	ClientReference   string
	ClientTimezone    string
	DurationMinutes   int
}

// handleAvailability renders the calendar grid for a token-gated client.
func (m *Module) handleAvailability(c *gin.Context) {
	link, ok := m.resolveToken(c.Request.Context(), c.Query("t"))
	if !ok {
		m.renderForbidden(c)
		return
	}
	if ref := c.Query("for"); ref != "" {
		link.ClientReference = ref
	}

	weekOffset := clampWeekOffset(c.Query("weekOffset"))

	advisor, err := m.profiles.Repo().GetAdvisor(c.Request.Context(), link.AdvisorID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			m.renderForbidden(c)
			return
		}
		c.String(http.StatusInternalServerError, "availability is temporarily unavailable")
		return
	}

	var client *profiles.Client
	if link.ClientEmail != "" {
		if found, err := m.profiles.Repo().GetClientByEmail(c.Request.Context(), advisor.ID, link.ClientEmail); err == nil {
			client = &found
		}
	}
	advisingDays := m.profiles.EffectiveAdvisingDays(c.Request.Context(), advisor, client)

	loc, _ := timeutil.LoadLocation(advisor.Timezone)
	weekStart := startOfWeek(time.Now(), loc)
	weekStart = timeutil.AddDays(weekStart, loc, weekOffset*7)
	weekEnd := timeutil.AddDays(weekStart, loc, 7)

	busy, meetings, nonClient, err := m.calendarData(c.Request.Context(), advisor, link, weekStart, weekEnd)
	if err != nil {
		m.log.CalendarError("availability_view", err)
		c.String(http.StatusInternalServerError, "availability is temporarily unavailable")
		return
	}

	g := grid.Build(grid.Params{
		BusyUTC:                  busy,
		ClientMeetingsUTC:        meetings,
		NonClientBusyUTC:         nonClient,
		HostTimezone:             advisor.Timezone,
		AdvisingWeekdays:         advisingDays,
		SearchStart:              weekStart.UTC(),
		SearchEnd:                weekEnd.UTC(),
		WorkdayStartHour:         advisor.WorkdayStartHour,
		WorkdayEndHour:           advisor.WorkdayEndHour,
		SlotMinutes:              m.cfg.SlotMinutes,
		RequestedDurationMinutes: link.DurationMinutes,
		MaxCells:                 m.cfg.MaxGridCells,
	})
	plan := grid.MergePlan(&g)

	view := buildAvailabilityView(&g, plan, advisor, link, c.Query("t"), weekStart, weekOffset)
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := availabilityTmpl.Execute(c.Writer, view); err != nil {
		m.log.Error("availability render failed", "error", err)
	}
}

// resolveToken accepts both the short store-backed token and the legacy
// signed token.
func (m *Module) resolveToken(ctx context.Context, token string) (linkContext, bool) {
	if token == "" {
		return linkContext{}, false
	}

	rec, err := m.links.Get(ctx, token, time.Now())
	if err == nil {
		return linkContext{
			AdvisorID:         rec.AdvisorID,
			ClientEmail:       rec.ClientEmail,
			ClientDisplayName: rec.ClientDisplayName,
			ClientReference:   rec.ClientReference,
			ClientTimezone:    rec.ClientTimezone,
			DurationMinutes:   rec.DurationMinutes,
		}, true
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return linkContext{}, false
	}

	key, kerr := m.signingKey(ctx)
	if kerr != nil {
		return linkContext{}, false
	}
	payload, ok := links.VerifyLegacy(token, key, time.Now())
	if !ok {
		return linkContext{}, false
	}
	return linkContext{
		AdvisorID:       payload.AdvisorID,
		ClientTimezone:  payload.ClientTimezone,
		DurationMinutes: payload.DurationMinutes,
	}, true
}

func (m *Module) signingKey(ctx context.Context) ([]byte, error) {
	bundle, err := m.secrets.Get(ctx, m.cfg.SigningKeyARN)
	if err != nil {
		return nil, err
	}
	return []byte(bundle["signingKey"]), nil
}

// calendarData fetches busy intervals and the client's own meetings in
// parallel, then splits non-client events into conflict intervals.
func (m *Module) calendarData(ctx context.Context, advisor profiles.Advisor, link linkContext, start, end time.Time) ([]timeutil.Interval, []grid.Meeting, []timeutil.Interval, error) {
	if m.calendar == nil {
		return nil, nil, nil, nil
	}

	if m.cfg.CalendarLookupLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.CalendarLookupLimit)
		defer cancel()
	}

	query := calendar.Query{CalendarID: advisor.CalendarID, Start: start.UTC(), End: end.UTC()}

	var busy []timeutil.Interval
	var events []calendar.Event
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		busy, err = m.calendar.BusyIntervals(gctx, query)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = m.calendar.Events(gctx, query)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	var meetings []grid.Meeting
	var nonClient []timeutil.Interval
	for _, ev := range events {
		if eventHasAttendee(ev, link.ClientEmail) {
			meetings = append(meetings, grid.Meeting{
				Start:  ev.Start,
				End:    ev.End,
				Title:  ev.Title,
				Status: ev.Status,
			})
			continue
		}
		if iv, err := timeutil.NewInterval(ev.Start, ev.End); err == nil {
			nonClient = append(nonClient, iv)
		}
	}
	return busy, meetings, nonClient, nil
}

func eventHasAttendee(ev calendar.Event, email string) bool {
	if email == "" {
		return false
	}
	for _, a := range ev.Attendees {
		if strings.EqualFold(a, email) {
			return true
		}
	}
	return false
}

func clampWeekOffset(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if n < minWeekOffset {
		return minWeekOffset
	}
	if n > maxWeekOffset {
		return maxWeekOffset
	}
	return n
}

// startOfWeek returns the local midnight of the Monday of t's week.
func startOfWeek(t time.Time, loc *time.Location) time.Time {
	day := timeutil.StartOfDay(t, loc)
	delta := (int(day.Weekday()) + 6) % 7 // Monday-based
	return timeutil.AddDays(day, loc, -delta)
}

// Package scheduling is the request orchestrator: it turns one inbound email
// into an intent, candidate slots, a drafted reply and an availability link,
// and leaves a metadata-only trace behind.
package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"spike_backend/internal/calendar"
	"spike_backend/internal/config"
	"spike_backend/internal/intent"
	"spike_backend/internal/links"
	"spike_backend/internal/llm"
	"spike_backend/internal/profiles"
	"spike_backend/internal/slots"
	"spike_backend/internal/timeutil"
	"spike_backend/internal/traces"
	"spike_backend/platform/apperr"
	"spike_backend/platform/logger"
	"spike_backend/platform/sanitize"
)

// Intent sources recorded in the trace.
const (
	IntentSourceParser      = "parser"
	IntentSourceLLM         = "llm"
	IntentSourceLLMOverride = "llm_override"
)

// Delivery statuses.
const (
	DeliveryLogged = "logged"
	DeliverySent   = "sent"
)

// Body sources.
const (
	bodySourceInline = "inline"
	bodySourceObject = "object_store"
	bodySourceEmpty  = "empty"
)

// Service runs the scheduling pipeline. It holds configuration and
// collaborators only; all state is request-scoped.
type Service struct {
	cfg    *config.Config
	collab Collaborators
	log    *logger.Logger
}

func NewService(cfg *config.Config, collab Collaborators, log *logger.Logger) *Service {
	return &Service{cfg: cfg, collab: collab, log: log}
}

// Process handles one inbound email end to end.
func (s *Service) Process(ctx context.Context, payload EmailPayload) (Outcome, error) {
	started := s.collab.now()
	out := Outcome{
		RequestID:  requestID(ctx),
		ResponseID: uuid.New().String(),
	}

	fromEmail := normalizeFromEmail(payload.FromEmail)
	if fromEmail == "" {
		return out, apperr.Validation("fromEmail is missing or malformed")
	}

	body, bodySource := s.resolveBody(ctx, payload)
	subject := sanitize.Text(payload.Subject)

	advisor, err := s.collab.Profiles.Advisor(ctx, s.cfg.AdvisorID)
	if err != nil {
		return out, apperr.Wrap(apperr.KindInternal, "advisor profile unavailable", err)
	}

	client, err := s.collab.Profiles.ClientByEmail(ctx, advisor.ID, fromEmail)
	if err != nil {
		return out, apperr.Wrap(apperr.KindInternal, "client lookup failed", err)
	}

	if client != nil && (client.AccessState == profiles.AccessBlocked || client.AccessState == profiles.AccessDeleted) {
		return s.denyAccess(ctx, out, advisor, client, fromEmail, subject, bodySource, started)
	}

	advisingDays := s.collab.Profiles.EffectiveAdvisingDays(ctx, advisor, client)

	now := s.collab.now()
	searchStart := now
	searchEnd := now.Add(time.Duration(s.cfg.SearchDays) * 24 * time.Hour)

	// Busy lookup and LLM intent are independent; run them together.
	var busy []timeutil.Interval
	var llmIntent *llm.IntentResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		busy, err = s.busyIntervals(gctx, payload, advisor, searchStart, searchEnd)
		return err
	})
	useLLMIntent := s.cfg.IntentExtractionMode == config.IntentModeLLMHybrid && s.collab.LLM != nil
	if useLLMIntent {
		g.Go(func() error {
			res, err := s.collab.LLM.ExtractIntent(gctx, subject, body, now)
			if err != nil {
				// Degraded, not fatal; the parser result stands alone.
				s.log.LLMFallback(traces.StageIntent, err)
				return nil
			}
			llmIntent = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.CalendarError("busy_lookup", err)
		s.writeTrace(ctx, out, advisor.ID, client, traces.CreateParams{
			Status: traces.StatusFailed, Stage: traces.StageCalendarLookup,
			BodySource: bodySource, LatencyMs: s.latencyMs(started),
		})
		return out, apperr.Wrap(apperr.KindInternal, "calendar lookup failed", err)
	}

	parsed := intent.Extract(subject, body, fromEmail, intent.Options{
		ReferenceNow:           now,
		FallbackTimezone:       s.cfg.HostTimezone,
		DefaultDurationMinutes: s.cfg.DefaultDurationMinutes,
	})
	rec, intentSource := mergeIntent(parsed, llmIntent, s.cfg.LLMConfidenceThreshold)
	out.IntentSource = intentSource

	if rec.DurationMinutes > s.cfg.MaxDurationMinutes {
		return out, apperr.Validation(fmt.Sprintf(
			"requested duration %d exceeds the %d minute limit",
			rec.DurationMinutes, s.cfg.MaxDurationMinutes))
	}

	suggestions := slots.Generate(slots.Params{
		BusyUTC:          busy,
		RequestedWindows: rec.RequestedWindows,
		HostTimezone:     advisor.Timezone,
		AdvisingWeekdays: advisingDays,
		SearchStart:      searchStart,
		SearchEnd:        searchEnd,
		WorkdayStartHour: advisor.WorkdayStartHour,
		WorkdayEndHour:   advisor.WorkdayEndHour,
		DurationMinutes:  rec.DurationMinutes,
		MaxSuggestions:   s.cfg.MaxSuggestions,
	})

	options := make([]string, len(suggestions))
	for i, sl := range suggestions {
		options[i] = slotLabel(sl, rec.ClientTimezone)
		out.Suggestions = append(out.Suggestions, Suggestion{
			StartUTC: timeutil.FormatISO(sl.StartUTC),
			EndUTC:   timeutil.FormatISO(sl.EndUTC),
			Label:    options[i],
		})
	}
	out.SuggestionCount = len(suggestions)

	draft, llmStatus := s.draftReply(ctx, rec, client, fromEmail, options)
	out.LLMStatus = llmStatus

	var linkTokenID *string
	if len(suggestions) > 0 {
		linkRec, err := s.allocateLink(ctx, advisor, client, fromEmail, rec, now)
		if err != nil {
			s.writeTrace(ctx, out, advisor.ID, client, traces.CreateParams{
				Status: traces.StatusFailed, Stage: "link_allocation",
				IntentSource: intentSource, LLMStatus: llmStatus, BodySource: bodySource,
				WindowCount: len(rec.RequestedWindows), SuggestionCount: len(suggestions),
				DurationMinutes: rec.DurationMinutes, LatencyMs: s.latencyMs(started),
			})
			return out, err
		}
		out.AvailabilityURL = s.cfg.LinkBaseURL + "/availability?t=" + linkRec.TokenID
		draft += linkBlock(out.AvailabilityURL)
		linkTokenID = &linkRec.TokenID
	}

	draft = injectGreeting(draft, s.greetingName(client, fromEmail))
	draft = injectSignOff(draft, advisor.DisplayName)
	out.Draft = draft

	out.DeliveryStatus = DeliveryLogged
	if s.cfg.ResponseMode == config.ResponseModeSend {
		if s.cfg.SenderEmail == "" {
			return out, apperr.Validation("SENDER_EMAIL is required when RESPONSE_MODE is send")
		}
		if s.collab.Mailer == nil {
			return out, apperr.Internal("mailer not configured")
		}
		replySubject := "Re: " + payload.Subject
		if payload.Subject == "" {
			replySubject = "Scheduling your meeting"
		}
		if err := s.collab.Mailer.Send(ctx, fromEmail, replySubject, draft); err != nil {
			s.writeTrace(ctx, out, advisor.ID, client, traces.CreateParams{
				Status: traces.StatusFailed, Stage: traces.StageSend,
				IntentSource: intentSource, LLMStatus: llmStatus, BodySource: bodySource,
				WindowCount: len(rec.RequestedWindows), SuggestionCount: len(suggestions),
				DurationMinutes: rec.DurationMinutes, LinkTokenID: linkTokenID,
				LinkTTLSeconds: int(s.cfg.LinkTTL.Seconds()), LatencyMs: s.latencyMs(started),
			})
			return out, apperr.Wrap(apperr.KindInternal, "reply delivery failed", err)
		}
		out.DeliveryStatus = DeliverySent
	}

	s.writeTrace(ctx, out, advisor.ID, client, traces.CreateParams{
		Status: traces.StatusOK, IntentSource: intentSource, LLMStatus: llmStatus,
		BodySource: bodySource, WindowCount: len(rec.RequestedWindows),
		SuggestionCount: len(suggestions), DurationMinutes: rec.DurationMinutes,
		LinkTokenID: linkTokenID, LinkTTLSeconds: int(s.cfg.LinkTTL.Seconds()),
		LatencyMs: s.latencyMs(started),
	})

	if client != nil {
		if err := s.collab.Profiles.RecordInteraction(ctx, advisor.ID, client.ID); err != nil {
			s.log.Warn("interaction counter update failed", "error", err)
		}
	}

	s.log.SchedulingOutcome(out.RequestID, traces.StatusOK, intentSource, len(suggestions), s.latencyMs(started))
	return out, nil
}

// denyAccess handles blocked and deleted clients: a denial note instead of
// suggestions, a denied trace, and a 200 so upstream mail hooks do not retry.
func (s *Service) denyAccess(ctx context.Context, out Outcome, advisor profiles.Advisor, client *profiles.Client, fromEmail, subject, bodySource string, started time.Time) (Outcome, error) {
	draft := "Thanks for reaching out. I am not able to schedule meetings over this channel right now. " +
		"Please contact the office directly."
	draft = injectGreeting(draft, s.greetingName(client, fromEmail))
	draft = injectSignOff(draft, advisor.DisplayName)

	out.AccessDenied = true
	out.AccessState = client.AccessState
	out.Draft = draft
	out.LLMStatus = traces.LLMStatusSkipped
	out.DeliveryStatus = DeliveryLogged

	if s.cfg.ResponseMode == config.ResponseModeSend && s.cfg.SenderEmail != "" && s.collab.Mailer != nil {
		replySubject := "Re: " + subject
		if subject == "" {
			replySubject = "Scheduling"
		}
		if err := s.collab.Mailer.Send(ctx, fromEmail, replySubject, draft); err != nil {
			s.log.Warn("denial delivery failed", "error", err)
		} else {
			out.DeliveryStatus = DeliverySent
		}
	}

	s.writeTrace(ctx, out, advisor.ID, client, traces.CreateParams{
		Status: traces.StatusDenied, BodySource: bodySource, LatencyMs: s.latencyMs(started),
	})
	s.log.SchedulingOutcome(out.RequestID, traces.StatusDenied, "", 0, s.latencyMs(started))
	return out, nil
}

// ProcessFeedback validates and applies feedback to an existing trace.
func (s *Service) ProcessFeedback(ctx context.Context, payload FeedbackPayload) (traces.Trace, error) {
	if !validFeedbackType(payload.FeedbackType) {
		return traces.Trace{}, apperr.Validation("unknown feedbackType: " + payload.FeedbackType)
	}
	if !validFeedbackReason(payload.FeedbackReason) {
		return traces.Trace{}, apperr.Validation("unknown feedbackReason: " + payload.FeedbackReason)
	}
	if !validFeedbackSource(payload.FeedbackSource) {
		return traces.Trace{}, apperr.Validation("unknown feedbackSource: " + payload.FeedbackSource)
	}

	return s.collab.Traces.ApplyFeedback(ctx, traces.FeedbackParams{
		RequestID:      payload.RequestID,
		ResponseID:     payload.ResponseID,
		FeedbackType:   payload.FeedbackType,
		FeedbackReason: payload.FeedbackReason,
		FeedbackSource: payload.FeedbackSource,
	})
}

func validFeedbackType(v string) bool {
	switch v {
	case "incorrect", "odd", "helpful", "other":
		return true
	}
	return false
}

func validFeedbackReason(v string) bool {
	switch v {
	case "availability_mismatch", "timezone_issue", "tone_quality", "latency", "other":
		return true
	}
	return false
}

func validFeedbackSource(v string) bool {
	switch v {
	case "client", "advisor", "system":
		return true
	}
	return false
}

// resolveBody prefers the inline body, then the parked raw message, then "".
func (s *Service) resolveBody(ctx context.Context, payload EmailPayload) (string, string) {
	if payload.Body != "" {
		return sanitize.Text(payload.Body), bodySourceInline
	}

	key := payload.RawLocation
	if key == "" {
		key = payload.SESMessageID
	}
	if key != "" && s.collab.RawMail != nil {
		text, err := s.collab.RawMail.FetchText(ctx, key)
		if err == nil && text != "" {
			return sanitize.Text(text), bodySourceObject
		}
		if err != nil {
			s.log.Warn("raw message fetch failed", "error", err)
		}
	}
	return "", bodySourceEmpty
}

// busyIntervals serves the payload's intervals in mock mode and queries the
// provider otherwise, bounded by the configured lookup timeout.
func (s *Service) busyIntervals(ctx context.Context, payload EmailPayload, advisor profiles.Advisor, start, end time.Time) ([]timeutil.Interval, error) {
	if s.cfg.CalendarMode == config.CalendarModeMock {
		mock := &calendar.MockProvider{Busy: payload.MockBusy}
		return mock.BusyIntervals(ctx, calendar.Query{Start: start, End: end})
	}
	if s.collab.Calendar == nil {
		return nil, fmt.Errorf("calendar provider not configured")
	}

	if s.cfg.CalendarLookupLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CalendarLookupLimit)
		defer cancel()
	}
	return s.collab.Calendar.BusyIntervals(ctx, calendar.Query{
		CalendarID: advisor.CalendarID,
		Start:      start,
		End:        end,
	})
}

// mergeIntent applies the hybrid rule: the LLM result wins only when it found
// at least one window and either the parser found none or the model is
// confident enough. The timezone falls back parser-first.
func mergeIntent(parsed intent.Record, fromLLM *llm.IntentResult, threshold float64) (intent.Record, string) {
	if fromLLM == nil {
		return parsed, IntentSourceParser
	}
	if len(fromLLM.Windows) == 0 {
		return parsed, IntentSourceParser
	}

	source := IntentSourceLLM
	if len(parsed.RequestedWindows) > 0 {
		if fromLLM.Confidence < threshold {
			return parsed, IntentSourceParser
		}
		source = IntentSourceLLMOverride
	}

	merged := parsed
	merged.RequestedWindows = fromLLM.Windows
	if merged.ClientTimezone == "" && fromLLM.ClientTimezone != "" && timeutil.IsValidTimezone(fromLLM.ClientTimezone) {
		merged.ClientTimezone = fromLLM.ClientTimezone
	}
	return merged, source
}

// draftReply prefers the LLM drafter and falls back to the template.
func (s *Service) draftReply(ctx context.Context, rec intent.Record, client *profiles.Client, fromEmail string, options []string) (string, string) {
	if s.collab.LLM == nil {
		return templateDraft(options, rec.DurationMinutes, s.cfg.SearchDays), traces.LLMStatusSkipped
	}

	text, err := s.collab.LLM.DraftReply(ctx, llm.DraftRequest{
		ClientFirstName: firstName(s.greetingName(client, fromEmail)),
		MeetingType:     rec.MeetingType,
		DurationMinutes: rec.DurationMinutes,
		Options:         options,
		ClientTimezone:  rec.ClientTimezone,
	})
	if err != nil {
		s.log.LLMFallback(traces.StageDraft, err)
		return templateDraft(options, rec.DurationMinutes, s.cfg.SearchDays), traces.LLMStatusFallback
	}
	return text, traces.LLMStatusUsed
}

func (s *Service) allocateLink(ctx context.Context, advisor profiles.Advisor, client *profiles.Client, fromEmail string, rec intent.Record, now time.Time) (links.Record, error) {
	linkRec := links.Record{
		AdvisorID:       advisor.ID,
		ClientEmail:     fromEmail,
		ClientTimezone:  rec.ClientTimezone,
		DurationMinutes: rec.DurationMinutes,
	}
	if client != nil {
		linkRec.ClientID = client.ID
		linkRec.ClientDisplayName = client.DisplayName
		linkRec.ClientReference = client.Reference
	} else {
		linkRec.ClientDisplayName = displayNameFromEmail(fromEmail)
	}
	return s.collab.Links.Allocate(ctx, linkRec, s.cfg.LinkTTL, now)
}

func (s *Service) greetingName(client *profiles.Client, fromEmail string) string {
	if client != nil && client.DisplayName != "" {
		return firstName(client.DisplayName)
	}
	return firstName(displayNameFromEmail(fromEmail))
}

// writeTrace persists the metadata trace; a failed write is logged, never
// surfaced.
func (s *Service) writeTrace(ctx context.Context, out Outcome, advisorID string, client *profiles.Client, params traces.CreateParams) {
	params.RequestID = out.RequestID
	params.ResponseID = out.ResponseID
	params.AdvisorID = advisorID
	if client != nil {
		params.ClientID = &client.ID
	}
	if _, err := s.collab.Traces.Create(ctx, params); err != nil {
		s.log.DatabaseError("create trace", err)
	}
}

func (s *Service) latencyMs(started time.Time) float64 {
	return float64(s.collab.now().Sub(started).Microseconds()) / 1000
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(logger.RequestIDKey).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

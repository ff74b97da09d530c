package scheduling

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"spike_backend/internal/config"
	"spike_backend/internal/intent"
	"spike_backend/internal/links"
	"spike_backend/internal/llm"
	"spike_backend/internal/profiles"
	"spike_backend/internal/timeutil"
	"spike_backend/internal/traces"
	"spike_backend/platform/apperr"
	"spike_backend/platform/logger"
)

type fakeProfiles struct {
	advisor profiles.Advisor
	client  *profiles.Client
	bumped  int
}

func (f *fakeProfiles) Advisor(_ context.Context, id string) (profiles.Advisor, error) {
	return f.advisor, nil
}

func (f *fakeProfiles) ClientByEmail(_ context.Context, _, _ string) (*profiles.Client, error) {
	return f.client, nil
}

func (f *fakeProfiles) EffectiveAdvisingDays(_ context.Context, advisor profiles.Advisor, client *profiles.Client) []string {
	if client != nil && len(client.AdvisingOverride) > 0 {
		return client.AdvisingOverride
	}
	return advisor.AdvisingWeekdays
}

func (f *fakeProfiles) RecordInteraction(_ context.Context, _, _ string) error {
	f.bumped++
	return nil
}

type fakeTraces struct {
	created  []traces.CreateParams
	feedback []traces.FeedbackParams
	missing  bool
}

func (f *fakeTraces) Create(_ context.Context, params traces.CreateParams) (traces.Trace, error) {
	f.created = append(f.created, params)
	return traces.Trace{RequestID: params.RequestID}, nil
}

func (f *fakeTraces) ApplyFeedback(_ context.Context, params traces.FeedbackParams) (traces.Trace, error) {
	if f.missing {
		return traces.Trace{}, apperr.NotFound("trace not found")
	}
	f.feedback = append(f.feedback, params)
	return traces.Trace{RequestID: params.RequestID}, nil
}

type fakeLinks struct {
	fail      bool
	allocated []links.Record
}

func (f *fakeLinks) Allocate(_ context.Context, rec links.Record, ttl time.Duration, now time.Time) (links.Record, error) {
	if f.fail {
		return links.Record{}, apperr.Internal("link token allocation exhausted retries")
	}
	rec.TokenID = "TESTTOKEN1234567"
	rec.IssuedAtMs = now.UnixMilli()
	rec.ExpiresAtMs = now.Add(ttl).UnixMilli()
	f.allocated = append(f.allocated, rec)
	return rec, nil
}

type fakeMailer struct {
	sent []string
	fail bool
}

func (f *fakeMailer) Send(_ context.Context, toEmail, subject, body string) error {
	if f.fail {
		return fmt.Errorf("smtp down")
	}
	f.sent = append(f.sent, toEmail+"|"+subject)
	return nil
}

type fakeLLM struct {
	draft     string
	draftErr  error
	intent    llm.IntentResult
	intentErr error
}

func (f *fakeLLM) DraftReply(_ context.Context, _ llm.DraftRequest) (string, error) {
	return f.draft, f.draftErr
}

func (f *fakeLLM) ExtractIntent(_ context.Context, _, _ string, _ time.Time) (llm.IntentResult, error) {
	return f.intent, f.intentErr
}

func testConfig() *config.Config {
	return &config.Config{
		AdvisorID:              "adv-1",
		HostTimezone:           "America/Los_Angeles",
		DefaultDurationMinutes: 30,
		MaxDurationMinutes:     240,
		SearchDays:             7,
		MaxSuggestions:         2,
		IntentExtractionMode:   config.IntentModeParser,
		LLMConfidenceThreshold: 0.65,
		ResponseMode:           config.ResponseModeLog,
		CalendarMode:           config.CalendarModeMock,
		LinkTTL:                time.Hour,
		LinkBaseURL:            "https://portal.example.com",
	}
}

func testAdvisor() profiles.Advisor {
	return profiles.Advisor{
		ID:               "adv-1",
		DisplayName:      "Jordan Reyes",
		Email:            "jordan@example.com",
		Timezone:         "America/Los_Angeles",
		AdvisingWeekdays: []string{"Tue", "Wed"},
		WorkdayStartHour: 9,
		WorkdayEndHour:   17,
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
}

func utc(t *testing.T, iso string) time.Time {
	t.Helper()
	ts, err := timeutil.ParseISO(iso)
	if err != nil {
		t.Fatalf("bad timestamp %q: %v", iso, err)
	}
	return ts.UTC()
}

func newTestService(cfg *config.Config, pf *fakeProfiles, tr *fakeTraces, lk *fakeLinks, ml *fakeMailer, ai Drafter) *Service {
	collab := Collaborators{
		Links:    lk,
		Traces:   tr,
		Profiles: pf,
		Now:      fixedNow,
	}
	if ml != nil {
		collab.Mailer = ml
	}
	if ai != nil {
		collab.LLM = ai
	}
	return NewService(cfg, collab, logger.New("development"))
}

func TestProcessHappyPathMockCalendar(t *testing.T) {
	pf := &fakeProfiles{advisor: testAdvisor()}
	tr := &fakeTraces{}
	lk := &fakeLinks{}
	svc := newTestService(testConfig(), pf, tr, lk, nil, nil)

	out, err := svc.Process(context.Background(), EmailPayload{
		FromEmail: "Dana Lee <dana.lee@example.com>",
		Subject:   "Quick sync",
		Body:      "Could we find 30 minutes this week?",
		MockBusy: []timeutil.Interval{
			{Start: utc(t, "2026-03-03T17:00:00Z"), End: utc(t, "2026-03-03T17:30:00Z")},
		},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if out.SuggestionCount != 2 {
		t.Fatalf("expected 2 suggestions, got %d", out.SuggestionCount)
	}
	if out.Suggestions[0].StartUTC != "2026-03-03T17:30:00Z" {
		t.Fatalf("first suggestion should step around busy, got %s", out.Suggestions[0].StartUTC)
	}
	if out.DeliveryStatus != DeliveryLogged {
		t.Fatalf("log mode must report logged, got %s", out.DeliveryStatus)
	}
	if out.IntentSource != IntentSourceParser {
		t.Fatalf("expected parser intent, got %s", out.IntentSource)
	}
	if out.AvailabilityURL != "https://portal.example.com/availability?t=TESTTOKEN1234567" {
		t.Fatalf("unexpected link url %q", out.AvailabilityURL)
	}

	if !strings.HasPrefix(out.Draft, "Hi Dana,") {
		t.Fatalf("greeting missing:\n%s", out.Draft)
	}
	if !strings.Contains(out.Draft, "1. ") || !strings.Contains(out.Draft, "2. ") {
		t.Fatalf("numbered options missing:\n%s", out.Draft)
	}
	if !strings.Contains(out.Draft, out.AvailabilityURL) {
		t.Fatalf("link block missing:\n%s", out.Draft)
	}
	if !strings.HasSuffix(strings.TrimSpace(out.Draft), "Best regards,\nJordan Reyes") {
		t.Fatalf("sign-off missing:\n%s", out.Draft)
	}

	if len(tr.created) != 1 {
		t.Fatalf("expected 1 trace, got %d", len(tr.created))
	}
	trace := tr.created[0]
	if trace.Status != traces.StatusOK || trace.SuggestionCount != 2 {
		t.Fatalf("unexpected trace %+v", trace)
	}
	if trace.LinkTokenID == nil || *trace.LinkTokenID != "TESTTOKEN1234567" {
		t.Fatalf("trace missing link token: %+v", trace)
	}
}

func TestProcessTraceCarriesNoEmailText(t *testing.T) {
	pf := &fakeProfiles{advisor: testAdvisor()}
	tr := &fakeTraces{}
	svc := newTestService(testConfig(), pf, tr, &fakeLinks{}, nil, nil)

	subject := "SECRET-SUBJECT-MARKER"
	body := "SECRET-BODY-MARKER tomorrow afternoon"
	_, err := svc.Process(context.Background(), EmailPayload{
		FromEmail: "dana@example.com",
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	blob := fmt.Sprintf("%+v", tr.created)
	for _, secret := range []string{subject, "SECRET-BODY-MARKER", "dana@example.com"} {
		if strings.Contains(blob, secret) {
			t.Fatalf("trace leaked %q: %s", secret, blob)
		}
	}
}

func TestProcessRejectsMissingFrom(t *testing.T) {
	svc := newTestService(testConfig(), &fakeProfiles{advisor: testAdvisor()}, &fakeTraces{}, &fakeLinks{}, nil, nil)

	_, err := svc.Process(context.Background(), EmailPayload{FromEmail: "   "})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessDeniesBlockedClient(t *testing.T) {
	client := &profiles.Client{ID: "cli-1", DisplayName: "Dana Lee", AccessState: profiles.AccessBlocked}
	pf := &fakeProfiles{advisor: testAdvisor(), client: client}
	tr := &fakeTraces{}
	svc := newTestService(testConfig(), pf, tr, &fakeLinks{}, nil, nil)

	out, err := svc.Process(context.Background(), EmailPayload{
		FromEmail: "dana@example.com",
		Body:      "Tuesday afternoon?",
	})
	if err != nil {
		t.Fatalf("denial is a 200, not an error: %v", err)
	}
	if !out.AccessDenied || out.AccessState != profiles.AccessBlocked {
		t.Fatalf("expected access denial, got %+v", out)
	}
	if out.SuggestionCount != 0 {
		t.Fatalf("denied requests must not suggest slots")
	}
	if len(tr.created) != 1 || tr.created[0].Status != traces.StatusDenied {
		t.Fatalf("expected a denied trace, got %+v", tr.created)
	}
	if pf.bumped != 0 {
		t.Fatalf("denied requests must not bump the interaction counter")
	}
}

func TestProcessRejectsExcessiveDuration(t *testing.T) {
	svc := newTestService(testConfig(), &fakeProfiles{advisor: testAdvisor()}, &fakeTraces{}, &fakeLinks{}, nil, nil)

	_, err := svc.Process(context.Background(), EmailPayload{
		FromEmail: "dana@example.com",
		Body:      "I need 400 minutes next Tuesday.",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for 400 minutes, got %v", err)
	}
}

func TestProcessCalendarFailureWritesFailedTrace(t *testing.T) {
	cfg := testConfig()
	cfg.CalendarMode = config.CalendarModeGoogle // no provider wired -> failure
	tr := &fakeTraces{}
	svc := newTestService(cfg, &fakeProfiles{advisor: testAdvisor()}, tr, &fakeLinks{}, nil, nil)

	_, err := svc.Process(context.Background(), EmailPayload{FromEmail: "dana@example.com"})
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if len(tr.created) != 1 || tr.created[0].Status != traces.StatusFailed || tr.created[0].Stage != traces.StageCalendarLookup {
		t.Fatalf("expected failed calendar trace, got %+v", tr.created)
	}
}

func TestProcessLinkAllocationFailureIsFatal(t *testing.T) {
	tr := &fakeTraces{}
	svc := newTestService(testConfig(), &fakeProfiles{advisor: testAdvisor()}, tr, &fakeLinks{fail: true}, nil, nil)

	_, err := svc.Process(context.Background(), EmailPayload{FromEmail: "dana@example.com"})
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if len(tr.created) != 1 || tr.created[0].Stage != "link_allocation" {
		t.Fatalf("expected link_allocation failure trace, got %+v", tr.created)
	}
}

func TestProcessSendModeDispatches(t *testing.T) {
	cfg := testConfig()
	cfg.ResponseMode = config.ResponseModeSend
	cfg.SenderEmail = "advisor@example.com"
	ml := &fakeMailer{}
	pf := &fakeProfiles{advisor: testAdvisor(), client: &profiles.Client{ID: "cli-1", DisplayName: "Dana Lee", AccessState: profiles.AccessActive}}
	svc := newTestService(cfg, pf, &fakeTraces{}, &fakeLinks{}, ml, nil)

	out, err := svc.Process(context.Background(), EmailPayload{
		FromEmail: "dana@example.com",
		Subject:   "Catch up",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.DeliveryStatus != DeliverySent {
		t.Fatalf("expected sent, got %s", out.DeliveryStatus)
	}
	if len(ml.sent) != 1 || ml.sent[0] != "dana@example.com|Re: Catch up" {
		t.Fatalf("unexpected dispatch %v", ml.sent)
	}
	if pf.bumped != 1 {
		t.Fatalf("interaction counter not bumped")
	}
}

func TestProcessSendModeRequiresSender(t *testing.T) {
	cfg := testConfig()
	cfg.ResponseMode = config.ResponseModeSend
	svc := newTestService(cfg, &fakeProfiles{advisor: testAdvisor()}, &fakeTraces{}, &fakeLinks{}, &fakeMailer{}, nil)

	_, err := svc.Process(context.Background(), EmailPayload{FromEmail: "dana@example.com"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error without SENDER_EMAIL, got %v", err)
	}
}

func TestProcessLLMDraftFallback(t *testing.T) {
	ai := &fakeLLM{draftErr: fmt.Errorf("model timeout")}
	svc := newTestService(testConfig(), &fakeProfiles{advisor: testAdvisor()}, &fakeTraces{}, &fakeLinks{}, nil, ai)

	out, err := svc.Process(context.Background(), EmailPayload{FromEmail: "dana@example.com"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.LLMStatus != traces.LLMStatusFallback {
		t.Fatalf("expected fallback, got %s", out.LLMStatus)
	}
	if !strings.Contains(out.Draft, "Let me know which option works best") {
		t.Fatalf("template fallback not used:\n%s", out.Draft)
	}
}

func TestMergeIntentRules(t *testing.T) {
	window := func(iso string) timeutil.Interval {
		start, _ := timeutil.ParseISO(iso)
		return timeutil.Interval{Start: start.UTC(), End: start.UTC().Add(time.Hour)}
	}
	record := func(windows []timeutil.Interval) intent.Record {
		return intent.Record{DurationMinutes: 30, RequestedWindows: windows}
	}

	parsedEmpty := record(nil)
	parsedFull := record([]timeutil.Interval{window("2026-03-03T17:00:00Z")})
	llmFull := &llm.IntentResult{Windows: []timeutil.Interval{window("2026-03-04T18:00:00Z")}}

	if _, src := mergeIntent(parsedFull, nil, 0.65); src != IntentSourceParser {
		t.Fatalf("nil llm must keep parser, got %s", src)
	}
	if _, src := mergeIntent(parsedFull, &llm.IntentResult{}, 0.65); src != IntentSourceParser {
		t.Fatalf("empty llm windows must keep parser, got %s", src)
	}
	if rec, src := mergeIntent(parsedEmpty, llmFull, 0.65); src != IntentSourceLLM || len(rec.RequestedWindows) != 1 {
		t.Fatalf("llm should win over empty parser, got %s", src)
	}

	confident := &llm.IntentResult{Windows: llmFull.Windows, Confidence: 0.9}
	if rec, src := mergeIntent(parsedFull, confident, 0.65); src != IntentSourceLLMOverride || !rec.RequestedWindows[0].Start.Equal(window("2026-03-04T18:00:00Z").Start) {
		t.Fatalf("confident llm should override, got %s", src)
	}

	timid := &llm.IntentResult{Windows: llmFull.Windows, Confidence: 0.4}
	if rec, src := mergeIntent(parsedFull, timid, 0.65); src != IntentSourceParser || !rec.RequestedWindows[0].Start.Equal(window("2026-03-03T17:00:00Z").Start) {
		t.Fatalf("timid llm must lose to parser, got %s", src)
	}
}

func TestProcessFeedbackValidation(t *testing.T) {
	tr := &fakeTraces{}
	svc := newTestService(testConfig(), &fakeProfiles{advisor: testAdvisor()}, tr, &fakeLinks{}, nil, nil)

	_, err := svc.ProcessFeedback(context.Background(), FeedbackPayload{
		RequestID: "r", ResponseID: "p",
		FeedbackType: "angry", FeedbackReason: "latency", FeedbackSource: "client",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for bad type, got %v", err)
	}

	_, err = svc.ProcessFeedback(context.Background(), FeedbackPayload{
		RequestID: "r", ResponseID: "p",
		FeedbackType: "helpful", FeedbackReason: "latency", FeedbackSource: "client",
	})
	if err != nil {
		t.Fatalf("valid feedback rejected: %v", err)
	}
	if len(tr.feedback) != 1 {
		t.Fatalf("feedback not applied")
	}

	tr.missing = true
	_, err = svc.ProcessFeedback(context.Background(), FeedbackPayload{
		RequestID: "r", ResponseID: "p",
		FeedbackType: "helpful", FeedbackReason: "other", FeedbackSource: "advisor",
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found passthrough, got %v", err)
	}
}

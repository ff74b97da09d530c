package scheduling

import (
	"context"
	"time"

	"spike_backend/internal/calendar"
	"spike_backend/internal/links"
	"spike_backend/internal/llm"
	"spike_backend/internal/profiles"
	"spike_backend/internal/timeutil"
	"spike_backend/internal/traces"
)

// The orchestrator owns no I/O clients. Everything it talks to comes in
// through these interfaces so tests can substitute fakes.

// LinkAllocator issues availability link records.
type LinkAllocator interface {
	Allocate(ctx context.Context, rec links.Record, ttl time.Duration, now time.Time) (links.Record, error)
}

// TraceWriter persists request traces and feedback.
type TraceWriter interface {
	Create(ctx context.Context, params traces.CreateParams) (traces.Trace, error)
	ApplyFeedback(ctx context.Context, params traces.FeedbackParams) (traces.Trace, error)
}

// ProfileDirectory resolves the advisor and client records.
type ProfileDirectory interface {
	Advisor(ctx context.Context, id string) (profiles.Advisor, error)
	ClientByEmail(ctx context.Context, advisorID, email string) (*profiles.Client, error)
	EffectiveAdvisingDays(ctx context.Context, advisor profiles.Advisor, client *profiles.Client) []string
	RecordInteraction(ctx context.Context, advisorID, clientID string) error
}

// RawEmailFetcher loads a parked raw message body by object key.
type RawEmailFetcher interface {
	FetchText(ctx context.Context, key string) (string, error)
}

// Drafter is the generative collaborator. Nil disables both LLM steps.
type Drafter interface {
	DraftReply(ctx context.Context, req llm.DraftRequest) (string, error)
	ExtractIntent(ctx context.Context, subject, body string, ref time.Time) (llm.IntentResult, error)
}

// Sender dispatches the drafted reply.
type Sender interface {
	Send(ctx context.Context, toEmail, subject, textBody string) error
}

// Collaborators bundles everything Process may touch. Calendar is the real
// provider for non-mock deployments; in mock mode the payload's intervals
// are served instead.
type Collaborators struct {
	Calendar calendar.Provider
	Links    LinkAllocator
	Traces   TraceWriter
	Profiles ProfileDirectory
	RawMail  RawEmailFetcher
	LLM      Drafter
	Mailer   Sender
	Now      func() time.Time
}

func (c Collaborators) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// EmailPayload is the inbound scheduling request, already mapped from the
// webhook envelope.
type EmailPayload struct {
	FromEmail    string
	Subject      string
	Body         string
	Channel      string
	SESMessageID string
	RawLocation  string
	MockBusy     []timeutil.Interval
}

// FeedbackPayload records a human judgement on one response.
type FeedbackPayload struct {
	RequestID      string `json:"requestId" binding:"required"`
	ResponseID     string `json:"responseId" binding:"required"`
	FeedbackType   string `json:"feedbackType" binding:"required"`
	FeedbackReason string `json:"feedbackReason" binding:"required"`
	FeedbackSource string `json:"feedbackSource" binding:"required"`
}

// Outcome is the email-path response body.
type Outcome struct {
	RequestID       string       `json:"requestId"`
	ResponseID      string       `json:"responseId"`
	DeliveryStatus  string       `json:"deliveryStatus"`
	LLMStatus       string       `json:"llmStatus"`
	IntentSource    string       `json:"intentSource"`
	SuggestionCount int          `json:"suggestionCount"`
	Suggestions     []Suggestion `json:"suggestions"`
	AvailabilityURL string       `json:"availabilityUrl,omitempty"`
	Draft           string       `json:"draft,omitempty"`
	AccessDenied    bool         `json:"accessDenied,omitempty"`
	AccessState     string       `json:"accessState,omitempty"`
}

// Suggestion is one proposed slot in the response body.
type Suggestion struct {
	StartUTC string `json:"startUtc"`
	EndUTC   string `json:"endUtc"`
	Label    string `json:"label"`
}

// Package traces persists the metadata trail of each scheduling request.
// Traces carry ids, statuses and counters only; email addresses, subjects,
// bodies and event titles must never be written here.
package traces

import "time"

const (
	StatusOK     = "ok"
	StatusDenied = "denied"
	StatusFailed = "failed"

	StageIntent         = "intent"
	StageCalendarLookup = "calendar_lookup"
	StageDraft          = "draft"
	StageSend           = "send"

	LLMStatusUsed     = "used"
	LLMStatusFallback = "fallback"
	LLMStatusSkipped  = "skipped"
)

// Trace is one scheduling request outcome.
type Trace struct {
	ID              string     `json:"id"`
	RequestID       string     `json:"requestId"`
	ResponseID      string     `json:"responseId"`
	AdvisorID       string     `json:"advisorId"`
	ClientID        *string    `json:"clientId,omitempty"`
	Status          string     `json:"status"`
	Stage           string     `json:"stage,omitempty"`
	IntentSource    string     `json:"intentSource,omitempty"`
	LLMStatus       string     `json:"llmStatus,omitempty"`
	BodySource      string     `json:"bodySource,omitempty"`
	WindowCount     int        `json:"windowCount"`
	SuggestionCount int        `json:"suggestionCount"`
	DurationMinutes int        `json:"durationMinutes"`
	LinkTokenID     *string    `json:"linkTokenId,omitempty"`
	LinkTTLSeconds  int        `json:"linkTtlSeconds"`
	LatencyMs       float64    `json:"latencyMs"`
	FeedbackType    *string    `json:"feedbackType,omitempty"`
	FeedbackReason  *string    `json:"feedbackReason,omitempty"`
	FeedbackSource  *string    `json:"feedbackSource,omitempty"`
	FeedbackAt      *time.Time `json:"feedbackAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// CreateParams is the insert payload.
type CreateParams struct {
	RequestID       string
	ResponseID      string
	AdvisorID       string
	ClientID        *string
	Status          string
	Stage           string
	IntentSource    string
	LLMStatus       string
	BodySource      string
	WindowCount     int
	SuggestionCount int
	DurationMinutes int
	LinkTokenID     *string
	LinkTTLSeconds  int
	LatencyMs       float64
}

// FeedbackParams updates a trace conditionally on both ids matching.
type FeedbackParams struct {
	RequestID      string
	ResponseID     string
	FeedbackType   string
	FeedbackReason string
	FeedbackSource string
}

// Package llm wraps the Gemini API for the two generative steps: drafting a
// reply and the hybrid intent extraction. Both calls carry hard timeouts and
// callers are expected to fall back to the deterministic path on any error.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"spike_backend/internal/timeutil"
)

const (
	defaultModel         = "gemini-2.0-flash"
	defaultDraftTimeout  = 4 * time.Second
	defaultIntentTimeout = 10 * time.Second
)

// Client is a thin Gemini wrapper. Zero-value timeouts fall back to the
// defaults above.
type Client struct {
	gc            *genai.Client
	model         string
	draftTimeout  time.Duration
	intentTimeout time.Duration
}

type Config struct {
	APIKey        string
	Model         string
	DraftTimeout  time.Duration
	IntentTimeout time.Duration
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c := &Client{
		gc:            gc,
		model:         cfg.Model,
		draftTimeout:  cfg.DraftTimeout,
		intentTimeout: cfg.IntentTimeout,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.draftTimeout <= 0 {
		c.draftTimeout = defaultDraftTimeout
	}
	if c.intentTimeout <= 0 {
		c.intentTimeout = defaultIntentTimeout
	}
	return c, nil
}

// DraftRequest carries everything the reply drafter may mention. No email
// identifiers; the greeting and sign-off are injected later by the caller.
type DraftRequest struct {
	ClientFirstName string
	MeetingType     string
	DurationMinutes int
	Options         []string // pre-formatted slot lines
	ClientTimezone  string
}

// DraftReply asks the model for a short scheduling reply built around the
// given options. The returned text has no greeting or sign-off.
func (c *Client) DraftReply(ctx context.Context, req DraftRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.draftTimeout)
	defer cancel()

	var b strings.Builder
	b.WriteString("Write a short, friendly email reply proposing meeting times.\n")
	b.WriteString("Rules: no greeting line, no sign-off, no subject. Present the options as a numbered list, verbatim.\n")
	fmt.Fprintf(&b, "Meeting: %d minutes, %s.\n", req.DurationMinutes, req.MeetingType)
	if req.ClientTimezone != "" {
		fmt.Fprintf(&b, "The recipient's timezone is %s.\n", req.ClientTimezone)
	}
	b.WriteString("Options:\n")
	for i, opt := range req.Options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt)
	}

	resp, err := c.gc.Models.GenerateContent(ctx, c.model, genai.Text(b.String()), nil)
	if err != nil {
		return "", fmt.Errorf("draft call failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("draft call returned no text")
	}
	return text, nil
}

// IntentResult is the model's reading of the email, used by the hybrid merge.
type IntentResult struct {
	Windows        []timeutil.Interval
	ClientTimezone string
	Confidence     float64
}

type intentPayload struct {
	Windows []struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"windows"`
	ClientTimezone string  `json:"clientTimezone"`
	Confidence     float64 `json:"confidence"`
}

// ExtractIntent asks the model for requested meeting windows as strict JSON.
func (c *Client) ExtractIntent(ctx context.Context, subject, body string, ref time.Time) (IntentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.intentTimeout)
	defer cancel()

	var b strings.Builder
	b.WriteString("Extract requested meeting windows from this email.\n")
	fmt.Fprintf(&b, "Current time: %s.\n", timeutil.FormatISO(ref))
	b.WriteString("Respond with JSON only: {\"windows\":[{\"start\":\"RFC3339\",\"end\":\"RFC3339\"}],\"clientTimezone\":\"IANA or empty\",\"confidence\":0.0-1.0}.\n")
	b.WriteString("Subject: " + subject + "\n")
	b.WriteString("Body:\n" + body + "\n")

	resp, err := c.gc.Models.GenerateContent(ctx, c.model, genai.Text(b.String()), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return IntentResult{}, fmt.Errorf("intent call failed: %w", err)
	}

	var payload intentPayload
	if err := json.Unmarshal([]byte(resp.Text()), &payload); err != nil {
		return IntentResult{}, fmt.Errorf("intent call returned malformed JSON: %w", err)
	}

	out := IntentResult{
		ClientTimezone: payload.ClientTimezone,
		Confidence:     payload.Confidence,
	}
	for _, w := range payload.Windows {
		start, err1 := timeutil.ParseISO(w.Start)
		end, err2 := timeutil.ParseISO(w.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if iv, err := timeutil.NewInterval(start, end); err == nil {
			out.Windows = append(out.Windows, iv)
		}
	}
	return out, nil
}

package traces

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spike_backend/platform/apperr"
)

const traceNotFoundMessage = "trace not found"

// Repo implements the trace repository on Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new trace repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const traceColumns = `
	id, request_id, response_id, advisor_id, client_id, status, stage,
	intent_source, llm_status, body_source, window_count, suggestion_count,
	duration_minutes, link_token_id, link_ttl_seconds, latency_ms,
	feedback_type, feedback_reason, feedback_source, feedback_at, created_at`

// Create inserts a new trace row.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Trace, error) {
	query := `
		INSERT INTO scheduling_traces (
			request_id, response_id, advisor_id, client_id, status, stage,
			intent_source, llm_status, body_source, window_count,
			suggestion_count, duration_minutes, link_token_id,
			link_ttl_seconds, latency_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING` + traceColumns

	row := r.pool.QueryRow(ctx, query,
		params.RequestID, params.ResponseID, params.AdvisorID, params.ClientID,
		params.Status, params.Stage, params.IntentSource, params.LLMStatus,
		params.BodySource, params.WindowCount, params.SuggestionCount,
		params.DurationMinutes, params.LinkTokenID, params.LinkTTLSeconds,
		params.LatencyMs,
	)
	trace, err := scanTrace(row)
	if err != nil {
		return Trace{}, fmt.Errorf("create trace: %w", err)
	}
	return trace, nil
}

// GetByRequestID retrieves a trace by its request id.
func (r *Repo) GetByRequestID(ctx context.Context, requestID string) (Trace, error) {
	query := `SELECT` + traceColumns + ` FROM scheduling_traces WHERE request_id = $1`

	trace, err := scanTrace(r.pool.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Trace{}, apperr.NotFound(traceNotFoundMessage)
		}
		return Trace{}, fmt.Errorf("get trace by request id: %w", err)
	}
	return trace, nil
}

// ListByAdvisor lists recent traces for one advisor, newest first.
func (r *Repo) ListByAdvisor(ctx context.Context, advisorID string, limit, offset int) ([]Trace, error) {
	query := `
		SELECT` + traceColumns + `
		FROM scheduling_traces
		WHERE advisor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, advisorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var out []Trace
	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, fmt.Errorf("list traces: %w", err)
		}
		out = append(out, trace)
	}
	return out, rows.Err()
}

// ApplyFeedback updates the feedback fields of the trace matching BOTH the
// request id and response id. No match is a not-found.
func (r *Repo) ApplyFeedback(ctx context.Context, params FeedbackParams) (Trace, error) {
	query := `
		UPDATE scheduling_traces
		SET feedback_type = $3,
			feedback_reason = $4,
			feedback_source = $5,
			feedback_at = now()
		WHERE request_id = $1 AND response_id = $2
		RETURNING` + traceColumns

	trace, err := scanTrace(r.pool.QueryRow(ctx, query,
		params.RequestID, params.ResponseID,
		params.FeedbackType, params.FeedbackReason, params.FeedbackSource,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Trace{}, apperr.NotFound(traceNotFoundMessage)
		}
		return Trace{}, fmt.Errorf("apply feedback: %w", err)
	}
	return trace, nil
}

// DeleteOlderThan removes traces created before the cutoff. Used by the
// retention sweep.
func (r *Repo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM scheduling_traces WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old traces: %w", err)
	}
	return result.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrace(row rowScanner) (Trace, error) {
	var t Trace
	err := row.Scan(
		&t.ID, &t.RequestID, &t.ResponseID, &t.AdvisorID, &t.ClientID,
		&t.Status, &t.Stage, &t.IntentSource, &t.LLMStatus, &t.BodySource,
		&t.WindowCount, &t.SuggestionCount, &t.DurationMinutes,
		&t.LinkTokenID, &t.LinkTTLSeconds, &t.LatencyMs,
		&t.FeedbackType, &t.FeedbackReason, &t.FeedbackSource, &t.FeedbackAt,
		&t.CreatedAt,
	)
	return t, err
}

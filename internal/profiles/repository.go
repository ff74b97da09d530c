package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spike_backend/platform/apperr"
)

const (
	advisorNotFoundMessage = "advisor not found"
	clientNotFoundMessage  = "client not found"
	policyNotFoundMessage  = "policy not found"
)

// Repo implements the profiles repository on Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new profiles repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const advisorColumns = `
	id, display_name, email, timezone, advising_weekdays,
	workday_start_hour, workday_end_hour, calendar_id, policy_name,
	created_at, updated_at`

// CreateAdvisor inserts an advisor.
func (r *Repo) CreateAdvisor(ctx context.Context, params CreateAdvisorParams) (Advisor, error) {
	query := `
		INSERT INTO advisors (
			display_name, email, timezone, advising_weekdays,
			workday_start_hour, workday_end_hour, calendar_id, policy_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING` + advisorColumns

	advisor, err := scanAdvisor(r.pool.QueryRow(ctx, query,
		params.DisplayName, params.Email, params.Timezone, params.AdvisingWeekdays,
		params.WorkdayStartHour, params.WorkdayEndHour, params.CalendarID, params.PolicyName,
	))
	if err != nil {
		return Advisor{}, fmt.Errorf("create advisor: %w", err)
	}
	return advisor, nil
}

// EnsureAdvisor seeds the advisor row with a fixed id on first boot. An
// existing row wins; operators edit it through the portal afterwards.
func (r *Repo) EnsureAdvisor(ctx context.Context, id string, params CreateAdvisorParams) error {
	query := `
		INSERT INTO advisors (
			id, display_name, email, timezone, advising_weekdays,
			workday_start_hour, workday_end_hour, calendar_id, policy_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query,
		id, params.DisplayName, params.Email, params.Timezone, params.AdvisingWeekdays,
		params.WorkdayStartHour, params.WorkdayEndHour, params.CalendarID, params.PolicyName,
	); err != nil {
		return fmt.Errorf("ensure advisor: %w", err)
	}
	return nil
}

// GetAdvisor retrieves an advisor by id.
func (r *Repo) GetAdvisor(ctx context.Context, id string) (Advisor, error) {
	query := `SELECT` + advisorColumns + ` FROM advisors WHERE id = $1`

	advisor, err := scanAdvisor(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Advisor{}, apperr.NotFound(advisorNotFoundMessage)
		}
		return Advisor{}, fmt.Errorf("get advisor: %w", err)
	}
	return advisor, nil
}

// GetAdvisorByEmail retrieves an advisor by email.
func (r *Repo) GetAdvisorByEmail(ctx context.Context, email string) (Advisor, error) {
	query := `SELECT` + advisorColumns + ` FROM advisors WHERE lower(email) = lower($1)`

	advisor, err := scanAdvisor(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Advisor{}, apperr.NotFound(advisorNotFoundMessage)
		}
		return Advisor{}, fmt.Errorf("get advisor by email: %w", err)
	}
	return advisor, nil
}

// ListAdvisors lists all advisors.
func (r *Repo) ListAdvisors(ctx context.Context) ([]Advisor, error) {
	query := `SELECT` + advisorColumns + ` FROM advisors ORDER BY display_name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list advisors: %w", err)
	}
	defer rows.Close()

	var out []Advisor
	for rows.Next() {
		advisor, err := scanAdvisor(rows)
		if err != nil {
			return nil, fmt.Errorf("list advisors: %w", err)
		}
		out = append(out, advisor)
	}
	return out, rows.Err()
}

// UpdateAdvisor applies a partial update.
func (r *Repo) UpdateAdvisor(ctx context.Context, params UpdateAdvisorParams) (Advisor, error) {
	query := `
		UPDATE advisors
		SET display_name = COALESCE($2, display_name),
			timezone = COALESCE($3, timezone),
			advising_weekdays = COALESCE($4, advising_weekdays),
			workday_start_hour = COALESCE($5, workday_start_hour),
			workday_end_hour = COALESCE($6, workday_end_hour),
			calendar_id = COALESCE($7, calendar_id),
			policy_name = COALESCE($8, policy_name),
			updated_at = now()
		WHERE id = $1
		RETURNING` + advisorColumns

	advisor, err := scanAdvisor(r.pool.QueryRow(ctx, query,
		params.ID, params.DisplayName, params.Timezone, params.AdvisingWeekdays,
		params.WorkdayStartHour, params.WorkdayEndHour, params.CalendarID, params.PolicyName,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Advisor{}, apperr.NotFound(advisorNotFoundMessage)
		}
		return Advisor{}, fmt.Errorf("update advisor: %w", err)
	}
	return advisor, nil
}

// DeleteAdvisor removes an advisor.
func (r *Repo) DeleteAdvisor(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM advisors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete advisor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(advisorNotFoundMessage)
	}
	return nil
}

const clientColumns = `
	id, advisor_id, email, display_name, reference, phone, timezone,
	access_state, advising_override, interaction_count, last_interaction_at,
	created_at, updated_at`

// CreateClient inserts a client.
func (r *Repo) CreateClient(ctx context.Context, params CreateClientParams) (Client, error) {
	query := `
		INSERT INTO clients (
			advisor_id, email, display_name, reference, phone, timezone,
			access_state, advising_override
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING` + clientColumns

	client, err := scanClient(r.pool.QueryRow(ctx, query,
		params.AdvisorID, params.Email, params.DisplayName, params.Reference,
		params.Phone, params.Timezone, AccessActive, params.AdvisingOverride,
	))
	if err != nil {
		return Client{}, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

// GetClient retrieves a client by id scoped to its advisor.
func (r *Repo) GetClient(ctx context.Context, advisorID, id string) (Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE id = $1 AND advisor_id = $2`

	client, err := scanClient(r.pool.QueryRow(ctx, query, id, advisorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, apperr.NotFound(clientNotFoundMessage)
		}
		return Client{}, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

// GetClientByEmail retrieves a client by normalised email.
func (r *Repo) GetClientByEmail(ctx context.Context, advisorID, email string) (Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE advisor_id = $1 AND lower(email) = lower($2)`

	client, err := scanClient(r.pool.QueryRow(ctx, query, advisorID, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, apperr.NotFound(clientNotFoundMessage)
		}
		return Client{}, fmt.Errorf("get client by email: %w", err)
	}
	return client, nil
}

// ListClients lists an advisor's clients.
func (r *Repo) ListClients(ctx context.Context, advisorID string, limit, offset int) ([]Client, error) {
	query := `
		SELECT` + clientColumns + `
		FROM clients
		WHERE advisor_id = $1
		ORDER BY display_name ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, advisorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("list clients: %w", err)
		}
		out = append(out, client)
	}
	return out, rows.Err()
}

// UpdateClient applies a partial update scoped to the advisor.
func (r *Repo) UpdateClient(ctx context.Context, params UpdateClientParams) (Client, error) {
	query := `
		UPDATE clients
		SET display_name = COALESCE($3, display_name),
			reference = COALESCE($4, reference),
			phone = COALESCE($5, phone),
			timezone = COALESCE($6, timezone),
			access_state = COALESCE($7, access_state),
			advising_override = COALESCE($8, advising_override),
			updated_at = now()
		WHERE id = $1 AND advisor_id = $2
		RETURNING` + clientColumns

	client, err := scanClient(r.pool.QueryRow(ctx, query,
		params.ID, params.AdvisorID, params.DisplayName, params.Reference,
		params.Phone, params.Timezone, params.AccessState, params.AdvisingOverride,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, apperr.NotFound(clientNotFoundMessage)
		}
		return Client{}, fmt.Errorf("update client: %w", err)
	}
	return client, nil
}

// DeleteClient marks a client deleted. Rows stay behind for trace lookups.
func (r *Repo) DeleteClient(ctx context.Context, advisorID, id string) error {
	query := `
		UPDATE clients
		SET access_state = $3, updated_at = now()
		WHERE id = $1 AND advisor_id = $2`

	result, err := r.pool.Exec(ctx, query, id, advisorID, AccessDeleted)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(clientNotFoundMessage)
	}
	return nil
}

// RecordInteraction bumps the client's email interaction counter. The update
// is additive so concurrent requests commute.
func (r *Repo) RecordInteraction(ctx context.Context, advisorID, clientID string) error {
	query := `
		UPDATE clients
		SET interaction_count = interaction_count + 1,
			last_interaction_at = now()
		WHERE id = $1 AND advisor_id = $2`

	result, err := r.pool.Exec(ctx, query, clientID, advisorID)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(clientNotFoundMessage)
	}
	return nil
}

// RecountInteractions rebuilds the counter from the persisted traces, used
// after manual trace deletions leave it stale.
func (r *Repo) RecountInteractions(ctx context.Context, advisorID, clientID string) error {
	query := `
		UPDATE clients
		SET interaction_count = (
			SELECT count(*) FROM scheduling_traces
			WHERE advisor_id = $2 AND client_id = $1
		)
		WHERE id = $1 AND advisor_id = $2`

	result, err := r.pool.Exec(ctx, query, clientID, advisorID)
	if err != nil {
		return fmt.Errorf("recount interactions: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(clientNotFoundMessage)
	}
	return nil
}

// UpsertPolicy creates or replaces a named policy.
func (r *Repo) UpsertPolicy(ctx context.Context, policy Policy) (Policy, error) {
	query := `
		INSERT INTO advising_policies (name, description, advising_weekdays)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description,
			advising_weekdays = EXCLUDED.advising_weekdays
		RETURNING name, description, advising_weekdays`

	var out Policy
	if err := r.pool.QueryRow(ctx, query, policy.Name, policy.Description, policy.AdvisingWeekdays).Scan(
		&out.Name, &out.Description, &out.AdvisingWeekdays,
	); err != nil {
		return Policy{}, fmt.Errorf("upsert policy: %w", err)
	}
	return out, nil
}

// GetPolicy retrieves a policy by name.
func (r *Repo) GetPolicy(ctx context.Context, name string) (Policy, error) {
	query := `SELECT name, description, advising_weekdays FROM advising_policies WHERE name = $1`

	var out Policy
	if err := r.pool.QueryRow(ctx, query, name).Scan(&out.Name, &out.Description, &out.AdvisingWeekdays); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, apperr.NotFound(policyNotFoundMessage)
		}
		return Policy{}, fmt.Errorf("get policy: %w", err)
	}
	return out, nil
}

// ListPolicies lists all policies.
func (r *Repo) ListPolicies(ctx context.Context) ([]Policy, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, description, advising_weekdays FROM advising_policies ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var out []Policy
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.Name, &p.Description, &p.AdvisingWeekdays); err != nil {
			return nil, fmt.Errorf("list policies: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePolicy removes a policy by name.
func (r *Repo) DeletePolicy(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM advising_policies WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(policyNotFoundMessage)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdvisor(row rowScanner) (Advisor, error) {
	var a Advisor
	err := row.Scan(
		&a.ID, &a.DisplayName, &a.Email, &a.Timezone, &a.AdvisingWeekdays,
		&a.WorkdayStartHour, &a.WorkdayEndHour, &a.CalendarID, &a.PolicyName,
		&a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func scanClient(row rowScanner) (Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.AdvisorID, &c.Email, &c.DisplayName, &c.Reference, &c.Phone,
		&c.Timezone, &c.AccessState, &c.AdvisingOverride, &c.InteractionCount,
		&c.LastInteractionAt, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

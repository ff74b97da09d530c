package profiles

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"spike_backend/internal/timeutil"
	"spike_backend/platform/apperr"
	"spike_backend/platform/phone"
)

// Service wraps the repository with input normalisation and the advising-day
// resolution chain.
type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

func (s *Service) Repo() *Repo {
	return s.repo
}

// CreateClient normalises the phone number and weekday abbreviations before
// insert.
func (s *Service) CreateClient(ctx context.Context, params CreateClientParams) (Client, error) {
	params.Phone = phone.NormalizeE164(params.Phone)
	override, err := normalizeWeekdays(params.AdvisingOverride)
	if err != nil {
		return Client{}, err
	}
	params.AdvisingOverride = override
	if params.Timezone != "" && !timeutil.IsValidTimezone(params.Timezone) {
		return Client{}, apperr.Validation("unknown timezone: " + params.Timezone)
	}
	return s.repo.CreateClient(ctx, params)
}

// UpdateClient normalises the mutable fields before update.
func (s *Service) UpdateClient(ctx context.Context, params UpdateClientParams) (Client, error) {
	if params.Phone != nil {
		normalized := phone.NormalizeE164(*params.Phone)
		params.Phone = &normalized
	}
	if params.AccessState != nil {
		switch *params.AccessState {
		case AccessActive, AccessBlocked, AccessDeleted:
		default:
			return Client{}, apperr.Validation("unknown access state: " + *params.AccessState)
		}
	}
	if params.Timezone != nil && *params.Timezone != "" && !timeutil.IsValidTimezone(*params.Timezone) {
		return Client{}, apperr.Validation("unknown timezone: " + *params.Timezone)
	}
	override, err := normalizeWeekdays(params.AdvisingOverride)
	if err != nil {
		return Client{}, err
	}
	params.AdvisingOverride = override
	return s.repo.UpdateClient(ctx, params)
}

// Advisor looks up one advisor profile.
func (s *Service) Advisor(ctx context.Context, id string) (Advisor, error) {
	return s.repo.GetAdvisor(ctx, id)
}

// ClientByEmail resolves a client by email. An unknown email is not an
// error; first-contact senders simply have no profile yet.
func (s *Service) ClientByEmail(ctx context.Context, advisorID, email string) (*Client, error) {
	client, err := s.repo.GetClientByEmail(ctx, advisorID, email)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// RecordInteraction bumps the client's interaction counter.
func (s *Service) RecordInteraction(ctx context.Context, advisorID, clientID string) error {
	return s.repo.RecordInteraction(ctx, advisorID, clientID)
}

// EffectiveAdvisingDays resolves the advising weekdays for one client:
// per-client override, then the advisor's policy preset, then the advisor
// default. A nil client skips the override.
func (s *Service) EffectiveAdvisingDays(ctx context.Context, advisor Advisor, client *Client) []string {
	if client != nil && len(client.AdvisingOverride) > 0 {
		return client.AdvisingOverride
	}
	if advisor.PolicyName != "" {
		if policy, err := s.repo.GetPolicy(ctx, advisor.PolicyName); err == nil && len(policy.AdvisingWeekdays) > 0 {
			return policy.AdvisingWeekdays
		}
	}
	return advisor.AdvisingWeekdays
}

func normalizeWeekdays(days []string) ([]string, error) {
	if len(days) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		abbr := timeutil.NormalizeWeekdayAbbr(d)
		if abbr == "" {
			return nil, apperr.Validation("unknown weekday: " + d)
		}
		out = append(out, abbr)
	}
	return out, nil
}

type presetFile struct {
	Policies []struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Days        []string `yaml:"days"`
	} `yaml:"policies"`
}

// LoadPolicyPresets reads the preset file and upserts each policy. Missing
// file is not an error; deployments without presets simply have none.
func (s *Service) LoadPolicyPresets(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file presetFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to parse policy presets", err)
	}

	for _, p := range file.Policies {
		days, err := normalizeWeekdays(p.Days)
		if err != nil {
			return err
		}
		if _, err := s.repo.UpsertPolicy(ctx, Policy{
			Name:             p.Name,
			Description:      p.Description,
			AdvisingWeekdays: days,
		}); err != nil {
			return err
		}
	}
	return nil
}

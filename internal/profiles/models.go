// Package profiles manages advisors, their clients, and advising-day
// policies. Effective advising days resolve per-client override first, then
// the advisor's policy preset, then the advisor default.
package profiles

import "time"

// Client access states.
const (
	AccessActive  = "active"
	AccessBlocked = "blocked"
	AccessDeleted = "deleted"
)

// Advisor is the calendar owner replies are drafted for.
type Advisor struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"displayName"`
	Email            string    `json:"email"`
	Timezone         string    `json:"timezone"`
	AdvisingWeekdays []string  `json:"advisingWeekdays"`
	WorkdayStartHour int       `json:"workdayStartHour"`
	WorkdayEndHour   int       `json:"workdayEndHour"`
	CalendarID       string    `json:"calendarId,omitempty"`
	PolicyName       string    `json:"policyName,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Client is a known correspondent of an advisor.
type Client struct {
	ID                string     `json:"id"`
	AdvisorID         string     `json:"advisorId"`
	Email             string     `json:"email"`
	DisplayName       string     `json:"displayName"`
	Reference         string     `json:"reference,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	Timezone          string     `json:"timezone,omitempty"`
	AccessState       string     `json:"accessState"`
	AdvisingOverride  []string   `json:"advisingOverride,omitempty"`
	InteractionCount  int        `json:"interactionCount"`
	LastInteractionAt *time.Time `json:"lastInteractionAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Policy is a named advising-day preset.
type Policy struct {
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	AdvisingWeekdays []string `json:"advisingWeekdays"`
}

// CreateAdvisorParams is the advisor insert payload.
type CreateAdvisorParams struct {
	DisplayName      string
	Email            string
	Timezone         string
	AdvisingWeekdays []string
	WorkdayStartHour int
	WorkdayEndHour   int
	CalendarID       string
	PolicyName       string
}

// UpdateAdvisorParams carries optional advisor updates; nil fields keep the
// stored value.
type UpdateAdvisorParams struct {
	ID               string
	DisplayName      *string
	Timezone         *string
	AdvisingWeekdays []string
	WorkdayStartHour *int
	WorkdayEndHour   *int
	CalendarID       *string
	PolicyName       *string
}

// CreateClientParams is the client insert payload.
type CreateClientParams struct {
	AdvisorID        string
	Email            string
	DisplayName      string
	Reference        string
	Phone            string
	Timezone         string
	AdvisingOverride []string
}

// UpdateClientParams carries optional client updates.
type UpdateClientParams struct {
	ID               string
	AdvisorID        string
	DisplayName      *string
	Reference        *string
	Phone            *string
	Timezone         *string
	AccessState      *string
	AdvisingOverride []string
}

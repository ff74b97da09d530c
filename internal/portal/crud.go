package portal

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"spike_backend/internal/profiles"
	"spike_backend/internal/scheduler"
	"spike_backend/internal/traces"
	"spike_backend/platform/httpkit"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type createAdvisorRequest struct {
	DisplayName      string   `json:"displayName" binding:"required"`
	Email            string   `json:"email" binding:"required,email"`
	Timezone         string   `json:"timezone" binding:"required"`
	AdvisingWeekdays []string `json:"advisingWeekdays" binding:"required,min=1"`
	WorkdayStartHour int      `json:"workdayStartHour" binding:"min=0,max=23"`
	WorkdayEndHour   int      `json:"workdayEndHour" binding:"min=1,max=24"`
	CalendarID       string   `json:"calendarId"`
	PolicyName       string   `json:"policyName"`
}

type updateAdvisorRequest struct {
	DisplayName      *string  `json:"displayName"`
	Timezone         *string  `json:"timezone"`
	AdvisingWeekdays []string `json:"advisingWeekdays"`
	WorkdayStartHour *int     `json:"workdayStartHour"`
	WorkdayEndHour   *int     `json:"workdayEndHour"`
	CalendarID       *string  `json:"calendarId"`
	PolicyName       *string  `json:"policyName"`
}

func (m *Module) handleCreateAdvisor(c *gin.Context) {
	var req createAdvisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	advisor, err := m.profiles.Repo().CreateAdvisor(c.Request.Context(), profiles.CreateAdvisorParams{
		DisplayName:      req.DisplayName,
		Email:            req.Email,
		Timezone:         req.Timezone,
		AdvisingWeekdays: req.AdvisingWeekdays,
		WorkdayStartHour: req.WorkdayStartHour,
		WorkdayEndHour:   req.WorkdayEndHour,
		CalendarID:       req.CalendarID,
		PolicyName:       req.PolicyName,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, advisor)
}

func (m *Module) handleListAdvisors(c *gin.Context) {
	advisors, err := m.profiles.Repo().ListAdvisors(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"advisors": advisors})
}

func (m *Module) handleGetAdvisor(c *gin.Context) {
	advisor, err := m.profiles.Repo().GetAdvisor(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, advisor)
}

func (m *Module) handleUpdateAdvisor(c *gin.Context) {
	var req updateAdvisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	advisor, err := m.profiles.Repo().UpdateAdvisor(c.Request.Context(), profiles.UpdateAdvisorParams{
		ID:               c.Param("id"),
		DisplayName:      req.DisplayName,
		Timezone:         req.Timezone,
		AdvisingWeekdays: req.AdvisingWeekdays,
		WorkdayStartHour: req.WorkdayStartHour,
		WorkdayEndHour:   req.WorkdayEndHour,
		CalendarID:       req.CalendarID,
		PolicyName:       req.PolicyName,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, advisor)
}

func (m *Module) handleDeleteAdvisor(c *gin.Context) {
	if httpkit.HandleError(c, m.profiles.Repo().DeleteAdvisor(c.Request.Context(), c.Param("id"))) {
		return
	}
	c.Status(http.StatusNoContent)
}

type createClientRequest struct {
	AdvisorID        string   `json:"advisorId"`
	Email            string   `json:"email" binding:"required,email"`
	DisplayName      string   `json:"displayName"`
	Reference        string   `json:"reference"`
	Phone            string   `json:"phone"`
	Timezone         string   `json:"timezone"`
	AdvisingOverride []string `json:"advisingOverride"`
}

type updateClientRequest struct {
	DisplayName      *string  `json:"displayName"`
	Reference        *string  `json:"reference"`
	Phone            *string  `json:"phone"`
	Timezone         *string  `json:"timezone"`
	AccessState      *string  `json:"accessState"`
	AdvisingOverride []string `json:"advisingOverride"`
}

// advisorID resolves the advisor scope for client operations. Single-advisor
// deployments omit it and fall back to the configured advisor.
func (m *Module) advisorID(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if q := c.Query("advisorId"); q != "" {
		return q
	}
	return m.cfg.AdvisorID
}

func (m *Module) handleCreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	client, err := m.profiles.CreateClient(c.Request.Context(), profiles.CreateClientParams{
		AdvisorID:        m.advisorID(c, req.AdvisorID),
		Email:            req.Email,
		DisplayName:      req.DisplayName,
		Reference:        req.Reference,
		Phone:            req.Phone,
		Timezone:         req.Timezone,
		AdvisingOverride: req.AdvisingOverride,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, client)
}

func (m *Module) handleListClients(c *gin.Context) {
	limit, offset := pagination(c)
	clients, err := m.profiles.Repo().ListClients(c.Request.Context(), m.advisorID(c, ""), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"clients": clients, "limit": limit, "offset": offset})
}

func (m *Module) handleGetClient(c *gin.Context) {
	client, err := m.profiles.Repo().GetClient(c.Request.Context(), m.advisorID(c, ""), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, client)
}

func (m *Module) handleUpdateClient(c *gin.Context) {
	var req updateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	client, err := m.profiles.UpdateClient(c.Request.Context(), profiles.UpdateClientParams{
		ID:               c.Param("id"),
		AdvisorID:        m.advisorID(c, ""),
		DisplayName:      req.DisplayName,
		Reference:        req.Reference,
		Phone:            req.Phone,
		Timezone:         req.Timezone,
		AccessState:      req.AccessState,
		AdvisingOverride: req.AdvisingOverride,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, client)
}

func (m *Module) handleDeleteClient(c *gin.Context) {
	if httpkit.HandleError(c, m.profiles.Repo().DeleteClient(c.Request.Context(), m.advisorID(c, ""), c.Param("id"))) {
		return
	}
	c.Status(http.StatusNoContent)
}

// handleRecountClient queues an interaction counter rebuild for one client.
// The worker rejects unknown clients, so no existence check happens here.
func (m *Module) handleRecountClient(c *gin.Context) {
	if m.tasks == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "task queue not configured", nil)
		return
	}
	payload := scheduler.InteractionRecountPayload{
		AdvisorID: m.advisorID(c, ""),
		ClientID:  c.Param("id"),
	}
	if err := m.tasks.EnqueueInteractionRecount(c.Request.Context(), payload); err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to queue recount", err.Error())
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"clientId": payload.ClientID, "status": "queued"})
}

type upsertPolicyRequest struct {
	Description      string   `json:"description"`
	AdvisingWeekdays []string `json:"advisingWeekdays" binding:"required,min=1"`
}

func (m *Module) handleUpsertPolicy(c *gin.Context) {
	var req upsertPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	policy, err := m.profiles.Repo().UpsertPolicy(c.Request.Context(), profiles.Policy{
		Name:             c.Param("name"),
		Description:      req.Description,
		AdvisingWeekdays: req.AdvisingWeekdays,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, policy)
}

func (m *Module) handleListPolicies(c *gin.Context) {
	policies, err := m.profiles.Repo().ListPolicies(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"policies": policies})
}

func (m *Module) handleGetPolicy(c *gin.Context) {
	policy, err := m.profiles.Repo().GetPolicy(c.Request.Context(), c.Param("name"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, policy)
}

func (m *Module) handleDeletePolicy(c *gin.Context) {
	if httpkit.HandleError(c, m.profiles.Repo().DeletePolicy(c.Request.Context(), c.Param("name"))) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *Module) handleListTraces(c *gin.Context) {
	limit, offset := pagination(c)
	list, err := m.traces.ListByAdvisor(c.Request.Context(), m.advisorID(c, ""), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"traces": list, "limit": limit, "offset": offset})
}

func (m *Module) handleGetTrace(c *gin.Context) {
	trace, err := m.traces.GetByRequestID(c.Request.Context(), c.Param("requestId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, trace)
}

type traceFeedbackRequest struct {
	ResponseID     string `json:"responseId" validate:"required"`
	FeedbackType   string `json:"feedbackType" validate:"required,oneof=incorrect odd helpful other"`
	FeedbackReason string `json:"feedbackReason" validate:"required,oneof=availability_mismatch timezone_issue tone_quality latency other"`
	FeedbackSource string `json:"feedbackSource" validate:"required,oneof=client advisor system"`
}

// handleTraceFeedback is the advisor-side feedback entry; the public path is
// the /spike/feedback webhook.
func (m *Module) handleTraceFeedback(c *gin.Context) {
	var req traceFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := m.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid feedback", err.Error())
		return
	}
	trace, err := m.traces.ApplyFeedback(c.Request.Context(), traces.FeedbackParams{
		RequestID:      c.Param("requestId"),
		ResponseID:     req.ResponseID,
		FeedbackType:   req.FeedbackType,
		FeedbackReason: req.FeedbackReason,
		FeedbackSource: req.FeedbackSource,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, trace)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// Package portal serves the advisor-facing HTTP surface: the token-gated
// availability view, Google OAuth login, and advisor/client/policy CRUD.
package portal

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"spike_backend/internal/calendar"
	"spike_backend/internal/config"
	"spike_backend/internal/links"
	"spike_backend/internal/profiles"
	"spike_backend/internal/scheduler"
	"spike_backend/internal/secrets"
	"spike_backend/internal/traces"
	"spike_backend/platform/logger"
	"spike_backend/platform/validator"
)

// TaskQueue enqueues background maintenance work. Nil disables the
// queue-backed endpoints.
type TaskQueue interface {
	EnqueueInteractionRecount(ctx context.Context, payload scheduler.InteractionRecountPayload) error
}

// Module bundles the portal handlers and their dependencies.
type Module struct {
	cfg      *config.Config
	log      *logger.Logger
	val      *validator.Validator
	secrets  secrets.Store
	links    *links.Store
	rdb      redis.UniversalClient
	calendar calendar.Provider
	profiles *profiles.Service
	traces   *traces.Repo
	tasks    TaskQueue
	oauth    *oauth2.Config
}

// NewModule wires the portal. The calendar provider may be nil in mock mode.
func NewModule(
	cfg *config.Config,
	log *logger.Logger,
	val *validator.Validator,
	secretStore secrets.Store,
	linkStore *links.Store,
	rdb redis.UniversalClient,
	cal calendar.Provider,
	profileSvc *profiles.Service,
	traceRepo *traces.Repo,
	tasks TaskQueue,
) *Module {
	m := &Module{
		cfg:      cfg,
		log:      log,
		val:      val,
		secrets:  secretStore,
		links:    linkStore,
		rdb:      rdb,
		calendar: cal,
		profiles: profileSvc,
		traces:   traceRepo,
		tasks:    tasks,
	}
	if cfg.GoogleClientID != "" {
		m.oauth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		}
	}
	return m
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "portal"
}

// RegisterRoutes mounts the public availability view, the OAuth endpoints
// and the guarded advisor API.
func (m *Module) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/availability", m.handleAvailability)
	engine.GET("/availability/qr", m.handleAvailabilityQR)

	auth := engine.Group("/advisor/auth/google")
	auth.GET("/start", m.handleOAuthStart)
	auth.GET("/callback", m.handleOAuthCallback)

	advisor := engine.Group("/advisor", m.AuthMiddleware())
	api := advisor.Group("/api")

	api.POST("/advisors", m.handleCreateAdvisor)
	api.GET("/advisors", m.handleListAdvisors)
	api.GET("/advisors/:id", m.handleGetAdvisor)
	api.PATCH("/advisors/:id", m.handleUpdateAdvisor)
	api.DELETE("/advisors/:id", m.handleDeleteAdvisor)

	api.POST("/clients", m.handleCreateClient)
	api.GET("/clients", m.handleListClients)
	api.GET("/clients/:id", m.handleGetClient)
	api.PATCH("/clients/:id", m.handleUpdateClient)
	api.DELETE("/clients/:id", m.handleDeleteClient)
	api.POST("/clients/:id/recount", m.handleRecountClient)

	api.PUT("/policies/:name", m.handleUpsertPolicy)
	api.GET("/policies", m.handleListPolicies)
	api.GET("/policies/:name", m.handleGetPolicy)
	api.DELETE("/policies/:name", m.handleDeletePolicy)

	api.GET("/traces", m.handleListTraces)
	api.GET("/traces/:requestId", m.handleGetTrace)
	api.POST("/traces/:requestId/feedback", m.handleTraceFeedback)
}

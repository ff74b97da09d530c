// Package webhook exposes the inbound email and feedback endpoints that feed
// the scheduling pipeline.
package webhook

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"spike_backend/internal/config"
	"spike_backend/internal/scheduling"
	"spike_backend/internal/timeutil"
	"spike_backend/platform/apperr"
	"spike_backend/platform/httpkit"
	"spike_backend/platform/logger"
)

// Module bundles the webhook handlers.
type Module struct {
	cfg     *config.Config
	log     *logger.Logger
	svc     *scheduling.Service
	limiter *ipLimiter
}

func NewModule(cfg *config.Config, log *logger.Logger, svc *scheduling.Service) *Module {
	return &Module{
		cfg:     cfg,
		log:     log,
		svc:     svc,
		limiter: newIPLimiter(rate.Limit(cfg.WebhookRateLimit), cfg.WebhookRateBurst),
	}
}

func (m *Module) Name() string {
	return "webhook"
}

func (m *Module) RegisterRoutes(engine *gin.Engine) {
	group := engine.Group("/spike")
	group.POST("/email", m.handleEmail)
	group.POST("/feedback", m.handleFeedback)
}

type intervalRequest struct {
	Start string `json:"start" binding:"required"`
	End   string `json:"end" binding:"required"`
}

type sesEnvelope struct {
	MessageID   string `json:"messageId"`
	RawLocation string `json:"rawLocation"`
}

type emailRequest struct {
	FromEmail         string            `json:"fromEmail" binding:"required"`
	Subject           string            `json:"subject"`
	Body              string            `json:"body"`
	Channel           string            `json:"channel"`
	MockBusyIntervals []intervalRequest `json:"mockBusyIntervals"`
	SES               *sesEnvelope      `json:"ses"`
}

func (m *Module) handleEmail(c *gin.Context) {
	if !m.limiter.allow(c.ClientIP()) {
		m.log.RateLimitExceeded(c.ClientIP(), c.Request.URL.Path)
		httpkit.Error(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
		return
	}

	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	payload := scheduling.EmailPayload{
		FromEmail: req.FromEmail,
		Subject:   req.Subject,
		Body:      req.Body,
		Channel:   req.Channel,
	}
	if req.SES != nil {
		payload.SESMessageID = req.SES.MessageID
		payload.RawLocation = req.SES.RawLocation
	}
	for _, iv := range req.MockBusyIntervals {
		start, err := timeutil.ParseISO(iv.Start)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid mock busy interval start: "+iv.Start, nil)
			return
		}
		end, err := timeutil.ParseISO(iv.End)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid mock busy interval end: "+iv.End, nil)
			return
		}
		parsed, err := timeutil.NewInterval(start, end)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid mock busy interval", err.Error())
			return
		}
		payload.MockBusy = append(payload.MockBusy, parsed)
	}

	outcome, err := m.svc.Process(c.Request.Context(), payload)
	if err != nil {
		status := http.StatusInternalServerError
		message := "scheduling failed"
		if domainErr, ok := err.(*apperr.Error); ok {
			status = domainErr.HTTPStatus()
			message = domainErr.Message
		}
		// The request id lets the caller pull the persisted trace.
		httpkit.ErrorWithRequestID(c, status, message, outcome.RequestID)
		return
	}
	httpkit.OK(c, outcome)
}

func (m *Module) handleFeedback(c *gin.Context) {
	if !m.limiter.allow(c.ClientIP()) {
		m.log.RateLimitExceeded(c.ClientIP(), c.Request.URL.Path)
		httpkit.Error(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
		return
	}

	var payload scheduling.FeedbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	trace, err := m.svc.ProcessFeedback(c.Request.Context(), payload)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{
		"requestId":  trace.RequestID,
		"responseId": trace.ResponseID,
		"status":     "recorded",
	})
}

// ipLimiter keeps one token bucket per client IP. Idle buckets are pruned so
// the map cannot grow without bound under address churn.
type ipLimiter struct {
	mu      sync.Mutex
	clients map[string]*ipBucket
	limit   rate.Limit
	burst   int
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterMaxTracked = 10000
)

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{
		clients: make(map[string]*ipBucket),
		limit:   limit,
		burst:   burst,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= limiterMaxTracked {
			l.prune(now)
		}
		bucket = &ipBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.Allow()
}

func (l *ipLimiter) prune(now time.Time) {
	for ip, bucket := range l.clients {
		if now.Sub(bucket.lastSeen) > limiterIdleTTL {
			delete(l.clients, ip)
		}
	}
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"os"
)

// Intent extraction modes.
const (
	IntentModeParser    = "parser"
	IntentModeLLMHybrid = "llm_hybrid"
)

// Response modes.
const (
	ResponseModeLog  = "log"
	ResponseModeSend = "send"
)

// Calendar lookup modes.
const (
	CalendarModeMock   = "mock"
	CalendarModeGoogle = "google"
)

// Portal auth modes.
const (
	PortalAuthNone        = "none"
	PortalAuthSecretBasic = "secret_basic"
	PortalAuthGoogleOAuth = "google_oauth"
)

// Link TTL clamp bounds.
const (
	MinLinkTTL = 15 * time.Minute
	MaxLinkTTL = 14 * 24 * time.Hour
)

type Config struct {
	Env      string
	HTTPAddr string
	Stage    string

	DatabaseURL string
	RedisURL    string

	AdvisorID          string
	AdvisorEmail       string
	AdvisorDisplayName string
	SenderEmail        string

	HostTimezone           string
	AdvisingDays           []string
	WorkdayStartHour       int
	WorkdayEndHour         int
	DefaultDurationMinutes int
	MaxDurationMinutes     int
	SearchDays             int
	MaxSuggestions         int
	SlotMinutes            int
	MaxGridCells           int

	IntentExtractionMode   string
	LLMConfidenceThreshold float64
	ResponseMode           string

	GeminiAPIKey     string
	LLMModel         string
	LLMDraftTimeout  time.Duration
	LLMIntentTimeout time.Duration

	LinkTTL         time.Duration
	LinkBaseURL     string
	SigningKeyARN   string
	SecretsFilePath string
	PortalAuthMode  string
	SessionSecret   string
	SessionTTL      time.Duration

	GoogleClientID      string
	GoogleClientSecret  string
	GoogleRedirectURL   string
	AuthorizedAdvisors  []string
	CalendarMode        string
	GoogleRefreshToken  string
	CalendarLookupLimit time.Duration

	MinioEndpoint     string
	MinioAccessKey    string
	MinioSecretKey    string
	MinioUseSSL       bool
	RawMailBucket     string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	EmailFromName     string
	IMAPEnabled       bool
	IMAPHost          string
	IMAPPort          int
	IMAPUsername      string
	IMAPPassword      string
	IMAPPollInterval  time.Duration
	WebhookRateLimit  float64
	WebhookRateBurst  int
	TraceRetention    time.Duration
	PolicyPresetsPath string

	AsynqQueue       string
	AsynqConcurrency int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	linkTTL := mustDuration(getEnv("LINK_TTL", "168h"))
	if linkTTL < MinLinkTTL {
		linkTTL = MinLinkTTL
	}
	if linkTTL > MaxLinkTTL {
		linkTTL = MaxLinkTTL
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Stage:    getEnv("STAGE_NAME", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		AdvisorID:          getEnv("ADVISOR_ID", "default"),
		AdvisorEmail:       strings.ToLower(getEnv("ADVISOR_EMAIL", "")),
		AdvisorDisplayName: getEnv("ADVISOR_DISPLAY_NAME", "Your Advisor"),
		SenderEmail:        getEnv("SENDER_EMAIL", ""),

		HostTimezone:           getEnv("HOST_TIMEZONE", "America/Los_Angeles"),
		AdvisingDays:           splitCSV(getEnv("ADVISING_DAYS", "Mon,Tue,Wed,Thu,Fri")),
		WorkdayStartHour:       getEnvInt("WORKDAY_START_HOUR", 9),
		WorkdayEndHour:         getEnvInt("WORKDAY_END_HOUR", 17),
		DefaultDurationMinutes: getEnvInt("DEFAULT_DURATION_MINUTES", 30),
		MaxDurationMinutes:     getEnvInt("MAX_DURATION_MINUTES", 240),
		SearchDays:             getEnvInt("SEARCH_DAYS", 14),
		MaxSuggestions:         getEnvInt("MAX_SUGGESTIONS", 3),
		SlotMinutes:            getEnvInt("SLOT_MINUTES", 30),
		MaxGridCells:           getEnvInt("MAX_GRID_CELLS", 600),

		IntentExtractionMode:   getEnv("INTENT_EXTRACTION_MODE", IntentModeParser),
		LLMConfidenceThreshold: getEnvFloat("LLM_CONFIDENCE_THRESHOLD", 0.65),
		ResponseMode:           getEnv("RESPONSE_MODE", ResponseModeLog),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		LLMModel:         getEnv("LLM_MODEL", "gemini-2.0-flash"),
		LLMDraftTimeout:  mustDuration(getEnv("LLM_DRAFT_TIMEOUT", "4s")),
		LLMIntentTimeout: mustDuration(getEnv("LLM_INTENT_TIMEOUT", "10s")),

		LinkTTL:         linkTTL,
		LinkBaseURL:     getEnv("LINK_BASE_URL", "http://localhost:8080"),
		SigningKeyARN:   getEnv("SIGNING_KEY_SECRET", "spike/signing-key"),
		SecretsFilePath: getEnv("SECRETS_FILE", ""),
		PortalAuthMode:  getEnv("PORTAL_AUTH_MODE", PortalAuthNone),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
		SessionTTL:      mustDuration(getEnv("SESSION_TTL", "12h")),

		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:   getEnv("GOOGLE_REDIRECT_URL", ""),
		AuthorizedAdvisors:  splitCSV(strings.ToLower(getEnv("AUTHORIZED_ADVISOR_EMAILS", ""))),
		CalendarMode:        getEnv("CALENDAR_MODE", CalendarModeMock),
		GoogleRefreshToken:  getEnv("GOOGLE_CALENDAR_REFRESH_TOKEN", ""),
		CalendarLookupLimit: mustDuration(getEnv("CALENDAR_LOOKUP_TIMEOUT", "8s")),

		MinioEndpoint:     getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:    getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:    getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:       getEnvBool("MINIO_USE_SSL", false),
		RawMailBucket:     getEnv("RAW_MAIL_BUCKET", "spike-inbound-mail"),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnvInt("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "Spike Scheduling"),
		IMAPEnabled:       getEnvBool("IMAP_ENABLED", false),
		IMAPHost:          getEnv("IMAP_HOST", ""),
		IMAPPort:          getEnvInt("IMAP_PORT", 993),
		IMAPUsername:      getEnv("IMAP_USERNAME", ""),
		IMAPPassword:      getEnv("IMAP_PASSWORD", ""),
		IMAPPollInterval:  mustDuration(getEnv("IMAP_POLL_INTERVAL", "1m")),
		WebhookRateLimit:  getEnvFloat("WEBHOOK_RATE_LIMIT", 5),
		WebhookRateBurst:  getEnvInt("WEBHOOK_RATE_BURST", 10),
		TraceRetention:    mustDuration(getEnv("TRACE_RETENTION", "720h")),
		PolicyPresetsPath: getEnv("POLICY_PRESETS_PATH", "configs/policies.yaml"),

		AsynqQueue:       getEnv("ASYNQ_QUEUE", "spike"),
		AsynqConcurrency: getEnvInt("ASYNQ_CONCURRENCY", 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.WorkdayStartHour < 0 || cfg.WorkdayStartHour > 23 {
		return nil, fmt.Errorf("WORKDAY_START_HOUR must be in [0,23]")
	}
	if cfg.WorkdayEndHour <= cfg.WorkdayStartHour || cfg.WorkdayEndHour > 24 {
		return nil, fmt.Errorf("WORKDAY_END_HOUR must be in (start,24]")
	}
	switch cfg.IntentExtractionMode {
	case IntentModeParser, IntentModeLLMHybrid:
	default:
		return nil, fmt.Errorf("INTENT_EXTRACTION_MODE must be %q or %q", IntentModeParser, IntentModeLLMHybrid)
	}
	if cfg.IntentExtractionMode == IntentModeLLMHybrid && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when INTENT_EXTRACTION_MODE is %s", IntentModeLLMHybrid)
	}
	switch cfg.ResponseMode {
	case ResponseModeLog, ResponseModeSend:
	default:
		return nil, fmt.Errorf("RESPONSE_MODE must be %q or %q", ResponseModeLog, ResponseModeSend)
	}
	switch cfg.PortalAuthMode {
	case PortalAuthNone, PortalAuthSecretBasic, PortalAuthGoogleOAuth:
	default:
		return nil, fmt.Errorf("PORTAL_AUTH_MODE must be none, secret_basic or google_oauth")
	}
	if cfg.PortalAuthMode == PortalAuthGoogleOAuth && cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required when PORTAL_AUTH_MODE is google_oauth")
	}

	return cfg, nil
}

// GetDatabaseURL satisfies platform/db.Config.
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return strings.EqualFold(strings.TrimSpace(val), "true")
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

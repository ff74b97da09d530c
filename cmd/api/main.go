package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"spike_backend/internal/calendar"
	"spike_backend/internal/config"
	"spike_backend/internal/inbound"
	"spike_backend/internal/links"
	"spike_backend/internal/llm"
	"spike_backend/internal/mailer"
	"spike_backend/internal/portal"
	"spike_backend/internal/profiles"
	"spike_backend/internal/rawmail"
	"spike_backend/internal/scheduler"
	"spike_backend/internal/scheduling"
	"spike_backend/internal/secrets"
	"spike_backend/internal/traces"
	"spike_backend/internal/webhook"
	"spike_backend/platform/db"
	"spike_backend/platform/logger"
	"spike_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("invalid redis url", "error", err)
		panic("invalid redis url: " + err.Error())
	}
	rdb := redis.NewClient(redisOpt)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	log.Info("redis connection established")

	var secretBackend secrets.Store = secrets.EnvStore{}
	if cfg.SecretsFilePath != "" {
		secretBackend = secrets.FileStore{Path: cfg.SecretsFilePath}
	}
	secretStore := secrets.NewCached(secretBackend)
	linkStore := links.NewStore(rdb)
	val := validator.New()

	taskClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		panic("failed to initialize task client: " + err.Error())
	}
	defer taskClient.Close()

	// ========================================================================
	// Domain Collaborators
	// ========================================================================

	profileRepo := profiles.New(pool)
	profileSvc := profiles.NewService(profileRepo)
	traceRepo := traces.New(pool)

	if err := profileRepo.EnsureAdvisor(ctx, cfg.AdvisorID, profiles.CreateAdvisorParams{
		DisplayName:      cfg.AdvisorDisplayName,
		Email:            cfg.AdvisorEmail,
		Timezone:         cfg.HostTimezone,
		AdvisingWeekdays: cfg.AdvisingDays,
		WorkdayStartHour: cfg.WorkdayStartHour,
		WorkdayEndHour:   cfg.WorkdayEndHour,
	}); err != nil {
		log.Error("failed to seed advisor profile", "error", err)
		panic("failed to seed advisor profile: " + err.Error())
	}

	if err := profileSvc.LoadPolicyPresets(ctx, cfg.PolicyPresetsPath); err != nil {
		log.Warn("failed to load policy presets", "path", cfg.PolicyPresetsPath, "error", err)
	}

	calendarProvider := initCalendar(ctx, cfg, log)

	var drafter scheduling.Drafter
	if cfg.GeminiAPIKey != "" {
		client, err := llm.NewClient(ctx, llm.Config{
			APIKey:        cfg.GeminiAPIKey,
			Model:         cfg.LLMModel,
			DraftTimeout:  cfg.LLMDraftTimeout,
			IntentTimeout: cfg.LLMIntentTimeout,
		})
		if err != nil {
			log.Error("failed to initialize llm client", "error", err)
			panic("failed to initialize llm client: " + err.Error())
		}
		drafter = client
		log.Info("llm client initialized", "model", cfg.LLMModel)
	} else {
		log.Info("llm disabled, template drafting only")
	}

	var rawFetcher scheduling.RawEmailFetcher
	if cfg.MinioEndpoint != "" {
		store, err := rawmail.NewStore(rawmail.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.RawMailBucket,
		}, log)
		if err != nil {
			log.Error("failed to initialize raw mail store", "error", err)
			panic("failed to initialize raw mail store: " + err.Error())
		}
		rawFetcher = store
		log.Info("raw mail store initialized", "bucket", cfg.RawMailBucket)
	}

	var sender scheduling.Sender
	if cfg.SMTPHost != "" {
		sender = mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SenderEmail, cfg.EmailFromName)
		log.Info("smtp sender initialized", "host", cfg.SMTPHost)
	}

	schedulingSvc := scheduling.NewService(cfg, scheduling.Collaborators{
		Calendar: calendarProvider,
		Links:    linkStore,
		Traces:   traceRepo,
		Profiles: profileSvc,
		RawMail:  rawFetcher,
		LLM:      drafter,
		Mailer:   sender,
	}, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(portal.StripStagePrefix(cfg.Stage))
	engine.Use(portal.RequestID())
	engine.Use(portal.RequestLogger(log))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.LinkBaseURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	webhookModule := webhook.NewModule(cfg, log, schedulingSvc)
	portalModule := portal.NewModule(cfg, log, val, secretStore, linkStore, rdb, calendarProvider, profileSvc, traceRepo, taskClient)
	for _, module := range []interface {
		Name() string
		RegisterRoutes(*gin.Engine)
	}{webhookModule, portalModule} {
		module.RegisterRoutes(engine)
		log.Info("module registered", "module", module.Name())
	}

	if cfg.IMAPEnabled {
		go inbound.NewPoller(cfg, log, schedulingSvc).Run(ctx)
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initCalendar builds the Google provider from a stored refresh token. Mock
// mode returns nil; the orchestrator serves payload intervals instead.
func initCalendar(ctx context.Context, cfg *config.Config, log *logger.Logger) calendar.Provider {
	if cfg.CalendarMode != config.CalendarModeGoogle {
		log.Info("calendar in mock mode")
		return nil
	}
	if cfg.GoogleClientID == "" || cfg.GoogleRefreshToken == "" {
		log.Warn("google calendar mode without credentials, lookups will fail")
		return nil
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.readonly"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GoogleRefreshToken})
	log.Info("google calendar provider initialized")
	return calendar.NewGoogleProvider(ctx, ts)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"spike_backend/internal/config"
	"spike_backend/internal/links"
	"spike_backend/platform/logger"
	"spike_backend/platform/validator"
)

type stubSecrets struct {
	bundles map[string]map[string]string
}

func (s *stubSecrets) Get(_ context.Context, ref string) (map[string]string, error) {
	if bundle, ok := s.bundles[ref]; ok {
		return bundle, nil
	}
	return nil, context.Canceled
}

func testModule(t *testing.T, cfg *config.Config) (*Module, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	secretStore := &stubSecrets{bundles: map[string]map[string]string{
		BasicCredentialsSecret: {"username": "ops", "password": "hunter2"},
		cfg.SigningKeyARN:      {"signingKey": "test-signing-key"},
	}}

	m := NewModule(cfg, logger.New("test"), validator.New(), secretStore,
		links.NewStore(rdb), rdb, nil, nil, nil, nil)
	return m, mr
}

func testPortalConfig() *config.Config {
	return &config.Config{
		AdvisorID:      "adv-1",
		LinkBaseURL:    "https://portal.example.com",
		SigningKeyARN:  "spike/signing-key",
		PortalAuthMode: config.PortalAuthNone,
		SessionSecret:  "session-secret",
		SessionTTL:     time.Hour,
		Env:            "test",
	}
}

func TestStripStagePrefix(t *testing.T) {
	engine := gin.New()
	engine.Use(StripStagePrefix("prod"))
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for _, path := range []string{"/prod/ping", "/ping"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("path %s: status = %d, want 200", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/production/ping", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("partial prefix match should not strip, got %d", w.Code)
	}
}

func TestRequestIDEchoAndGenerate(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	engine.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("request id = %q, want echoed req-123", got)
	}

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestClampWeekOffset(t *testing.T) {
	cases := map[string]int{
		"":     0,
		"abc":  0,
		"3":    3,
		"-8":   -8,
		"-9":   -8,
		"52":   52,
		"1000": 52,
	}
	for raw, want := range cases {
		if got := clampWeekOffset(raw); got != want {
			t.Errorf("clampWeekOffset(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestSafeReturnTo(t *testing.T) {
	good := []string{"/advisor", "/advisor/api/clients?limit=5"}
	bad := []string{"", "//evil.example.com", "https://evil.example.com", "advisor"}
	for _, p := range good {
		if !safeReturnTo(p) {
			t.Errorf("safeReturnTo(%q) = false, want true", p)
		}
	}
	for _, p := range bad {
		if safeReturnTo(p) {
			t.Errorf("safeReturnTo(%q) = true, want false", p)
		}
	}
}

func TestSessionRoundTrip(t *testing.T) {
	secret := []byte("session-secret")
	now := time.Now()

	token, err := IssueSession(secret, "advisor@example.com", time.Hour, now)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	email, err := ParseSession(secret, token)
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}
	if email != "advisor@example.com" {
		t.Fatalf("email = %q", email)
	}

	if _, err := ParseSession([]byte("other-secret"), token); err == nil {
		t.Fatal("wrong secret should not verify")
	}
	if _, err := ParseSession(secret, token+"x"); err == nil {
		t.Fatal("tampered token should not verify")
	}

	expired, err := IssueSession(secret, "advisor@example.com", time.Hour, now.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := ParseSession(secret, expired); err == nil {
		t.Fatal("expired session should not verify")
	}
}

func TestSecretBasicAuth(t *testing.T) {
	cfg := testPortalConfig()
	cfg.PortalAuthMode = config.PortalAuthSecretBasic
	m, _ := testModule(t, cfg)

	engine := gin.New()
	engine.GET("/advisor/api/clients", m.AuthMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/advisor/api/clients", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no credentials: status = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/advisor/api/clients", nil)
	req.SetBasicAuth("ops", "wrong")
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/advisor/api/clients", nil)
	req.SetBasicAuth("ops", "hunter2")
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("good credentials: status = %d, want 200", w.Code)
	}
}

func TestSessionAuthSplitsAPIAndBrowser(t *testing.T) {
	cfg := testPortalConfig()
	cfg.PortalAuthMode = config.PortalAuthGoogleOAuth
	m, _ := testModule(t, cfg)

	engine := gin.New()
	auth := m.AuthMiddleware()
	engine.GET("/advisor/api/clients", auth, func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/advisor", auth, func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/advisor/api/clients", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("api without session: status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/advisor", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("browser without session: status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, "/advisor/auth/google/start?returnTo=") {
		t.Fatalf("redirect location = %q", loc)
	}

	session, err := IssueSession([]byte(cfg.SessionSecret), "advisor@example.com", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/advisor/api/clients", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session})
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid session: status = %d, want 200", w.Code)
	}
}

func TestAvailabilityRejectsBadTokens(t *testing.T) {
	m, _ := testModule(t, testPortalConfig())
	engine := gin.New()
	m.RegisterRoutes(engine)

	for _, target := range []string{"/availability", "/availability?t=nosuchtoken12345", "/availability?t=not.a.real.token"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s: status = %d, want 403", target, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
			t.Fatalf("%s: content type = %q, want html", target, ct)
		}
		if !strings.Contains(w.Body.String(), "no longer valid") {
			t.Fatalf("%s: body does not explain the expired link", target)
		}
	}
}

func TestResolveTokenShortAndLegacy(t *testing.T) {
	m, _ := testModule(t, testPortalConfig())
	ctx := context.Background()
	now := time.Now()

	rec, err := m.links.Allocate(ctx, links.Record{
		AdvisorID:       "adv-1",
		ClientEmail:     "dana@example.com",
		DurationMinutes: 45,
	}, time.Hour, now)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	link, ok := m.resolveToken(ctx, rec.TokenID)
	if !ok {
		t.Fatal("stored token should resolve")
	}
	if link.AdvisorID != "adv-1" || link.ClientEmail != "dana@example.com" || link.DurationMinutes != 45 {
		t.Fatalf("link = %+v", link)
	}

	legacy, err := links.SignLegacy(links.LegacyPayload{
		AdvisorID:       "adv-1",
		IssuedAtMs:      now.UnixMilli(),
		ExpiresAtMs:     now.Add(time.Hour).UnixMilli(),
		ClientTimezone:  "America/New_York",
		DurationMinutes: 30,
	}, []byte("test-signing-key"))
	if err != nil {
		t.Fatalf("SignLegacy: %v", err)
	}
	link, ok = m.resolveToken(ctx, legacy)
	if !ok {
		t.Fatal("legacy token should resolve")
	}
	if link.AdvisorID != "adv-1" || link.ClientTimezone != "America/New_York" {
		t.Fatalf("legacy link = %+v", link)
	}

	expired, err := links.SignLegacy(links.LegacyPayload{
		AdvisorID:       "adv-1",
		IssuedAtMs:      now.Add(-2 * time.Hour).UnixMilli(),
		ExpiresAtMs:     now.Add(-time.Hour).UnixMilli(),
		DurationMinutes: 30,
	}, []byte("test-signing-key"))
	if err != nil {
		t.Fatalf("SignLegacy: %v", err)
	}
	if _, ok := m.resolveToken(ctx, expired); ok {
		t.Fatal("expired legacy token should not resolve")
	}
}

func TestOAuthStartStoresNonce(t *testing.T) {
	cfg := testPortalConfig()
	cfg.PortalAuthMode = config.PortalAuthGoogleOAuth
	cfg.GoogleClientID = "client-id"
	cfg.GoogleClientSecret = "client-secret"
	cfg.GoogleRedirectURL = "https://portal.example.com/advisor/auth/google/callback"
	m, mr := testModule(t, cfg)

	engine := gin.New()
	m.RegisterRoutes(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/advisor/auth/google/start?returnTo=/advisor", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://accounts.google.com/o/oauth2/v2/auth") {
		t.Fatalf("redirect target = %q", loc)
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("expected one nonce key, got %v", mr.Keys())
	}
}

func TestOAuthCallbackRejectsUnknownState(t *testing.T) {
	cfg := testPortalConfig()
	cfg.PortalAuthMode = config.PortalAuthGoogleOAuth
	cfg.GoogleClientID = "client-id"
	m, _ := testModule(t, cfg)

	engine := gin.New()
	m.RegisterRoutes(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/advisor/auth/google/callback?state=bogus&code=abc", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAvailabilityQRRejectsBadToken(t *testing.T) {
	m, _ := testModule(t, testPortalConfig())
	engine := gin.New()
	m.RegisterRoutes(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/availability/qr?t=unknown", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

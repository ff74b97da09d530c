package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"spike_backend/platform/httpkit"
)

const (
	nonceKeyPrefix = "oauthnonce:"
	nonceTTL       = 10 * time.Minute

	userinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// handleOAuthStart stores a one-time nonce and bounces the browser to Google.
func (m *Module) handleOAuthStart(c *gin.Context) {
	if m.oauth == nil {
		httpkit.Error(c, http.StatusInternalServerError, "google oauth is not configured", nil)
		return
	}

	returnTo := c.Query("returnTo")
	if !safeReturnTo(returnTo) {
		returnTo = "/advisor"
	}

	nonce := uuid.New().String()
	ok, err := m.rdb.SetNX(c.Request.Context(), nonceKeyPrefix+nonce, returnTo, nonceTTL).Result()
	if err != nil || !ok {
		httpkit.Error(c, http.StatusInternalServerError, "failed to start login", nil)
		return
	}

	c.Redirect(http.StatusFound, m.oauth.AuthCodeURL(nonce))
}

// handleOAuthCallback consumes the nonce, exchanges the code and issues the
// signed session cookie.
func (m *Module) handleOAuthCallback(c *gin.Context) {
	if m.oauth == nil {
		httpkit.Error(c, http.StatusInternalServerError, "google oauth is not configured", nil)
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		httpkit.Error(c, http.StatusBadRequest, "missing state or code", nil)
		return
	}

	// GetDel makes the nonce one-time: a replayed state finds nothing.
	returnTo, err := m.rdb.GetDel(c.Request.Context(), nonceKeyPrefix+state).Result()
	if err == redis.Nil {
		m.log.AuthEvent("oauth_callback", "", false, "unknown or replayed state")
		httpkit.Error(c, http.StatusUnauthorized, "login expired, try again", nil)
		return
	}
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to verify login", nil)
		return
	}

	token, err := m.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		m.log.AuthEvent("oauth_callback", "", false, "code exchange failed")
		httpkit.Error(c, http.StatusUnauthorized, "login failed", nil)
		return
	}

	email, err := m.fetchEmail(c.Request.Context(), token.AccessToken)
	if err != nil {
		m.log.AuthEvent("oauth_callback", "", false, "userinfo fetch failed")
		httpkit.Error(c, http.StatusUnauthorized, "login failed", nil)
		return
	}

	if !m.authorizedAdvisor(email) {
		m.log.AuthEvent("oauth_callback", email, false, "email not authorised")
		httpkit.Error(c, http.StatusForbidden, "this account is not authorised for the portal", nil)
		return
	}

	session, err := IssueSession([]byte(m.cfg.SessionSecret), email, m.cfg.SessionTTL, time.Now())
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to issue session", nil)
		return
	}

	secure := !strings.EqualFold(m.cfg.Env, "development")
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, session, int(m.cfg.SessionTTL.Seconds()), "/", "", secure, true)
	m.log.AuthEvent("oauth_callback", email, true, "")

	if !safeReturnTo(returnTo) {
		returnTo = "/advisor"
	}
	c.Redirect(http.StatusFound, returnTo)
}

func (m *Module) fetchEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	if info.Email == "" || !info.EmailVerified {
		return "", fmt.Errorf("no verified email in userinfo")
	}
	return strings.ToLower(info.Email), nil
}

func (m *Module) authorizedAdvisor(email string) bool {
	if email == m.cfg.AdvisorEmail && email != "" {
		return true
	}
	for _, allowed := range m.cfg.AuthorizedAdvisors {
		if email == allowed {
			return true
		}
	}
	return false
}

// safeReturnTo only allows same-site relative paths.
func safeReturnTo(raw string) bool {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Host == "" && u.Scheme == ""
}

package portal

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"spike_backend/internal/config"
	"spike_backend/platform/httpkit"
)

// BasicCredentialsSecret is the secret reference holding the portal's
// username and password for secret_basic mode.
const BasicCredentialsSecret = "spike/portal-basic-auth"

// advisorEmailKey is the gin context key for the authenticated advisor.
const advisorEmailKey = "advisorEmail"

// AuthMiddleware guards the advisor portal according to the configured mode.
func (m *Module) AuthMiddleware() gin.HandlerFunc {
	switch m.cfg.PortalAuthMode {
	case config.PortalAuthSecretBasic:
		return m.secretBasicAuth()
	case config.PortalAuthGoogleOAuth:
		return m.sessionAuth()
	default:
		return func(c *gin.Context) { c.Next() }
	}
}

func (m *Module) secretBasicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		bundle, err := m.secrets.Get(c.Request.Context(), BasicCredentialsSecret)
		if err != nil {
			m.log.AuthEvent("basic_auth", "", false, "credentials secret unavailable")
			httpkit.Error(c, http.StatusInternalServerError, "portal auth unavailable", nil)
			c.Abort()
			return
		}

		user, pass, ok := c.Request.BasicAuth()
		if !ok || !constantTimeEqual(user, bundle["username"]) || !passwordMatches(pass, bundle) {
			m.log.AuthEvent("basic_auth", user, false, "bad credentials")
			c.Header("WWW-Authenticate", `Basic realm="advisor portal"`)
			httpkit.Error(c, http.StatusUnauthorized, "authentication required", nil)
			c.Abort()
			return
		}
		c.Set(advisorEmailKey, bundle["username"])
		c.Next()
	}
}

func (m *Module) sessionAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(SessionCookieName)
		if err == nil {
			if email, perr := ParseSession([]byte(m.cfg.SessionSecret), cookie); perr == nil {
				c.Set(advisorEmailKey, email)
				c.Next()
				return
			}
		}

		// API callers get a 401; browsers get bounced through the OAuth flow.
		if isAPIPath(c.Request.URL.Path) || wantsJSON(c) {
			httpkit.Error(c, http.StatusUnauthorized, "session required", nil)
			c.Abort()
			return
		}
		returnTo := url.QueryEscape(c.Request.URL.RequestURI())
		c.Redirect(http.StatusFound, "/advisor/auth/google/start?returnTo="+returnTo)
		c.Abort()
	}
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/advisor/api/")
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// passwordMatches prefers a bcrypt hash in the bundle and falls back to a
// plaintext password for bootstrap setups.
func passwordMatches(pass string, bundle map[string]string) bool {
	if hash := bundle["passwordHash"]; hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil
	}
	return constantTimeEqual(pass, bundle["password"])
}

// constantTimeEqual compares through fixed-size digests so mismatched lengths
// leak nothing.
func constantTimeEqual(got, want string) bool {
	a := sha256.Sum256([]byte(got))
	b := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

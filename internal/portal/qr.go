package portal

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// handleAvailabilityQR renders the availability link for a valid token as a
// PNG, sized for printing or embedding in an email signature.
func (m *Module) handleAvailabilityQR(c *gin.Context) {
	token := c.Query("t")
	if _, ok := m.resolveToken(c.Request.Context(), token); !ok {
		m.renderForbidden(c)
		return
	}

	size := defaultQRSize
	if raw := c.Query("size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= maxQRSize {
			size = n
		}
	}

	target := m.cfg.LinkBaseURL + "/availability?t=" + url.QueryEscape(token)
	png, err := qrcode.Encode(target, qrcode.Medium, size)
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to render qr code")
		return
	}

	c.Header("Cache-Control", "private, max-age="+strconv.Itoa(int((5*time.Minute).Seconds())))
	c.Data(http.StatusOK, "image/png", png)
}

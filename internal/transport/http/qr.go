package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// joinQR renders a PNG QR code pointing players at the join page of a session.
func (h *gameHandler) joinQR(c *gin.Context) {
	code := c.Param("code")
	if _, err := h.engine.SessionByCode(c.Request.Context(), code); err != nil {
		writeError(c, h.log, err)
		return
	}

	size := defaultQRSize
	if raw := c.Query("size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= maxQRSize {
			size = n
		}
	}

	png, err := qrcode.Encode(h.joinURL(c, code), qrcode.Medium, size)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *gameHandler) joinURL(c *gin.Context, code string) string {
	base := strings.TrimRight(h.publicURL, "/")
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/join?code=" + url.QueryEscape(code)
}

// Package controllers file: controllers/page_controller.go
package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go-lift-control/logger"
	"go-lift-control/services"
)

const (
	defaultQRSize = 300
	maxQRSize     = 1024
)

// PageController serves the endpoints client pages bootstrap from.
type PageController struct {
	ApplicationURL string
	WebsocketURL   string
	Sessions       func() int
	Encode         services.QREncoder
}

// NewPageController creates a PageController. sessions may be nil.
func NewPageController(appURL, wsURL string, sessions func() int) *PageController {
	logger.Info.Printf("[NewPageController] ApplicationURL=%s, WebsocketURL=%s", appURL, wsURL)
	return &PageController{
		ApplicationURL: appURL,
		WebsocketURL:   wsURL,
		Sessions:       sessions,
		Encode:         qrcode.Encode,
	}
}

// Health is the load balancer probe.
func (pc *PageController) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if pc.Sessions != nil {
		body["sessions"] = pc.Sessions()
	}
	c.JSON(http.StatusOK, body)
}

// ClientConfig tells judge tablets and displays where to connect.
func (pc *PageController) ClientConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"applicationUrl": pc.ApplicationURL,
		"websocketUrl":   pc.WebsocketURL,
	})
}

// SessionQRCode renders a PNG linking judges to the session's judging page.
func (pc *PageController) SessionQRCode(c *gin.Context) {
	sessionID := c.Param("id")
	size := defaultQRSize
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxQRSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be between 1 and 1024", "code": "INVALID_INPUT"})
			return
		}
		size = n
	}

	png, err := services.GenerateSessionQRCode(pc.ApplicationURL, sessionID, size, pc.Encode)
	if err != nil {
		logger.Error.Printf("[SessionQRCode] Error generating QR code for session=%s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "QR generation failed", "code": "INTERNAL"})
		return
	}

	c.Header("Content-Disposition", "inline; filename=\"session-qrcode.png\"")
	c.Data(http.StatusOK, "image/png", png)
}

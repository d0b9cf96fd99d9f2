// services/qrcode_service.go
package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// QREncoder matches qrcode.Encode so tests can stub it.
type QREncoder func(content string, level qrcode.RecoveryLevel, size int) ([]byte, error)

// SessionJoinURL is the link judges scan to open a session's judging page.
func SessionJoinURL(baseURL, sessionID string) string {
	return strings.TrimRight(baseURL, "/") + "/judge?session=" + url.QueryEscape(sessionID)
}

// GenerateSessionQRCode renders the join link of sessionID as a PNG.
func GenerateSessionQRCode(baseURL, sessionID string, size int, encode QREncoder) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid size: %d", size)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if encode == nil {
		encode = qrcode.Encode
	}

	png, err := encode(SessionJoinURL(baseURL, sessionID), qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	return png, nil
}

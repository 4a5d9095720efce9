package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// ShareURL joins the public share base URL and a link token.
func ShareURL(baseURL, token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return token
	}
	return baseURL + "/" + url.PathEscape(token)
}

// RenderQRCode encodes content as a PNG QR code. Sizes outside the supported range are clamped.
func RenderQRCode(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("share link: qr content is required")
	}
	switch {
	case size <= 0:
		size = defaultQRSize
	case size < minQRSize:
		size = minQRSize
	case size > maxQRSize:
		size = maxQRSize
	}

	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("share link: encode qr: %w", err)
	}
	return png, nil
}

// Package qr renders session tokens as QR code images for display and
// download. It is a thin wrapper around github.com/skip2/go-qrcode; decoding
// camera input is the client's job.
package qr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrEmptyContent is returned when the payload is empty or only whitespace.
var ErrEmptyContent = errors.New("qr: content cannot be empty")

// defaultSize is the image size in pixels when none is specified.
const defaultSize = 256

// PNG encodes content as a QR code PNG of size x size pixels.
func PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = defaultSize
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

// DataURL encodes content as a base64 PNG data URL suitable for an <img> src.
func DataURL(content string, size int) (string, error) {
	png, err := PNG(content, size)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(png)), nil
}

// Package qrcode renders license keys as QR codes so a key shown on one
// device can be scanned into another.
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned for empty or whitespace-only content.
	ErrEmptyContent = errors.New("qr content cannot be empty")
	// ErrGenerationFailed wraps failures of the underlying encoder.
	ErrGenerationFailed = errors.New("failed to generate qr code")
)

// defaultSize in pixels, used when size is not positive.
const defaultSize = 256

// Generate encodes content as a PNG QR code of the given size.
func Generate(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = defaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrGenerationFailed, err)
	}
	return png, nil
}

// GenerateDataURI encodes content as a base64 PNG data URI, ready for an
// <img src> attribute.
func GenerateDataURI(content string, size int) (string, error) {
	png, err := Generate(content, size)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(png)), nil
}

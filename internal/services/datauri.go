package services

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/desertthunder/footprint/internal/shared"
)

// DataURI is a decoded "data:" URI.
type DataURI struct {
	ContentType string
	Data        []byte
}

// IsDataURI reports whether s looks like a data URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// DecodeDataURI parses "data:<mime>;base64,<payload>". Only base64 payloads are supported.
func DecodeDataURI(s string) (*DataURI, error) {
	meta, payload, ok := strings.Cut(s, ",")
	if !ok || !IsDataURI(meta) {
		return nil, fmt.Errorf("%w: missing data: header", shared.ErrInvalidDataURI)
	}

	mediaType := strings.TrimPrefix(meta, "data:")
	contentType, encoding, _ := strings.Cut(mediaType, ";")
	if encoding != "base64" {
		return nil, fmt.Errorf("%w: unsupported encoding %q", shared.ErrInvalidDataURI, encoding)
	}
	if contentType == "" {
		contentType = "text/plain"
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidDataURI, err)
	}
	return &DataURI{ContentType: contentType, Data: data}, nil
}

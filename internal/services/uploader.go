package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/desertthunder/footprint/internal/shared"
)

// Uploader stores an image and returns a URL it can be retrieved from.
type Uploader interface {
	// Upload sends the contents of r. filename is only used for its extension and as a hint to the provider.
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (url string, err error)

	// Name returns the provider name (e.g., "cloudinary", "s3")
	Name() string
}

// NewUploader builds the [Uploader] selected by cfg.Provider.
func NewUploader(ctx context.Context, cfg shared.UploadConfig, client *http.Client) (Uploader, error) {
	switch cfg.Provider {
	case "", "none":
		return NoopUploader{}, nil
	case "cloudinary":
		return NewCloudinaryUploader(cfg.Cloudinary, cfg.Folder, client)
	case "s3":
		return NewS3Uploader(ctx, cfg.S3, cfg.Folder)
	}
	return nil, fmt.Errorf("%w: unsupported upload provider %q", shared.ErrInvalidConfig, cfg.Provider)
}

// NoopUploader rejects every upload. It is used when no provider is configured.
type NoopUploader struct{}

func (NoopUploader) Upload(context.Context, string, string, io.Reader) (string, error) {
	return "", fmt.Errorf("%w: no upload provider configured", shared.ErrUploadFailed)
}

func (NoopUploader) Name() string { return "none" }

// DetectContentType resolves the image MIME type from the filename extension, falling back to sniffing head.
func DetectContentType(filename string, head []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return http.DetectContentType(head)
}

// extensionFor picks a file extension for contentType.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	if parts := strings.SplitN(contentType, "/", 2); len(parts) == 2 {
		return "." + parts[1]
	}
	return ""
}

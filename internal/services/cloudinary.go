package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"

	"github.com/desertthunder/footprint/internal/shared"
)

const defaultCloudinaryURL = "https://api.cloudinary.com"

// CloudinaryUploader performs unsigned uploads with an upload preset through the Cloudinary SDK.
type CloudinaryUploader struct {
	cld          *cloudinary.Cloudinary
	uploadPreset string
	folder       string
}

// NewCloudinaryUploader validates cfg and creates an uploader. BaseURL replaces the API host, e.g. for tests.
func NewCloudinaryUploader(cfg shared.CloudinaryConfig, folder string, client *http.Client) (*CloudinaryUploader, error) {
	if cfg.CloudName == "" || cfg.UploadPreset == "" {
		return nil, fmt.Errorf("%w: cloudinary requires cloud_name and upload_preset", shared.ErrMissingConfig)
	}

	conf, err := config.NewFromParams(cfg.CloudName, "", "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}
	conf.API.UploadPrefix = defaultCloudinaryURL
	if cfg.BaseURL != "" {
		conf.API.UploadPrefix = strings.TrimRight(cfg.BaseURL, "/")
	}

	cld, err := cloudinary.NewFromConfiguration(*conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}
	if client != nil {
		cld.Upload.Client = *client
	}

	return &CloudinaryUploader{cld: cld, uploadPreset: cfg.UploadPreset, folder: folder}, nil
}

func (c *CloudinaryUploader) Name() string { return "cloudinary" }

// UploadPrefix returns the API host uploads are sent to.
func (c *CloudinaryUploader) UploadPrefix() string {
	return c.cld.Upload.Config.API.UploadPrefix
}

// Upload sends the image with the configured preset and returns the secure URL of the stored asset.
func (c *CloudinaryUploader) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	params := uploader.UploadParams{Folder: c.folder}

	res, err := c.cld.Upload.UnsignedUpload(ctx, r, c.uploadPreset, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrUploadFailed, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("%w: %s", shared.ErrUploadFailed, res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", fmt.Errorf("%w: response has no secure_url", shared.ErrUploadFailed)
	}
	return res.SecureURL, nil
}

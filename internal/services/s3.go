package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/desertthunder/footprint/internal/shared"
)

// PutObjectAPI is the subset of the S3 client used by [S3Uploader].
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores photos in an S3 (or S3-compatible) bucket under "<folder>/<uuid><ext>".
type S3Uploader struct {
	client        PutObjectAPI
	bucket        string
	folder        string
	publicBaseURL string
}

// NewS3Uploader loads AWS configuration and creates an uploader.
//
// Static credentials and a custom endpoint are used when present, otherwise the default
// credential chain applies.
func NewS3Uploader(ctx context.Context, cfg shared.S3Config, folder string) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 requires a bucket", shared.ErrMissingConfig)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to load AWS config: %w", shared.ErrInvalidConfig, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicBase := cfg.PublicBaseURL
	if publicBase == "" {
		if cfg.Endpoint != "" {
			publicBase = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
		}
	}
	return NewS3UploaderWithClient(client, cfg.Bucket, folder, publicBase), nil
}

// NewS3UploaderWithClient creates an uploader around an existing client.
func NewS3UploaderWithClient(client PutObjectAPI, bucket, folder, publicBaseURL string) *S3Uploader {
	return &S3Uploader{
		client:        client,
		bucket:        bucket,
		folder:        strings.Trim(folder, "/"),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *S3Uploader) Name() string { return "s3" }

// Upload writes the object and returns its public URL.
func (s *S3Uploader) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = extensionFor(contentType)
	}

	key := uuid.NewString() + ext
	if s.folder != "" {
		key = s.folder + "/" + key
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read image: %w", shared.ErrUploadFailed, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("%w: put object %s: %w", shared.ErrUploadFailed, key, err)
	}
	return s.publicBaseURL + "/" + key, nil
}

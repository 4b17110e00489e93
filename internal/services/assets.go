package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/footprint/internal/shared"
)

// MaxAssetSize caps the number of bytes read for any single asset.
const MaxAssetSize = 64 << 20

// AssetClient fetches static assets (the city dataset, the document font) and photo bytes.
//
// The base location may be an http(s) URL, a file:// URL or a plain directory. Remote requests
// share a rate limiter and a per-request timeout.
type AssetClient struct {
	baseURL    string
	dir        string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     *log.Logger
}

// AssetOptions configures an [AssetClient]. Zero values fall back to defaults.
type AssetOptions struct {
	Client            *http.Client
	RequestsPerSecond float64
	Timeout           time.Duration
	Logger            *log.Logger
}

// NewAssetClient creates an asset client rooted at base.
func NewAssetClient(base string, opts AssetOptions) *AssetClient {
	if base == "" {
		base = "."
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	a := &AssetClient{
		httpClient: opts.Client,
		limiter:    rate.NewLimiter(limit, 1),
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}

	switch {
	case isRemote(base):
		a.baseURL = strings.TrimRight(base, "/")
	case strings.HasPrefix(base, "file://"):
		a.dir = strings.TrimPrefix(base, "file://")
	default:
		a.dir = base
	}
	return a
}

// Fetch reads the asset called name relative to the client's base location.
func (a *AssetClient) Fetch(ctx context.Context, name string) ([]byte, error) {
	if isRemote(name) || IsDataURI(name) || strings.HasPrefix(name, "file://") {
		return a.FetchURL(ctx, name)
	}
	if a.baseURL != "" {
		return a.get(ctx, a.baseURL+"/"+strings.TrimLeft(name, "/"))
	}
	return a.read(filepath.Join(a.dir, filepath.FromSlash(name)))
}

// FetchURL reads an absolute location: an http(s) URL, a file:// URL, a data URI or a filesystem path.
func (a *AssetClient) FetchURL(ctx context.Context, location string) ([]byte, error) {
	switch {
	case IsDataURI(location):
		d, err := DecodeDataURI(location)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrAssetUnavailable, err)
		}
		return d.Data, nil
	case isRemote(location):
		return a.get(ctx, location)
	case strings.HasPrefix(location, "file://"):
		return a.read(strings.TrimPrefix(location, "file://"))
	default:
		return a.read(location)
	}
}

// FetchGeoJSON reads the city boundary dataset.
func (a *AssetClient) FetchGeoJSON(ctx context.Context, name string) ([]byte, error) {
	return a.Fetch(ctx, name)
}

// FetchFont reads the document font. Failures are reported as [shared.ErrFontUnavailable].
func (a *AssetClient) FetchFont(ctx context.Context, name string) ([]byte, error) {
	if name == "" {
		return nil, shared.ErrFontUnavailable
	}
	data, err := a.Fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrFontUnavailable, err)
	}
	return data, nil
}

// FetchPhoto reads the bytes behind a stored photo URL.
// Relative URLs resolve against the client's base location.
func (a *AssetClient) FetchPhoto(ctx context.Context, photoURL string) ([]byte, error) {
	return a.Fetch(ctx, photoURL)
}

func (a *AssetClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAssetUnavailable, err)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAssetUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", shared.ErrAssetUnavailable, err)
	}

	a.logger.Debug("fetching asset", "url", rawURL)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", shared.ErrAssetUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", shared.ErrAssetUnavailable, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxAssetSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrAssetUnavailable, err)
	}
	return body, nil
}

func (a *AssetClient) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAssetUnavailable, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxAssetSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAssetUnavailable, err)
	}
	return data, nil
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

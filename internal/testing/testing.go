// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// MockUploader is a test double for [services.Uploader] that records every upload.
type MockUploader struct {
	mu      sync.Mutex
	Err     error
	BaseURL string
	Uploads []MockUpload
}

// MockUpload is a single recorded call to [MockUploader.Upload].
type MockUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (m *MockUploader) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads = append(m.Uploads, MockUpload{Filename: filename, ContentType: contentType, Data: data})

	base := m.BaseURL
	if base == "" {
		base = "https://cdn.example.com"
	}
	return fmt.Sprintf("%s/%d-%s", base, len(m.Uploads), filepath.Base(filename)), nil
}

func (m *MockUploader) Name() string { return "mock" }

// Count returns the number of recorded uploads.
func (m *MockUploader) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Uploads)
}

// TinyPNG encodes a w x h image filled with c.
func TinyPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// MustWriteFile writes data to dir/name and returns the full path.
func MustWriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// SquareFeature returns a GeoJSON feature named name covering the lon/lat box [x0,x1] x [y0,y1].
func SquareFeature(name string, x0, y0, x1, y1 float64) string {
	return fmt.Sprintf(`{"type":"Feature","properties":{"name":%q},"geometry":{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}}`,
		name, x0, y0, x1, y0, x1, y1, x0, y1, x0, y0)
}

// FeatureCollection joins features into a GeoJSON FeatureCollection.
func FeatureCollection(features ...string) []byte {
	return []byte(`{"type":"FeatureCollection","features":[` + strings.Join(features, ",") + `]}`)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

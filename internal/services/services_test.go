package services

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/desertthunder/footprint/internal/shared"
	tu "github.com/desertthunder/footprint/internal/testing"
)

func TestDecodeDataURI(t *testing.T) {
	t.Run("Valid PNG", func(t *testing.T) {
		payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
		d, err := DecodeDataURI("data:image/png;base64," + payload)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if d.ContentType != "image/png" {
			t.Errorf("expected image/png, got %s", d.ContentType)
		}
		if string(d.Data) != "png-bytes" {
			t.Errorf("unexpected data %q", d.Data)
		}
	})

	tests := []struct {
		name  string
		input string
	}{
		{"No Header", "image/png;base64,AAAA"},
		{"No Comma", "data:image/png;base64"},
		{"Not Base64 Encoded", "data:text/plain,hello"},
		{"Bad Payload", "data:image/png;base64,@@@"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeDataURI(tt.input); !errors.Is(err, shared.ErrInvalidDataURI) {
				t.Errorf("expected ErrInvalidDataURI, got %v", err)
			}
		})
	}
}

func TestAssetClient(t *testing.T) {
	t.Run("Directory Base", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "cities.geojson"), []byte(`{"type":"FeatureCollection"}`), 0o644); err != nil {
			t.Fatal(err)
		}

		c := NewAssetClient(dir, AssetOptions{})
		data, err := c.FetchGeoJSON(context.Background(), "cities.geojson")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(string(data), "FeatureCollection") {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("File URL Base", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "font.ttf"), []byte("font"), 0o644); err != nil {
			t.Fatal(err)
		}

		c := NewAssetClient("file://"+dir, AssetOptions{})
		data, err := c.FetchFont(context.Background(), "font.ttf")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(data) != "font" {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		c := NewAssetClient(t.TempDir(), AssetOptions{})
		if _, err := c.Fetch(context.Background(), "nope.geojson"); !errors.Is(err, shared.ErrAssetUnavailable) {
			t.Errorf("expected ErrAssetUnavailable, got %v", err)
		}
	})

	t.Run("Missing Font", func(t *testing.T) {
		c := NewAssetClient(t.TempDir(), AssetOptions{})
		_, err := c.FetchFont(context.Background(), "missing.ttf")
		if !errors.Is(err, shared.ErrFontUnavailable) {
			t.Errorf("expected ErrFontUnavailable, got %v", err)
		}
		if !errors.Is(err, shared.ErrAssetUnavailable) {
			t.Errorf("expected wrapped ErrAssetUnavailable, got %v", err)
		}

		if _, err := c.FetchFont(context.Background(), ""); !errors.Is(err, shared.ErrFontUnavailable) {
			t.Errorf("expected ErrFontUnavailable for empty name, got %v", err)
		}
	})

	t.Run("HTTP Base", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("expected GET method, got %s", r.Method)
			}
			if r.URL.Path != "/assets/cities.geojson" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte("geo"))
		}))
		defer server.Close()

		c := NewAssetClient(server.URL+"/assets/", AssetOptions{})
		data, err := c.Fetch(context.Background(), "cities.geojson")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(data) != "geo" {
			t.Errorf("unexpected content %q", data)
		}

		if _, err := c.Fetch(context.Background(), "other.geojson"); !errors.Is(err, shared.ErrAssetUnavailable) {
			t.Errorf("expected ErrAssetUnavailable for 404, got %v", err)
		}
	})

	t.Run("Absolute Photo URL Ignores Base", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("photo"))
		}))
		defer server.Close()

		c := NewAssetClient(t.TempDir(), AssetOptions{})
		data, err := c.FetchPhoto(context.Background(), server.URL+"/p.jpg")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(data) != "photo" {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("Data URI Photo", func(t *testing.T) {
		c := NewAssetClient("", AssetOptions{})
		data, err := c.FetchPhoto(context.Background(), "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("inline")))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(data) != "inline" {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("Request Error", func(t *testing.T) {
		c := NewAssetClient("http://example.invalid", AssetOptions{
			Client: &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed"))},
		})
		if _, err := c.Fetch(context.Background(), "x"); !errors.Is(err, shared.ErrAssetUnavailable) {
			t.Errorf("expected ErrAssetUnavailable, got %v", err)
		}
	})

	t.Run("Read Error", func(t *testing.T) {
		c := NewAssetClient("http://example.invalid", AssetOptions{
			Client: &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Body:       &tu.FCloser{},
				Header:     make(http.Header),
			}, nil)},
		})
		if _, err := c.Fetch(context.Background(), "x"); !errors.Is(err, shared.ErrAssetUnavailable) {
			t.Errorf("expected ErrAssetUnavailable, got %v", err)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		c := NewAssetClient("http://example.invalid", AssetOptions{RequestsPerSecond: 0.001})
		// Drain the single burst token so the next call must wait.
		c.limiter.Allow()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if _, err := c.Fetch(ctx, "x"); !errors.Is(err, shared.ErrAssetUnavailable) {
			t.Errorf("expected ErrAssetUnavailable, got %v", err)
		}
	})
}

func TestCloudinaryUploader(t *testing.T) {
	cfg := shared.CloudinaryConfig{CloudName: "demo", UploadPreset: "unsigned"}

	t.Run("Missing Config", func(t *testing.T) {
		if _, err := NewCloudinaryUploader(shared.CloudinaryConfig{}, "", nil); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Default Upload Host", func(t *testing.T) {
		u, err := NewCloudinaryUploader(cfg, "", nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := u.UploadPrefix(); got != "https://api.cloudinary.com" {
			t.Errorf("unexpected upload prefix %s", got)
		}
		if u.Name() != "cloudinary" {
			t.Errorf("unexpected name %s", u.Name())
		}
	})

	t.Run("Successful Upload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST method, got %s", r.Method)
			}
			if !strings.HasPrefix(r.URL.Path, "/v1_1/demo/") || !strings.HasSuffix(r.URL.Path, "/upload") {
				t.Errorf("unexpected path %s", r.URL.Path)
			}

			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("bad multipart body: %v", err)
			}
			if got := r.FormValue("upload_preset"); got != "unsigned" {
				t.Errorf("unexpected upload_preset %q", got)
			}
			if got := r.FormValue("folder"); got != "city" {
				t.Errorf("unexpected folder %q", got)
			}
			if _, _, err := r.FormFile("file"); err != nil {
				t.Errorf("expected a file part: %v", err)
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"secure_url":"https://res.cloudinary.com/demo/city/abc.jpg","public_id":"city/abc"}`))
		}))
		defer server.Close()

		u, err := NewCloudinaryUploader(shared.CloudinaryConfig{CloudName: "demo", UploadPreset: "unsigned", BaseURL: server.URL}, "city", nil)
		if err != nil {
			t.Fatal(err)
		}

		url, err := u.Upload(context.Background(), "/tmp/beijing.jpg", "image/jpeg", strings.NewReader("jpeg"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if url != "https://res.cloudinary.com/demo/city/abc.jpg" {
			t.Errorf("unexpected url %s", url)
		}
	})

	t.Run("Provider Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
		}))
		defer server.Close()

		u, _ := NewCloudinaryUploader(shared.CloudinaryConfig{CloudName: "demo", UploadPreset: "x", BaseURL: server.URL}, "", nil)
		_, err := u.Upload(context.Background(), "a.png", "image/png", strings.NewReader("png"))
		if !errors.Is(err, shared.ErrUploadFailed) {
			t.Fatalf("expected ErrUploadFailed, got %v", err)
		}
	})

	t.Run("Missing Secure URL", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		u, _ := NewCloudinaryUploader(shared.CloudinaryConfig{CloudName: "demo", UploadPreset: "x", BaseURL: server.URL}, "", nil)
		if _, err := u.Upload(context.Background(), "a.png", "image/png", strings.NewReader("png")); !errors.Is(err, shared.ErrUploadFailed) {
			t.Errorf("expected ErrUploadFailed, got %v", err)
		}
	})

	t.Run("Network Error", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed"))}
		u, _ := NewCloudinaryUploader(cfg, "", client)
		if _, err := u.Upload(context.Background(), "a.png", "image/png", strings.NewReader("png")); !errors.Is(err, shared.ErrUploadFailed) {
			t.Errorf("expected ErrUploadFailed, got %v", err)
		}
	})
}

type fakePutObject struct {
	mu     sync.Mutex
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakePutObject) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader(t *testing.T) {
	t.Run("Missing Bucket", func(t *testing.T) {
		if _, err := NewS3Uploader(context.Background(), shared.S3Config{}, ""); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Upload Writes Keyed Object", func(t *testing.T) {
		fake := &fakePutObject{}
		u := NewS3UploaderWithClient(fake, "photos", "/city/", "https://cdn.example.com/")

		url, err := u.Upload(context.Background(), "Chengdu.PNG", "image/png", strings.NewReader("png"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(fake.inputs) != 1 {
			t.Fatalf("expected 1 put, got %d", len(fake.inputs))
		}

		in := fake.inputs[0]
		if *in.Bucket != "photos" {
			t.Errorf("unexpected bucket %s", *in.Bucket)
		}
		if !strings.HasPrefix(*in.Key, "city/") || !strings.HasSuffix(*in.Key, ".png") {
			t.Errorf("unexpected key %s", *in.Key)
		}
		if *in.ContentType != "image/png" {
			t.Errorf("unexpected content type %s", *in.ContentType)
		}
		if fake.bodies[0] != "png" {
			t.Errorf("unexpected body %q", fake.bodies[0])
		}
		if url != "https://cdn.example.com/"+*in.Key {
			t.Errorf("unexpected url %s", url)
		}
	})

	t.Run("Extension From Content Type", func(t *testing.T) {
		fake := &fakePutObject{}
		u := NewS3UploaderWithClient(fake, "photos", "", "https://cdn.example.com")

		if _, err := u.Upload(context.Background(), "blob", "image/jpeg", strings.NewReader("jpg")); err != nil {
			t.Fatal(err)
		}
		if key := *fake.inputs[0].Key; !strings.HasSuffix(key, ".jpg") || strings.Contains(key, "/") {
			t.Errorf("unexpected key %s", key)
		}
	})

	t.Run("Put Failure", func(t *testing.T) {
		u := NewS3UploaderWithClient(&fakePutObject{err: errors.New("denied")}, "photos", "", "https://cdn.example.com")
		if _, err := u.Upload(context.Background(), "a.png", "image/png", strings.NewReader("png")); !errors.Is(err, shared.ErrUploadFailed) {
			t.Errorf("expected ErrUploadFailed, got %v", err)
		}
	})
}

func TestNewUploader(t *testing.T) {
	tests := []struct {
		name     string
		cfg      shared.UploadConfig
		wantName string
		wantErr  error
	}{
		{"Empty Provider", shared.UploadConfig{}, "none", nil},
		{"None", shared.UploadConfig{Provider: "none"}, "none", nil},
		{"Cloudinary", shared.UploadConfig{Provider: "cloudinary", Cloudinary: shared.CloudinaryConfig{CloudName: "c", UploadPreset: "p"}}, "cloudinary", nil},
		{"Cloudinary Missing Preset", shared.UploadConfig{Provider: "cloudinary"}, "", shared.ErrMissingConfig},
		{"S3 Missing Bucket", shared.UploadConfig{Provider: "s3"}, "", shared.ErrMissingConfig},
		{"Unknown", shared.UploadConfig{Provider: "ftp"}, "", shared.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewUploader(context.Background(), tt.cfg, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if u.Name() != tt.wantName {
				t.Errorf("expected %s, got %s", tt.wantName, u.Name())
			}
		})
	}

	t.Run("Noop Rejects Uploads", func(t *testing.T) {
		if _, err := (NoopUploader{}).Upload(context.Background(), "a", "", strings.NewReader("")); !errors.Is(err, shared.ErrUploadFailed) {
			t.Errorf("expected ErrUploadFailed, got %v", err)
		}
	})
}

func TestDetectContentType(t *testing.T) {
	if got := DetectContentType("a.png", nil); got != "image/png" {
		t.Errorf("expected image/png, got %s", got)
	}
	if got := DetectContentType("noext", []byte("\xff\xd8\xff\xe0")); got != "image/jpeg" {
		t.Errorf("expected image/jpeg from sniffing, got %s", got)
	}
}

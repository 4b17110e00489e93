package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/footprint/internal/geo"
	"github.com/desertthunder/footprint/internal/shared"
	"github.com/desertthunder/footprint/internal/state"
	tu "github.com/desertthunder/footprint/internal/testing"
)

type runnerFixture struct {
	runner   *Runner
	output   *bytes.Buffer
	dir      string
	uploader *tu.MockUploader
}

func newRunnerFixture(t *testing.T) runnerFixture {
	t.Helper()

	db, err := shared.NewDatabase(shared.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	dataset, err := geo.ParseDataset(tu.FeatureCollection(
		tu.SquareFeature("Beijing", 115, 39, 117, 41),
		tu.SquareFeature("Shanghai", 120, 30, 122, 32),
		tu.SquareFeature("Chengdu", 103, 30, 105, 31),
	))
	if err != nil {
		t.Fatalf("failed to parse dataset: %v", err)
	}

	png := tu.TinyPNG(t, 4, 3, color.RGBA{B: 200, A: 255})
	photos := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
	t.Cleanup(photos.Close)

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Assets.BaseURL = dir
	config.Export.OutputDir = dir
	config.Export.Compress = false
	config.Export.SnapshotWidth = 120
	config.Export.SnapshotHeight = 80

	output := &bytes.Buffer{}
	uploader := &tu.MockUploader{BaseURL: photos.URL}
	runner := NewRunner(RunnerOpts{
		Config:    config,
		StatePath: filepath.Join(dir, "state.toml"),
		Logger:    shared.NewLogger(io.Discard),
		Output:    output,
		DB:        db,
		Dataset:   dataset,
		Uploader:  uploader,
	})
	return runnerFixture{runner: runner, output: output, dir: dir, uploader: uploader}
}

// run executes one CLI invocation and returns its output.
func (f runnerFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	f.output.Reset()
	argv := append([]string{"footprint", "--config", filepath.Join(f.dir, "missing.toml")}, args...)
	err := f.runner.app().Run(context.Background(), argv)
	return f.output.String(), err
}

func (f runnerFixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := f.run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	return out
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			uploader := &tu.MockUploader{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				StatePath:  "/test/path/state.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Uploader:   uploader,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.uploader != uploader {
				t.Error("expected uploader to be set")
			}
			if runner.configPath != "/test/path/config.toml" || runner.statePath != "/test/path/state.toml" {
				t.Errorf("unexpected paths %q %q", runner.configPath, runner.statePath)
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]int{"n": 1}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "{\"n\":1}\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("returns marshal errors", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := runner.writeJSON(make(chan int), false); err == nil {
				t.Error("expected marshal error")
			}
		})

		t.Run("returns write errors", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writeJSON("x", false); err == nil {
				t.Error("expected write error")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		runner.writePlain("a %d\n", 1)
		runner.writePlainln("b")
		runner.writePlainHeader("Title")

		result := output.String()
		for _, want := range []string{"a 1\n", "\nb\n", "Title\n", "═══"} {
			if !strings.Contains(result, want) {
				t.Errorf("output %q missing %q", result, want)
			}
		}
	})
}

func TestCommands(t *testing.T) {
	t.Run("LoginWhoamiLogout", func(t *testing.T) {
		f := newRunnerFixture(t)

		out := f.mustRun(t, "login", "alice")
		if !strings.Contains(out, "Welcome, alice") {
			t.Errorf("unexpected login output %q", out)
		}
		out = f.mustRun(t, "login", "alice")
		if !strings.Contains(out, "Logged in as alice") {
			t.Errorf("unexpected second login output %q", out)
		}

		st, err := state.NewStore(f.runner.statePath).Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if st.Identity == nil || st.Identity.Username != "alice" {
			t.Fatalf("expected alice in state, got %+v", st.Identity)
		}

		if out := f.mustRun(t, "whoami"); out != "alice\n" {
			t.Errorf("unexpected whoami output %q", out)
		}

		f.mustRun(t, "logout")
		if _, err := f.run(t, "whoami"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("LoginValidation", func(t *testing.T) {
		f := newRunnerFixture(t)

		if _, err := f.run(t, "login"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := f.run(t, "login", "x"); !errors.Is(err, shared.ErrInvalidUsername) {
			t.Errorf("expected ErrInvalidUsername, got %v", err)
		}
	})

	t.Run("RequiresLogin", func(t *testing.T) {
		f := newRunnerFixture(t)

		for _, args := range [][]string{
			{"city", "mark", "Beijing"},
			{"city", "list"},
			{"stats"},
			{"export"},
		} {
			if _, err := f.run(t, args...); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("%v: expected ErrNotAuthenticated, got %v", args, err)
			}
		}
	})

	t.Run("CityLifecycle", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.mustRun(t, "login", "alice")

		out := f.mustRun(t, "city", "mark", "Beijing", "--date", "2024-01-01", "--rating", "8", "--comment", "Great trip")
		if !strings.Contains(out, "Marked Beijing (2024-01-01)") {
			t.Errorf("unexpected mark output %q", out)
		}

		out = f.mustRun(t, "city", "mark", "Beijing", "--rating", "9")
		if !strings.Contains(out, "(2024-01-01)") {
			t.Errorf("partial update must keep the date, got %q", out)
		}

		out = f.mustRun(t, "city", "show", "Beijing")
		for _, want := range []string{"Beijing", "Visited: 2024-01-01", "(9/10)", "Comment: Great trip"} {
			if !strings.Contains(out, want) {
				t.Errorf("show output %q missing %q", out, want)
			}
		}

		f.mustRun(t, "city", "mark", "Chengdu")

		out = f.mustRun(t, "city", "list", "--format", "csv")
		if !strings.HasPrefix(out, "City,Visit Date,Rating,Comment,Photos") {
			t.Errorf("unexpected CSV output %q", out)
		}

		out = f.mustRun(t, "city", "list", "--format", "json")
		var cities []map[string]any
		if err := json.Unmarshal([]byte(out), &cities); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if len(cities) != 2 {
			t.Errorf("expected 2 cities, got %d", len(cities))
		}

		path := filepath.Join(f.dir, "out", "cities.md")
		f.mustRun(t, "city", "list", "--format", "md", "--output", path)
		tu.AssertFileExists(t, path)

		out = f.mustRun(t, "stats", "--json")
		if strings.TrimSpace(out) != `{"visited":2,"total":3,"remaining":1}` {
			t.Errorf("unexpected stats %q", out)
		}

		f.mustRun(t, "city", "unmark", "Chengdu")
		if _, err := f.run(t, "city", "show", "Chengdu"); !errors.Is(err, shared.ErrCityNotFound) {
			t.Errorf("expected ErrCityNotFound, got %v", err)
		}
	})

	t.Run("CityMarkValidation", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.mustRun(t, "login", "alice")

		if _, err := f.run(t, "city", "mark", "Atlantis"); !errors.Is(err, shared.ErrUnknownCity) {
			t.Errorf("expected ErrUnknownCity, got %v", err)
		}
		if _, err := f.run(t, "city", "mark", "Beijing", "--rating", "11"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := f.run(t, "city", "mark", "Beijing", "--date", "yesterday"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := f.run(t, "city", "list", "--format", "xml"); err == nil {
			t.Error("expected unknown format error")
		}
	})

	t.Run("PhotoUploadAndRemove", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.mustRun(t, "login", "alice")
		file := tu.MustWriteFile(t, f.dir, "wall.png", tu.TinyPNG(t, 4, 4, color.White))

		out := f.mustRun(t, "photo", "upload", "Beijing", "scenery", file)
		if !strings.Contains(out, "Uploaded Scenery photo for Beijing") || !strings.Contains(out, "/1-wall.png") {
			t.Errorf("unexpected upload output %q", out)
		}
		if f.uploader.Count() != 1 {
			t.Errorf("expected 1 upload, got %d", f.uploader.Count())
		}

		if _, err := f.run(t, "photo", "upload", "Beijing", "pets", file); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}

		f.mustRun(t, "photo", "remove", "Beijing", "scenery")
		out = f.mustRun(t, "city", "show", "Beijing")
		if strings.Contains(out, "Photo:") {
			t.Errorf("expected photo removed, got %q", out)
		}
	})

	t.Run("Search", func(t *testing.T) {
		f := newRunnerFixture(t)

		out := f.mustRun(t, "search", "--json", "hai")
		if strings.TrimSpace(out) != `["Shanghai"]` {
			t.Errorf("unexpected search output %q", out)
		}

		out = f.mustRun(t, "search", "zz")
		if !strings.Contains(out, "No cities match") {
			t.Errorf("unexpected empty search output %q", out)
		}
	})

	t.Run("ThemeAndColorMode", func(t *testing.T) {
		f := newRunnerFixture(t)

		if out := f.mustRun(t, "theme"); out != "Theme: dark\n" {
			t.Errorf("unexpected theme output %q", out)
		}
		if out := f.mustRun(t, "theme", "light"); out != "Theme: light\n" {
			t.Errorf("unexpected theme output %q", out)
		}
		if out := f.mustRun(t, "color-mode"); out != "Color mode: single\n" {
			t.Errorf("unexpected color mode output %q", out)
		}
		if _, err := f.run(t, "theme", "sepia"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Snapshot", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.mustRun(t, "login", "alice")
		f.mustRun(t, "city", "mark", "Beijing")

		path := filepath.Join(f.dir, "map.png")
		out := f.mustRun(t, "snapshot", "--out", path, "--theme", "dark")
		if !strings.Contains(out, "120x80, 1 cities") {
			t.Errorf("unexpected snapshot output %q", out)
		}
		data := tu.MustReadFile(t, path)
		if !strings.HasPrefix(data, "\x89PNG") {
			t.Error("expected PNG output")
		}
	})

	t.Run("Export", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.mustRun(t, "login", "alice")

		if _, err := f.run(t, "export"); !errors.Is(err, shared.ErrNoExportableCities) {
			t.Errorf("expected ErrNoExportableCities, got %v", err)
		}

		file := tu.MustWriteFile(t, f.dir, "wall.png", tu.TinyPNG(t, 4, 4, color.White))
		f.mustRun(t, "city", "mark", "Beijing", "--date", "2024-01-01", "--rating", "8")
		f.mustRun(t, "photo", "upload", "Beijing", "scenery", file)

		path := filepath.Join(f.dir, "book.pdf")
		out := f.mustRun(t, "export", "--out", path, "--title", "Road Trip")
		if !strings.Contains(out, "Exported 1 cities (1 photos, 2 pages)") {
			t.Errorf("unexpected export output %q", out)
		}
		if !strings.Contains(out, "built-in font") {
			t.Errorf("expected font fallback note, got %q", out)
		}

		data := tu.MustReadFile(t, path)
		if !strings.HasPrefix(data, "%PDF") || !strings.Contains(data, "(Road Trip) Tj") {
			t.Error("expected PDF with the custom title")
		}
	})

	t.Run("Migrate", func(t *testing.T) {
		f := newRunnerFixture(t)

		if out := f.mustRun(t, "migrate"); !strings.Contains(out, "Migrations applied") {
			t.Errorf("unexpected migrate output %q", out)
		}
		if out := f.mustRun(t, "migrate", "--rollback"); !strings.Contains(out, "Rolled back") {
			t.Errorf("unexpected rollback output %q", out)
		}
	})

	t.Run("SetupCreatesConfig", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")
		output := &bytes.Buffer{}
		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(dir, "footprint.db")
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard), Output: output})
		defer runner.Close()

		t.Setenv("FOOTPRINT_DB_PATH", filepath.Join(dir, "footprint.db"))
		err := runner.app().Run(context.Background(), []string{"footprint", "--config", configPath, "--state", filepath.Join(dir, "state.toml"), "setup"})
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		tu.AssertFileExists(t, configPath)
		tu.AssertFileExists(t, filepath.Join(dir, "footprint.db"))
		if !strings.Contains(output.String(), "Database ready") {
			t.Errorf("unexpected setup output %q", output.String())
		}
	})
}

func TestRouter(t *testing.T) {
	f := newRunnerFixture(t)
	tu.MustWriteFile(t, f.dir, "cities.geojson", []byte(`{"type":"FeatureCollection","features":[]}`))

	router, err := f.runner.router(context.Background())
	if err != nil {
		t.Fatalf("router failed: %v", err)
	}

	for path, want := range map[string]int{
		"/api/search?q=Bei":       http.StatusOK,
		"/assets/cities.geojson":  http.StatusOK,
		"/metrics":                http.StatusOK,
		"/api/users/nobody/stats": http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Errorf("GET %s: expected %d, got %d", path, want, rec.Code)
		}
	}
}

func TestLocalAssetDir(t *testing.T) {
	dir := t.TempDir()
	file := tu.MustWriteFile(t, dir, "x.txt", []byte("x"))

	tests := []struct {
		base string
		want string
	}{
		{"", ""},
		{"https://cdn.example.com/assets", ""},
		{"http://localhost:8080", ""},
		{"file://" + dir, dir},
		{dir, dir},
		{file, ""},
		{filepath.Join(dir, "missing"), ""},
	}

	for _, tt := range tests {
		if got := localAssetDir(tt.base); got != tt.want {
			t.Errorf("localAssetDir(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

package tasks

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/desertthunder/footprint/internal/formatter"
	"github.com/desertthunder/footprint/internal/geo"
	"github.com/desertthunder/footprint/internal/models"
	"github.com/desertthunder/footprint/internal/shared"
	tu "github.com/desertthunder/footprint/internal/testing"
)

type fakeCities map[string][]*models.VisitedCity

func (f fakeCities) ListByUser(_ context.Context, userID string) ([]*models.VisitedCity, error) {
	if cities, ok := f[userID]; ok {
		return cities, nil
	}
	return nil, errors.New("boom")
}

type fakeAssets struct {
	mu       sync.Mutex
	font     []byte
	fontErr  error
	photos   map[string][]byte
	fetched  []string
	fontGate chan struct{}
}

func (f *fakeAssets) FetchFont(ctx context.Context, name string) ([]byte, error) {
	if f.fontGate != nil {
		<-f.fontGate
	}
	if f.fontErr != nil {
		return nil, f.fontErr
	}
	return f.font, nil
}

func (f *fakeAssets) FetchPhoto(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	data, ok := f.photos[url]
	if !ok {
		return nil, shared.ErrAssetUnavailable
	}
	return data, nil
}

type failingSnapshot struct{}

func (failingSnapshot) Render(context.Context, geo.SnapshotRequest) (*geo.Snapshot, error) {
	return nil, errors.New("canvas exploded")
}

type countingSnapshot struct {
	calls int
}

func (c *countingSnapshot) Render(context.Context, geo.SnapshotRequest) (*geo.Snapshot, error) {
	c.calls++
	return nil, errors.New("unexpected render")
}

type exportFixture struct {
	engine  *ExportEngine
	assets  *fakeAssets
	user    *models.User
	metrics *Metrics
	logs    *bytes.Buffer
}

func newExportFixture(t *testing.T, cities []*models.VisitedCity) exportFixture {
	t.Helper()

	user := models.NewUser(1, "alice")
	user.SetID("user-1")

	png := tu.TinyPNG(t, 8, 6, color.RGBA{R: 10, G: 120, B: 200, A: 255})
	assets := &fakeAssets{
		fontErr: shared.ErrFontUnavailable,
		photos:  map[string][]byte{},
	}
	for _, c := range cities {
		for _, p := range c.Photos {
			if !strings.Contains(p.URL, "missing") {
				assets.photos[p.URL] = png
			}
		}
	}

	logs := &bytes.Buffer{}
	metrics := NewMetrics(prometheus.NewRegistry())
	engine := NewExportEngine(ExportEngineOpts{
		Cities:   fakeCities{user.ID(): cities},
		Snapshot: geo.NewSnapshotter(testDataset(t), geo.SnapshotOptions{Width: 120, Height: 80}),
		Assets:   assets,
		Renderer: formatter.NewPDFRenderer(false, nil),
		FontName: "NotoSansSC-Regular.ttf",
		Metrics:  metrics,
		Logger:   shared.NewLogger(logs),
	})
	return exportFixture{engine: engine, assets: assets, user: user, metrics: metrics, logs: logs}
}

func visited(name, date string, rating int, comment string, photos ...models.Category) *models.VisitedCity {
	c := &models.VisitedCity{CityName: name, VisitDate: date, Rating: rating, Comment: comment}
	for _, cat := range photos {
		c.Photos = append(c.Photos, models.Photo{Category: cat, URL: "https://cdn.example.com/" + name + "-" + string(cat) + ".png"})
	}
	return c
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestExportEngine(t *testing.T) {
	ctx := context.Background()
	fixed := func() time.Time { return time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC) }

	t.Run("Exports Cities With Photos", func(t *testing.T) {
		cities := []*models.VisitedCity{
			visited("Beijing", "2024-01-01", 8, "Great trip", models.CategoryFood, models.CategoryScenery),
			visited("Shanghai", "2024-03-01", 0, ""),
			visited("Chengdu", "2023-06-01", 3, "", models.CategoryFriends),
		}
		f := newExportFixture(t, cities)
		dir := t.TempDir()
		progress := make(chan ProgressUpdate, 100)

		res, err := f.engine.Export(ctx, f.user, ExportOpts{OutputDir: dir, Now: fixed}, progress)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}

		if res.Cities != 2 || res.Photos != 3 || res.Pages != 3 {
			t.Errorf("unexpected result cities=%d photos=%d pages=%d", res.Cities, res.Photos, res.Pages)
		}
		if res.FontEmbedded {
			t.Error("font should have fallen back")
		}
		if res.Filename != "alice_footprints_2024-05-04.pdf" {
			t.Errorf("unexpected filename %s", res.Filename)
		}
		if res.Path != filepath.Join(dir, res.Filename) {
			t.Errorf("unexpected path %s", res.Path)
		}
		written, err := os.ReadFile(res.Path)
		if err != nil || !bytes.Equal(written, res.Data) {
			t.Errorf("written file does not match result data: %v", err)
		}

		out := string(res.Data)
		if strings.Index(out, "(Beijing) Tj") > strings.Index(out, "(Chengdu) Tj") {
			t.Error("newest city should come first")
		}
		if strings.Contains(out, "(Shanghai) Tj") {
			t.Error("city without photos should not be exported")
		}

		updates := drain(progress)
		if len(updates) == 0 {
			t.Fatal("expected progress updates")
		}
		last := updates[len(updates)-1]
		if last.Phase != ExportDone || last.Percent != 100 {
			t.Errorf("unexpected final update %+v", last)
		}
		prev := -1.0
		for _, u := range updates {
			if u.Percent < prev || u.Percent > 100 {
				t.Errorf("progress went from %v to %v (%s)", prev, u.Percent, u.Phase)
			}
			prev = u.Percent
		}

		if !strings.Contains(f.logs.String(), "document font unavailable") {
			t.Errorf("expected font fallback warning, got %s", f.logs.String())
		}
		if got := testutil.ToFloat64(f.metrics.Exports.WithLabelValues("success")); got != 1 {
			t.Errorf("expected 1 successful export, got %v", got)
		}
	})

	t.Run("No Exportable Cities", func(t *testing.T) {
		f := newExportFixture(t, []*models.VisitedCity{visited("Beijing", "2024-01-01", 5, "")})

		_, err := f.engine.Export(ctx, f.user, ExportOpts{}, nil)
		if !errors.Is(err, shared.ErrNoExportableCities) {
			t.Fatalf("expected ErrNoExportableCities, got %v", err)
		}
		if len(f.assets.fetched) != 0 {
			t.Error("no photo should be fetched")
		}
		if got := testutil.ToFloat64(f.metrics.Exports.WithLabelValues("empty")); got != 1 {
			t.Errorf("expected 1 empty export, got %v", got)
		}
		if f.engine.Busy() {
			t.Error("engine should be idle after failure")
		}
	})

	t.Run("Snapshot Failure Aborts", func(t *testing.T) {
		f := newExportFixture(t, []*models.VisitedCity{visited("Beijing", "2024-01-01", 5, "", models.CategoryFood)})
		f.engine.snapshot = failingSnapshot{}
		dir := t.TempDir()

		_, err := f.engine.Export(ctx, f.user, ExportOpts{OutputDir: dir}, nil)
		if !errors.Is(err, shared.ErrSnapshotFailed) {
			t.Fatalf("expected ErrSnapshotFailed, got %v", err)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("no document should be written after a snapshot failure, found %d files", len(entries))
		}
	})

	t.Run("Load Failure", func(t *testing.T) {
		f := newExportFixture(t, nil)
		other := models.NewUser(2, "bob")
		other.SetID("nobody")
		if _, err := f.engine.Export(ctx, other, ExportOpts{}, nil); err == nil {
			t.Error("expected load error")
		}
	})

	t.Run("Missing Photos Are Skipped", func(t *testing.T) {
		c := visited("Beijing", "2024-01-01", 0, "", models.CategoryFood)
		c.Photos = append(c.Photos, models.Photo{Category: models.CategoryLover, URL: "https://cdn.example.com/missing.png"})
		f := newExportFixture(t, []*models.VisitedCity{c})

		res, err := f.engine.Export(ctx, f.user, ExportOpts{}, nil)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if res.Photos != 1 || res.Path != "" {
			t.Errorf("expected 1 photo and no file, got %d photos, path %q", res.Photos, res.Path)
		}
		if !strings.Contains(f.logs.String(), "skipping photo") {
			t.Errorf("expected skip warning, got %s", f.logs.String())
		}
	})

	t.Run("City Without Loadable Photos Is Excluded", func(t *testing.T) {
		broken := visited("Shanghai", "2024-03-01", 7, "Rainy", models.CategoryScenery)
		broken.Photos[0].URL = "https://cdn.example.com/missing-shanghai.png"
		f := newExportFixture(t, []*models.VisitedCity{
			visited("Beijing", "2024-01-01", 8, "", models.CategoryFood),
			broken,
		})

		res, err := f.engine.Export(ctx, f.user, ExportOpts{}, nil)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if res.Cities != 1 || res.Photos != 1 {
			t.Errorf("expected 1 city with 1 photo, got cities=%d photos=%d", res.Cities, res.Photos)
		}
		out := string(res.Data)
		if strings.Contains(out, "(Shanghai) Tj") {
			t.Error("city whose photos all failed should not be exported")
		}
		if !strings.Contains(out, "(Beijing) Tj") {
			t.Error("expected Beijing in the document")
		}
	})

	t.Run("All Photos Missing", func(t *testing.T) {
		c := visited("Shanghai", "2024-03-01", 0, "", models.CategoryScenery)
		c.Photos[0].URL = "https://cdn.example.com/missing.png"
		f := newExportFixture(t, []*models.VisitedCity{c})
		counting := &countingSnapshot{}
		f.engine.snapshot = counting

		_, err := f.engine.Export(ctx, f.user, ExportOpts{OutputDir: t.TempDir()}, nil)
		if !errors.Is(err, shared.ErrNoExportableCities) {
			t.Fatalf("expected ErrNoExportableCities, got %v", err)
		}
		if counting.calls != 0 {
			t.Error("the map should not be rendered when no photo loads")
		}
		if got := testutil.ToFloat64(f.metrics.Exports.WithLabelValues("empty")); got != 1 {
			t.Errorf("expected 1 empty export, got %v", got)
		}
	})

	t.Run("Worker Count Keeps Sorted Order", func(t *testing.T) {
		cities := []*models.VisitedCity{
			visited("Chengdu", "2023-06-01", 3, "", models.CategoryFriends, models.CategoryFood),
			visited("Beijing", "2024-01-01", 8, "", models.CategoryFood, models.CategoryScenery, models.CategoryLover),
			visited("Xian", "2022-02-01", 0, "", models.CategoryScenery),
		}
		want := []string{"(Beijing) Tj", "(Chengdu) Tj", "(Xian) Tj"}

		for _, workers := range []int{1, 8} {
			f := newExportFixture(t, cities)
			res, err := f.engine.Export(ctx, f.user, ExportOpts{Workers: workers}, nil)
			if err != nil {
				t.Fatalf("Export with %d workers failed: %v", workers, err)
			}
			if res.Cities != 3 || res.Photos != 6 {
				t.Errorf("workers=%d: expected 3 cities and 6 photos, got %d and %d", workers, res.Cities, res.Photos)
			}
			out := string(res.Data)
			last := -1
			for _, name := range want {
				idx := strings.Index(out, name)
				if idx <= last {
					t.Errorf("workers=%d: %s out of order", workers, name)
				}
				last = idx
			}
		}
	})

	t.Run("Concurrent Export Is Rejected", func(t *testing.T) {
		f := newExportFixture(t, []*models.VisitedCity{visited("Beijing", "2024-01-01", 0, "", models.CategoryFood)})
		f.assets.fontGate = make(chan struct{})

		done := make(chan error, 1)
		go func() {
			_, err := f.engine.Export(ctx, f.user, ExportOpts{}, nil)
			done <- err
		}()

		deadline := time.Now().Add(5 * time.Second)
		for !f.engine.Busy() {
			if time.Now().After(deadline) {
				t.Fatal("first export never started")
			}
			time.Sleep(time.Millisecond)
		}

		if _, err := f.engine.Export(ctx, f.user, ExportOpts{}, nil); !errors.Is(err, shared.ErrExportInProgress) {
			t.Errorf("expected ErrExportInProgress, got %v", err)
		}

		close(f.assets.fontGate)
		if err := <-done; err != nil {
			t.Fatalf("first export failed: %v", err)
		}
		if f.engine.Busy() {
			t.Error("engine should be idle after export")
		}
		if got := testutil.ToFloat64(f.metrics.Exports.WithLabelValues("busy")); got != 1 {
			t.Errorf("expected 1 busy export, got %v", got)
		}
	})

	t.Run("Full Progress Channel Does Not Block", func(t *testing.T) {
		f := newExportFixture(t, []*models.VisitedCity{visited("Beijing", "2024-01-01", 0, "", models.CategoryFood)})
		progress := make(chan ProgressUpdate)

		if _, err := f.engine.Export(ctx, f.user, ExportOpts{}, progress); err != nil {
			t.Fatalf("Export failed: %v", err)
		}
	})
}

func TestPhase(t *testing.T) {
	tests := map[Phase]string{
		LoadCities:     "load_cities",
		FilterCities:   "filter_cities",
		RenderSnapshot: "render_snapshot",
		LoadFont:       "load_font",
		FetchPhotos:    "fetch_photos",
		LayoutPages:    "layout_pages",
		WriteDocument:  "write_document",
		ExportDone:     "done",
		Phase(99):      "",
	}
	for phase, want := range tests {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(phase), got, want)
		}
	}
}

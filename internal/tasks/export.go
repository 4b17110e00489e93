package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/footprint/internal/formatter"
	"github.com/desertthunder/footprint/internal/geo"
	"github.com/desertthunder/footprint/internal/models"
	"github.com/desertthunder/footprint/internal/shared"
)

const (
	defaultPhotoWorkers = 4
	maxPhotoWorkers     = 10
)

// CityLister loads a user's visited cities.
type CityLister interface {
	ListByUser(ctx context.Context, userID string) ([]*models.VisitedCity, error)
}

// MapRenderer produces the cover map snapshot.
type MapRenderer interface {
	Render(ctx context.Context, req geo.SnapshotRequest) (*geo.Snapshot, error)
}

// AssetFetcher loads the document font and photo bytes.
type AssetFetcher interface {
	FetchFont(ctx context.Context, name string) ([]byte, error)
	FetchPhoto(ctx context.Context, photoURL string) ([]byte, error)
}

// ExportOpts contains configuration for a document export.
type ExportOpts struct {
	Title     string           // Cover title (default: "My City Footprints")
	OutputDir string           // Directory to write into; with an empty Path too, nothing is written
	Path      string           // Exact output path, overrides OutputDir
	Mode      geo.ColorMode    // Snapshot color mode
	Theme     geo.Theme        // Snapshot theme
	Workers   int              // Concurrent photo fetchers (default: 4, max: 10)
	Now       func() time.Time // Clock for the file name date
}

// ExportResult describes a finished export.
type ExportResult struct {
	Filename     string
	Path         string
	Data         []byte
	Pages        int
	Cities       int
	Photos       int
	FontEmbedded bool
	Duration     time.Duration
}

// ExportEngine runs the export pipeline. It allows one export at a time.
type ExportEngine struct {
	cities   CityLister
	snapshot MapRenderer
	assets   AssetFetcher
	renderer *formatter.PDFRenderer
	fontName string
	metrics  *Metrics
	logger   *log.Logger
	busy     atomic.Bool
}

// ExportEngineOpts wires an [ExportEngine].
type ExportEngineOpts struct {
	Cities   CityLister
	Snapshot MapRenderer
	Assets   AssetFetcher
	Renderer *formatter.PDFRenderer
	FontName string
	Metrics  *Metrics
	Logger   *log.Logger
}

// NewExportEngine creates an export engine.
func NewExportEngine(opts ExportEngineOpts) *ExportEngine {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Renderer == nil {
		opts.Renderer = formatter.NewPDFRenderer(true, opts.Logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &ExportEngine{
		cities:   opts.Cities,
		snapshot: opts.Snapshot,
		assets:   opts.Assets,
		renderer: opts.Renderer,
		fontName: opts.FontName,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// Busy reports whether an export is running.
func (e *ExportEngine) Busy() bool { return e.busy.Load() }

// sendProgress sends a progress update through the channel without blocking.
func (e *ExportEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Export builds the PDF document for user.
//
// It fails with [shared.ErrExportInProgress] while another export runs, with [shared.ErrNoExportableCities]
// before any rendering when no city has a photo, and with [shared.ErrSnapshotFailed] when the map cannot be drawn.
// A missing font is not an error.
func (e *ExportEngine) Export(ctx context.Context, user *models.User, opts ExportOpts, progress chan<- ProgressUpdate) (result *ExportResult, err error) {
	started := time.Now()
	defer func() {
		outcome := exportOutcome(err)
		if outcome != "busy" {
			e.metrics.Duration.Observe(time.Since(started).Seconds())
		}
		e.metrics.Exports.WithLabelValues(outcome).Inc()
	}()

	if !e.busy.CompareAndSwap(false, true) {
		return nil, shared.ErrExportInProgress
	}
	defer e.busy.Store(false)

	if opts.Title == "" {
		opts.Title = "My City Footprints"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := shared.WithLogger(e.logger, "user", user.Username())

	e.sendProgress(progress, loadCitiesUpdate(user.Username()))
	all, err := e.cities.ListByUser(ctx, user.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to load cities: %w", err)
	}

	sorted := formatter.SortForExport(all)
	e.sendProgress(progress, filterCitiesUpdate(len(sorted), len(all)))
	if len(sorted) == 0 {
		return nil, shared.ErrNoExportableCities
	}

	cities, photos, err := e.fetchPhotos(ctx, sorted, opts.Workers, progress, logger)
	if err != nil {
		return nil, err
	}
	if len(cities) == 0 {
		return nil, fmt.Errorf("%w: no photo could be loaded", shared.ErrNoExportableCities)
	}

	visited := make([]string, 0, len(all))
	for _, c := range all {
		visited = append(visited, c.CityName)
	}

	e.sendProgress(progress, snapshotUpdate(len(visited)))
	snap, err := e.snapshot.Render(ctx, geo.SnapshotRequest{Visited: visited, Mode: opts.Mode, Theme: opts.Theme})
	if err != nil {
		if errors.Is(err, shared.ErrSnapshotFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrSnapshotFailed, err)
	}
	mapImage, err := formatter.DecodeImageInfo("map", snap.PNG)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSnapshotFailed, err)
	}

	font, err := e.assets.FetchFont(ctx, e.fontName)
	if err != nil {
		logger.Warn("document font unavailable, continuing with default font", "font", e.fontName, "error", err)
		font = nil
	}
	e.sendProgress(progress, fontUpdate(font != nil))

	res, err := e.renderer.Render(ctx, formatter.Document{
		Title:    opts.Title,
		Username: user.Username(),
		Map:      &mapImage,
		Cities:   cities,
		Font:     font,
	}, func(p float64) {
		e.sendProgress(progress, layoutUpdate(p))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}

	result = &ExportResult{
		Filename:     formatter.ExportFilename(user.Username(), opts.Now()),
		Data:         res.Data,
		Pages:        res.Pages,
		Cities:       len(cities),
		Photos:       photos,
		FontEmbedded: res.FontEmbedded,
	}

	if path := outputPath(opts, result.Filename); path != "" {
		e.sendProgress(progress, writeUpdate(path))
		if err := writeFile(path, res.Data); err != nil {
			return nil, err
		}
		result.Path = path
	}

	result.Duration = time.Since(started)
	e.metrics.Pages.Observe(float64(result.Pages))
	logger.Info("export complete", "cities", result.Cities, "pages", result.Pages, "duration", result.Duration)
	e.sendProgress(progress, doneUpdate(result))
	return result, nil
}

type photoJob struct {
	city  int
	slot  int
	photo models.Photo
}

type photoResult struct {
	photoJob
	image formatter.ImageInfo
	err   error
}

// fetchPhotos downloads and decodes every photo with a worker pool. Results keep the sorted city order
// and category order within each city, so one worker and many produce the same document. Photos that fail are
// skipped, and so are cities left without any photo.
func (e *ExportEngine) fetchPhotos(ctx context.Context, sorted []*models.VisitedCity, workers int, progress chan<- ProgressUpdate, logger *log.Logger) ([]formatter.ExportCity, int, error) {
	if workers <= 0 {
		workers = defaultPhotoWorkers
	}
	workers = min(workers, maxPhotoWorkers)

	var jobs []photoJob
	slots := make([][]*formatter.ImageInfo, len(sorted))
	for i, c := range sorted {
		city := *c
		city.Photos = append([]models.Photo(nil), c.Photos...)
		city.SortPhotos()
		sorted[i] = &city

		slots[i] = make([]*formatter.ImageInfo, len(city.Photos))
		for j, p := range city.Photos {
			jobs = append(jobs, photoJob{city: i, slot: j, photo: p})
		}
	}

	queue := make(chan photoJob, len(jobs))
	results := make(chan photoResult, len(jobs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				results <- e.fetchPhoto(ctx, job)
			}
		}()
	}

	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed, fetched := 0, 0
	for res := range results {
		completed++
		name := sorted[res.city].CityName
		if res.err != nil {
			logger.Warn("skipping photo", "city", name, "category", res.photo.Category, "error", res.err)
			e.sendProgress(progress, fetchPhotoFailedUpdate(completed, len(jobs), name, res.err))
			continue
		}
		img := res.image
		slots[res.city][res.slot] = &img
		fetched++
		e.sendProgress(progress, fetchPhotoUpdate(completed, len(jobs), name))
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	out := make([]formatter.ExportCity, 0, len(sorted))
	for i, c := range sorted {
		ec := formatter.ExportCity{City: c}
		for _, img := range slots[i] {
			if img != nil {
				ec.Images = append(ec.Images, *img)
			}
		}
		if len(ec.Images) == 0 {
			logger.Warn("skipping city without loadable photos", "city", c.CityName)
			continue
		}
		out = append(out, ec)
	}
	return out, fetched, nil
}

func (e *ExportEngine) fetchPhoto(ctx context.Context, job photoJob) photoResult {
	res := photoResult{photoJob: job}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}

	data, err := e.assets.FetchPhoto(ctx, job.photo.URL)
	if err != nil {
		res.err = err
		return res
	}
	res.image, res.err = formatter.DecodeImageInfo(job.photo.URL, data)
	return res
}

func outputPath(opts ExportOpts, filename string) string {
	switch {
	case opts.Path != "":
		return opts.Path
	case opts.OutputDir != "":
		return filepath.Join(opts.OutputDir, filename)
	}
	return ""
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

func exportOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, shared.ErrExportInProgress):
		return "busy"
	case errors.Is(err, shared.ErrNoExportableCities):
		return "empty"
	case errors.Is(err, shared.ErrSnapshotFailed):
		return "snapshot_failed"
	}
	return "error"
}

package geo

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/footprint/internal/shared"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"golang.org/x/image/vector"
)

const (
	DefaultSnapshotWidth   = 1200
	DefaultSnapshotHeight  = 800
	DefaultSnapshotPadding = 20
)

// Encoder writes a rasterized canvas. [png.Encode] is the default.
type Encoder func(w io.Writer, m image.Image) error

// SnapshotOptions configures a [Snapshotter]. Zero values select the defaults.
type SnapshotOptions struct {
	Width   int
	Height  int
	Padding float64

	// SettleDelay is waited after the viewport is fitted and before rasterizing.
	// Rasterization here is synchronous, so the default is 0; it exists as a timing knob for slower renderers.
	SettleDelay time.Duration

	Encoder Encoder
	Logger  *log.Logger
}

// SnapshotRequest selects what the map snapshot shows.
type SnapshotRequest struct {
	Visited []string
	Mode    ColorMode
	Theme   Theme
}

// Snapshot is an encoded raster of the whole map.
type Snapshot struct {
	PNG    []byte
	Width  int
	Height int
}

// DataURI returns the image as a "data:image/png;base64," URI.
func (s *Snapshot) DataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(s.PNG)
}

// Snapshotter renders the dataset off-screen with the same styling as the live map.
//
// Each Render acquires its own canvas and returns it on every path; [Snapshotter.Outstanding] reports canvases in use.
type Snapshotter struct {
	dataset     *Dataset
	opts        SnapshotOptions
	canvases    sync.Pool
	outstanding atomic.Int64
}

// NewSnapshotter creates a [Snapshotter] for the dataset.
func NewSnapshotter(dataset *Dataset, opts SnapshotOptions) *Snapshotter {
	if opts.Width <= 0 {
		opts.Width = DefaultSnapshotWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultSnapshotHeight
	}
	if opts.Padding <= 0 {
		opts.Padding = DefaultSnapshotPadding
	}
	if opts.Encoder == nil {
		opts.Encoder = png.Encode
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	s := &Snapshotter{dataset: dataset, opts: opts}
	s.canvases.New = func() any {
		return image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	}
	return s
}

// Outstanding returns the number of canvases currently acquired.
func (s *Snapshotter) Outstanding() int64 {
	return s.outstanding.Load()
}

// Render rasterizes the map for req and encodes it as PNG.
//
// Any failure, including a panic while drawing, is reported as [shared.ErrSnapshotFailed].
func (s *Snapshotter) Render(ctx context.Context, req SnapshotRequest) (snap *Snapshot, err error) {
	started := time.Now()
	canvas := s.acquire()
	defer s.release(canvas)
	defer func() {
		if r := recover(); r != nil {
			snap, err = nil, fmt.Errorf("%w: %v", shared.ErrSnapshotFailed, r)
		}
	}()

	vp := fitViewport(s.dataset.Bounds(), s.opts.Width, s.opts.Height, s.opts.Padding)

	if err := s.settle(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSnapshotFailed, err)
	}

	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(req.Theme.Background().NRGBA(1)), image.Point{}, draw.Src)

	visited := make(map[string]bool, len(req.Visited))
	for _, name := range req.Visited {
		visited[name] = true
	}

	var z vector.Rasterizer
	for _, f := range s.dataset.Features() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrSnapshotFailed, err)
		}
		paintFeature(&z, canvas, vp, f, Style(f.Name, visited[f.Name], req.Mode, req.Theme))
	}

	var buf bytes.Buffer
	if err := s.opts.Encoder(&buf, canvas); err != nil {
		return nil, fmt.Errorf("%w: encode: %w", shared.ErrSnapshotFailed, err)
	}

	s.opts.Logger.Debug("map snapshot rendered",
		"features", s.dataset.Len(), "visited", len(visited), "bytes", buf.Len(), "elapsed", time.Since(started))

	return &Snapshot{PNG: buf.Bytes(), Width: s.opts.Width, Height: s.opts.Height}, nil
}

func (s *Snapshotter) acquire() *image.RGBA {
	s.outstanding.Add(1)
	return s.canvases.Get().(*image.RGBA)
}

func (s *Snapshotter) release(canvas *image.RGBA) {
	s.canvases.Put(canvas)
	s.outstanding.Add(-1)
}

func (s *Snapshotter) settle(ctx context.Context) error {
	if s.opts.SettleDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.opts.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// viewport maps WGS84 points onto canvas pixels through Web Mercator.
type viewport struct {
	scale      float64
	minX, maxY float64
	offX, offY float64
}

// fitViewport fits bound into a w×h canvas leaving pad pixels on every side, centering the slack.
func fitViewport(bound orb.Bound, w, h int, pad float64) viewport {
	lo := project.WGS84.ToMercator(bound.Min)
	hi := project.WGS84.ToMercator(bound.Max)
	bw, bh := hi[0]-lo[0], hi[1]-lo[1]
	availW, availH := float64(w)-2*pad, float64(h)-2*pad

	scale := 1.0
	switch {
	case bw > 0 && bh > 0:
		scale = math.Min(availW/bw, availH/bh)
	case bw > 0:
		scale = availW / bw
	case bh > 0:
		scale = availH / bh
	}

	return viewport{
		scale: scale,
		minX:  lo[0],
		maxY:  hi[1],
		offX:  pad + (availW-bw*scale)/2,
		offY:  pad + (availH-bh*scale)/2,
	}
}

func (v viewport) project(p orb.Point) (x, y float64) {
	m := project.WGS84.ToMercator(p)
	return v.offX + (m[0]-v.minX)*v.scale, v.offY + (v.maxY-m[1])*v.scale
}

type pixelPath [][2]float64

// paths flattens a geometry into projected pixel paths. closed reports whether they are polygon rings.
func (v viewport) paths(g orb.Geometry) (paths []pixelPath, closed bool) {
	projectPoints := func(pts []orb.Point) pixelPath {
		out := make(pixelPath, len(pts))
		for i, p := range pts {
			out[i][0], out[i][1] = v.project(p)
		}
		return out
	}

	switch g := g.(type) {
	case orb.Polygon:
		for _, ring := range g {
			paths = append(paths, projectPoints(ring))
		}
		return paths, true
	case orb.MultiPolygon:
		for _, poly := range g {
			for _, ring := range poly {
				paths = append(paths, projectPoints(ring))
			}
		}
		return paths, true
	case orb.Ring:
		return []pixelPath{projectPoints(g)}, true
	case orb.LineString:
		return []pixelPath{projectPoints(g)}, false
	case orb.MultiLineString:
		for _, ls := range g {
			paths = append(paths, projectPoints(ls))
		}
		return paths, false
	case orb.Collection:
		for _, child := range g {
			sub, c := v.paths(child)
			paths = append(paths, sub...)
			closed = closed || c
		}
		return paths, closed
	}
	return nil, false
}

// paintFeature fills (when visible) and strokes one feature, rasterizing only its pixel bounding box.
func paintFeature(z *vector.Rasterizer, canvas *image.RGBA, vp viewport, f Feature, style FeatureStyle) {
	paths, closed := vp.paths(f.Geometry)
	if len(paths) == 0 {
		return
	}

	half := style.Weight / 2
	box := pixelBounds(paths, half+1).Intersect(canvas.Bounds())
	if box.Empty() {
		return
	}
	origin := [2]float64{float64(box.Min.X), float64(box.Min.Y)}
	at := func(p [2]float64) (float32, float32) {
		return float32(p[0] - origin[0]), float32(p[1] - origin[1])
	}

	if closed && style.FillOpacity > 0 {
		z.Reset(box.Dx(), box.Dy())
		for _, path := range paths {
			if len(path) < 3 {
				continue
			}
			z.MoveTo(at(path[0]))
			for _, p := range path[1:] {
				z.LineTo(at(p))
			}
			z.ClosePath()
		}
		z.Draw(canvas, box, image.NewUniform(style.Fill.NRGBA(style.FillOpacity)), image.Point{})
	}

	if half <= 0 {
		return
	}
	z.Reset(box.Dx(), box.Dy())
	for _, path := range paths {
		for i := 1; i < len(path); i++ {
			strokeSegment(z, path[i-1], path[i], half, at)
		}
	}
	z.Draw(canvas, box, image.NewUniform(style.Stroke.NRGBA(1)), image.Point{})
}

// strokeSegment adds the segment a-b as a quad of half-width hw. Every quad shares the same winding.
func strokeSegment(z *vector.Rasterizer, a, b [2]float64, hw float64, at func([2]float64) (float32, float32)) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*hw, dx/length*hw

	z.MoveTo(at([2]float64{a[0] + nx, a[1] + ny}))
	z.LineTo(at([2]float64{b[0] + nx, b[1] + ny}))
	z.LineTo(at([2]float64{b[0] - nx, b[1] - ny}))
	z.LineTo(at([2]float64{a[0] - nx, a[1] - ny}))
	z.ClosePath()
}

func pixelBounds(paths []pixelPath, grow float64) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, path := range paths {
		for _, p := range path {
			minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
			minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
		}
	}
	if math.IsInf(minX, 1) {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(minX-grow)), int(math.Floor(minY-grow)),
		int(math.Ceil(maxX+grow)), int(math.Ceil(maxY+grow)),
	)
}

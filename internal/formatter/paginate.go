package formatter

import (
	"sort"
	"strings"
	"unicode"

	"github.com/desertthunder/footprint/internal/models"
)

// Layout holds the page geometry in millimetres. The zero value is not usable; start from [DefaultLayout].
type Layout struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64

	TitleY    float64
	SubtitleY float64
	MapY      float64

	HeaderHeight      float64
	SeparatorOffset   float64
	GridColumns       int
	GridRows          int
	GridGap           float64
	CellAspect        float64 // width / height
	StarLineHeight    float64
	CommentLineHeight float64
	SectionGap        float64
	BlockSpacing      float64
}

// DefaultLayout is portrait A4 with a 20mm margin and a 2x2 grid of 4:3 cells.
func DefaultLayout() Layout {
	return Layout{
		PageWidth:         210,
		PageHeight:        297,
		Margin:            20,
		TitleY:            80,
		SubtitleY:         95,
		MapY:              120,
		HeaderHeight:      10,
		SeparatorOffset:   8,
		GridColumns:       2,
		GridRows:          2,
		GridGap:           4,
		CellAspect:        4.0 / 3.0,
		StarLineHeight:    8,
		CommentLineHeight: 6,
		SectionGap:        6,
		BlockSpacing:      15,
	}
}

// ContentWidth is the page width between margins.
func (l Layout) ContentWidth() float64 { return l.PageWidth - 2*l.Margin }

// Bottom is the lowest y a block may reach.
func (l Layout) Bottom() float64 { return l.PageHeight - l.Margin }

// CellSize returns the size of one grid cell.
func (l Layout) CellSize() (w, h float64) {
	cols := float64(max(l.GridColumns, 1))
	w = (l.ContentWidth() - l.GridGap*(cols-1)) / cols
	return w, w / l.CellAspect
}

// GridHeight is the vertical space reserved for the photo grid, whatever the photo count.
func (l Layout) GridHeight() float64 {
	_, h := l.CellSize()
	rows := float64(max(l.GridRows, 1))
	return h*rows + l.GridGap*(rows-1)
}

// Slots is the number of photos the grid holds.
func (l Layout) Slots() int { return max(l.GridColumns, 1) * max(l.GridRows, 1) }

// TextMeasurer wraps text to a width in millimetres at the comment font size.
type TextMeasurer interface {
	WrapText(text string, width float64) []string
}

// ImageInfo is a decoded photo ready for placement.
type ImageInfo struct {
	Name   string
	Type   string // fpdf image type: JPG, PNG or GIF
	Width  int
	Height int
	Data   []byte
}

// Aspect returns width / height, or 0 for an empty image.
func (i ImageInfo) Aspect() float64 {
	if i.Height == 0 {
		return 0
	}
	return float64(i.Width) / float64(i.Height)
}

// ExportCity pairs a visited city with its decoded photos, in category order.
type ExportCity struct {
	City   *models.VisitedCity
	Images []ImageInfo
}

// Rect is a placed rectangle in page coordinates.
type Rect struct {
	X, Y, W, H float64
}

// PlacedImage is an image scaled to fit and centred within its grid cell.
type PlacedImage struct {
	Image ImageInfo
	Cell  Rect
	Rect  Rect
}

// Cover is the first page.
type Cover struct {
	Title     string
	TitleY    float64
	Subtitle  string
	SubtitleY float64
	Map       *ImageInfo
	MapRect   Rect
}

// Block is the laid out content for one city. Blocks never span pages.
type Block struct {
	City         *models.VisitedCity
	Page         int
	Top          float64
	Height       float64
	HeaderY      float64
	SeparatorY   float64
	Grid         Rect
	Images       []PlacedImage
	Rating       int
	StarsY       float64
	Comment      []string
	CommentStart float64
}

// Plan is a complete, renderer-independent document layout. Pages are 1-based; page 1 is the cover.
type Plan struct {
	Layout Layout
	Cover  Cover
	Blocks []Block
	Pages  int
}

// PaginateInput is what the paginator lays out.
type PaginateInput struct {
	Title    string
	Username string
	Map      *ImageInfo
	Cities   []ExportCity
}

// Paginate lays out a cover page followed by one block per city.
//
// A block starts a new page when y+height exceeds the bottom margin and the current page already has content.
// progress, when set, receives a percentage after each city.
func Paginate(in PaginateInput, layout Layout, measure TextMeasurer, progress func(percent float64)) Plan {
	plan := Plan{
		Layout: layout,
		Cover: Cover{
			Title:     in.Title,
			TitleY:    layout.TitleY,
			Subtitle:  "- " + in.Username + " -",
			SubtitleY: layout.SubtitleY,
			Map:       in.Map,
		},
		Pages: 1,
	}

	if in.Map != nil && in.Map.Aspect() > 0 {
		w := layout.ContentWidth()
		plan.Cover.MapRect = Rect{X: layout.Margin, Y: layout.MapY, W: w, H: w / in.Map.Aspect()}
	}

	if len(in.Cities) == 0 {
		return plan
	}

	plan.Pages++
	y := layout.Margin
	for i, ec := range in.Cities {
		comment := wrapComment(ec.City.Comment, layout.ContentWidth(), measure)
		height := blockHeight(layout, ec.City.Rating, len(comment))

		if y+height > layout.Bottom() && y > layout.Margin {
			plan.Pages++
			y = layout.Margin
		}

		plan.Blocks = append(plan.Blocks, placeBlock(layout, ec, plan.Pages, y, height, comment))
		y += height + layout.BlockSpacing

		if progress != nil {
			progress(float64(i+1) / float64(len(in.Cities)) * 100)
		}
	}
	return plan
}

func blockHeight(l Layout, rating, commentLines int) float64 {
	h := l.HeaderHeight + l.GridHeight() + l.SectionGap
	if rating > 0 {
		h += l.StarLineHeight
	}
	return h + float64(commentLines)*l.CommentLineHeight
}

func placeBlock(l Layout, ec ExportCity, page int, y, height float64, comment []string) Block {
	b := Block{
		City:       ec.City,
		Page:       page,
		Top:        y,
		Height:     height,
		HeaderY:    y,
		SeparatorY: y + l.SeparatorOffset,
		Grid:       Rect{X: l.Margin, Y: y + l.HeaderHeight, W: l.ContentWidth(), H: l.GridHeight()},
		Rating:     max(0, min(ec.City.Rating, models.MaxRating)),
		Comment:    comment,
	}

	cellW, cellH := l.CellSize()
	for i, img := range ec.Images {
		if i >= l.Slots() {
			break
		}
		col, row := i%l.GridColumns, i/l.GridColumns
		cell := Rect{
			X: b.Grid.X + float64(col)*(cellW+l.GridGap),
			Y: b.Grid.Y + float64(row)*(cellH+l.GridGap),
			W: cellW,
			H: cellH,
		}
		b.Images = append(b.Images, PlacedImage{Image: img, Cell: cell, Rect: FitRect(cell, img.Aspect())})
	}

	cursor := b.Grid.Y + b.Grid.H + l.SectionGap
	if b.Rating > 0 {
		b.StarsY = cursor + l.StarLineHeight/2
		cursor += l.StarLineHeight
	}
	b.CommentStart = cursor + l.CommentLineHeight/2
	return b
}

// FitRect scales an image of the given aspect ratio to fit inside cell, centred.
func FitRect(cell Rect, aspect float64) Rect {
	if aspect <= 0 {
		return cell
	}
	w, h := cell.W, cell.W/aspect
	if h > cell.H {
		h = cell.H
		w = h * aspect
	}
	return Rect{X: cell.X + (cell.W-w)/2, Y: cell.Y + (cell.H-h)/2, W: w, H: h}
}

func wrapComment(comment string, width float64, measure TextMeasurer) []string {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil
	}
	if measure == nil {
		measure = RuneMeasurer{CharWidth: 2.5}
	}

	var lines []string
	for _, paragraph := range strings.Split(comment, "\n") {
		lines = append(lines, measure.WrapText(paragraph, width)...)
	}
	return lines
}

// RuneMeasurer wraps text assuming every rune has the same width. Wide (CJK) runes count double.
type RuneMeasurer struct {
	CharWidth float64
}

func (m RuneMeasurer) WrapText(text string, width float64) []string {
	return WrapByWidth(text, width, func(s string) float64 {
		n := 0
		for _, r := range s {
			if unicode.In(r, unicode.Han, unicode.Hangul, unicode.Hiragana, unicode.Katakana) {
				n += 2
			} else {
				n++
			}
		}
		return float64(n) * m.CharWidth
	})
}

// WrapByWidth greedily breaks text into lines no wider than width, preferring to break at spaces.
// A single glyph wider than width gets a line of its own.
func WrapByWidth(text string, width float64, measure func(string) float64) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{""}
	}

	var lines []string
	start, lastSpace := 0, -1
	for i := 0; i < len(runes); i++ {
		if runes[i] == ' ' {
			lastSpace = i
		}
		if i == start || measure(string(runes[start:i+1])) <= width {
			continue
		}

		cut := i
		if lastSpace > start {
			cut = lastSpace
		}
		lines = append(lines, strings.TrimSpace(string(runes[start:cut])))
		start = cut
		for start < len(runes) && runes[start] == ' ' {
			start++
		}
		lastSpace = -1
		i = start - 1
	}
	if start < len(runes) {
		lines = append(lines, strings.TrimSpace(string(runes[start:])))
	}
	return lines
}

// SortForExport keeps cities with at least one photo, newest visit first. Undated visits sort last, by name.
func SortForExport(cities []*models.VisitedCity) []*models.VisitedCity {
	out := make([]*models.VisitedCity, 0, len(cities))
	for _, c := range cities {
		if c != nil && c.HasPhotos() {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, iok := out[i].VisitTime()
		tj, jok := out[j].VisitTime()
		switch {
		case iok && jok && !ti.Equal(tj):
			return ti.After(tj)
		case iok != jok:
			return iok
		}
		return out[i].CityName < out[j].CityName
	})
	return out
}

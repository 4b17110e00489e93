package formatter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/opentype"

	"github.com/desertthunder/footprint/internal/models"
	"github.com/desertthunder/footprint/internal/shared"
)

const (
	fontFamily     = "footprint"
	fallbackFamily = "Helvetica"
	dingbatsFamily = "ZapfDingbats"

	// ZapfDingbats glyphs for a filled and an outlined star.
	dingbatStarFilled = "H"
	dingbatStarEmpty  = "I"
)

// PDFRenderer draws a [Plan] with fpdf.
type PDFRenderer struct {
	Layout   Layout
	Compress bool
	Logger   *log.Logger
}

// NewPDFRenderer creates a renderer using [DefaultLayout].
func NewPDFRenderer(compress bool, logger *log.Logger) *PDFRenderer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &PDFRenderer{Layout: DefaultLayout(), Compress: compress, Logger: logger}
}

// Document is the input to [PDFRenderer.Render]. Cities must already be filtered and sorted.
type Document struct {
	Title    string
	Username string
	Map      *ImageInfo
	Cities   []ExportCity
	Font     []byte
}

// RenderResult is a rendered document.
type RenderResult struct {
	Data         []byte
	Pages        int
	FontEmbedded bool
}

// Render paginates doc and writes the PDF.
//
// The custom font is optional: when it is missing or does not parse, text falls back to Helvetica and the
// star line to ZapfDingbats glyphs.
func (r *PDFRenderer) Render(ctx context.Context, doc Document, progress func(percent float64)) (*RenderResult, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(r.Layout.Margin, r.Layout.Margin, r.Layout.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(r.Compress)
	pdf.SetCreator("footprint", false)
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(doc.Username, true)

	w := &pdfWriter{pdf: pdf, layout: r.Layout}
	w.embedded = r.loadFont(pdf, doc.Font)
	if !w.embedded {
		w.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}

	w.setFont(11)
	plan := Paginate(PaginateInput{
		Title:    doc.Title,
		Username: doc.Username,
		Map:      doc.Map,
		Cities:   doc.Cities,
	}, r.Layout, w, progress)

	if err := w.drawCover(plan.Cover); err != nil {
		return nil, err
	}
	for i, block := range plan.Blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for pdf.PageNo() < block.Page {
			pdf.AddPage()
		}
		if err := w.drawBlock(i, block); err != nil {
			return nil, err
		}
	}

	w.stampPages(HeaderLabel(doc.Title, doc.Username))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return &RenderResult{Data: buf.Bytes(), Pages: plan.Pages, FontEmbedded: w.embedded}, nil
}

func (r *PDFRenderer) loadFont(pdf *fpdf.Fpdf, font []byte) bool {
	if len(font) == 0 {
		r.Logger.Warn("custom font not provided, falling back to default font", "fallback", fallbackFamily)
		return false
	}
	if _, err := opentype.Parse(font); err != nil {
		r.Logger.Warn("custom font failed to load, falling back to default font", "fallback", fallbackFamily, "error", err)
		return false
	}

	pdf.AddUTF8FontFromBytes(fontFamily, "", font)
	if err := pdf.Error(); err != nil {
		pdf.ClearError()
		r.Logger.Warn("custom font failed to embed, falling back to default font", "fallback", fallbackFamily, "error", err)
		return false
	}
	return true
}

// HeaderLabel is the running label stamped at the top of every page.
func HeaderLabel(title, username string) string {
	if username == "" {
		return title
	}
	return title + " - " + username
}

// PageLabel is the running page counter stamped at the bottom of every page.
func PageLabel(page, total int) string {
	return fmt.Sprintf("Page %d of %d", page, total)
}

type pdfWriter struct {
	pdf      *fpdf.Fpdf
	layout   Layout
	embedded bool
	tr       func(string) string
}

func (w *pdfWriter) text(s string) string {
	if w.tr != nil {
		return w.tr(s)
	}
	return s
}

func (w *pdfWriter) setFont(size float64) {
	if w.embedded {
		w.pdf.SetFont(fontFamily, "", size)
	} else {
		w.pdf.SetFont(fallbackFamily, "", size)
	}
}

// WrapText implements [TextMeasurer] with the current font metrics.
func (w *pdfWriter) WrapText(text string, width float64) []string {
	return WrapByWidth(text, width, func(s string) float64 {
		return w.pdf.GetStringWidth(w.text(s))
	})
}

func (w *pdfWriter) centered(s string, y float64) {
	s = w.text(s)
	w.pdf.Text((w.layout.PageWidth-w.pdf.GetStringWidth(s))/2, y, s)
}

func (w *pdfWriter) rightAligned(s string, y float64) {
	s = w.text(s)
	w.pdf.Text(w.layout.PageWidth-w.layout.Margin-w.pdf.GetStringWidth(s), y, s)
}

func (w *pdfWriter) image(name string, img ImageInfo, rect Rect) error {
	opts := fpdf.ImageOptions{ImageType: img.Type}
	w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if err := w.pdf.Error(); err != nil {
		return fmt.Errorf("failed to embed image %s: %w", img.Name, err)
	}
	w.pdf.ImageOptions(name, rect.X, rect.Y, rect.W, rect.H, false, opts, 0, "")
	return nil
}

func (w *pdfWriter) drawCover(c Cover) error {
	w.pdf.AddPage()

	w.pdf.SetTextColor(40, 40, 40)
	w.setFont(28)
	w.centered(c.Title, c.TitleY)
	w.setFont(16)
	w.centered(c.Subtitle, c.SubtitleY)

	if c.Map != nil && c.MapRect.W > 0 {
		if err := w.image("map", *c.Map, c.MapRect); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrSnapshotFailed, err)
		}
	}
	return nil
}

func (w *pdfWriter) drawBlock(index int, b Block) error {
	l := w.layout

	w.setFont(16)
	w.pdf.SetTextColor(40, 40, 40)
	w.pdf.Text(l.Margin, b.HeaderY, w.text(b.City.CityName))

	if b.City.VisitDate != "" {
		w.setFont(11)
		w.pdf.SetTextColor(100, 100, 100)
		w.rightAligned(b.City.VisitDate, b.HeaderY)
	}

	w.pdf.SetDrawColor(230, 230, 230)
	w.pdf.SetLineWidth(0.2)
	w.pdf.Line(l.Margin, b.SeparatorY, l.PageWidth-l.Margin, b.SeparatorY)

	for slot, placed := range b.Images {
		if err := w.image(fmt.Sprintf("city-%d-%d", index, slot), placed.Image, placed.Rect); err != nil {
			return err
		}
	}

	if b.Rating > 0 {
		w.pdf.SetTextColor(245, 166, 35)
		if w.embedded {
			w.setFont(12)
			w.pdf.Text(l.Margin, b.StarsY, models.Stars(b.Rating))
		} else {
			w.pdf.SetFont(dingbatsFamily, "", 12)
			stars := strings.Repeat(dingbatStarFilled, b.Rating) + strings.Repeat(dingbatStarEmpty, models.MaxRating-b.Rating)
			w.pdf.Text(l.Margin, b.StarsY, stars)
		}
	}

	if len(b.Comment) > 0 {
		w.setFont(11)
		w.pdf.SetTextColor(60, 60, 60)
		for i, line := range b.Comment {
			w.pdf.Text(l.Margin, b.CommentStart+float64(i)*l.CommentLineHeight, w.text(line))
		}
	}
	return w.pdf.Error()
}

// stampPages runs once every page exists, since the page total is only known then.
func (w *pdfWriter) stampPages(label string) {
	total := w.pdf.PageCount()
	for i := 1; i <= total; i++ {
		w.pdf.SetPage(i)
		w.setFont(9)
		w.pdf.SetTextColor(150, 150, 150)
		w.pdf.Text(w.layout.Margin, 10, w.text(label))
		w.rightAligned(PageLabel(i, total), w.layout.PageHeight-10)
	}
}

var unsafeFilename = regexp.MustCompile(`[\\/:*?"<>|\s]+`)

// ExportFilename names the exported document: <user>_footprints_<YYYY-MM-DD>.pdf
func ExportFilename(username string, date time.Time) string {
	name := unsafeFilename.ReplaceAllString(strings.TrimSpace(username), "_")
	if name == "" {
		name = "user"
	}
	return fmt.Sprintf("%s_footprints_%s.pdf", name, date.Format(models.DateLayout))
}

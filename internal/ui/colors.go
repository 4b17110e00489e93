package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/footprint/internal/geo"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// interface Painter defines coloring text with [lipgloss] styles
type Painter interface {
	On(string, lipgloss.Color) string // Sets background color
	As(string, lipgloss.Color) string // Sets foreground color
}

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	footer lipgloss.Style
}

var _ Painter = (*Palette)(nil)

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
		footer: NewStyle(h).BorderStyle(lipgloss.NormalBorder()).BorderTop(true).BorderForeground(lipgloss.Color(h)),
	}
}

func (p *Palette) On(s string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Background(c).Render(s)
}

func (p *Palette) As(s string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(c).Render(s)
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Swatch renders the map color of a city as a small block; unvisited cities get an outline.
func Swatch(name string, visited bool, mode geo.ColorMode, theme geo.Theme) string {
	if !visited {
		return styles.As("○", lipgloss.Color(theme.Stroke().Hex()))
	}
	s := geo.Style(name, true, mode, theme)
	return styles.As("●", lipgloss.Color(s.Fill.Hex()))
}

package geo

import (
	"fmt"
	"strings"

	"github.com/desertthunder/footprint/internal/shared"
)

// Theme selects the light or dark map palette.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ColorMode selects per-city colors or a single accent color for visited cities.
type ColorMode string

const (
	ColorModeColorful ColorMode = "colorful"
	ColorModeSingle   ColorMode = "single"
)

const (
	VisitedFillOpacity = 0.6
	StrokeWeight       = 0.6
)

var (
	AccentColor      = mustParseColor("#48cae4")
	AccentHoverColor = mustParseColor("#00b4d8")

	darkStroke      = RGB{90, 90, 90}
	lightStroke     = RGB{163, 168, 175}
	darkBackground  = RGB{30, 32, 33}
	lightBackground = RGB{247, 247, 247}
)

// ParseTheme resolves "light" or "dark"; an empty string means light.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case "", ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", fmt.Errorf("%w: unknown theme %q", shared.ErrInvalidInput, s)
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Stroke is the boundary line color.
func (t Theme) Stroke() RGB {
	if t == ThemeDark {
		return darkStroke
	}
	return lightStroke
}

// Background is the map canvas color.
func (t Theme) Background() RGB {
	if t == ThemeDark {
		return darkBackground
	}
	return lightBackground
}

// ParseColorMode resolves "colorful" or "single"; an empty string means colorful.
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ColorModeColorful:
		return ColorModeColorful, nil
	case ColorModeSingle:
		return ColorModeSingle, nil
	}
	return "", fmt.Errorf("%w: unknown color mode %q", shared.ErrInvalidInput, s)
}

// Toggle returns the other color mode.
func (m ColorMode) Toggle() ColorMode {
	if m == ColorModeSingle {
		return ColorModeColorful
	}
	return ColorModeSingle
}

// FeatureStyle is how one city polygon is drawn.
type FeatureStyle struct {
	Name        string  `json:"name"`
	Fill        RGB     `json:"fill"`
	FillOpacity float64 `json:"fill_opacity"`
	HoverFill   RGB     `json:"hover_fill"`
	Stroke      RGB     `json:"stroke"`
	Weight      float64 `json:"weight"`
}

// Style computes the style of the city called name. Unvisited cities are fully transparent.
func Style(name string, visited bool, mode ColorMode, theme Theme) FeatureStyle {
	s := FeatureStyle{
		Name:   name,
		Stroke: theme.Stroke(),
		Weight: StrokeWeight,
	}

	if mode == ColorModeSingle {
		s.Fill = AccentColor
		s.HoverFill = AccentHoverColor
	} else {
		s.Fill = CityColor(name)
		s.HoverFill = s.Fill
	}

	if visited {
		s.FillOpacity = VisitedFillOpacity
	}
	return s
}

// Styles computes the style of every feature in the dataset, in dataset order.
func (d *Dataset) Styles(visited []string, mode ColorMode, theme Theme) []FeatureStyle {
	set := make(map[string]bool, len(visited))
	for _, name := range visited {
		set[name] = true
	}

	styles := make([]FeatureStyle, len(d.features))
	for i, f := range d.features {
		styles[i] = Style(f.Name, set[f.Name], mode, theme)
	}
	return styles
}

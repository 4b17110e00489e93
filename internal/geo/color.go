package geo

import (
	"fmt"
	"image/color"
	"math"
	"strings"
	"unicode/utf16"

	"github.com/desertthunder/footprint/internal/shared"
	"github.com/lucasb-eyer/go-colorful"
)

// RGB is an opaque 8-bit color. It marshals as "rgb(r, g, b)".
type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Hex returns the color as "#rrggbb".
func (c RGB) Hex() string {
	return c.Colorful().Hex()
}

// Colorful converts to a [colorful.Color].
func (c RGB) Colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// NRGBA returns the color with the given opacity in [0, 1].
func (c RGB) NRGBA(opacity float64) color.NRGBA {
	opacity = math.Max(0, math.Min(1, opacity))
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Floor(opacity*255 + 0.5))}
}

func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *RGB) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseColor accepts "#rrggbb" or "rgb(r, g, b)".
func ParseColor(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return RGB{}, fmt.Errorf("%w: color %q: %w", shared.ErrInvalidInput, s, err)
		}
		r, g, b := c.RGB255()
		return RGB{r, g, b}, nil
	}

	var r, g, b int
	if _, err := fmt.Sscanf(strings.ReplaceAll(s, " ", ""), "rgb(%d,%d,%d)", &r, &g, &b); err != nil {
		return RGB{}, fmt.Errorf("%w: color %q", shared.ErrInvalidInput, s)
	}
	for _, v := range []int{r, g, b} {
		if v < 0 || v > 255 {
			return RGB{}, fmt.Errorf("%w: color %q out of range", shared.ErrInvalidInput, s)
		}
	}
	return RGB{uint8(r), uint8(g), uint8(b)}, nil
}

func mustParseColor(s string) RGB {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// NameHash is a 32-bit signed rolling hash (h = unit + (h<<5 - h), wrapping) over the UTF-16 code units of name.
func NameHash(name string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(name)) {
		h = int32(unit) + ((h << 5) - h)
	}
	return h
}

// HuePosition maps name to a stable position in [0, 1) with a resolution of 1/1000.
func HuePosition(name string) float64 {
	h := int64(NameHash(name))
	if h < 0 {
		h = -h
	}
	return float64(h%1000) / 1000
}

// Sinebow is the cyclic sinebow color interpolation for t in [0, 1].
func Sinebow(t float64) RGB {
	t = (0.5 - t) * math.Pi
	channel := func(offset float64) uint8 {
		x := math.Sin(t + offset)
		v := math.Floor(255*x*x + 0.5)
		return uint8(math.Max(0, math.Min(255, v)))
	}
	return RGB{R: channel(0), G: channel(math.Pi / 3), B: channel(math.Pi * 2 / 3)}
}

// CityColor returns the deterministic colorful-mode fill for a city name.
func CityColor(name string) RGB {
	return Sinebow(HuePosition(name))
}

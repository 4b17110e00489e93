package formatter

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/webp"

	"github.com/desertthunder/footprint/internal/shared"
)

// DecodeImageInfo reads the dimensions and format of an encoded image.
//
// WebP images are re-encoded as PNG since the document engine only embeds JPEG, PNG and GIF.
func DecodeImageInfo(name string, data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %s: %w", shared.ErrInvalidInput, name, err)
	}

	info := ImageInfo{Name: name, Width: cfg.Width, Height: cfg.Height, Data: data}
	switch format {
	case "jpeg":
		info.Type = "JPG"
	case "png":
		info.Type = "PNG"
	case "gif":
		info.Type = "GIF"
	case "webp":
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return ImageInfo{}, fmt.Errorf("%w: %s: %w", shared.ErrInvalidInput, name, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return ImageInfo{}, fmt.Errorf("%w: %s: %w", shared.ErrInvalidInput, name, err)
		}
		info.Type, info.Data = "PNG", buf.Bytes()
	default:
		return ImageInfo{}, fmt.Errorf("%w: %s: unsupported image format %q", shared.ErrInvalidInput, name, format)
	}

	if info.Width == 0 || info.Height == 0 {
		return ImageInfo{}, fmt.Errorf("%w: %s: empty image", shared.ErrInvalidInput, name)
	}
	return info, nil
}

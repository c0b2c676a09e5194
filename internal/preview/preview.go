// Package preview turns a selected leaf photo into a displayable data URL.
package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/cropcare-connect/cropcare/internal/scan"
)

// Options controls the rendered preview.
type Options struct {
	// MaxDim bounds the longer side in pixels. Zero keeps the original size.
	MaxDim int
	// Format is jpeg, png or webp.
	Format  string
	Quality int
}

// DefaultOptions returns the preview settings used by the session host.
func DefaultOptions() Options {
	return Options{MaxDim: 512, Format: "jpeg", Quality: 85}
}

// Processor renders previews. It satisfies scan.Previewer.
type Processor struct {
	opts Options
}

// NewProcessor creates a preview processor
func NewProcessor(opts Options) *Processor {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 85
	}
	opts.Format = strings.ToLower(opts.Format)
	if opts.Format == "" || opts.Format == "jpg" {
		opts.Format = "jpeg"
	}
	return &Processor{opts: opts}
}

// Preview returns a data URL for img. Payloads that cannot be decoded are
// returned as-is in a data URL.
func (p *Processor) Preview(img scan.Image) (string, error) {
	decoded, err := Decode(img.Data)
	if err != nil {
		slog.Debug("Falling back to raw preview", "name", img.Name, "err", err)
		return scan.DataURL(img)
	}

	decoded = p.fit(decoded)

	var buf bytes.Buffer
	mediaType, err := p.encode(&buf, decoded)
	if err != nil {
		return "", fmt.Errorf("failed to encode preview: %w", err)
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (p *Processor) fit(img image.Image) image.Image {
	if p.opts.MaxDim <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= p.opts.MaxDim && b.Dy() <= p.opts.MaxDim {
		return img
	}
	return imaging.Fit(img, p.opts.MaxDim, p.opts.MaxDim, imaging.Lanczos)
}

func (p *Processor) encode(buf *bytes.Buffer, img image.Image) (string, error) {
	switch p.opts.Format {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return "image/png", enc.Encode(buf, img)
	case "webp":
		return "image/webp", webp.Encode(buf, img, &webp.Options{Quality: float32(p.opts.Quality)})
	default:
		return "image/jpeg", jpeg.Encode(buf, img, &jpeg.Options{Quality: p.opts.Quality})
	}
}

// Decode decodes jpeg, png, gif or webp bytes.
func Decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// Dimensions returns the pixel size of data without decoding the full image.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

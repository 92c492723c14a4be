// Package render turns image channels into quick-look previews.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"planarimaging/pkg/planar"
)

// ErrUnknownFormat is returned for preview encodings other than PNG, JPEG, and TIFF.
var ErrUnknownFormat = errors.New("unknown preview format")

// Format names a preview file encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	TIFF Format = "tiff"
)

// ParseFormat accepts the format names and their common file extensions.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png", "":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "tiff", "tif":
		return TIFF, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownFormat)
}

// Ext is the file extension, with dot, used for the format.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return ".jpg"
	case TIFF:
		return ".tif"
	}
	return ".png"
}

// Preview renders channel chnl of img as 16-bit grey, stretching the finite sample range of
// that channel to full scale. Rows run down the preview and columns across it. Non-finite
// samples render black, as does a channel holding a single value. If width is positive the
// preview is resampled to that width, keeping the aspect ratio.
func Preview[T planar.Sample](img *planar.Image[T], chnl int, width int) (image.Image, error) {
	if img.Rows <= 0 || img.Columns <= 0 {
		return nil, fmt.Errorf("preview: %w", planar.ErrEmptyImage)
	}
	if chnl < 0 || chnl >= img.Channels {
		return nil, fmt.Errorf("preview channel %d of %d: %w", chnl, img.Channels, planar.ErrOutOfBounds)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Columns; c++ {
			v := float64(img.Data[img.IndexChannel(r, c, chnl)])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}

	out := image.NewGray16(image.Rect(0, 0, img.Columns, img.Rows))
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Columns; c++ {
			v := float64(img.Data[img.IndexChannel(r, c, chnl)])
			var y uint16
			if hi > lo && !math.IsNaN(v) && !math.IsInf(v, 0) {
				y = uint16(math.Round((v - lo) / (hi - lo) * math.MaxUint16))
			}
			out.SetGray16(c, r, color.Gray16{Y: y})
		}
	}

	if width <= 0 || width == img.Columns {
		return out, nil
	}
	height := max(1, int(math.Round(float64(img.Rows)*float64(width)/float64(img.Columns))))
	scaled := image.NewGray16(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), out, out.Bounds(), draw.Src, nil)
	return scaled, nil
}

// SavePreview encodes a preview to path. JPEG previews use quality 90.
func SavePreview(img image.Image, path string, format Format) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch format {
	case PNG:
		err = png.Encode(file, img)
	case JPEG:
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	case TIFF:
		err = tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	if err != nil {
		return fmt.Errorf("save preview %s: %w", path, err)
	}
	return nil
}

// SaveChannelSequence writes one preview per channel of img into outputDir, named
// channel_000, channel_001, and so on.
func SaveChannelSequence[T planar.Sample](img *planar.Image[T], outputDir string, width int, format Format) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for ch := 0; ch < img.Channels; ch++ {
		p, err := Preview(img, ch, width)
		if err != nil {
			return err
		}
		name := filepath.Join(outputDir, fmt.Sprintf("channel_%03d%s", ch, format.Ext()))
		if err := SavePreview(p, name, format); err != nil {
			return err
		}
	}
	return nil
}

// SaveImageSequence writes a preview of channel chnl of every image in c into outputDir,
// in collection order, named image_000, image_001, and so on.
func SaveImageSequence[T planar.Sample](c *planar.Collection[T], chnl int, outputDir string, width int, format Format) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for i, img := range c.Images {
		p, err := Preview(img, chnl, width)
		if err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
		name := filepath.Join(outputDir, fmt.Sprintf("image_%03d%s", i, format.Ext()))
		if err := SavePreview(p, name, format); err != nil {
			return err
		}
	}
	return nil
}

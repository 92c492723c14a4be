package main

import (
	"fmt"
	"maps"
	"slices"

	"planarimaging/pkg/config"
	"planarimaging/pkg/fits"
	"planarimaging/pkg/geom"
	"planarimaging/pkg/lincompress"
	"planarimaging/pkg/planar"
	"planarimaging/pkg/render"
)

func blurAll[T planar.Sample](c *planar.Collection[T], channels []int, sigma float64) error {
	return c.TransformImagesParallel(func(img *planar.Image[T], _ planar.Externals[T]) error {
		chans := channels
		if len(chans) == 0 {
			for ch := 0; ch < img.Channels; ch++ {
				chans = append(chans, ch)
			}
		}
		if !img.GaussianPixelBlur(chans, sigma) {
			return fmt.Errorf("blur channels %v of a %d-channel image with sigma %g: %w",
				chans, img.Channels, sigma, planar.ErrInvalidArgument)
		}
		return nil
	}, planar.Externals[T]{})
}

func printInfo[T planar.Sample](c *planar.Collection[T]) {
	for i, img := range c.Images {
		fmt.Printf("Image %d: %d rows x %d columns x %d channels\n", i, img.Rows, img.Columns, img.Channels)
		fmt.Printf("  spacing: %g x %g, thickness %g\n", img.PxlDx, img.PxlDy, img.PxlDz)
		fmt.Printf("  pixel (0,0): %s, centre: %s\n",
			geom.VecToString(img.Position(0, 0)), geom.VecToString(img.Center()))
		fmt.Printf("  row unit: %s, column unit: %s\n",
			geom.VecToString(img.RowUnit), geom.VecToString(img.ColUnit))
		if lo, hi, err := img.MinMax(); err == nil {
			fmt.Printf("  range: [%v, %v]\n", lo, hi)
		}
		for _, k := range slices.Sorted(maps.Keys(img.Metadata)) {
			fmt.Printf("  %s = %q\n", k, img.Metadata[k])
		}
	}
}

func savePreviews[T planar.Sample](c *planar.Collection[T], dir string, cfg *config.Config) error {
	format, err := render.ParseFormat(cfg.Preview.Format)
	if err != nil {
		return err
	}
	if c.Len() == 1 && c.Front().Channels > 1 {
		return render.SaveChannelSequence(c.Front(), dir, cfg.Preview.Width, format)
	}
	return render.SaveImageSequence(c, cfg.Preview.Channel, dir, cfg.Preview.Width, format)
}

// dumped is one raw file written by dumpAll. mapping is set for compressed dumps and
// recovers sample values from the stored codes.
type dumped struct {
	path    string
	mapping *lincompress.Compressor[float64, uint16]
}

// dumpAll writes one raw file per image, suffixed with the image index when there are
// several, and reports the files written.
func dumpAll[T planar.Sample](c *planar.Collection[T], prefix, mode string) ([]dumped, error) {
	var out []dumped
	for i, img := range c.Images {
		path := prefix + ".raw"
		if c.Len() > 1 {
			path = fmt.Sprintf("%s_%03d.raw", prefix, i)
		}
		d := dumped{path: path}
		var err error
		switch mode {
		case "raw":
			err = fits.DumpPixels(path, img)
		case "uint8":
			err = fits.DumpCastedPixels[T, uint8](path, img)
		case "scaled-uint16":
			err = fits.DumpCastedScaledPixels[T, uint16](path, img)
		case "compressed-uint16":
			var comp lincompress.Compressor[float64, uint16]
			comp, err = fits.DumpCompressedPixels[T, uint16](path, img)
			d.mapping = &comp
		default:
			return out, fmt.Errorf("unknown dump mode %q", mode)
		}
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
	return out, nil
}

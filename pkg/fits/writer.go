package fits

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"

	"planarimaging/pkg/geom"
	"planarimaging/pkg/planar"
)

// Write serialises every image of c, in order, as consecutive HDUs.
func Write[T planar.Sample](w io.Writer, c *planar.Collection[T], order ByteOrder) error {
	bitpix, err := bitpixOf[T]()
	if err != nil {
		return err
	}
	if c.Len() == 0 {
		return fmt.Errorf("write FITS: %w", planar.ErrEmptyCollection)
	}
	for i, img := range c.Images {
		if img.Rows <= 0 || img.Columns <= 0 || img.Channels <= 0 {
			return fmt.Errorf("write FITS: image %d is %dx%dx%d: %w",
				i, img.Rows, img.Columns, img.Channels, planar.ErrInvalidArgument)
		}
	}

	bw := bufio.NewWriter(w)
	for i, img := range c.Images {
		h := imageHeader(img, bitpix, i == 0, c.Len() > 1, order)
		if err := h.writeTo(bw); err != nil {
			return fmt.Errorf("write FITS header %d: %w", i, err)
		}
		if err := writePixels(bw, img, bitpix, order); err != nil {
			return fmt.Errorf("write FITS data %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteImage writes a single image as a primary HDU with EXTEND = F.
func WriteImage[T planar.Sample](w io.Writer, img *planar.Image[T], order ByteOrder) error {
	return Write(w, planar.NewCollection(img), order)
}

func imageHeader[T planar.Sample](img *planar.Image[T], bitpix int, primary, extend bool, order ByteOrder) *headerBuilder {
	h := &headerBuilder{}
	if primary {
		h.addLogical("SIMPLE", true)
	} else {
		h.addString("XTENSION", "IMAGE")
	}
	h.addInt("BITPIX", bitpix)
	naxis := 2
	if img.Channels != 1 {
		naxis = 3
	}
	h.addInt("NAXIS", naxis)
	h.addInt("NAXIS1", img.Columns)
	h.addInt("NAXIS2", img.Rows)
	if naxis == 3 {
		h.addInt("NAXIS3", img.Channels)
	}
	if primary {
		h.addLogical("EXTEND", extend)
	} else {
		h.addInt("PCOUNT", 0)
		h.addInt("GCOUNT", 1)
	}

	h.addString(keyByteOrder, order.String())
	h.addReal(keyPxlDx, img.PxlDx)
	h.addReal(keyPxlDy, img.PxlDy)
	h.addReal(keyPxlDz, img.PxlDz)
	h.addString(keyAnchor, geom.VecToString(img.Anchor))
	h.addString(keyOffset, geom.VecToString(img.Offset))
	h.addString(keyRowUnit, geom.VecToString(img.RowUnit))
	h.addString(keyColUnit, geom.VecToString(img.ColUnit))
	for _, k := range slices.Sorted(maps.Keys(img.Metadata)) {
		h.addString(keyMetadata, EncodeMetadataPair(k, img.Metadata[k]))
	}

	if lo, hi, err := img.MinMax(); err == nil {
		if l, u := float64(lo), float64(hi); isFinite(l) && isFinite(u) {
			h.addReal("DATAMIN", l)
			h.addReal("DATAMAX", u)
		}
		h.addReal("BZERO", 0)
		h.addReal("BSCALE", 1)
	}
	h.end()
	return h
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// writePixels emits channel planes in turn, each with the last row first, followed by
// zero padding to the block size.
func writePixels[T planar.Sample](w io.Writer, img *planar.Image[T], bitpix int, order ByteOrder) error {
	bo := order.binary()
	width := abs(bitpix) / 8
	row := make([]byte, img.Columns*width)
	for ch := 0; ch < img.Channels; ch++ {
		for r := img.Rows - 1; r >= 0; r-- {
			for c := 0; c < img.Columns; c++ {
				encodeSample(row[c*width:], img.Data[img.IndexChannel(r, c, ch)], bitpix, bo)
			}
			if _, err := w.Write(row); err != nil {
				return err
			}
		}
	}
	total := len(img.Data) * width
	if rem := total % blockSize; rem != 0 {
		if _, err := w.Write(make([]byte, blockSize-rem)); err != nil {
			return err
		}
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

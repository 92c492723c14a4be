package fits

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"planarimaging/pkg/geom"
	"planarimaging/pkg/planar"
)

// hdu is the parsed header of one header-data unit.
type hdu struct {
	bitpix int
	naxis  []int
	extend bool
	order  ByteOrder
	bzero  float64
	bscale float64
	values map[string]keyword
	meta   []string
}

func (h *hdu) pixels() int {
	if len(h.naxis) == 0 {
		return 0
	}
	n := 1
	for _, v := range h.naxis {
		n *= v
	}
	return n
}

func (h *hdu) intValue(key string) (int, error) {
	kw, ok := h.values[key]
	if !ok || kw.isString {
		return 0, fmt.Errorf("keyword %s missing or not an integer: %w", key, ErrFormat)
	}
	v, err := strconv.Atoi(kw.value)
	if err != nil {
		return 0, fmt.Errorf("keyword %s = %q: %w", key, kw.value, ErrFormat)
	}
	return v, nil
}

func (h *hdu) realValue(key string, def float64) (float64, error) {
	kw, ok := h.values[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(kw.value, "D", "E"), 64)
	if err != nil || kw.isString {
		return 0, fmt.Errorf("keyword %s = %q: %w", key, kw.value, ErrFormat)
	}
	return v, nil
}

func (h *hdu) vecValue(key string, def r3.Vec) (r3.Vec, error) {
	kw, ok := h.values[key]
	if !ok {
		return def, nil
	}
	v, err := geom.VecFromString(kw.value)
	if err != nil {
		return r3.Vec{}, fmt.Errorf("keyword %s: %w: %w", key, ErrFormat, err)
	}
	return v, nil
}

// parseHDUHeader validates the mandatory keywords of a primary or extension header.
func parseHDUHeader(cards []keyword, primary bool) (*hdu, error) {
	if len(cards) == 0 {
		return nil, fmt.Errorf("empty header: %w", ErrFormat)
	}
	first := cards[0]
	switch {
	case primary && (first.key != "SIMPLE" || first.value != "T"):
		return nil, fmt.Errorf("primary header starts with %s, want SIMPLE = T: %w", first.key, ErrFormat)
	case !primary && first.key != "XTENSION":
		return nil, fmt.Errorf("extension header starts with %s, want XTENSION: %w", first.key, ErrFormat)
	case !primary && first.value != "IMAGE":
		return nil, fmt.Errorf("extension type %q is not IMAGE: %w", first.value, ErrFormat)
	}

	h := &hdu{values: make(map[string]keyword, len(cards))}
	for _, c := range cards {
		if c.key == keyMetadata {
			h.meta = append(h.meta, c.value)
			continue
		}
		if _, dup := h.values[c.key]; !dup && c.hasValue {
			h.values[c.key] = c
		}
	}

	var err error
	if h.bitpix, err = h.intValue("BITPIX"); err != nil {
		return nil, err
	}
	switch h.bitpix {
	case 8, 16, 32, 64, -32, -64:
	default:
		return nil, fmt.Errorf("BITPIX = %d: %w", h.bitpix, ErrFormat)
	}
	naxis, err := h.intValue("NAXIS")
	if err != nil {
		return nil, err
	}
	if naxis < 0 || naxis > 3 || naxis == 1 {
		return nil, fmt.Errorf("NAXIS = %d: %w", naxis, ErrFormat)
	}
	for i := 1; i <= naxis; i++ {
		n, err := h.intValue("NAXIS" + strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("NAXIS%d = %d: %w", i, n, ErrFormat)
		}
		h.naxis = append(h.naxis, n)
	}

	if primary {
		h.extend = h.values["EXTEND"].value == "T"
	} else {
		pcount, err := h.intValue("PCOUNT")
		if err != nil {
			return nil, err
		}
		gcount, err := h.intValue("GCOUNT")
		if err != nil {
			return nil, err
		}
		if pcount != 0 || gcount != 1 {
			return nil, fmt.Errorf("PCOUNT = %d, GCOUNT = %d: %w", pcount, gcount, ErrFormat)
		}
	}

	if kw, ok := h.values[keyByteOrder]; ok {
		if h.order, err = ParseByteOrder(kw.value); err != nil {
			return nil, err
		}
	}
	if h.bzero, err = h.realValue("BZERO", 0); err != nil {
		return nil, err
	}
	if h.bscale, err = h.realValue("BSCALE", 1); err != nil {
		return nil, err
	}
	return h, nil
}

// buildImage reads the payload described by h into a new image.
func buildImage[T planar.Sample](r io.Reader, h *hdu) (*planar.Image[T], error) {
	info := planar.InfoOf[T]()
	if info.Integer == (h.bitpix < 0) {
		return nil, fmt.Errorf("BITPIX = %d cannot be read into %d-bit %s samples: %w",
			h.bitpix, info.Bits, kindName(info), ErrFormat)
	}

	rows, cols, chans := h.naxis[1], h.naxis[0], 1
	if len(h.naxis) == 3 {
		chans = h.naxis[2]
	}
	img := planar.NewImage[T]()
	if err := img.InitBuffer(rows, cols, chans); err != nil {
		return nil, err
	}

	var err error
	if img.PxlDx, err = h.realValue(keyPxlDx, 1); err != nil {
		return nil, err
	}
	if img.PxlDy, err = h.realValue(keyPxlDy, 1); err != nil {
		return nil, err
	}
	if img.PxlDz, err = h.realValue(keyPxlDz, 1); err != nil {
		return nil, err
	}
	if img.Anchor, err = h.vecValue(keyAnchor, r3.Vec{}); err != nil {
		return nil, err
	}
	if img.Offset, err = h.vecValue(keyOffset, r3.Vec{}); err != nil {
		return nil, err
	}
	if img.RowUnit, err = h.vecValue(keyRowUnit, r3.Vec{X: 1}); err != nil {
		return nil, err
	}
	if img.ColUnit, err = h.vecValue(keyColUnit, r3.Vec{Y: 1}); err != nil {
		return nil, err
	}
	for _, enc := range h.meta {
		k, v, err := DecodeMetadataPair(enc)
		if err != nil {
			return nil, err
		}
		img.Metadata[k] = v
	}

	if err := readPixels(r, img, h); err != nil {
		return nil, err
	}
	return img, nil
}

func kindName(info planar.SampleInfo) string {
	switch {
	case !info.Integer:
		return "floating-point"
	case info.Signed:
		return "signed integer"
	}
	return "unsigned integer"
}

// readPixels decodes the payload written by writePixels and consumes its padding.
func readPixels[T planar.Sample](r io.Reader, img *planar.Image[T], h *hdu) error {
	info := planar.InfoOf[T]()
	sc := scaler[T]{info: info, bzero: h.bzero, bscale: h.bscale}
	bo := h.order.binary()
	width := abs(h.bitpix) / 8
	signedBytes := info.Integer && info.Signed && info.Bits == 8

	row := make([]byte, img.Columns*width)
	for ch := 0; ch < img.Channels; ch++ {
		for rr := img.Rows - 1; rr >= 0; rr-- {
			if _, err := io.ReadFull(r, row); err != nil {
				return fmt.Errorf("reading pixel data: %w: %w", ErrFormat, err)
			}
			for c := 0; c < img.Columns; c++ {
				img.Data[img.IndexChannel(rr, c, ch)] = sc.convert(decodeSample(row[c*width:], h.bitpix, signedBytes, bo))
			}
		}
	}
	return skipPadding(r, h.pixels()*width)
}

func skipPadding(r io.Reader, n int) error {
	rem := n % blockSize
	if rem == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, int64(blockSize-rem)); err != nil {
		return fmt.Errorf("reading data padding: %w: %w", ErrFormat, err)
	}
	return nil
}

// Read parses every HDU of the stream into a collection. Reading stops after the
// primary HDU unless it declares EXTEND = T, and otherwise when the stream ends or the
// next byte does not start an XTENSION card. HDUs without pixel data are skipped.
func Read[T planar.Sample](r io.Reader) (*planar.Collection[T], error) {
	if _, err := bitpixOf[T](); err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(r, blockSize)
	out := planar.NewCollection[T]()

	for primary := true; ; primary = false {
		if !primary {
			next, err := br.Peek(1)
			if errors.Is(err, io.EOF) || (err == nil && next[0] != 'X') {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("read FITS: %w", err)
			}
		}
		cards, err := readHeader(br)
		if err != nil {
			return nil, fmt.Errorf("read FITS HDU %d: %w", out.Len(), err)
		}
		h, err := parseHDUHeader(cards, primary)
		if err != nil {
			return nil, fmt.Errorf("read FITS HDU %d: %w", out.Len(), err)
		}
		if h.pixels() == 0 {
			if !primary || h.extend {
				continue
			}
			break
		}
		img, err := buildImage[T](br, h)
		if err != nil {
			return nil, fmt.Errorf("read FITS HDU %d: %w", out.Len(), err)
		}
		out.Append(img)
		if primary && !h.extend {
			break
		}
	}
	return out, nil
}

// ReadImage reads the first image of the stream.
func ReadImage[T planar.Sample](r io.Reader) (*planar.Image[T], error) {
	c, err := Read[T](r)
	if err != nil {
		return nil, err
	}
	if c.Len() == 0 {
		return nil, fmt.Errorf("read FITS: %w", planar.ErrEmptyCollection)
	}
	return c.Front(), nil
}

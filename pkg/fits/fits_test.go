package fits

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"planarimaging/pkg/planar"
)

func newImage[T planar.Sample](t *testing.T, rows, cols, chans int, f func(i int) T) *planar.Image[T] {
	t.Helper()
	img := planar.NewImage[T]()
	if err := img.InitBuffer(rows, cols, chans); err != nil {
		t.Fatalf("InitBuffer: %v", err)
	}
	img.InitSpatial(0.5, 0.25, 2.5, r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: -4.5, Y: 1e-9, Z: 7})
	img.InitOrientation(r3.Vec{Y: 1}, r3.Vec{Z: 1})
	for i := range img.Data {
		img.Data[i] = f(i)
	}
	return img
}

func roundTrip[T planar.Sample](t *testing.T, c *planar.Collection[T], order ByteOrder) *planar.Collection[T] {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(&buf, c, order); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len()%blockSize != 0 {
		t.Fatalf("stream is %d bytes, not a whole number of blocks", buf.Len())
	}
	out, err := Read[T](&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return out
}

func assertSameCollection[T planar.Sample](t *testing.T, got, want *planar.Collection[T]) {
	t.Helper()
	if got.Len() != want.Len() {
		t.Fatalf("read %d images, wrote %d", got.Len(), want.Len())
	}
	for i := range want.Images {
		if !got.Images[i].Equal(want.Images[i]) {
			t.Errorf("image %d differs after round trip:\n got %+v\nwant %+v", i, got.Images[i], want.Images[i])
		}
	}
}

func TestRoundTripSampleTypes(t *testing.T) {
	t.Run("uint8", func(t *testing.T) {
		c := planar.NewCollection(newImage(t, 3, 4, 1, func(i int) uint8 { return uint8(i * 21) }))
		assertSameCollection(t, roundTrip(t, c, BigEndian), c)
	})
	t.Run("int8", func(t *testing.T) {
		c := planar.NewCollection(newImage(t, 2, 3, 1, func(i int) int8 { return int8(i*50 - 128) }))
		assertSameCollection(t, roundTrip(t, c, BigEndian), c)
	})
	t.Run("int16", func(t *testing.T) {
		c := planar.NewCollection(newImage(t, 2, 2, 1, func(i int) int16 { return int16(i*1000 - 32768) }))
		assertSameCollection(t, roundTrip(t, c, BigEndian), c)
	})
	t.Run("int32", func(t *testing.T) {
		c := planar.NewCollection(newImage(t, 2, 2, 1, func(i int) int32 { return int32(i) * -123456789 }))
		assertSameCollection(t, roundTrip(t, c, LittleEndian), c)
	})
	t.Run("int64", func(t *testing.T) {
		vals := []int64{math.MinInt64, -1, 0, math.MaxInt64}
		c := planar.NewCollection(newImage(t, 2, 2, 1, func(i int) int64 { return vals[i] }))
		assertSameCollection(t, roundTrip(t, c, BigEndian), c)
	})
	t.Run("float32", func(t *testing.T) {
		c := planar.NewCollection(newImage(t, 3, 2, 1, func(i int) float32 { return float32(i)*1.25 - 3 }))
		assertSameCollection(t, roundTrip(t, c, BigEndian), c)
	})
	t.Run("float64 multi-channel", func(t *testing.T) {
		c := planar.NewCollection(newImage(t, 2, 3, 2, func(i int) float64 { return math.Sqrt(float64(i)) }))
		assertSameCollection(t, roundTrip(t, c, LittleEndian), c)
	})
}

func TestRoundTripMetadata(t *testing.T) {
	img := newImage(t, 1, 1, 1, func(int) float32 { return 1 })
	img.Metadata = map[string]string{
		"k":       "v=with=equals",
		"quotes":  `it's "double" and 'single'`,
		"control": "a\tb\nc\rd",
		"long":    strings.Repeat("abc'& ", 80),
		"unicode": "µm",
		"":        "empty key",
	}
	c := planar.NewCollection(img)
	out := roundTrip(t, c, BigEndian)
	assertSameCollection(t, out, c)
	if got := out.Front().Metadata["k"]; got != "v=with=equals" {
		t.Errorf("metadata k = %q", got)
	}
}

func TestRoundTripSeveralImages(t *testing.T) {
	c := planar.NewCollection[int16]()
	for n := 1; n <= 3; n++ {
		img := newImage(t, n, n+1, 1, func(i int) int16 { return int16(n*100 + i) })
		img.Metadata["n"] = strings.Repeat("x", n)
		c.Append(img)
	}
	assertSameCollection(t, roundTrip(t, c, BigEndian), c)
}

func TestByteOrderAffectsPayloadOnly(t *testing.T) {
	img := newImage(t, 1, 1, 1, func(int) int16 { return 0x0102 })
	var big, little bytes.Buffer
	if err := WriteImage(&big, img, BigEndian); err != nil {
		t.Fatal(err)
	}
	if err := WriteImage(&little, img, LittleEndian); err != nil {
		t.Fatal(err)
	}
	if got := big.Bytes()[blockSize : blockSize+2]; !bytes.Equal(got, []byte{1, 2}) {
		t.Errorf("big-endian payload = %v", got)
	}
	if got := little.Bytes()[blockSize : blockSize+2]; !bytes.Equal(got, []byte{2, 1}) {
		t.Errorf("little-endian payload = %v", got)
	}
	if !bytes.Contains(little.Bytes()[:blockSize], []byte("BYTEORDR= 'LITTLE_ENDIAN'")) {
		t.Error("little-endian header lacks BYTEORDR")
	}

	for name, buf := range map[string]*bytes.Buffer{"big": &big, "little": &little} {
		got, err := ReadImage[int16](buf)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got.Data[0] != 0x0102 {
			t.Errorf("%s: read %#x", name, got.Data[0])
		}
	}
}

func TestRowsStoredBottomUp(t *testing.T) {
	img := newImage(t, 2, 1, 1, func(i int) uint8 { return uint8(i + 1) })
	var buf bytes.Buffer
	if err := WriteImage(&buf, img, BigEndian); err != nil {
		t.Fatal(err)
	}
	if got := buf.Bytes()[blockSize : blockSize+2]; !bytes.Equal(got, []byte{2, 1}) {
		t.Errorf("payload = %v, want last row first", got)
	}
}

func TestSingleImageDisablesExtensions(t *testing.T) {
	a := newImage(t, 2, 2, 1, func(i int) float32 { return float32(i) })
	b := newImage(t, 2, 2, 1, func(i int) float32 { return float32(-i) })

	var single, pair bytes.Buffer
	if err := WriteImage(&single, a, BigEndian); err != nil {
		t.Fatal(err)
	}
	if err := Write(&pair, planar.NewCollection(a, b), BigEndian); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(single.Bytes(), []byte("EXTEND  =                    F")) {
		t.Error("single image header does not declare EXTEND = F")
	}

	stream := append(bytes.Clone(single.Bytes()), pair.Bytes()[single.Len():]...)
	c, err := Read[float32](bytes.NewReader(stream))
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 {
		t.Errorf("read %d images past EXTEND = F, want 1", c.Len())
	}

	c, err = Read[float32](&pair)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Errorf("read %d images, want 2", c.Len())
	}
}

func TestWriteRejects(t *testing.T) {
	var buf bytes.Buffer
	u16 := planar.NewCollection(newImage(t, 1, 1, 1, func(int) uint16 { return 1 }))
	if err := Write(&buf, u16, BigEndian); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("uint16: expected ErrUnsupportedType, got %v", err)
	}
	if err := Write(&buf, planar.NewCollection[float32](), BigEndian); !errors.Is(err, planar.ErrEmptyCollection) {
		t.Errorf("empty: expected ErrEmptyCollection, got %v", err)
	}
	if err := Write(&buf, planar.NewCollection(planar.NewImage[float32]()), BigEndian); !errors.Is(err, planar.ErrInvalidArgument) {
		t.Errorf("uninitialised: expected ErrInvalidArgument, got %v", err)
	}
}

func TestReadTypeMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteImage(&buf, newImage(t, 1, 1, 1, func(int) float32 { return 1 }), BigEndian); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	if _, err := Read[int16](bytes.NewReader(data)); !errors.Is(err, ErrFormat) {
		t.Errorf("float into int16: expected ErrFormat, got %v", err)
	}
	if _, err := Read[uint16](bytes.NewReader(data)); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("uint16: expected ErrUnsupportedType, got %v", err)
	}
}

// headerBytes renders a header built by fn, followed by payload padded to a block.
func headerBytes(t *testing.T, fn func(h *headerBuilder), payload []byte) []byte {
	t.Helper()
	h := &headerBuilder{}
	fn(h)
	h.end()
	var buf bytes.Buffer
	if err := h.writeTo(&buf); err != nil {
		t.Fatal(err)
	}
	buf.Write(payload)
	if rem := len(payload) % blockSize; rem != 0 {
		buf.Write(make([]byte, blockSize-rem))
	}
	return buf.Bytes()
}

func TestReadAppliesScaling(t *testing.T) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload, uint16(0x8000))
	binary.BigEndian.PutUint16(payload[2:], 1)
	data := headerBytes(t, func(h *headerBuilder) {
		h.addLogical("SIMPLE", true)
		h.addInt("BITPIX", 16)
		h.addInt("NAXIS", 2)
		h.addInt("NAXIS1", 2)
		h.addInt("NAXIS2", 1)
		h.addReal("BZERO", 32768)
		h.addReal("BSCALE", 2)
	}, payload)

	img, err := ReadImage[int32](bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if img.Data[0] != -32768 || img.Data[1] != 32770 {
		t.Errorf("scaled samples = %v, want [-32768 32770]", img.Data)
	}
	if img.PxlDx != 1 || img.RowUnit != (r3.Vec{X: 1}) || img.ColUnit != (r3.Vec{Y: 1}) || img.Offset != (r3.Vec{}) {
		t.Errorf("missing geometry keywords did not default: %+v", img)
	}
}

func TestReadSkipsEmptyPrimary(t *testing.T) {
	primary := headerBytes(t, func(h *headerBuilder) {
		h.addLogical("SIMPLE", true)
		h.addInt("BITPIX", 8)
		h.addInt("NAXIS", 0)
		h.addLogical("EXTEND", true)
	}, nil)
	ext := headerBytes(t, func(h *headerBuilder) {
		h.addString("XTENSION", "IMAGE")
		h.addInt("BITPIX", 8)
		h.addInt("NAXIS", 2)
		h.addInt("NAXIS1", 1)
		h.addInt("NAXIS2", 1)
		h.addInt("PCOUNT", 0)
		h.addInt("GCOUNT", 1)
	}, []byte{42})

	c, err := Read[uint8](bytes.NewReader(append(primary, ext...)))
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 || c.Front().Data[0] != 42 {
		t.Errorf("read %d images", c.Len())
	}
}

func TestReadMalformed(t *testing.T) {
	primary := headerBytes(t, func(h *headerBuilder) {
		h.addLogical("SIMPLE", true)
		h.addInt("BITPIX", 8)
		h.addInt("NAXIS", 0)
		h.addLogical("EXTEND", true)
	}, nil)
	table := headerBytes(t, func(h *headerBuilder) {
		h.addString("XTENSION", "BINTABLE")
		h.addInt("BITPIX", 8)
		h.addInt("NAXIS", 2)
		h.addInt("NAXIS1", 1)
		h.addInt("NAXIS2", 1)
		h.addInt("PCOUNT", 0)
		h.addInt("GCOUNT", 1)
	}, []byte{0})
	badBitpix := headerBytes(t, func(h *headerBuilder) {
		h.addLogical("SIMPLE", true)
		h.addInt("BITPIX", 12)
		h.addInt("NAXIS", 0)
	}, nil)

	extension := func(pcount, gcount int) []byte {
		return headerBytes(t, func(h *headerBuilder) {
			h.addString("XTENSION", "IMAGE")
			h.addInt("BITPIX", 8)
			h.addInt("NAXIS", 2)
			h.addInt("NAXIS1", 1)
			h.addInt("NAXIS2", 1)
			h.addInt("PCOUNT", pcount)
			h.addInt("GCOUNT", gcount)
		}, []byte{0})
	}

	var good bytes.Buffer
	if err := WriteImage(&good, newImage(t, 1, 1, 1, func(int) uint8 { return 1 }), BigEndian); err != nil {
		t.Fatal(err)
	}

	tests := map[string][]byte{
		"binary table":  slices.Concat(primary, table),
		"PCOUNT = 1":    slices.Concat(primary, extension(1, 1)),
		"GCOUNT = 2":    slices.Concat(primary, extension(0, 2)),
		"bad BITPIX":    badBitpix,
		"not FITS":      bytes.Repeat([]byte("x"), blockSize),
		"truncated":     good.Bytes()[:good.Len()-100],
		"missing data":  good.Bytes()[:blockSize],
		"no END record": good.Bytes()[:cardSize],
	}
	for name, data := range tests {
		if _, err := Read[uint8](bytes.NewReader(data)); !errors.Is(err, ErrFormat) {
			t.Errorf("%s: expected ErrFormat, got %v", name, err)
		}
	}
}

func TestMetadataPairCodec(t *testing.T) {
	enc := EncodeMetadataPair("a=b", "c\"d\n")
	k, v, err := DecodeMetadataPair(enc)
	if err != nil || k != "a=b" || v != "c\"d\n" {
		t.Errorf("decoded %q, %q, %v from %q", k, v, err, enc)
	}
	for _, bad := range []string{``, `"a"`, `a=b`, `"a""b"`, `"a"="b"x`, `"a"=b`} {
		if _, _, err := DecodeMetadataPair(bad); !errors.Is(err, ErrFormat) {
			t.Errorf("DecodeMetadataPair(%s): expected ErrFormat, got %v", bad, err)
		}
	}
}

func TestParseByteOrder(t *testing.T) {
	for s, want := range map[string]ByteOrder{"": BigEndian, "big": BigEndian, "BIG_ENDIAN": BigEndian, "little": LittleEndian, "LITTLE_ENDIAN": LittleEndian} {
		if got, err := ParseByteOrder(s); err != nil || got != want {
			t.Errorf("ParseByteOrder(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseByteOrder("middle"); err == nil {
		t.Error("expected an error for an unknown byte order")
	}
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	c := planar.NewCollection(
		newImage(t, 4, 5, 1, func(i int) float64 { return float64(i) / 3 }),
		newImage(t, 2, 2, 3, func(i int) float64 { return -float64(i) }),
	)
	for _, name := range []string{"stack.fits", "stack.fits.gz", "STACK.FITS.GZ"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, c, BigEndian); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		got, err := ReadFile[float64](path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		assertSameCollection(t, got, c)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "stack.fits"))
	if err != nil {
		t.Fatal(err)
	}
	gz, err := os.ReadFile(filepath.Join(dir, "stack.fits.gz"))
	if err != nil {
		t.Fatal(err)
	}
	if len(gz) >= len(raw) || gz[0] != 0x1f || gz[1] != 0x8b {
		t.Errorf("gzip output is %d bytes vs %d raw", len(gz), len(raw))
	}

	short := filepath.Join(dir, "short.fits")
	if err := os.WriteFile(short, raw[:100], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile[float64](short); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat for a partial block, got %v", err)
	}
	if _, err := ReadFile[float64](filepath.Join(dir, "missing.fits")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func readDump(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestDumpPixels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixels.raw")
	img := newImage(t, 2, 2, 1, func(i int) float32 { return float32(i) + 0.5 })
	if err := DumpPixels(path, img); err != nil {
		t.Fatal(err)
	}
	b := readDump(t, path)
	if len(b) != 16 {
		t.Fatalf("dump is %d bytes, want 16", len(b))
	}
	for i, want := range img.Data {
		if got := math.Float32frombits(binary.NativeEndian.Uint32(b[i*4:])); got != want {
			t.Errorf("sample %d = %v, want %v", i, got, want)
		}
	}
	if err := DumpPixels(path, img); !errors.Is(err, ErrFileExists) {
		t.Errorf("expected ErrFileExists, got %v", err)
	}
}

func TestDumpCastedPixels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "casted.raw")
	vals := []float64{-3, 1.6, 300}
	img := newImage(t, 1, 3, 1, func(i int) float64 { return vals[i] })
	if err := DumpCastedPixels[float64, uint8](path, img); err != nil {
		t.Fatal(err)
	}
	if got := readDump(t, path); !bytes.Equal(got, []byte{0, 2, 255}) {
		t.Errorf("casted dump = %v", got)
	}
}

func TestDumpCastedScaledPixels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scaled.raw")
	vals := []uint8{0, 128, 255}
	img := newImage(t, 1, 3, 1, func(i int) uint8 { return vals[i] })
	if err := DumpCastedScaledPixels[uint8, uint16](path, img); err != nil {
		t.Fatal(err)
	}
	b := readDump(t, path)
	for i, want := range []uint16{0, 32896, 65535} {
		if got := binary.NativeEndian.Uint16(b[i*2:]); got != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestDumpCompressedPixels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compressed.raw")
	vals := []float64{0, 0.25, 1}
	img := newImage(t, 1, 3, 1, func(i int) float64 { return vals[i] })
	c, err := DumpCompressedPixels[float64, uint8](path, img)
	if err != nil {
		t.Fatal(err)
	}
	b := readDump(t, path)
	if !bytes.Equal(b, []byte{0, 64, 255}) {
		t.Fatalf("compressed dump = %v", b)
	}
	for i, code := range b {
		x, err := c.Decompress(code)
		if err != nil || math.Abs(x-vals[i]) > 0.5/255 {
			t.Errorf("Decompress(%d) = %v, %v; want about %v", code, x, err, vals[i])
		}
	}
}

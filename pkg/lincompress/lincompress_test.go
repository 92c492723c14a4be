package lincompress

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"planarimaging/pkg/planar"
)

func TestOptimizeEndpoints(t *testing.T) {
	var c Compressor[float64, uint8]
	if err := c.Optimize(-1, 3); err != nil {
		t.Fatal(err)
	}
	if got := c.Compress(-1); got != 0 {
		t.Errorf("Compress(lo) = %d, want 0", got)
	}
	if got := c.Compress(3); got != 255 {
		t.Errorf("Compress(hi) = %d, want 255", got)
	}
	lo, err := c.Decompress(0)
	if err != nil || !scalar.EqualWithinAbs(lo, -1, 1e-12) {
		t.Errorf("Decompress(0) = %v, %v", lo, err)
	}
	hi, err := c.Decompress(255)
	if err != nil || !scalar.EqualWithinAbs(hi, 3, 1e-12) {
		t.Errorf("Decompress(255) = %v, %v", hi, err)
	}
}

func TestRoundTripError(t *testing.T) {
	var c Compressor[float32, int16]
	if err := c.Optimize(0, 100); err != nil {
		t.Fatal(err)
	}
	step := 100.0 / 65535
	for _, x := range []float32{0, 0.5, 33.3, 99.99, 100} {
		got, err := c.Decompress(c.Compress(x))
		if err != nil {
			t.Fatalf("Decompress: %v", err)
		}
		if math.Abs(float64(got-x)) > step {
			t.Errorf("%v round-tripped to %v", x, got)
		}
	}
}

func TestCompressClamps(t *testing.T) {
	var c Compressor[float64, int8]
	if err := c.Optimize(10, 20); err != nil {
		t.Fatal(err)
	}
	if got := c.Compress(-1000); got != -128 {
		t.Errorf("Compress below domain = %d", got)
	}
	if got := c.Compress(1000); got != 127 {
		t.Errorf("Compress above domain = %d", got)
	}
}

func TestDecompressOutOfDomain(t *testing.T) {
	var c Compressor[float64, uint8]
	if err := c.Optimize(0, 1); err != nil {
		t.Fatal(err)
	}
	c.Intercept = 0.5
	if _, err := c.Decompress(255); !errors.Is(err, ErrOutOfDomain) {
		t.Errorf("expected ErrOutOfDomain, got %v", err)
	}
	if got := c.DecompressClamped(255); got != 1 {
		t.Errorf("DecompressClamped = %v, want 1", got)
	}
}

func TestDegenerateDomain(t *testing.T) {
	var c Compressor[float64, uint16]
	if err := c.Optimize(5, 5); err != nil {
		t.Fatal(err)
	}
	if got := c.Compress(5); got != 0 {
		t.Errorf("Compress = %d, want 0", got)
	}
	if got, err := c.Decompress(12345); err != nil || got != 5 {
		t.Errorf("Decompress = %v, %v", got, err)
	}
}

func TestOptimizeRejectsBadDomain(t *testing.T) {
	var c Compressor[float64, uint8]
	for _, d := range [][2]float64{{2, 1}, {math.NaN(), 1}, {0, math.Inf(1)}} {
		if err := c.Optimize(d[0], d[1]); !errors.Is(err, planar.ErrInvalidArgument) {
			t.Errorf("Optimize(%v, %v): expected ErrInvalidArgument, got %v", d[0], d[1], err)
		}
	}
}

func TestDecompressAs(t *testing.T) {
	var c Compressor[float64, int32]
	if err := c.Optimize(-1e3, 1e3); err != nil {
		t.Fatal(err)
	}
	i := c.Compress(123.456)
	exact, err := c.Decompress(i)
	if err != nil {
		t.Fatal(err)
	}
	narrowed, err := DecompressAs[float32](c, i)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(exact, 123.456, 1e-5) {
		t.Errorf("exact decompression = %v", exact)
	}
	if math.Abs(narrowed-exact) > 1e-3 {
		t.Errorf("float32 mapping drifted to %v from %v", narrowed, exact)
	}
}

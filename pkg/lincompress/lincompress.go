// Package lincompress squeezes floating-point values into a narrow integer type with
// a reversible linear map, trading precision for size.
package lincompress

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"planarimaging/pkg/planar"
)

// ErrOutOfDomain is returned when a decompressed value falls outside the domain the
// compressor was optimised for.
var ErrOutOfDomain = errors.New("value outside compression domain")

// domainTolerance is the relative slack allowed when checking decompressed values
// against the domain, to absorb rounding in Slope*i + Intercept.
const domainTolerance = 1e-6

// Compressor maps the integer range of I onto [DomainMin, DomainMax] of F:
// x = Slope*i + Intercept.
type Compressor[F constraints.Float, I constraints.Integer] struct {
	Slope     F
	Intercept F
	DomainMin F
	DomainMax F
}

// Optimize fits the mapping so that the lowest value of I decompresses to lo and the
// highest to hi.
func (c *Compressor[F, I]) Optimize(lo, hi F) error {
	l, h := float64(lo), float64(hi)
	if math.IsNaN(l) || math.IsNaN(h) || math.IsInf(l, 0) || math.IsInf(h, 0) || l > h {
		return fmt.Errorf("optimize for [%v, %v]: %w", lo, hi, planar.ErrInvalidArgument)
	}
	info := planar.InfoOf[I]()
	slope := (h - l) / (info.Highest - info.Lowest)
	c.Slope = F(slope)
	c.Intercept = F(l - slope*info.Lowest)
	c.DomainMin, c.DomainMax = lo, hi
	return nil
}

// Compress maps x into I, rounding to nearest and clamping to the range of I.
func (c Compressor[F, I]) Compress(x F) I {
	info := planar.InfoOf[I]()
	if c.Slope == 0 {
		return planar.ConvertFloat[I](info, info.Lowest)
	}
	return planar.ConvertFloat[I](info, (float64(x)-float64(c.Intercept))/float64(c.Slope))
}

// Decompress maps i back into the domain. Values beyond the domain are an error.
func (c Compressor[F, I]) Decompress(i I) (F, error) {
	return c.check(float64(c.Slope)*float64(i) + float64(c.Intercept))
}

// DecompressClamped is Decompress with out-of-domain values clamped instead.
func (c Compressor[F, I]) DecompressClamped(i I) F {
	x := float64(c.Slope)*float64(i) + float64(c.Intercept)
	return F(math.Max(float64(c.DomainMin), math.Min(float64(c.DomainMax), x)))
}

func (c Compressor[F, I]) check(x float64) (F, error) {
	lo, hi := float64(c.DomainMin), float64(c.DomainMax)
	tol := (hi - lo) * domainTolerance
	switch {
	case math.IsNaN(x) || x < lo-tol || x > hi+tol:
		return 0, fmt.Errorf("%v not in [%v, %v]: %w", x, lo, hi, ErrOutOfDomain)
	case x < lo:
		x = lo
	case x > hi:
		x = hi
	}
	return F(x), nil
}

// DecompressAs decompresses i after narrowing the slope and intercept to Y, which
// shows the error a reader storing the mapping at lower precision would see.
func DecompressAs[Y, F constraints.Float, I constraints.Integer](c Compressor[F, I], i I) (F, error) {
	slope, intercept := Y(c.Slope), Y(c.Intercept)
	return c.check(float64(slope*Y(i) + intercept))
}

package planar

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"planarimaging/pkg/geom"
)

// IntersectionCopy fills each pixel of target from the first source image, in slice
// order, whose index lookup succeeds at the pixel's world position. All shared
// channels are copied. It returns the number of samples copied. When anything was
// copied, the metadata of target is replaced by the metadata common to all sources.
func IntersectionCopy[T Sample](target *Image[T], sources []*Image[T]) int {
	copied := 0
	for r := 0; r < target.Rows; r++ {
		for c := 0; c < target.Columns; c++ {
			pos := target.Position(r, c)
			for _, src := range sources {
				base := src.IndexPoint(pos, 0)
				if base < 0 {
					continue
				}
				n := min(target.Channels, src.Channels)
				dst := target.Channels * (target.Columns*r + c)
				copy(target.Data[dst:dst+n], src.Data[base:base+n])
				copied += n
				break
			}
		}
	}
	if copied > 0 {
		target.Metadata = GetCommonMetadata(sources)
	}
	return copied
}

// GridOptions sizes a synthesised image stack. Margins are added on both sides of the
// bounding box along the corresponding axis.
type GridOptions[T Sample] struct {
	XMargin, YMargin, ZMargin float64
	Rows, Columns, Channels   int
	Images                    int
	Fill                      T
	OnlyTopAndBottom          bool
}

func (o GridOptions[T]) validate() error {
	if o.Rows < 1 || o.Columns < 1 || o.Channels < 1 || o.Images < 1 {
		return fmt.Errorf("grid of %d images of %dx%dx%d: %w", o.Images, o.Rows, o.Columns, o.Channels, ErrInvalidArgument)
	}
	return nil
}

// ContiguouslyGridVolume builds a stack of equally sized, equally thick images that
// tile the bounding box of every contour vertex in the orthonormalised (x, y, z)
// basis. Images are spaced evenly along z and filled with opts.Fill.
func ContiguouslyGridVolume[T Sample](ccs []*geom.ContourCollection, x, y, z r3.Vec, opts GridOptions[T]) (*Collection[T], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	basis, err := geom.Orthonormalize(x, y, z)
	if err != nil {
		return nil, fmt.Errorf("grid volume: %w", err)
	}
	lo, hi, n := geom.Bounds(ccs, basis...)
	if n == 0 {
		return nil, fmt.Errorf("grid volume: no contour vertices: %w", ErrInvalidArgument)
	}
	lo[0], hi[0] = lo[0]-opts.XMargin, hi[0]+opts.XMargin
	lo[1], hi[1] = lo[1]-opts.YMargin, hi[1]+opts.YMargin
	lo[2], hi[2] = lo[2]-opts.ZMargin, hi[2]+opts.ZMargin
	return synthesizeGrid(basis, lo, hi, opts)
}

// SymmetricallyContiguouslyGridVolume is ContiguouslyGridVolume with the grid centred
// on a line instead of on the raw bounding box. The z axis follows the line; x and y
// are orthonormalised against it. The in-plane extent grows to the larger distance on
// either side of the line, so margins may be wider than strictly needed.
func SymmetricallyContiguouslyGridVolume[T Sample](ccs []*geom.ContourCollection, x, y r3.Vec, line geom.Line, opts GridOptions[T]) (*Collection[T], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	ortho, err := geom.Orthonormalize(line.U, x, y)
	if err != nil {
		return nil, fmt.Errorf("symmetric grid volume: %w", err)
	}
	basis := []r3.Vec{ortho[1], ortho[2], ortho[0]}
	lo, hi, n := geom.Bounds(ccs, basis...)
	if n == 0 {
		return nil, fmt.Errorf("symmetric grid volume: no contour vertices: %w", ErrInvalidArgument)
	}
	margins := [2]float64{opts.XMargin, opts.YMargin}
	for i := 0; i < 2; i++ {
		centre := r3.Dot(line.R0, basis[i])
		half := math.Max(hi[i]-centre, centre-lo[i]) + margins[i]
		lo[i], hi[i] = centre-half, centre+half
	}
	lo[2], hi[2] = lo[2]-opts.ZMargin, hi[2]+opts.ZMargin
	return synthesizeGrid(basis, lo, hi, opts)
}

// synthesizeGrid fills the box [lo, hi] of the given basis with opts.Images slices.
func synthesizeGrid[T Sample](basis []r3.Vec, lo, hi []float64, opts GridOptions[T]) (*Collection[T], error) {
	xs, ys, zs := hi[0]-lo[0], hi[1]-lo[1], hi[2]-lo[2]
	if !(xs > 0) || !(ys > 0) || !(zs > 0) {
		return nil, fmt.Errorf("grid volume: box %gx%gx%g has no volume: %w", xs, ys, zs, ErrInvalidArgument)
	}
	dx := xs / float64(opts.Rows)
	dy := ys / float64(opts.Columns)
	dz := zs / float64(opts.Images)

	out := &Collection[T]{}
	for i := 0; i < opts.Images; i++ {
		if opts.OnlyTopAndBottom && i != 0 && i != opts.Images-1 {
			continue
		}
		img := NewImage[T]()
		if err := img.InitBuffer(opts.Rows, opts.Columns, opts.Channels); err != nil {
			return nil, err
		}
		offset := r3.Add(r3.Add(
			r3.Scale(lo[0]+dx*0.5, basis[0]),
			r3.Scale(lo[1]+dy*0.5, basis[1])),
			r3.Scale(lo[2]+dz*(float64(i)+0.5), basis[2]))
		img.InitSpatial(dx, dy, dz, r3.Vec{}, offset)
		img.InitOrientation(basis[0], basis[1])
		img.FillPixels(opts.Fill)
		out.Append(img)
	}
	return out, nil
}

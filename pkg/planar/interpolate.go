package planar

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"planarimaging/pkg/geom"
)

// FractionalRowColumn returns the row and column of point in pixel-number space,
// without rounding. The point must lie within the thickness of the slice and its
// nearest pixel must be inside the image.
func (img *Image[T]) FractionalRowColumn(point r3.Vec) (row, col float64, err error) {
	row, col, within := img.projectToPixelSpace(point)
	if !within {
		return 0, 0, fmt.Errorf("point %s is outside the slice thickness: %w", geom.VecToString(point), ErrInvalidArgument)
	}
	if _, _, ok := img.nearestRowColumn(point); !ok {
		return 0, 0, fmt.Errorf("point %s is outside the image: %w", geom.VecToString(point), ErrInvalidArgument)
	}
	return row, col, nil
}

// cell describes the pixel-centre cell a fractional coordinate falls in. lo and hi are
// clamped indices, t is the fractional distance from lo towards hi.
type cell struct {
	lo, hi int
	t      float64
}

// enclosingCell picks the quadrant of the enclosing pixel x lies in. The enclosing
// pixel is floor(x+0.5); when x is below its centre the cell extends backwards.
// Indices past the edge are clamped, which mirrors the border pixel.
func enclosingCell(x float64, n int) (cell, bool) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return cell{}, false
	}
	e := math.Floor(x + 0.5)
	if e < 0 || e >= float64(n) {
		return cell{}, false
	}
	enc := int(e)
	c := cell{lo: enc, hi: enc + 1}
	if x < e {
		c = cell{lo: enc - 1, hi: enc}
	}
	c.t = x - float64(c.lo)
	c.lo = clamp(c.lo, 0, n-1)
	c.hi = clamp(c.hi, 0, n-1)
	return c, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (img *Image[T]) cells(row, col float64, chnl int) (cell, cell, error) {
	if chnl < 0 || chnl >= img.Channels {
		return cell{}, cell{}, fmt.Errorf("channel %d of %d: %w", chnl, img.Channels, ErrOutOfBounds)
	}
	rc, okR := enclosingCell(row, img.Rows)
	cc, okC := enclosingCell(col, img.Columns)
	if !okR || !okC {
		return cell{}, cell{}, fmt.Errorf("pixel-number coordinate (%g,%g) of %dx%d image: %w",
			row, col, img.Rows, img.Columns, ErrOutOfBounds)
	}
	return rc, cc, nil
}

// at reads an in-range sample as float64. Callers guarantee the coordinates.
func (img *Image[T]) at(row, col, chnl int) float64 {
	return float64(img.Data[img.Channels*(img.Columns*row+col)+chnl])
}

// BilinearlyInterpolateInPixelNumberSpace interpolates among the four pixel centres
// surrounding (row, col), using mirror boundary conditions so no extrapolation occurs.
func (img *Image[T]) BilinearlyInterpolateInPixelNumberSpace(row, col float64, chnl int) (float64, error) {
	rc, cc, err := img.cells(row, col, chnl)
	if err != nil {
		return 0, fmt.Errorf("bilinear interpolation: %w", err)
	}
	f00 := img.at(rc.lo, cc.lo, chnl)
	f10 := img.at(rc.hi, cc.lo, chnl)
	f01 := img.at(rc.lo, cc.hi, chnl)
	f11 := img.at(rc.hi, cc.hi, chnl)

	return f00*(1-rc.t)*(1-cc.t) +
		f10*rc.t*(1-cc.t) +
		f01*(1-rc.t)*cc.t +
		f11*rc.t*cc.t, nil
}

// bicubicBasis converts corner values and derivatives into polynomial coefficients.
var bicubicBasis = mat.NewDense(4, 4, []float64{
	1, 0, 0, 0,
	0, 0, 1, 0,
	-3, 3, -2, -1,
	2, -2, 1, 1,
})

// BicubicallyInterpolateInPixelNumberSpace fits a bicubic patch to the four pixel
// centres surrounding (row, col), using their values, centred first derivatives, and
// cross second derivatives. Derivatives are finite-difference estimates, so the patch
// is smooth-looking rather than physically meaningful.
func (img *Image[T]) BicubicallyInterpolateInPixelNumberSpace(row, col float64, chnl int) (float64, error) {
	rc, cc, err := img.cells(row, col, chnl)
	if err != nil {
		return 0, fmt.Errorf("bicubic interpolation: %w", err)
	}

	rs := [2]int{rc.lo, rc.hi}
	cs := [2]int{cc.lo, cc.hi}
	var f, fr, fc, frc [2][2]float64
	for i, r := range rs {
		for j, c := range cs {
			f[i][j] = img.at(r, c, chnl)
			fr[i][j] = img.rowDerivative(r, c, chnl)
			fc[i][j] = img.columnDerivative(r, c, chnl)
			frc[i][j] = img.crossDerivative(r, c, chnl)
		}
	}

	F := mat.NewDense(4, 4, []float64{
		f[0][0], f[0][1], fc[0][0], fc[0][1],
		f[1][0], f[1][1], fc[1][0], fc[1][1],
		fr[0][0], fr[0][1], frc[0][0], frc[0][1],
		fr[1][0], fr[1][1], frc[1][0], frc[1][1],
	})

	var tmp, A mat.Dense
	tmp.Mul(bicubicBasis, F)
	A.Mul(&tmp, bicubicBasis.T())

	x := mat.NewVecDense(4, []float64{1, rc.t, rc.t * rc.t, rc.t * rc.t * rc.t})
	y := mat.NewVecDense(4, []float64{1, cc.t, cc.t * cc.t, cc.t * cc.t * cc.t})
	var Ay mat.VecDense
	Ay.MulVec(&A, y)
	return mat.Dot(x, &Ay), nil
}

func (img *Image[T]) checkPixel(row, col, chnl int) error {
	if img.IndexChannel(row, col, chnl) < 0 {
		return fmt.Errorf("finite difference at (%d,%d,%d) of %dx%dx%d image: %w",
			row, col, chnl, img.Rows, img.Columns, img.Channels, ErrOutOfBounds)
	}
	return nil
}

func (img *Image[T]) rowDerivative(row, col, chnl int) float64 {
	up := clamp(row+1, 0, img.Rows-1)
	dn := clamp(row-1, 0, img.Rows-1)
	return (img.at(up, col, chnl) - img.at(dn, col, chnl)) * 0.5
}

func (img *Image[T]) columnDerivative(row, col, chnl int) float64 {
	up := clamp(col+1, 0, img.Columns-1)
	dn := clamp(col-1, 0, img.Columns-1)
	return (img.at(row, up, chnl) - img.at(row, dn, chnl)) * 0.5
}

func (img *Image[T]) crossDerivative(row, col, chnl int) float64 {
	rp := clamp(row+1, 0, img.Rows-1)
	rm := clamp(row-1, 0, img.Rows-1)
	cp := clamp(col+1, 0, img.Columns-1)
	cm := clamp(col-1, 0, img.Columns-1)
	return (img.at(rp, cp, chnl) - img.at(rp, cm, chnl) - img.at(rm, cp, chnl) + img.at(rm, cm, chnl)) * 0.25
}

// RowAlignedDerivativeCenteredFiniteDifference estimates d/drow at a pixel with unit
// step. Neighbours beyond the edge are clamped; the pixel itself must be in range.
func (img *Image[T]) RowAlignedDerivativeCenteredFiniteDifference(row, col, chnl int) (float64, error) {
	if err := img.checkPixel(row, col, chnl); err != nil {
		return 0, err
	}
	return img.rowDerivative(row, col, chnl), nil
}

// ColumnAlignedDerivativeCenteredFiniteDifference estimates d/dcol at a pixel.
func (img *Image[T]) ColumnAlignedDerivativeCenteredFiniteDifference(row, col, chnl int) (float64, error) {
	if err := img.checkPixel(row, col, chnl); err != nil {
		return 0, err
	}
	return img.columnDerivative(row, col, chnl), nil
}

// RowAlignedSecondDerivativeCenteredFiniteDifference estimates d²/drow².
func (img *Image[T]) RowAlignedSecondDerivativeCenteredFiniteDifference(row, col, chnl int) (float64, error) {
	if err := img.checkPixel(row, col, chnl); err != nil {
		return 0, err
	}
	up := clamp(row+1, 0, img.Rows-1)
	dn := clamp(row-1, 0, img.Rows-1)
	return img.at(up, col, chnl) - 2*img.at(row, col, chnl) + img.at(dn, col, chnl), nil
}

// ColumnAlignedSecondDerivativeCenteredFiniteDifference estimates d²/dcol².
func (img *Image[T]) ColumnAlignedSecondDerivativeCenteredFiniteDifference(row, col, chnl int) (float64, error) {
	if err := img.checkPixel(row, col, chnl); err != nil {
		return 0, err
	}
	up := clamp(col+1, 0, img.Columns-1)
	dn := clamp(col-1, 0, img.Columns-1)
	return img.at(row, up, chnl) - 2*img.at(row, col, chnl) + img.at(row, dn, chnl), nil
}

// CrossSecondDerivativeCenteredFiniteDifference estimates d²/(drow dcol).
func (img *Image[T]) CrossSecondDerivativeCenteredFiniteDifference(row, col, chnl int) (float64, error) {
	if err := img.checkPixel(row, col, chnl); err != nil {
		return 0, err
	}
	return img.crossDerivative(row, col, chnl), nil
}

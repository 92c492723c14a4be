package planar

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"planarimaging/pkg/geom"
)

// Position returns the world-space centre of pixel (row, col). Coordinates outside
// the image are extrapolated along the grid.
func (img *Image[T]) Position(row, col int) r3.Vec {
	p := r3.Add(img.Anchor, img.Offset)
	p = r3.Add(p, r3.Scale(float64(row)*img.PxlDx, img.RowUnit))
	return r3.Add(p, r3.Scale(float64(col)*img.PxlDy, img.ColUnit))
}

// Center returns the midpoint between the first and last pixel centres.
func (img *Image[T]) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(img.Position(0, 0), img.Position(img.Rows-1, img.Columns-1)))
}

// EncompassesPoint reports whether point lies strictly inside the volume spanned by
// the image: within the outer faces of the border pixels and within half the
// thickness of the plane. Points on the boundary are excluded.
func (img *Image[T]) EncompassesPoint(point r3.Vec) bool {
	d := r3.Sub(point, img.Center())
	halfRows := float64(img.Rows) * img.PxlDx * 0.5
	halfCols := float64(img.Columns) * img.PxlDy * 0.5
	return math.Abs(r3.Dot(d, img.RowUnit)) < halfRows &&
		math.Abs(r3.Dot(d, img.ColUnit)) < halfCols &&
		math.Abs(r3.Dot(d, img.normal())) < img.PxlDz*0.5
}

// SandwichesPointWithinTopBottomPlanes only checks the thickness bound, ignoring the
// in-plane extent.
func (img *Image[T]) SandwichesPointWithinTopBottomPlanes(point r3.Vec) bool {
	d := r3.Sub(point, img.Center())
	return math.Abs(r3.Dot(d, img.normal())) < img.PxlDz*0.5
}

// EncompassesContourOfPoints reports whether every vertex is encompassed. An empty
// contour is not encompassed.
func (img *Image[T]) EncompassesContourOfPoints(c geom.ContourOfPoints) bool {
	if len(c.Points) == 0 {
		return false
	}
	for _, p := range c.Points {
		if !img.EncompassesPoint(p) {
			return false
		}
	}
	return true
}

// EncompassesAnyContourInCollection reports whether some contour is fully encompassed.
func (img *Image[T]) EncompassesAnyContourInCollection(cc geom.ContourCollection) bool {
	for _, c := range cc.Contours {
		if img.EncompassesContourOfPoints(c) {
			return true
		}
	}
	return false
}

// EncompassesAnyOfContourOfPoints reports whether at least one vertex is encompassed.
func (img *Image[T]) EncompassesAnyOfContourOfPoints(c geom.ContourOfPoints) bool {
	for _, p := range c.Points {
		if img.EncompassesPoint(p) {
			return true
		}
	}
	return false
}

// EncompassesAnyPartOfContourInCollection reports whether any vertex of any contour
// is encompassed.
func (img *Image[T]) EncompassesAnyPartOfContourInCollection(cc geom.ContourCollection) bool {
	for _, c := range cc.Contours {
		if img.EncompassesAnyOfContourOfPoints(c) {
			return true
		}
	}
	return false
}

// Corners2D returns the four outer corners of the image face, starting near pixel
// (0,0) and moving first along increasing rows, then increasing columns. Thickness
// is ignored.
func (img *Image[T]) Corners2D() [4]r3.Vec {
	hr := r3.Scale(img.PxlDx*0.5, img.RowUnit)
	hc := r3.Scale(img.PxlDy*0.5, img.ColUnit)
	lastR, lastC := img.Rows-1, img.Columns-1
	return [4]r3.Vec{
		r3.Sub(r3.Sub(img.Position(0, 0), hr), hc),
		r3.Sub(r3.Add(img.Position(lastR, 0), hr), hc),
		r3.Add(r3.Add(img.Position(lastR, lastC), hr), hc),
		r3.Add(r3.Sub(img.Position(0, lastC), hr), hc),
	}
}

// ImagePlane returns the plane through Center with normal RowUnit × ColUnit.
func (img *Image[T]) ImagePlane() geom.Plane {
	return geom.NewPlane(r3.Cross(img.RowUnit, img.ColUnit), img.Center())
}

// Encloses2DPlanarImage reports whether all corners of other lie inside img. Each
// corner is first nudged towards the centre of img by 1/100th of the smaller pixel
// dimension so that coincident boundaries count as enclosed.
func Encloses2DPlanarImage[T, U Sample](img *Image[T], other *Image[U]) bool {
	eps := math.Min(img.PxlDx, img.PxlDy) / 100
	center := img.Center()
	for _, corner := range other.Corners2D() {
		dir := geom.Unit(r3.Sub(center, corner))
		if !img.EncompassesPoint(r3.Add(corner, r3.Scale(eps, dir))) {
			return false
		}
	}
	return true
}

// Encloses2DPlanarImage is the same-type method form of the free function.
func (img *Image[T]) Encloses2DPlanarImage(other *Image[T]) bool {
	return Encloses2DPlanarImage(img, other)
}

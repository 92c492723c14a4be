package planar

import (
	"cmp"
	"maps"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// Equal reports deep structural equality: dimensions, spacing, the combined
// anchor+offset position, orientation, metadata, and every sample.
func (img *Image[T]) Equal(other *Image[T]) bool {
	return img.Rows == other.Rows &&
		img.Columns == other.Columns &&
		img.Channels == other.Channels &&
		img.PxlDx == other.PxlDx &&
		img.PxlDy == other.PxlDy &&
		img.PxlDz == other.PxlDz &&
		r3.Add(img.Anchor, img.Offset) == r3.Add(other.Anchor, other.Offset) &&
		img.RowUnit == other.RowUnit &&
		img.ColUnit == other.ColUnit &&
		maps.Equal(img.Metadata, other.Metadata) &&
		slices.Equal(img.Data, other.Data)
}

// Less is a strict total order for deterministic sorting. It compares dimensions,
// spacing, position, orientation, metadata, and finally the samples lexicographically.
// It carries no semantic meaning.
func (img *Image[T]) Less(other *Image[T]) bool {
	return compareImages(img, other) < 0
}

func compareImages[T Sample](a, b *Image[T]) int {
	if c := cmp.Compare(a.Rows, b.Rows); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Columns, b.Columns); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Channels, b.Channels); c != 0 {
		return c
	}
	for _, pair := range [][2]float64{{a.PxlDx, b.PxlDx}, {a.PxlDy, b.PxlDy}, {a.PxlDz, b.PxlDz}} {
		if c := cmp.Compare(pair[0], pair[1]); c != 0 {
			return c
		}
	}
	if c := compareVec(r3.Add(a.Anchor, a.Offset), r3.Add(b.Anchor, b.Offset)); c != 0 {
		return c
	}
	if c := compareVec(a.RowUnit, b.RowUnit); c != 0 {
		return c
	}
	if c := compareVec(a.ColUnit, b.ColUnit); c != 0 {
		return c
	}
	if c := compareMetadata(a.Metadata, b.Metadata); c != 0 {
		return c
	}
	return slices.Compare(a.Data, b.Data)
}

func compareVec(a, b r3.Vec) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.Z, b.Z)
}

func compareMetadata(a, b map[string]string) int {
	ak := slices.Sorted(maps.Keys(a))
	bk := slices.Sorted(maps.Keys(b))
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := cmp.Compare(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := cmp.Compare(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(ak), len(bk))
}

// compareSpatially orders images by the position of pixel (0,0) (z, then y, then x),
// then by Center in the same order, then extent, then orientation. It is a plain
// lexicographic order over a fixed tuple so that it stays transitive for any geometry.
func compareSpatially[T, U Sample](a *Image[T], b *Image[U]) int {
	pa, pb := r3.Add(a.Anchor, a.Offset), r3.Add(b.Anchor, b.Offset)
	ca, cb := a.Center(), b.Center()
	for _, pair := range [][2]float64{{pa.Z, pb.Z}, {pa.Y, pb.Y}, {pa.X, pb.X}, {ca.Z, cb.Z}, {ca.Y, cb.Y}, {ca.X, cb.X}} {
		if c := cmp.Compare(pair[0], pair[1]); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(a.Rows, b.Rows); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Columns, b.Columns); c != 0 {
		return c
	}
	for _, pair := range [][2]float64{{a.PxlDx, b.PxlDx}, {a.PxlDy, b.PxlDy}, {a.PxlDz, b.PxlDz}} {
		if c := cmp.Compare(pair[0], pair[1]); c != 0 {
			return c
		}
	}
	if c := compareVec(a.RowUnit, b.RowUnit); c != 0 {
		return c
	}
	return compareVec(a.ColUnit, b.ColUnit)
}

// SpatiallyEq reports whether two images occupy the same geometry, ignoring samples,
// channel count, and metadata.
func (img *Image[T]) SpatiallyEq(other *Image[T]) bool {
	return compareSpatially(img, other) == 0
}

// SpatiallyLt orders images by geometry only.
func (img *Image[T]) SpatiallyLt(other *Image[T]) bool {
	return compareSpatially(img, other) < 0
}

// SpatiallyLte is SpatiallyLt or SpatiallyEq.
func (img *Image[T]) SpatiallyLte(other *Image[T]) bool {
	return compareSpatially(img, other) <= 0
}

package planar

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"planarimaging/pkg/geom"
)

// ErrEmptyCollection is returned by queries that need at least one image.
var ErrEmptyCollection = errors.New("collection has no images")

// Collection is an ordered stack of images, e.g. the slices of a volume. Images are
// held by pointer: the pointers are the handles returned by the query methods and
// stay valid across sorting, pruning, and erasure of other images.
type Collection[T Sample] struct {
	Images []*Image[T]
}

// NewCollection returns a collection holding the given images.
func NewCollection[T Sample](imgs ...*Image[T]) *Collection[T] {
	return &Collection[T]{Images: imgs}
}

// Len returns the number of images.
func (c *Collection[T]) Len() int { return len(c.Images) }

// Front returns the first image, or nil.
func (c *Collection[T]) Front() *Image[T] {
	if len(c.Images) == 0 {
		return nil
	}
	return c.Images[0]
}

// Back returns the last image, or nil.
func (c *Collection[T]) Back() *Image[T] {
	if len(c.Images) == 0 {
		return nil
	}
	return c.Images[len(c.Images)-1]
}

// Append adds images to the end of the collection.
func (c *Collection[T]) Append(imgs ...*Image[T]) {
	c.Images = append(c.Images, imgs...)
}

// Erase removes the given handles. Handles not in the collection are ignored.
func (c *Collection[T]) Erase(handles ...*Image[T]) {
	if len(handles) == 0 {
		return
	}
	drop := make(map[*Image[T]]struct{}, len(handles))
	for _, h := range handles {
		drop[h] = struct{}{}
	}
	c.Images = slices.DeleteFunc(c.Images, func(img *Image[T]) bool {
		_, ok := drop[img]
		return ok
	})
}

// Contains reports whether h is a handle into the collection.
func (c *Collection[T]) Contains(h *Image[T]) bool {
	return slices.Contains(c.Images, h)
}

// Clone deep-copies every image.
func (c *Collection[T]) Clone() *Collection[T] {
	out := &Collection[T]{Images: make([]*Image[T], len(c.Images))}
	for i, img := range c.Images {
		out.Images[i] = img.Clone()
	}
	return out
}

// GetAllImages returns handles to every image in order.
func (c *Collection[T]) GetAllImages() []*Image[T] {
	return slices.Clone(c.Images)
}

// GetImagesSatisfying returns handles to the images for which pred holds, in order.
func (c *Collection[T]) GetImagesSatisfying(pred func(*Image[T]) bool) []*Image[T] {
	var out []*Image[T]
	for _, img := range c.Images {
		if pred(img) {
			out = append(out, img)
		}
	}
	return out
}

// GetImagesWhichEncompassPoint returns the images that encompass p.
func (c *Collection[T]) GetImagesWhichEncompassPoint(p r3.Vec) []*Image[T] {
	return c.GetImagesSatisfying(func(img *Image[T]) bool {
		return img.EncompassesPoint(p)
	})
}

// GetImagesWhichEncompassAllPoints returns the images that encompass every point.
func (c *Collection[T]) GetImagesWhichEncompassAllPoints(points []r3.Vec) []*Image[T] {
	return c.GetImagesSatisfying(func(img *Image[T]) bool {
		for _, p := range points {
			if !img.EncompassesPoint(p) {
				return false
			}
		}
		return true
	})
}

// GetImagesWhichSandwichPointWithinTopBottomPlanes returns the images whose slab
// contains p, regardless of in-plane extent.
func (c *Collection[T]) GetImagesWhichSandwichPointWithinTopBottomPlanes(p r3.Vec) []*Image[T] {
	return c.GetImagesSatisfying(func(img *Image[T]) bool {
		return img.SandwichesPointWithinTopBottomPlanes(p)
	})
}

// GetNearestImagesAboveBelowNotEncompassingImage splits the other images into those
// above and below the plane of img, each sorted by increasing distance from it.
// Images that encompass the centre of img are skipped.
func (c *Collection[T]) GetNearestImagesAboveBelowNotEncompassingImage(img *Image[T]) (above, below []*Image[T]) {
	plane := img.ImagePlane()
	center := img.Center()
	type near struct {
		img  *Image[T]
		dist float64
	}
	var up, dn []near
	for _, other := range c.Images {
		if other == img || other.EncompassesPoint(center) {
			continue
		}
		d := plane.SignedDistanceToPoint(other.Center())
		if d > 0 {
			up = append(up, near{other, d})
		} else {
			dn = append(dn, near{other, -d})
		}
	}
	byDist := func(a, b near) int { return cmp.Compare(a.dist, b.dist) }
	slices.SortStableFunc(up, byDist)
	slices.SortStableFunc(dn, byDist)
	for _, n := range up {
		above = append(above, n.img)
	}
	for _, n := range dn {
		below = append(below, n.img)
	}
	return above, below
}

// StableSort reorders the images so that less(a, b) images come first, keeping the
// relative order of equivalent images.
func (c *Collection[T]) StableSort(less func(a, b *Image[T]) bool) {
	slices.SortStableFunc(c.Images, func(a, b *Image[T]) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})
}

// compareMissingLast returns the ordering of two optional values: a missing value is
// greater than any present one and two missing values are equivalent.
func compareMissingLast[V cmp.Ordered](a V, aok bool, b V, bok bool) int {
	switch {
	case aok && bok:
		return cmp.Compare(a, b)
	case aok:
		return -1
	case bok:
		return 1
	}
	return 0
}

// StableSortOnMetadataKeysValueNumeric sorts on the numeric value of each key in turn.
// Images lacking a key, or whose value does not parse, sort after the others.
func (c *Collection[T]) StableSortOnMetadataKeysValueNumeric(keys ...string) {
	slices.SortStableFunc(c.Images, func(a, b *Image[T]) int {
		for _, k := range keys {
			av, aok := a.MetadataValueAsFloat(k)
			bv, bok := b.MetadataValueAsFloat(k)
			if o := compareMissingLast(av, aok, bv, bok); o != 0 {
				return o
			}
		}
		return 0
	})
}

// StableSortOnMetadataKeysValueLexicographic sorts on the string value of each key in
// turn. Images lacking a key sort after the others.
func (c *Collection[T]) StableSortOnMetadataKeysValueLexicographic(keys ...string) {
	slices.SortStableFunc(c.Images, func(a, b *Image[T]) int {
		for _, k := range keys {
			av, aok := a.Metadata[k]
			bv, bok := b.Metadata[k]
			if o := compareMissingLast(av, aok, bv, bok); o != 0 {
				return o
			}
		}
		return 0
	})
}

// PruneImagesSatisfying moves the images for which pred holds into a new collection,
// which is returned. Both collections keep their original relative order.
func (c *Collection[T]) PruneImagesSatisfying(pred func(*Image[T]) bool) *Collection[T] {
	kept := make([]*Image[T], 0, len(c.Images))
	pruned := &Collection[T]{}
	for _, img := range c.Images {
		if pred(img) {
			pruned.Images = append(pruned.Images, img)
		} else {
			kept = append(kept, img)
		}
	}
	c.Images = kept
	return pruned
}

// RetainImagesSatisfying keeps only the images for which pred holds and returns the
// rest in a new collection.
func (c *Collection[T]) RetainImagesSatisfying(pred func(*Image[T]) bool) *Collection[T] {
	return c.PruneImagesSatisfying(func(img *Image[T]) bool { return !pred(img) })
}

// CollateImages moves every image of in into c, leaving in empty. When
// rejectOverlapping is set, the merge stops with an error at the first incoming image
// whose face is already enclosed by an image of c; images moved before that point stay
// moved.
func (c *Collection[T]) CollateImages(in *Collection[T], rejectOverlapping bool) error {
	for len(in.Images) > 0 {
		img := in.Images[0]
		if rejectOverlapping {
			for _, existing := range c.Images {
				if existing.Encloses2DPlanarImage(img) {
					return fmt.Errorf("collate images: incoming image at %s overlaps an existing image: %w",
						geom.VecToString(r3.Add(img.Anchor, img.Offset)), ErrInvalidArgument)
				}
			}
		}
		c.Images = append(c.Images, img)
		in.Images = in.Images[1:]
	}
	in.Images = nil
	return nil
}

// GetCommonMetadata returns the entries whose value is identical in every image.
func GetCommonMetadata[T Sample](imgs []*Image[T]) map[string]string {
	out := make(map[string]string)
	if len(imgs) == 0 {
		return out
	}
	for k, v := range imgs[0].Metadata {
		common := true
		for _, img := range imgs[1:] {
			if w, ok := img.Metadata[k]; !ok || w != v {
				common = false
				break
			}
		}
		if common {
			out[k] = v
		}
	}
	return out
}

// TrilinearlyInterpolate estimates the channel value at pos from the nearest image on
// either side of it. Each image is classified by the signed distance of pos from its
// plane; images with pos on or below their plane count as above. With images on both
// sides, pos is projected onto each nearest plane, bilinearly interpolated there, and
// the two results are blended by inverse distance. With images on one side only, the
// nearest image is sampled directly. Points that fall outside a sampled image yield
// outOfBounds.
func (c *Collection[T]) TrilinearlyInterpolate(pos r3.Vec, chnl int, outOfBounds float64) (float64, error) {
	if len(c.Images) == 0 {
		return 0, fmt.Errorf("trilinear interpolation: %w", ErrEmptyCollection)
	}

	var above, below *Image[T]
	dAbove, dBelow := math.Inf(1), math.Inf(1)
	for _, img := range c.Images {
		d := img.ImagePlane().SignedDistanceToPoint(pos)
		if d <= 0 {
			if -d < dAbove {
				above, dAbove = img, -d
			}
		} else if d < dBelow {
			below, dBelow = img, d
		}
	}

	if above == nil || below == nil {
		nearest := above
		if nearest == nil {
			nearest = below
		}
		v, err := nearest.ValueAtPoint(nearest.ImagePlane().ProjectOntoPlaneOrthogonally(pos), chnl)
		if err != nil {
			return outOfBounds, nil
		}
		return float64(v), nil
	}

	va, err := interpolateInPlane(above, pos, chnl)
	if err != nil {
		return outOfBounds, nil
	}
	vb, err := interpolateInPlane(below, pos, chnl)
	if err != nil {
		return outOfBounds, nil
	}
	total := dAbove + dBelow
	if total == 0 {
		return va, nil
	}
	return va*(dBelow/total) + vb*(dAbove/total), nil
}

func interpolateInPlane[T Sample](img *Image[T], pos r3.Vec, chnl int) (float64, error) {
	proj := img.ImagePlane().ProjectOntoPlaneOrthogonally(pos)
	row, col, err := img.FractionalRowColumn(proj)
	if err != nil {
		return 0, err
	}
	return img.BilinearlyInterpolateInPixelNumberSpace(row, col, chnl)
}

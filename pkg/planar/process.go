package planar

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"planarimaging/internal/wave"
	"planarimaging/pkg/geom"
)

// ErrGrouping is returned when a grouping function yields a group that omits its seed
// or mixes image dimensions.
var ErrGrouping = errors.New("invalid image group")

// Externals carries the caller's extra collaborators through the processing
// algorithms. Operations running in parallel must not write to the same external
// object concurrently; this is not checked.
type Externals[T Sample] struct {
	Images   []*Collection[T]
	Contours []*geom.ContourCollection
}

// GroupingFunc returns the images to be processed together with seed. The result must
// include seed.
type GroupingFunc[T Sample] func(seed *Image[T], all *Collection[T]) []*Image[T]

// GroupOperation consolidates a group into its seed image, in place.
type GroupOperation[T Sample] func(seed *Image[T], group []*Image[T], ext Externals[T]) error

// ImageOperation processes one image in place.
type ImageOperation[T Sample] func(img *Image[T], ext Externals[T]) error

// CollectionOperation processes the whole collection at once.
type CollectionOperation[T Sample] func(all *Collection[T], ext Externals[T]) error

// GroupIndividualImages puts every image in a group of its own.
func GroupIndividualImages[T Sample](seed *Image[T], _ *Collection[T]) []*Image[T] {
	return []*Image[T]{seed}
}

// GroupAllImages puts every image of the collection in one group.
func GroupAllImages[T Sample](_ *Image[T], all *Collection[T]) []*Image[T] {
	return all.GetAllImages()
}

// GroupSpatiallyOverlappingImages groups images sharing the seed's geometry.
func GroupSpatiallyOverlappingImages[T Sample](seed *Image[T], all *Collection[T]) []*Image[T] {
	return all.GetImagesSatisfying(func(img *Image[T]) bool {
		return img.SpatiallyEq(seed)
	})
}

// GroupByMetadataValues returns a grouping function that groups images whose values
// under every key match the seed's. A key missing from the seed only matches images
// also missing it.
func GroupByMetadataValues[T Sample](keys ...string) GroupingFunc[T] {
	return func(seed *Image[T], all *Collection[T]) []*Image[T] {
		return all.GetImagesSatisfying(func(img *Image[T]) bool {
			for _, k := range keys {
				sv, sok := seed.Metadata[k]
				iv, iok := img.Metadata[k]
				if sok != iok || sv != iv {
					return false
				}
			}
			return true
		})
	}
}

// validateGroup checks the group contract and returns the members other than seed,
// without duplicates.
func validateGroup[T Sample](seed *Image[T], group []*Image[T]) ([]*Image[T], error) {
	hasSeed := false
	seen := make(map[*Image[T]]struct{}, len(group))
	var others []*Image[T]
	for _, img := range group {
		if img == nil {
			return nil, fmt.Errorf("group contains a nil image: %w", ErrGrouping)
		}
		if img.Rows != seed.Rows || img.Columns != seed.Columns || img.Channels != seed.Channels {
			return nil, fmt.Errorf("group member is %dx%dx%d but seed is %dx%dx%d: %w",
				img.Rows, img.Columns, img.Channels, seed.Rows, seed.Columns, seed.Channels, ErrGrouping)
		}
		if img == seed {
			hasSeed = true
			continue
		}
		if _, dup := seen[img]; dup {
			continue
		}
		seen[img] = struct{}{}
		others = append(others, img)
	}
	if !hasSeed {
		return nil, fmt.Errorf("group of %d images omits its seed: %w", len(group), ErrGrouping)
	}
	return others, nil
}

// ProcessImages repeatedly picks an unprocessed image as seed, groups it, lets op
// consolidate the group into the seed, and erases the other group members. A nil
// grouping function groups images individually. Groups are removed as they are
// processed, so a failure leaves earlier groups already consolidated.
func (c *Collection[T]) ProcessImages(group GroupingFunc[T], op GroupOperation[T], ext Externals[T]) error {
	if op == nil {
		return fmt.Errorf("process images: nil operation: %w", ErrInvalidArgument)
	}
	if group == nil {
		group = GroupIndividualImages[T]
	}

	processed := make(map[*Image[T]]struct{})
	for {
		var seed *Image[T]
		for _, img := range c.Images {
			if _, done := processed[img]; !done {
				seed = img
				break
			}
		}
		if seed == nil {
			return nil
		}

		members := group(seed, c)
		others, err := validateGroup(seed, members)
		if err != nil {
			return fmt.Errorf("process images: %w", err)
		}
		if err := op(seed, append([]*Image[T]{seed}, others...), ext); err != nil {
			return fmt.Errorf("process images: operation failed: %w", err)
		}
		processed[seed] = struct{}{}
		c.Erase(others...)
	}
}

// ProcessImagesParallel is ProcessImages with all groups computed up front and the
// operations run concurrently in bounded waves. An image claimed by an earlier group
// is not reclaimed by a later one. Group members are erased only after every
// operation has succeeded. The grouping function is required.
func (c *Collection[T]) ProcessImagesParallel(group GroupingFunc[T], op GroupOperation[T], ext Externals[T]) error {
	if group == nil || op == nil {
		return fmt.Errorf("process images in parallel: grouping and operation are required: %w", ErrInvalidArgument)
	}

	type job struct {
		seed   *Image[T]
		others []*Image[T]
	}
	claimed := make(map[*Image[T]]struct{})
	var jobs []job
	for _, seed := range c.Images {
		if _, taken := claimed[seed]; taken {
			continue
		}
		others, err := validateGroup(seed, group(seed, c))
		if err != nil {
			return fmt.Errorf("process images in parallel: %w", err)
		}
		claimed[seed] = struct{}{}
		var free []*Image[T]
		for _, img := range others {
			if _, taken := claimed[img]; taken {
				continue
			}
			claimed[img] = struct{}{}
			free = append(free, img)
		}
		jobs = append(jobs, job{seed: seed, others: free})
	}

	tasks := make([]wave.Task, len(jobs))
	for i, j := range jobs {
		tasks[i] = func() error {
			return op(j.seed, append([]*Image[T]{j.seed}, j.others...), ext)
		}
	}
	if err := wave.Run(tasks, wave.Workers()); err != nil {
		return fmt.Errorf("process images in parallel: %w", err)
	}

	for _, j := range jobs {
		c.Erase(j.others...)
	}
	return nil
}

// TransformImages applies op to every image in order, stopping at the first failure.
// No images are removed.
func (c *Collection[T]) TransformImages(op ImageOperation[T], ext Externals[T]) error {
	if op == nil {
		return fmt.Errorf("transform images: nil operation: %w", ErrInvalidArgument)
	}
	for i, img := range c.GetAllImages() {
		if err := op(img, ext); err != nil {
			return fmt.Errorf("transform images: image %d: %w", i, err)
		}
	}
	return nil
}

// TransformImagesParallel applies op to every image concurrently in bounded waves and
// reports all failures of the wave that failed.
func (c *Collection[T]) TransformImagesParallel(op ImageOperation[T], ext Externals[T]) error {
	if op == nil {
		return fmt.Errorf("transform images in parallel: nil operation: %w", ErrInvalidArgument)
	}
	imgs := c.GetAllImages()
	tasks := make([]wave.Task, len(imgs))
	for i, img := range imgs {
		tasks[i] = func() error { return op(img, ext) }
	}
	if err := wave.Run(tasks, wave.Workers()); err != nil {
		return fmt.Errorf("transform images in parallel: %w", err)
	}
	return nil
}

// ComputeImages hands the whole collection to op once, for computations such as
// histograms that do not map onto single images or groups.
func (c *Collection[T]) ComputeImages(op CollectionOperation[T], ext Externals[T]) error {
	if op == nil {
		return fmt.Errorf("compute images: nil operation: %w", ErrInvalidArgument)
	}
	if err := op(c, ext); err != nil {
		return fmt.Errorf("compute images: %w", err)
	}
	return nil
}

// CondenseAverageImages averages each group sample by sample into its seed and
// removes the other members. A nil grouping function averages all images together.
func (c *Collection[T]) CondenseAverageImages(group GroupingFunc[T]) error {
	if group == nil {
		group = GroupAllImages[T]
	}
	info := InfoOf[T]()
	return c.ProcessImagesParallel(group, func(seed *Image[T], members []*Image[T], _ Externals[T]) error {
		if len(members) < 2 {
			return nil
		}
		vals := make([]float64, len(members))
		for i := range seed.Data {
			for j, img := range members {
				vals[j] = float64(img.Data[i])
			}
			seed.Data[i] = ConvertFloat[T](info, stat.Mean(vals, nil))
		}
		seed.appendMetadata("Operations Performed", fmt.Sprintf("Averaged %d images;", len(members)))
		return nil
	}, Externals[T]{})
}

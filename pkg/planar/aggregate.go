package planar

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"planarimaging/pkg/geom"
)

// blockValues gathers the channel samples of the inclusive rectangle, clamped to the
// image. Reversed bounds are swapped.
func (img *Image[T]) blockValues(rowMin, rowMax, colMin, colMax, chnl int) []float64 {
	if chnl < 0 || chnl >= img.Channels {
		return nil
	}
	if rowMin > rowMax {
		rowMin, rowMax = rowMax, rowMin
	}
	if colMin > colMax {
		colMin, colMax = colMax, colMin
	}
	rowMin, rowMax = max(rowMin, 0), min(rowMax, img.Rows-1)
	colMin, colMax = max(colMin, 0), min(colMax, img.Columns-1)
	if rowMin > rowMax || colMin > colMax {
		return nil
	}

	vals := make([]float64, 0, (rowMax-rowMin+1)*(colMax-colMin+1))
	for r := rowMin; r <= rowMax; r++ {
		for c := colMin; c <= colMax; c++ {
			vals = append(vals, img.at(r, c, chnl))
		}
	}
	return vals
}

// BlockAverage returns the mean of the channel over the inclusive rectangle, or NaN
// if the channel is invalid or the rectangle misses the image entirely.
func (img *Image[T]) BlockAverage(rowMin, rowMax, colMin, colMax, chnl int) float64 {
	vals := img.blockValues(rowMin, rowMax, colMin, colMax, chnl)
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// BlockMedian is BlockAverage with the median in place of the mean.
func (img *Image[T]) BlockMedian(rowMin, rowMax, colMin, colMax, chnl int) float64 {
	vals := img.blockValues(rowMin, rowMax, colMin, colMax, chnl)
	if len(vals) == 0 {
		return math.NaN()
	}
	return median(vals)
}

// median sorts vals in place. Even-length inputs average the two middle values.
func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return stat.Mean(vals[n/2-1:n/2+1], nil)
}

// MinMax returns the smallest and largest sample over all pixels and channels.
func (img *Image[T]) MinMax() (lo, hi T, err error) {
	if len(img.Data) == 0 {
		return 0, 0, fmt.Errorf("min/max: %w", ErrEmptyImage)
	}
	lo, hi = img.Data[0], img.Data[0]
	for _, v := range img.Data[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi, nil
}

// FillPixels sets every sample of every channel to val.
func (img *Image[T]) FillPixels(val T) {
	for i := range img.Data {
		img.Data[i] = val
	}
}

// FillChannel sets every sample of one channel to val. Invalid channels are ignored.
func (img *Image[T]) FillChannel(chnl int, val T) {
	if chnl < 0 || chnl >= img.Channels {
		return
	}
	for i := chnl; i < len(img.Data); i += img.Channels {
		img.Data[i] = val
	}
}

// ApplyToPixels replaces every sample with fn(row, col, chnl, value).
func (img *Image[T]) ApplyToPixels(fn func(row, col, chnl int, val T) T) {
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Columns; c++ {
			for ch := 0; ch < img.Channels; ch++ {
				i := img.Channels*(img.Columns*r+c) + ch
				img.Data[i] = fn(r, c, ch, img.Data[i])
			}
		}
	}
}

// ReplaceNonfinitePixelsWith overwrites NaN and infinite samples. Integer images are
// unaffected.
func (img *Image[T]) ReplaceNonfinitePixelsWith(val T) {
	for i, v := range img.Data {
		if !isFinite(v) {
			img.Data[i] = val
		}
	}
}

// SetVoxelsAbovePlane sets val in the given channels (all channels if none are given)
// of every pixel whose centre is strictly above plane. It returns the number of pixels
// affected.
func (img *Image[T]) SetVoxelsAbovePlane(plane geom.Plane, val T, channels ...int) int {
	if len(channels) == 0 {
		channels = make([]int, img.Channels)
		for i := range channels {
			channels[i] = i
		}
	}
	count := 0
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Columns; c++ {
			if !plane.IsPointAbovePlane(img.Position(r, c)) {
				continue
			}
			count++
			for _, ch := range channels {
				if i := img.IndexChannel(r, c, ch); i >= 0 {
					img.Data[i] = val
				}
			}
		}
	}
	return count
}

package planar

import (
	"fmt"
	"math"
)

// GaussianPixelBlur convolves the given channels with an isotropic Gaussian of
// sigma pixels. The physical pixel shape is ignored. The window has radius
// ceil(3*sigma) and each output pixel is normalised by the kernel weight that
// actually fell inside the image, so borders are not darkened. It returns false,
// leaving the image untouched, if any channel is invalid or sigma is not positive.
func (img *Image[T]) GaussianPixelBlur(channels []int, sigma float64) bool {
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return false
	}
	for _, ch := range channels {
		if ch < 0 || ch >= img.Channels {
			return false
		}
	}

	if len(channels) == 0 {
		return true
	}

	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}

	info := InfoOf[T]()
	src := make([]T, len(img.Data))
	copy(src, img.Data)

	for _, ch := range channels {
		for r := 0; r < img.Rows; r++ {
			for c := 0; c < img.Columns; c++ {
				var sum, wsum float64
				for dr := -radius; dr <= radius; dr++ {
					rr := r + dr
					if rr < 0 || rr >= img.Rows {
						continue
					}
					for dc := -radius; dc <= radius; dc++ {
						cc := c + dc
						if cc < 0 || cc >= img.Columns {
							continue
						}
						w := kernel[dr+radius] * kernel[dc+radius]
						sum += w * float64(src[img.Channels*(img.Columns*rr+cc)+ch])
						wsum += w
					}
				}
				img.Data[img.Channels*(img.Columns*r+c)+ch] = ConvertFloat[T](info, sum/wsum)
			}
		}
	}

	img.appendMetadata("Operations Performed", fmt.Sprintf("Gaussian blurred with sigma = %g pixels;", sigma))
	img.appendMetadata("Description", "Gaussian blurred;")
	return true
}

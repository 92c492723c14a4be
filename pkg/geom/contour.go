package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ContourOfPoints is an ordered polygon of 3D vertices.
type ContourOfPoints struct {
	Points   []r3.Vec
	Closed   bool
	Metadata map[string]string
}

// ContourCollection is a set of related contours, typically one region of interest.
type ContourCollection struct {
	Contours []ContourOfPoints
}

// Bounds returns the smallest and largest projection of any vertex onto each axis.
// The returned count is the number of vertices inspected; when it is zero the
// bounds are meaningless.
func Bounds(ccs []*ContourCollection, axes ...r3.Vec) (lo, hi []float64, count int) {
	lo = make([]float64, len(axes))
	hi = make([]float64, len(axes))
	for i := range axes {
		lo[i] = math.Inf(1)
		hi[i] = math.Inf(-1)
	}
	for _, cc := range ccs {
		if cc == nil {
			continue
		}
		for _, c := range cc.Contours {
			for _, p := range c.Points {
				count++
				for i, a := range axes {
					d := r3.Dot(p, a)
					lo[i] = math.Min(lo[i], d)
					hi[i] = math.Max(hi[i], d)
				}
			}
		}
	}
	return lo, hi, count
}

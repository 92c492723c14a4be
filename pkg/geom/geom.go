// Package geom provides the spatial primitives shared by the planar imaging packages:
// string round-tripping for 3D vectors, oriented planes and lines, contours of points,
// and Gram-Schmidt orthonormalisation of a basis.
//
// Vectors are gonum r3.Vec values throughout.
package geom

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerate is returned when a basis or direction has no usable length.
var ErrDegenerate = errors.New("degenerate geometry")

// VecToString serialises a vector as "(x,y,z)" using the shortest representation
// that parses back to the identical float64 values.
func VecToString(v r3.Vec) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(strconv.FormatFloat(v.X, 'g', -1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(v.Y, 'g', -1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(v.Z, 'g', -1, 64))
	b.WriteByte(')')
	return b.String()
}

// VecFromString parses the output of VecToString. Surrounding whitespace and
// whitespace around components are tolerated.
func VecFromString(s string) (r3.Vec, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return r3.Vec{}, fmt.Errorf("parsing vector %q: missing parentheses", s)
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != 3 {
		return r3.Vec{}, fmt.Errorf("parsing vector %q: expected 3 components, got %d", s, len(parts))
	}
	var xyz [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("parsing vector %q: %w", s, err)
		}
		xyz[i] = f
	}
	return r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// IsFinite reports whether all components are finite.
func IsFinite(v r3.Vec) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Unit returns v scaled to unit length. A zero vector stays zero.
func Unit(v r3.Vec) r3.Vec {
	if r3.Norm(v) == 0 {
		return v
	}
	return r3.Unit(v)
}

// Plane is an oriented plane through R0 with unit normal N. Points on the N side
// of the plane are "above" it.
type Plane struct {
	N  r3.Vec
	R0 r3.Vec
}

// NewPlane returns a plane through r0 with the given normal, normalised to unit length.
func NewPlane(normal, r0 r3.Vec) Plane {
	return Plane{N: Unit(normal), R0: r0}
}

// SignedDistanceToPoint is positive for points above the plane.
func (p Plane) SignedDistanceToPoint(pt r3.Vec) float64 {
	return r3.Dot(p.N, r3.Sub(pt, p.R0))
}

// IsPointAbovePlane reports whether pt lies strictly on the normal side of the plane.
func (p Plane) IsPointAbovePlane(pt r3.Vec) bool {
	return p.SignedDistanceToPoint(pt) > 0
}

// ProjectOntoPlaneOrthogonally drops pt onto the plane along the normal.
func (p Plane) ProjectOntoPlaneOrthogonally(pt r3.Vec) r3.Vec {
	return r3.Sub(pt, r3.Scale(p.SignedDistanceToPoint(pt), p.N))
}

// Line is an infinite line through R0 with unit direction U.
type Line struct {
	R0 r3.Vec
	U  r3.Vec
}

// NewLine returns the line through r0 and r1.
func NewLine(r0, r1 r3.Vec) Line {
	return Line{R0: r0, U: Unit(r3.Sub(r1, r0))}
}

// DistanceToPoint returns the perpendicular distance of pt from the line.
func (l Line) DistanceToPoint(pt r3.Vec) float64 {
	return r3.Norm(r3.Cross(r3.Sub(pt, l.R0), l.U))
}

// Orthonormalize applies Gram-Schmidt to the given vectors in order, returning unit
// vectors that are mutually orthogonal. Each input must have a component orthogonal to
// the ones before it.
func Orthonormalize(vs ...r3.Vec) ([]r3.Vec, error) {
	out := make([]r3.Vec, 0, len(vs))
	for i, v := range vs {
		w := v
		for _, u := range out {
			w = r3.Sub(w, r3.Scale(r3.Dot(w, u), u))
		}
		n := r3.Norm(w)
		if n < 1e-12*math.Max(1, r3.Norm(v)) || !IsFinite(w) {
			return nil, fmt.Errorf("orthonormalizing vector %d %s: %w", i, VecToString(v), ErrDegenerate)
		}
		out = append(out, r3.Scale(1/n, w))
	}
	return out, nil
}

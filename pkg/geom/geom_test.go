package geom

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestVecStringRoundTrip(t *testing.T) {
	tests := []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: -2.5, Z: 3e-300},
		{X: 0.1, Y: 1.0 / 3.0, Z: -math.MaxFloat64},
		{X: -100, Y: -200, Z: -400},
	}
	for _, v := range tests {
		s := VecToString(v)
		got, err := VecFromString(s)
		if err != nil {
			t.Fatalf("VecFromString(%q) failed: %v", s, err)
		}
		if got != v {
			t.Errorf("round trip of %v via %q gave %v", v, s, got)
		}
	}
}

func TestVecFromStringErrors(t *testing.T) {
	for _, s := range []string{"", "1,2,3", "(1,2)", "(a,b,c)", "(1,2,3,4)"} {
		if _, err := VecFromString(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
	if _, err := VecFromString(" ( 1 , 2 , 3 ) "); err != nil {
		t.Errorf("unexpected error for padded vector: %v", err)
	}
}

func TestPlane(t *testing.T) {
	p := NewPlane(r3.Vec{Z: 2}, r3.Vec{Z: 1})
	if d := p.SignedDistanceToPoint(r3.Vec{X: 5, Y: 3, Z: 4}); d != 3 {
		t.Errorf("expected signed distance 3, got %v", d)
	}
	if !p.IsPointAbovePlane(r3.Vec{Z: 1.5}) {
		t.Error("point above plane reported below")
	}
	if p.IsPointAbovePlane(r3.Vec{Z: 1}) {
		t.Error("point on plane reported above")
	}
	proj := p.ProjectOntoPlaneOrthogonally(r3.Vec{X: 1, Y: 2, Z: -7})
	if proj != (r3.Vec{X: 1, Y: 2, Z: 1}) {
		t.Errorf("unexpected projection %v", proj)
	}
}

func TestLineDistance(t *testing.T) {
	l := NewLine(r3.Vec{}, r3.Vec{Z: 10})
	if d := l.DistanceToPoint(r3.Vec{X: 3, Y: 4, Z: 7}); !scalar.EqualWithinAbs(d, 5, 1e-12) {
		t.Errorf("expected 5, got %v", d)
	}
}

func TestOrthonormalize(t *testing.T) {
	basis, err := Orthonormalize(r3.Vec{X: 2}, r3.Vec{X: 1, Y: 1}, r3.Vec{X: 1, Y: 1, Z: 5})
	if err != nil {
		t.Fatalf("Orthonormalize failed: %v", err)
	}
	want := []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	for i := range want {
		if r3.Norm(r3.Sub(basis[i], want[i])) > 1e-12 {
			t.Errorf("basis[%d] = %v, want %v", i, basis[i], want[i])
		}
	}

	_, err = Orthonormalize(r3.Vec{X: 1}, r3.Vec{X: 3})
	if !errors.Is(err, ErrDegenerate) {
		t.Errorf("expected ErrDegenerate for collinear inputs, got %v", err)
	}
}

func TestBounds(t *testing.T) {
	cc := &ContourCollection{Contours: []ContourOfPoints{
		{Points: []r3.Vec{{X: -1, Y: 2}, {X: 3, Y: -4, Z: 1}}},
		{Points: []r3.Vec{{Z: 9}}},
	}}
	lo, hi, n := Bounds([]*ContourCollection{cc, nil}, r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: 1})
	if n != 3 {
		t.Fatalf("expected 3 vertices, got %d", n)
	}
	if lo[0] != -1 || hi[0] != 3 || lo[1] != -4 || hi[1] != 2 || lo[2] != 0 || hi[2] != 9 {
		t.Errorf("unexpected bounds lo=%v hi=%v", lo, hi)
	}
}

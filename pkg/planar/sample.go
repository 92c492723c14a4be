package planar

import (
	"math"
	"reflect"

	"golang.org/x/exp/constraints"
)

// Sample is the set of numeric pixel types an Image can hold.
type Sample interface {
	constraints.Integer | constraints.Float
}

// SampleInfo describes the numeric range of a sample type.
type SampleInfo struct {
	Integer bool
	Signed  bool
	Bits    int
	Lowest  float64
	Highest float64
	maxInt  int64
	maxUint uint64
	minInt  int64
}

// InfoOf reports the numeric properties of T. Named types are classified by their
// underlying kind.
func InfoOf[T Sample]() SampleInfo {
	t := reflect.TypeFor[T]()
	bits := int(t.Size()) * 8
	switch t.Kind() {
	case reflect.Float32:
		return SampleInfo{Signed: true, Bits: 32, Lowest: -math.MaxFloat32, Highest: math.MaxFloat32}
	case reflect.Float64:
		return SampleInfo{Signed: true, Bits: 64, Lowest: -math.MaxFloat64, Highest: math.MaxFloat64}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		hi := int64(1)<<(bits-1) - 1
		lo := -hi - 1
		return SampleInfo{Integer: true, Signed: true, Bits: bits,
			Lowest: float64(lo), Highest: float64(hi), maxInt: hi, minInt: lo}
	default:
		var hi uint64 = math.MaxUint64
		if bits < 64 {
			hi = uint64(1)<<bits - 1
		}
		return SampleInfo{Integer: true, Bits: bits, Lowest: 0, Highest: float64(hi), maxUint: hi}
	}
}

// ConvertFloat converts v to T. Integer targets are rounded to nearest and clamped to
// the representable range, with NaN mapping to zero. Floating targets convert directly.
func ConvertFloat[T Sample](info SampleInfo, v float64) T {
	if !info.Integer {
		return T(v)
	}
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v)
	switch {
	case v >= info.Highest:
		if info.Signed {
			return T(info.maxInt)
		}
		return T(info.maxUint)
	case v <= info.Lowest:
		if info.Signed {
			return T(info.minInt)
		}
		return 0
	}
	if info.Signed {
		return T(int64(v))
	}
	return T(uint64(v))
}

func isFinite[T Sample](v T) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ConvertInt converts an integer to T, clamping to the representable range of integer
// targets. It avoids the precision loss of going through float64.
func ConvertInt[T Sample](info SampleInfo, v int64) T {
	if !info.Integer {
		return T(v)
	}
	if info.Signed {
		return T(max(info.minInt, min(info.maxInt, v)))
	}
	if v < 0 {
		return 0
	}
	if uint64(v) > info.maxUint {
		return T(info.maxUint)
	}
	return T(v)
}

package fits

import (
	"encoding/binary"
	"math"

	"planarimaging/pkg/planar"
)

// encodeSample stores v at the start of dst using the width implied by bitpix.
func encodeSample[T planar.Sample](dst []byte, v T, bitpix int, bo binary.ByteOrder) {
	switch bitpix {
	case 8:
		dst[0] = byte(v)
	case 16:
		bo.PutUint16(dst, uint16(int16(v)))
	case 32:
		bo.PutUint32(dst, uint32(int32(v)))
	case 64:
		bo.PutUint64(dst, uint64(int64(v)))
	case -32:
		bo.PutUint32(dst, math.Float32bits(float32(v)))
	case -64:
		bo.PutUint64(dst, math.Float64bits(float64(v)))
	}
}

// rawSample is one decoded stored value before BZERO/BSCALE are applied.
type rawSample struct {
	i     int64
	f     float64
	float bool
}

func decodeSample(src []byte, bitpix int, signedBytes bool, bo binary.ByteOrder) rawSample {
	switch bitpix {
	case 8:
		if signedBytes {
			return rawSample{i: int64(int8(src[0]))}
		}
		return rawSample{i: int64(src[0])}
	case 16:
		return rawSample{i: int64(int16(bo.Uint16(src)))}
	case 32:
		return rawSample{i: int64(int32(bo.Uint32(src)))}
	case 64:
		return rawSample{i: int64(bo.Uint64(src))}
	case -32:
		return rawSample{f: float64(math.Float32frombits(bo.Uint32(src))), float: true}
	default:
		return rawSample{f: math.Float64frombits(bo.Uint64(src)), float: true}
	}
}

// scaler applies value*BSCALE + BZERO and converts to T.
type scaler[T planar.Sample] struct {
	info          planar.SampleInfo
	bzero, bscale float64
}

func (s scaler[T]) identity() bool { return s.bzero == 0 && s.bscale == 1 }

func (s scaler[T]) convert(raw rawSample) T {
	if s.identity() {
		if raw.float {
			return planar.ConvertFloat[T](s.info, raw.f)
		}
		return planar.ConvertInt[T](s.info, raw.i)
	}
	v := raw.f
	if !raw.float {
		v = float64(raw.i)
	}
	return planar.ConvertFloat[T](s.info, v*s.bscale+s.bzero)
}

// Package fits reads and writes planar images as FITS files.
//
// Each image becomes one header-data unit: the first as the primary HDU, the rest as
// IMAGE extensions. Standard keywords describe the pixel array. The geometry and the
// metadata map of each image travel in YGOR* keywords that generic FITS tools ignore.
package fits

import (
	"encoding/binary"
	"errors"
	"fmt"

	"planarimaging/pkg/planar"
)

var (
	// ErrUnsupportedType is returned for sample types FITS cannot represent here.
	ErrUnsupportedType = errors.New("unsupported sample type")

	// ErrFormat marks a malformed or unsupported FITS stream.
	ErrFormat = errors.New("malformed FITS data")

	// ErrFileExists is returned by the raw dumps instead of overwriting a file.
	ErrFileExists = errors.New("file already exists")
)

// ByteOrder selects the byte order of the pixel payload. FITS mandates big-endian;
// little-endian files are flagged with BYTEORDR and only this package reads them.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "LITTLE_ENDIAN"
	}
	return "BIG_ENDIAN"
}

func (o ByteOrder) binary() binary.ByteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// ParseByteOrder accepts the BYTEORDR values and the short forms "big" and "little".
func ParseByteOrder(s string) (ByteOrder, error) {
	switch s {
	case "BIG_ENDIAN", "big", "":
		return BigEndian, nil
	case "LITTLE_ENDIAN", "little":
		return LittleEndian, nil
	}
	return BigEndian, fmt.Errorf("byte order %q: %w", s, ErrFormat)
}

// Custom keywords.
const (
	keyByteOrder = "BYTEORDR"
	keyPxlDx     = "YGORPXLX"
	keyPxlDy     = "YGORPXLY"
	keyPxlDz     = "YGORPXLZ"
	keyAnchor    = "YGORANKR"
	keyOffset    = "YGOROFST"
	keyRowUnit   = "YGORROWU"
	keyColUnit   = "YGORCOLU"
	keyMetadata  = "YGORMETA"
)

// bitpixOf maps the sample type to its BITPIX value. Unsigned integers are only
// supported as bytes; signed 8-bit samples are stored as raw two's complement bytes.
func bitpixOf[T planar.Sample]() (int, error) {
	info := planar.InfoOf[T]()
	switch {
	case !info.Integer:
		return -info.Bits, nil
	case !info.Signed && info.Bits != 8:
		return 0, fmt.Errorf("%d-bit unsigned samples: %w", info.Bits, ErrUnsupportedType)
	case info.Bits > 64:
		return 0, fmt.Errorf("%d-bit samples: %w", info.Bits, ErrUnsupportedType)
	}
	return info.Bits, nil
}

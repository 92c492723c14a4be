// Package planar implements planar images embedded in 3D space and ordered
// collections of them.
//
// An Image is a dense, row-major, channel-interleaved buffer of samples. Pixel (0,0)
// is centred at Anchor+Offset; increasing the row index moves PxlDx along RowUnit and
// increasing the column index moves PxlDy along ColUnit. The slice is PxlDz thick,
// extending half of that on each side of its plane.
package planar

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"planarimaging/pkg/geom"
)

var (
	// ErrOutOfBounds marks an access outside the rows, columns, channels, or volume of an image.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrInvalidArgument marks a precondition violation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyImage is returned by whole-image reductions on an image without pixels.
	ErrEmptyImage = errors.New("image has no pixels")
)

// Image is a single 2D buffer of multi-channel samples with a placement in 3D space.
type Image[T Sample] struct {
	// Data holds Rows*Columns*Channels samples; see IndexChannel for the layout.
	Data []T

	// Rows, Columns, and Channels are -1 until InitBuffer is called.
	Rows     int
	Columns  int
	Channels int

	// PxlDx is the spacing between adjacent rows along RowUnit, PxlDy the spacing
	// between adjacent columns along ColUnit, PxlDz the slice thickness.
	PxlDx float64
	PxlDy float64
	PxlDz float64

	// Anchor is conventionally zero and shared by a family of images; Offset carries
	// the actual placement of pixel (0,0).
	Anchor r3.Vec
	Offset r3.Vec

	RowUnit r3.Vec
	ColUnit r3.Vec

	Metadata map[string]string
}

// NewImage returns an uninitialised image.
func NewImage[T Sample]() *Image[T] {
	return &Image[T]{
		Rows:     -1,
		Columns:  -1,
		Channels: -1,
		Metadata: make(map[string]string),
	}
}

// InitBuffer (re)allocates the pixel buffer with zero-valued samples. Spatial fields
// are left untouched.
func (img *Image[T]) InitBuffer(rows, columns, channels int) error {
	if rows <= 0 || columns <= 0 || channels <= 0 {
		return fmt.Errorf("init buffer with %dx%dx%d: dimensions must be positive: %w",
			rows, columns, channels, ErrInvalidArgument)
	}
	img.Rows, img.Columns, img.Channels = rows, columns, channels
	img.Data = make([]T, rows*columns*channels)
	return nil
}

// InitSpatial sets the pixel spacing, thickness, and placement.
func (img *Image[T]) InitSpatial(dx, dy, dz float64, anchor, offset r3.Vec) {
	img.PxlDx, img.PxlDy, img.PxlDz = dx, dy, dz
	img.Anchor, img.Offset = anchor, offset
}

// InitOrientation stores unit-length copies of the row and column directions.
func (img *Image[T]) InitOrientation(rowUnit, colUnit r3.Vec) {
	img.RowUnit = geom.Unit(rowUnit)
	img.ColUnit = geom.Unit(colUnit)
}

// Clone returns a deep copy sharing no storage with img.
func (img *Image[T]) Clone() *Image[T] {
	out := *img
	if img.Data != nil {
		out.Data = make([]T, len(img.Data))
		copy(out.Data, img.Data)
	}
	out.Metadata = maps.Clone(img.Metadata)
	if out.Metadata == nil {
		out.Metadata = make(map[string]string)
	}
	return &out
}

// Index returns the buffer index of channel 0 at (row, col), or -1 if out of range.
func (img *Image[T]) Index(row, col int) int {
	return img.IndexChannel(row, col, 0)
}

// IndexChannel returns Channels*(Columns*row+col)+chnl, or -1 if any coordinate is
// out of range.
func (img *Image[T]) IndexChannel(row, col, chnl int) int {
	if row < 0 || row >= img.Rows || col < 0 || col >= img.Columns || chnl < 0 || chnl >= img.Channels {
		return -1
	}
	return img.Channels*(img.Columns*row+col) + chnl
}

// IndexPoint returns the buffer index of the pixel containing point, or -1 when the
// point is outside the slab of the image or its nearest pixel is out of range.
func (img *Image[T]) IndexPoint(point r3.Vec, chnl int) int {
	row, col, ok := img.nearestRowColumn(point)
	if !ok {
		return -1
	}
	return img.IndexChannel(row, col, chnl)
}

// nearestRowColumn projects point into pixel-number space and rounds it. ok is false
// when the out-of-plane component exceeds half the thickness.
func (img *Image[T]) nearestRowColumn(point r3.Vec) (row, col int, ok bool) {
	r, c, within := img.projectToPixelSpace(point)
	if !within || math.IsNaN(r) || math.IsNaN(c) || math.IsInf(r, 0) || math.IsInf(c, 0) {
		return -1, -1, false
	}
	r, c = math.Round(r), math.Round(c)
	if r < 0 || c < 0 || r >= float64(img.Rows) || c >= float64(img.Columns) {
		return -1, -1, false
	}
	return int(r), int(c), true
}

// projectToPixelSpace returns the fractional row and column of point and whether the
// point lies within the (inclusive) thickness bounds.
func (img *Image[T]) projectToPixelSpace(point r3.Vec) (row, col float64, within bool) {
	p := r3.Sub(point, r3.Add(img.Anchor, img.Offset))
	row = r3.Dot(p, img.RowUnit) / img.PxlDx
	col = r3.Dot(p, img.ColUnit) / img.PxlDy
	out := math.Abs(r3.Dot(p, img.normal()))
	return row, col, out <= img.PxlDz*0.5
}

func (img *Image[T]) normal() r3.Vec {
	return geom.Unit(r3.Cross(img.RowUnit, img.ColUnit))
}

// RowColumnChannelFromIndex inverts IndexChannel. It returns (-1,-1,-1) for indices
// outside the buffer.
func (img *Image[T]) RowColumnChannelFromIndex(index int) (row, col, chnl int) {
	if img.Rows <= 0 || img.Columns <= 0 || img.Channels <= 0 || index < 0 || index >= img.Rows*img.Columns*img.Channels {
		return -1, -1, -1
	}
	chnl = index % img.Channels
	pix := index / img.Channels
	col = pix % img.Columns
	row = pix / img.Columns
	if img.IndexChannel(row, col, chnl) != index {
		return -1, -1, -1
	}
	return row, col, chnl
}

// Value returns the sample at (row, col, chnl).
func (img *Image[T]) Value(row, col, chnl int) (T, error) {
	i := img.IndexChannel(row, col, chnl)
	if i < 0 {
		return 0, fmt.Errorf("value at (%d,%d,%d) of %dx%dx%d image: %w",
			row, col, chnl, img.Rows, img.Columns, img.Channels, ErrOutOfBounds)
	}
	return img.Data[i], nil
}

// Ptr returns a pointer to the sample at (row, col, chnl).
func (img *Image[T]) Ptr(row, col, chnl int) (*T, error) {
	i := img.IndexChannel(row, col, chnl)
	if i < 0 {
		return nil, fmt.Errorf("reference at (%d,%d,%d) of %dx%dx%d image: %w",
			row, col, chnl, img.Rows, img.Columns, img.Channels, ErrOutOfBounds)
	}
	return &img.Data[i], nil
}

// ValueAtPoint returns the sample of the pixel containing point.
func (img *Image[T]) ValueAtPoint(point r3.Vec, chnl int) (T, error) {
	i := img.IndexPoint(point, chnl)
	if i < 0 {
		return 0, fmt.Errorf("value at point %s channel %d: %w", geom.VecToString(point), chnl, ErrOutOfBounds)
	}
	return img.Data[i], nil
}

// PtrAtPoint returns a pointer to the sample of the pixel containing point.
func (img *Image[T]) PtrAtPoint(point r3.Vec, chnl int) (*T, error) {
	i := img.IndexPoint(point, chnl)
	if i < 0 {
		return nil, fmt.Errorf("reference at point %s channel %d: %w", geom.VecToString(point), chnl, ErrOutOfBounds)
	}
	return &img.Data[i], nil
}

// MetadataValueAsFloat parses the metadata value under key as a number.
func (img *Image[T]) MetadataValueAsFloat(key string) (float64, bool) {
	s, ok := img.Metadata[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// appendMetadata appends note to the value under key, separated from earlier notes.
func (img *Image[T]) appendMetadata(key, note string) {
	if img.Metadata == nil {
		img.Metadata = make(map[string]string)
	}
	if prev := img.Metadata[key]; prev != "" {
		img.Metadata[key] = prev + " " + note
		return
	}
	img.Metadata[key] = note
}

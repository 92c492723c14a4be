package fits

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"golang.org/x/exp/constraints"

	"planarimaging/pkg/lincompress"
	"planarimaging/pkg/planar"
)

// createExclusive opens path for writing, refusing to replace an existing file.
func createExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("dump to %s: %w", path, ErrFileExists)
	}
	if err != nil {
		return nil, fmt.Errorf("dump to %s: %w", path, err)
	}
	return f, nil
}

// dumpConverted writes every sample of img, in buffer order, as U in host byte order.
// Platform-sized integers are written at their actual width.
func dumpConverted[T, U planar.Sample](path string, img *planar.Image[T], conv func(T) U) (err error) {
	f, err := createExclusive(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("dump to %s: %w", path, cerr)
		}
	}()

	info := planar.InfoOf[U]()
	bits := info.Bits
	if !info.Integer {
		bits = -bits
	}
	width := info.Bits / 8

	bw := bufio.NewWriter(f)
	stride := max(img.Columns*img.Channels, 1)
	buf := make([]byte, stride*width)
	for start := 0; start < len(img.Data); start += stride {
		row := img.Data[start:min(start+stride, len(img.Data))]
		for i, v := range row {
			encodeSample(buf[i*width:], conv(v), bits, binary.NativeEndian)
		}
		if _, err := bw.Write(buf[:len(row)*width]); err != nil {
			return fmt.Errorf("dump to %s: %w", path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("dump to %s: %w", path, err)
	}
	return nil
}

// DumpPixels writes the raw samples of img with no header, rows in natural order.
// It returns ErrFileExists rather than overwrite path.
func DumpPixels[T planar.Sample](path string, img *planar.Image[T]) error {
	return dumpConverted(path, img, func(v T) T { return v })
}

// DumpCastedPixels is DumpPixels with every sample converted to U. Integer targets
// round and clamp.
func DumpCastedPixels[T, U planar.Sample](path string, img *planar.Image[T]) error {
	src, dst := planar.InfoOf[T](), planar.InfoOf[U]()
	return dumpConverted(path, img, func(v T) U { return castSample[T, U](src, dst, v) })
}

func castSample[T, U planar.Sample](src, dst planar.SampleInfo, v T) U {
	if !src.Integer {
		return planar.ConvertFloat[U](dst, float64(v))
	}
	if !src.Signed && uint64(v) > math.MaxInt64 {
		return planar.ConvertFloat[U](dst, math.Inf(1))
	}
	return planar.ConvertInt[U](dst, int64(v))
}

// DumpCastedScaledPixels converts to U after mapping the full theoretical range of T
// linearly onto the full range of U. The actual data range is not consulted.
func DumpCastedScaledPixels[T, U planar.Sample](path string, img *planar.Image[T]) error {
	src, dst := planar.InfoOf[T](), planar.InfoOf[U]()
	return dumpConverted(path, img, func(v T) U {
		// Halving keeps the range arithmetic finite for float64.
		t := (float64(v)/2 - src.Lowest/2) / (src.Highest/2 - src.Lowest/2)
		return planar.ConvertFloat[U](dst, dst.Lowest*(1-t)+dst.Highest*t)
	})
}

// DumpCompressedPixels fits a linear compressor to the data range of img, writes the
// compressed samples as I, and returns the compressor needed to recover them.
func DumpCompressedPixels[T planar.Sample, I constraints.Integer](path string, img *planar.Image[T]) (lincompress.Compressor[float64, I], error) {
	var c lincompress.Compressor[float64, I]
	lo, hi, err := img.MinMax()
	if err != nil {
		return c, fmt.Errorf("dump to %s: %w", path, err)
	}
	if err := c.Optimize(float64(lo), float64(hi)); err != nil {
		return c, fmt.Errorf("dump to %s: %w", path, err)
	}
	return c, dumpConverted(path, img, func(v T) I { return c.Compress(float64(v)) })
}

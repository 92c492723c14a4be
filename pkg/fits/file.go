package fits

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/exp/mmap"

	"planarimaging/pkg/planar"
)

func isGzipPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".gz")
}

// WriteFile writes c to path, creating or truncating it. Paths ending in .gz are
// gzip-compressed.
func WriteFile[T planar.Sample](path string, c *planar.Collection[T], order ByteOrder) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write FITS file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("write FITS file: %w", cerr)
		}
	}()

	if !isGzipPath(path) {
		return Write(f, c, order)
	}
	zw := gzip.NewWriter(f)
	if err := Write(zw, c, order); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("write FITS file: %w", err)
	}
	return nil
}

// ReadFile reads every image stored at path. Uncompressed files are memory-mapped and
// must be a whole number of FITS blocks long.
func ReadFile[T planar.Sample](path string) (*planar.Collection[T], error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read FITS file: %w", err)
	}
	defer m.Close()

	var r io.Reader = io.NewSectionReader(m, 0, int64(m.Len()))
	if isGzipPath(path) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("read FITS file %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	} else if m.Len()%blockSize != 0 {
		return nil, fmt.Errorf("read FITS file %s: length %d is not a multiple of %d: %w",
			path, m.Len(), blockSize, ErrFormat)
	}

	c, err := Read[T](r)
	if err != nil {
		return nil, fmt.Errorf("read FITS file %s: %w", path, err)
	}
	return c, nil
}

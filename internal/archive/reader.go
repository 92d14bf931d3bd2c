// Package archive packages converted device files for transfer and reads
// the packages back. It supports zip, tar.xz and tar.gz.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
)

// Format is an archive container format.
type Format int

const (
	FormatZip Format = iota
	FormatTarXz
	FormatTarGz
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarXz:
		return "tar.xz"
	case FormatTarGz:
		return "tar.gz"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// FormatOf picks the format from a file name.
func FormatOf(path string) (Format, error) {
	switch {
	case strings.HasSuffix(path, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(path, ".tar.xz"):
		return FormatTarXz, nil
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return FormatTarGz, nil
	}
	return 0, errors.NewUnsupported("archive format", path)
}

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader opens a .tar.gz or .tar.xz archive.
func NewReader(path string) (*Reader, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == FormatZip {
		return nil, errors.NewUnsupported("tar reader", "zip archives are read with List or ReadFile")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}

	var reader io.Reader
	var decompressor io.Closer
	if format == FormatTarXz {
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
	} else {
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	}

	return &Reader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the archive reader and any underlying decompressors.
func (r *Reader) Close() error {
	var first error
	if r.decompressor != nil {
		first = r.decompressor.Close()
	}
	if err := r.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Visitor is called for each entry. Return true to stop iteration.
type Visitor func(name string, size int64, content io.Reader) (stop bool, err error)

// Iterate walks the tar entries, calling visit for each regular file.
func (r *Reader) Iterate(visit Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		stop, err := visit(header.Name, header.Size, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// Walk opens the archive at path and visits its files in stored order.
func Walk(path string, visit Visitor) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if format != FormatZip {
		r, err := NewReader(path)
		if err != nil {
			return err
		}
		defer r.Close()
		return r.Iterate(visit)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return errors.NewIO("open", path, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		stop, err := visit(f.Name, int64(f.UncompressedSize64), rc)
		rc.Close()
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// Entry is one packaged file.
type Entry struct {
	Name string
	Size int64
}

// List returns the files in the archive at path.
func List(path string) ([]Entry, error) {
	var entries []Entry
	err := Walk(path, func(name string, size int64, _ io.Reader) (bool, error) {
		entries = append(entries, Entry{Name: name, Size: size})
		return false, nil
	})
	return entries, err
}

// ReadFile reads the named file from the archive.
func ReadFile(archivePath, filename string) ([]byte, error) {
	var content []byte
	found := false
	err := Walk(archivePath, func(name string, _ int64, r io.Reader) (bool, error) {
		if name != filename {
			return false, nil
		}
		found = true
		var err error
		content, err = io.ReadAll(r)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewIO("find", archivePath+"!"+filename, os.ErrNotExist)
	}
	return content, nil
}

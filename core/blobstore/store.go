// Package blobstore reads and writes the images.dat blob store and names
// the per-image files handed to the device bitmap converter.
//
// images.dat layout: N+1 4-byte little-endian absolute file offsets followed
// by the concatenated payloads. Blob i spans [off[i], off[i+1]). The first
// offset always equals the table size, so N = off[0]/4 - 1.
package blobstore

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/index"
	"github.com/FocuswithJustin/ScanReflow/internal/fileutil"
)

// ImagesFile is the standard blob store file name.
const ImagesFile = "images.dat"

// Write compresses blobs with codec and writes the offset table and payloads.
func Write(w io.Writer, blobs [][]byte, codec Codec) error {
	payloads := make([][]byte, len(blobs))
	for i, b := range blobs {
		c, err := codec.Compress(b)
		if err != nil {
			return fmt.Errorf("failed to compress blob %d: %w", i, err)
		}
		payloads[i] = c
	}

	table := make([]byte, 0, (len(blobs)+1)*index.OffsetSize)
	pos := uint64((len(blobs) + 1) * index.OffsetSize)
	table = index.AppendOffset(table, uint32(pos))
	for _, p := range payloads {
		pos += uint64(len(p))
		if pos > math.MaxUint32 {
			return errors.NewFormat(ImagesFile, -1, "blob store exceeds 4 GiB")
		}
		table = index.AppendOffset(table, uint32(pos))
	}

	if _, err := w.Write(table); err != nil {
		return err
	}
	for _, p := range payloads {
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes a blob store to path atomically.
func WriteFile(path string, blobs [][]byte, codec Codec) error {
	var buf bytes.Buffer
	if err := Write(&buf, blobs, codec); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0644)
}

// Reader gives random access to blobs without loading the whole store.
type Reader struct {
	r     io.ReaderAt
	size  int64
	codec Codec
	count int
}

// NewReader validates the offset table header of a store of size bytes.
func NewReader(r io.ReaderAt, size int64, codec Codec) (*Reader, error) {
	first, err := index.ReadOffset(r, 0)
	if err != nil {
		return nil, err
	}
	if first < index.OffsetSize || first%index.OffsetSize != 0 || int64(first) > size {
		return nil, errors.NewFormat(ImagesFile, 0, fmt.Sprintf("invalid offset table size %d for %d-byte store", first, size))
	}
	return &Reader{
		r:     r,
		size:  size,
		codec: codec,
		count: int(first/index.OffsetSize) - 1,
	}, nil
}

// Len returns the number of blobs in the store.
func (r *Reader) Len() int {
	return r.count
}

// Raw returns the stored (still compressed) payload of blob key.
func (r *Reader) Raw(key int) ([]byte, error) {
	if key < 0 || key >= r.count {
		return nil, errors.NewLookup("image", key, r.count)
	}
	pos := int64(key * index.OffsetSize)
	start, err := index.ReadOffset(r.r, pos)
	if err != nil {
		return nil, err
	}
	end, err := index.ReadOffset(r.r, pos+index.OffsetSize)
	if err != nil {
		return nil, err
	}
	if start > end || int64(end) > r.size {
		return nil, errors.NewFormat(ImagesFile, pos, fmt.Sprintf("blob %d spans %d..%d beyond store length %d", key, start, end, r.size))
	}

	buf := make([]byte, end-start)
	if n, err := r.r.ReadAt(buf, int64(start)); n < len(buf) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &errors.FormatError{Structure: ImagesFile, Offset: int64(start), Message: fmt.Sprintf("blob %d truncated", key), Err: err}
	}
	return buf, nil
}

// Get returns the decompressed payload of blob key.
func (r *Reader) Get(key int) ([]byte, error) {
	raw, err := r.Raw(key)
	if err != nil {
		return nil, err
	}
	data, err := r.codec.Decompress(raw)
	if err != nil {
		return nil, &errors.FormatError{Structure: ImagesFile, Offset: -1, Message: fmt.Sprintf("blob %d is not valid %s data", key, r.codec.Name()), Err: err}
	}
	return data, nil
}

// File is a Reader backed by an open file.
type File struct {
	*Reader
	f *os.File
}

// Open opens the blob store at path.
func Open(path string, codec Codec) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.NewIO("stat", path, err)
	}
	r, err := NewReader(f, info.Size(), codec)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{Reader: r, f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}

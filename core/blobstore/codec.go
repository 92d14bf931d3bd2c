package blobstore

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
)

// Codec compresses blob payloads as they are written to images.dat.
type Codec interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Codec names accepted by CodecByName.
const (
	CodecZlib = "zlib"
	CodecXZ   = "xz"
	CodecNone = "none"
)

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case CodecZlib, "":
		return Zlib{}, nil
	case CodecXZ:
		return XZ{}, nil
	case CodecNone:
		return None{}, nil
	default:
		return nil, errors.NewUnsupported("codec", fmt.Sprintf("%q (want zlib, xz or none)", name))
	}
}

// Zlib is the default codec; the handheld viewer inflates blobs with zlib.
type Zlib struct{}

func (Zlib) Name() string { return CodecZlib }

func (Zlib) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Zlib) Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// XZ trades decode speed for smaller blob stores.
type XZ struct{}

func (XZ) Name() string { return CodecXZ }

func (XZ) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (XZ) Decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// None stores payloads verbatim.
type None struct{}

func (None) Name() string { return CodecNone }

func (None) Compress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

func (None) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

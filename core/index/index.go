// Package index defines the on-disk layout of the slide index files.
//
// File structure:
//   - contents.dat - N 4-byte little-endian byte offsets into sequence.dat,
//     one per document. Omitted when there is only one document.
//   - sequence.dat - fixed-width references into the image dictionary.
//     Width16 streams hold 2-byte unsigned keys (viewer and converter
//     pipelines); Width32 streams hold 4-byte signed keys where -1 marks
//     a pause (edit pipeline). A file uses exactly one width.
//
// Document d spans [contents[d], contents[d+1]) of the sequence stream; the
// last document runs to the end of the stream.
package index

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
)

// OffsetSize is the width of every offset in contents.dat and in the
// images.dat offset table.
const OffsetSize = 4

// Standard file names.
const (
	ContentsFile = "contents.dat"
	SequenceFile = "sequence.dat"
)

// Width is the size in bytes of one sequence entry.
type Width int

const (
	// Width16 is the dictionary-key-only width used by the image pipelines.
	Width16 Width = 2
	// Width32 is the signed width written by the edit interpreter.
	Width32 Width = 4
)

// MaxKey16 is the largest key a Width16 stream can carry.
const MaxKey16 = 0xFFFF

// pauseSentinel encodes a pause marker in a Width32 stream.
const pauseSentinel int32 = -1

func (w Width) String() string {
	switch w {
	case Width16:
		return "16-bit"
	case Width32:
		return "32-bit"
	default:
		return fmt.Sprintf("width(%d)", int(w))
	}
}

func (w Width) valid() bool {
	return w == Width16 || w == Width32
}

// Entry is one logical sequence element: either a reference to an image
// dictionary key or a pause marker.
type Entry struct {
	key   int
	pause bool
}

// ImageRef returns an entry referring to dictionary key k.
func ImageRef(k int) Entry {
	return Entry{key: k}
}

// PauseMarker returns a pause entry.
func PauseMarker() Entry {
	return Entry{key: -1, pause: true}
}

// Key returns the dictionary key, or -1 for a pause.
func (e Entry) Key() int {
	return e.key
}

// IsPause reports whether e is a pause marker.
func (e Entry) IsPause() bool {
	return e.pause
}

func (e Entry) String() string {
	if e.pause {
		return "//"
	}
	return fmt.Sprintf("%d", e.key)
}

// AppendOffset appends v as a 4-byte little-endian integer.
func AppendOffset(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

// WriteOffset writes v as a 4-byte little-endian integer.
func WriteOffset(w io.Writer, v uint32) error {
	var buf [OffsetSize]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadOffset reads the 4-byte little-endian integer at absolute position pos.
func ReadOffset(r io.ReaderAt, pos int64) (uint32, error) {
	var buf [OffsetSize]byte
	n, err := r.ReadAt(buf[:], pos)
	if n < OffsetSize {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, &errors.FormatError{
			Structure: "offset",
			Offset:    pos,
			Message:   fmt.Sprintf("need %d bytes, have %d", OffsetSize, n),
			Err:       err,
		}
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Contents is a parsed contents index.
type Contents []uint32

// ParseContents decodes a contents index.
func ParseContents(b []byte) (Contents, error) {
	if len(b)%OffsetSize != 0 {
		return nil, errors.NewFormat(ContentsFile, -1, fmt.Sprintf("length %d is not a multiple of %d", len(b), OffsetSize))
	}
	c := make(Contents, len(b)/OffsetSize)
	for i := range c {
		c[i] = binary.LittleEndian.Uint32(b[i*OffsetSize:])
		if i > 0 && c[i] < c[i-1] {
			return nil, errors.NewFormat(ContentsFile, int64(i*OffsetSize), fmt.Sprintf("offset %d is before previous offset %d", c[i], c[i-1]))
		}
	}
	return c, nil
}

// Bytes encodes the contents index.
func (c Contents) Bytes() []byte {
	b := make([]byte, 0, len(c)*OffsetSize)
	for _, off := range c {
		b = AppendOffset(b, off)
	}
	return b
}

// Len returns the number of documents.
func (c Contents) Len() int {
	return len(c)
}

// Range returns the byte range of document doc within a sequence stream of
// streamLen bytes.
func (c Contents) Range(doc int, streamLen int64) (start, end int64, err error) {
	if doc < 0 || doc >= len(c) {
		return 0, 0, errors.NewLookup("document", doc, len(c))
	}
	start = int64(c[doc])
	end = streamLen
	if doc+1 < len(c) {
		end = int64(c[doc+1])
	}
	if end > streamLen || start > end {
		return 0, 0, errors.NewFormat(ContentsFile, int64(doc*OffsetSize),
			fmt.Sprintf("document %d spans %d..%d beyond sequence length %d", doc, start, end, streamLen))
	}
	return start, end, nil
}

// EntryCount returns how many entries of width w fit in n bytes.
func EntryCount(n int64, w Width) (int, error) {
	if !w.valid() {
		return 0, errors.NewUnsupported("sequence width", w.String())
	}
	if n%int64(w) != 0 {
		return 0, errors.NewFormat("sequence", -1, fmt.Sprintf("length %d is not a multiple of %d", n, int(w)))
	}
	return int(n / int64(w)), nil
}

// AppendEntry appends the binary form of e.
func AppendEntry(b []byte, e Entry, w Width) ([]byte, error) {
	switch w {
	case Width16:
		if e.pause {
			return nil, errors.NewFormat("sequence", -1, "pause markers need a 32-bit sequence")
		}
		if e.key < 0 || e.key > MaxKey16 {
			return nil, errors.NewFormat("sequence", -1, fmt.Sprintf("key %d out of range for a 16-bit sequence", e.key))
		}
		return binary.LittleEndian.AppendUint16(b, uint16(e.key)), nil
	case Width32:
		v := int32(e.key)
		if e.pause {
			v = pauseSentinel
		} else if e.key < 0 || int64(e.key) > int64(^uint32(0)>>1) {
			return nil, errors.NewFormat("sequence", -1, fmt.Sprintf("key %d out of range for a 32-bit sequence", e.key))
		}
		return binary.LittleEndian.AppendUint32(b, uint32(v)), nil
	default:
		return nil, errors.NewUnsupported("sequence width", w.String())
	}
}

// EncodeSequence encodes entries at width w.
func EncodeSequence(entries []Entry, w Width) ([]byte, error) {
	b := make([]byte, 0, len(entries)*int(w))
	for _, e := range entries {
		var err error
		if b, err = AppendEntry(b, e, w); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// DecodeSequence decodes a sequence stream of width w.
func DecodeSequence(b []byte, w Width) ([]Entry, error) {
	n, err := EntryCount(int64(len(b)), w)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, n)
	for i := range entries {
		off := i * int(w)
		if w == Width16 {
			entries[i] = ImageRef(int(binary.LittleEndian.Uint16(b[off:])))
			continue
		}
		v := int32(binary.LittleEndian.Uint32(b[off:]))
		switch {
		case v == pauseSentinel:
			entries[i] = PauseMarker()
		case v < 0:
			return nil, errors.NewFormat("sequence", int64(off), fmt.Sprintf("negative key %d", v))
		default:
			entries[i] = ImageRef(int(v))
		}
	}
	return entries, nil
}

// Implicit returns the entries 0..n-1 used when sequence.dat was omitted.
func Implicit(n int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = ImageRef(i)
	}
	return entries
}

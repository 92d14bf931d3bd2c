// Package decoder gives random access to encoded slide sets: documents via
// contents.dat, their entries via sequence.dat, and images via images.dat.
package decoder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/ScanReflow/core/blobstore"
	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/index"
)

// Options control how the files in a directory are interpreted.
type Options struct {
	Width index.Width     // sequence width, Width16 if zero
	Codec blobstore.Codec // images.dat codec, zlib if nil
}

// Reader reads an encoded directory. Sequence and blob data are read on
// demand through io.ReaderAt.
type Reader struct {
	width    index.Width
	contents index.Contents // nil when contents.dat is absent
	seq      io.ReaderAt    // nil when sequence.dat is absent
	seqSize  int64
	seqFile  *os.File
	images   *blobstore.File
}

// Open opens the index files in dir. At least one of sequence.dat and
// images.dat must be present.
func Open(dir string, opts Options) (*Reader, error) {
	if opts.Width == 0 {
		opts.Width = index.Width16
	}
	if opts.Codec == nil {
		opts.Codec = blobstore.Zlib{}
	}
	r := &Reader{width: opts.Width}

	contentsPath := filepath.Join(dir, index.ContentsFile)
	if data, err := os.ReadFile(contentsPath); err == nil {
		if r.contents, err = index.ParseContents(data); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.NewIO("read", contentsPath, err)
	}

	seqPath := filepath.Join(dir, index.SequenceFile)
	if f, err := os.Open(seqPath); err == nil {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, errors.NewIO("stat", seqPath, err)
		}
		if _, err := index.EntryCount(info.Size(), r.width); err != nil {
			f.Close()
			return nil, err
		}
		r.seq, r.seqSize, r.seqFile = f, info.Size(), f
	} else if !os.IsNotExist(err) {
		return nil, errors.NewIO("open", seqPath, err)
	}

	imagesPath := filepath.Join(dir, blobstore.ImagesFile)
	if _, err := os.Stat(imagesPath); err == nil {
		images, err := blobstore.Open(imagesPath, opts.Codec)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.images = images
	}

	if r.seq == nil && r.images == nil {
		return nil, errors.NewIO("open", seqPath, os.ErrNotExist)
	}
	if r.seq == nil {
		// Identity sequence implied by an omitted sequence.dat.
		implicit, err := index.EncodeSequence(index.Implicit(r.images.Len()), r.width)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.seq, r.seqSize = bytes.NewReader(implicit), int64(len(implicit))
	}
	return r, nil
}

// Close releases the open files.
func (r *Reader) Close() error {
	var first error
	if r.seqFile != nil {
		first = r.seqFile.Close()
	}
	if r.images != nil {
		if err := r.images.Close(); first == nil {
			first = err
		}
	}
	return first
}

// Width returns the sequence width in use.
func (r *Reader) Width() index.Width {
	return r.width
}

// NumDocuments returns 1 when contents.dat is absent.
func (r *Reader) NumDocuments() int {
	if r.contents == nil {
		return 1
	}
	return r.contents.Len()
}

// NumImages returns the number of blobs, or 0 without images.dat.
func (r *Reader) NumImages() int {
	if r.images == nil {
		return 0
	}
	return r.images.Len()
}

// NumEntries returns the total number of sequence entries.
func (r *Reader) NumEntries() int {
	return int(r.seqSize / int64(r.width))
}

func (r *Reader) docRange(d int) (int64, int64, error) {
	if r.contents == nil {
		if d != 0 {
			return 0, 0, errors.NewLookup("document", d, 1)
		}
		return 0, r.seqSize, nil
	}
	return r.contents.Range(d, r.seqSize)
}

// ReadDocument returns the raw sequence bytes of document d.
func (r *Reader) ReadDocument(d int) ([]byte, error) {
	start, end, err := r.docRange(d)
	if err != nil {
		return nil, err
	}
	if (end-start)%int64(r.width) != 0 {
		return nil, errors.NewFormat(index.SequenceFile, start, fmt.Sprintf("document %d is not a whole number of %s entries", d, r.width))
	}
	buf := make([]byte, end-start)
	if n, err := r.seq.ReadAt(buf, start); n < len(buf) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &errors.FormatError{Structure: index.SequenceFile, Offset: start, Message: fmt.Sprintf("document %d truncated", d), Err: err}
	}
	return buf, nil
}

// Entries returns the decoded entries of document d.
func (r *Reader) Entries(d int) ([]index.Entry, error) {
	raw, err := r.ReadDocument(d)
	if err != nil {
		return nil, err
	}
	return index.DecodeSequence(raw, r.width)
}

// ReadSequenceEntry returns the decompressed image payload for key.
func (r *Reader) ReadSequenceEntry(key int) ([]byte, error) {
	if r.images == nil {
		return nil, errors.NewLookup("image", key, 0)
	}
	return r.images.Get(key)
}

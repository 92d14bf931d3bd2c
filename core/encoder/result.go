package encoder

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/ScanReflow/core/blobstore"
	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/index"
	"github.com/FocuswithJustin/ScanReflow/core/raster"
	"github.com/FocuswithJustin/ScanReflow/internal/fileutil"
)

// Payload kinds stored in images.dat.
const (
	PayloadXBM = "xbm"
	PayloadPPM = "ppm"
)

// Result is the output of a finished encode.
type Result struct {
	NumDocuments int
	Contents     index.Contents // nil when there is only one document
	Sequence     []byte         // nil when the identity sequence suffices
	Entries      []index.Entry
	Glyphs       []*Glyph // indexed by dictionary key
	Blanks       int      // skipped all-white pages
}

// Batches splits the dictionary into converter invocations.
func (r *Result) Batches() []blobstore.Batch {
	return blobstore.Batches(len(r.Glyphs), blobstore.BatchLimit)
}

// ConverterArgs returns the "<flag><file>" arguments for batch b.
func (r *Result) ConverterArgs(b blobstore.Batch) []string {
	args := make([]string, 0, b.Len())
	for k := b.Start; k < b.End; k++ {
		args = append(args, r.Glyphs[k].Depth.Flag()+blobstore.BMPName(k))
	}
	return args
}

// WriteBMPs writes every dictionary image to dir as %08d.bmp.
func (r *Result) WriteBMPs(dir string) error {
	for k, g := range r.Glyphs {
		var buf bytes.Buffer
		if err := raster.WriteBMP(&buf, g.Image); err != nil {
			return fmt.Errorf("failed to encode image %d: %w", k, err)
		}
		path := filepath.Join(dir, blobstore.BMPName(k))
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return errors.NewIO("write", path, err)
		}
	}
	return nil
}

// Payloads returns one images.dat payload per key in the given kind.
func (r *Result) Payloads(kind string) ([][]byte, error) {
	out := make([][]byte, len(r.Glyphs))
	for k, g := range r.Glyphs {
		switch kind {
		case PayloadXBM, "":
			out[k] = raster.EncodeXBM("noname", g.Image)
		case PayloadPPM:
			out[k] = raster.EncodePPM(g.Image)
		default:
			return nil, errors.NewUnsupported("payload", fmt.Sprintf("%q (want xbm or ppm)", kind))
		}
	}
	return out, nil
}

// WriteFiles writes contents.dat and sequence.dat into dir when present,
// each atomically, and returns the names written.
func (r *Result) WriteFiles(dir string) ([]string, error) {
	var written []string
	if r.Contents != nil {
		if err := fileutil.WriteFileAtomic(filepath.Join(dir, index.ContentsFile), r.Contents.Bytes(), 0644); err != nil {
			return written, err
		}
		written = append(written, index.ContentsFile)
	}
	if r.Sequence != nil {
		if err := fileutil.WriteFileAtomic(filepath.Join(dir, index.SequenceFile), r.Sequence, 0644); err != nil {
			return written, err
		}
		written = append(written, index.SequenceFile)
	}
	return written, nil
}

// Summary returns the report lines describing which index files were made.
func (r *Result) Summary() []string {
	var lines []string
	if r.Contents == nil {
		lines = append(lines, "Didn't make contents.dat, as there was only one input document")
	} else {
		lines = append(lines, "Made contents.dat")
	}
	if r.Sequence == nil {
		lines = append(lines, "Didn't make sequence.dat, as all images were unique")
	} else {
		lines = append(lines, "Made sequence.dat")
	}
	return lines
}

package blobstore

import (
	"fmt"
	"strings"
)

// BatchLimit is the most images the device converter accepts per invocation.
const BatchLimit = 510

// BMPName returns the converter input file name for dictionary key.
func BMPName(key int) string {
	return fmt.Sprintf("%08d.bmp", key)
}

// Batch is a contiguous run of dictionary keys converted by one invocation.
type Batch struct {
	Index  int
	Suffix string // "" for batch 0, upper-case hex of Index otherwise
	Start  int    // first key, inclusive
	End    int    // last key, exclusive
}

// Len returns the number of images in the batch.
func (b Batch) Len() int {
	return b.End - b.Start
}

// FileName returns the converter output name for base, e.g. "font1.mbm".
func (b Batch) FileName(base string) string {
	return base + b.Suffix + ".mbm"
}

// Batches splits keys 0..n-1 into batches of at most limit images.
func Batches(n, limit int) []Batch {
	if limit <= 0 {
		limit = BatchLimit
	}
	var out []Batch
	for i, start := 0, 0; start < n; i, start = i+1, start+limit {
		end := min(start+limit, n)
		b := Batch{Index: i, Start: start, End: end}
		if i > 0 {
			b.Suffix = strings.ToUpper(fmt.Sprintf("%x", i))
		}
		out = append(out, b)
	}
	return out
}

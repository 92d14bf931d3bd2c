// Package encoder builds the contents index, the sequence stream and the
// image dictionary from pages grouped into documents.
package encoder

import (
	"fmt"
	"image"
	"image/color"

	"github.com/FocuswithJustin/ScanReflow/core/dict"
	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/index"
	"github.com/FocuswithJustin/ScanReflow/core/raster"
)

// Glyph is the device image behind one dictionary key.
type Glyph struct {
	Image *image.Paletted // nil until Attach for content-keyed entries
	Depth raster.Depth    // requested depth, resolved once Image is set

	Digest dict.Digest // set by Finish
	Uses   int         // sequence references, set by Finish
}

// Encoder accumulates documents. It is not safe for concurrent use.
type Encoder struct {
	dict     *dict.Dictionary
	seq      []index.Entry
	contents index.Contents
	blanks   int
}

// New creates an empty encoder.
func New() *Encoder {
	return &Encoder{dict: dict.New()}
}

// StartDocument records the current sequence write position as the start of
// a new document.
func (e *Encoder) StartDocument() {
	e.contents = append(e.contents, uint32(len(e.seq)*int(index.Width16)))
}

func (e *Encoder) ensureDocument() {
	if len(e.contents) == 0 {
		e.StartDocument()
	}
}

// Add normalises a rendered page and appends its key to the current
// document. Blank pages are skipped and report ok == false.
func (e *Encoder) Add(page image.Image, depth raster.Depth) (key int, ok bool, err error) {
	p, ok := raster.Normalize(page)
	if !ok {
		e.blanks++
		return 0, false, nil
	}
	key, err = e.add(raster.EncodePPM(p), &Glyph{Image: p, Depth: raster.Resolve(p, depth)})
	return key, err == nil, err
}

// AddContent appends the key for arbitrary content, such as the source of
// a typeset word. The image is supplied later with Attach.
func (e *Encoder) AddContent(content []byte, depth raster.Depth) (int, error) {
	return e.add(content, &Glyph{Depth: depth})
}

func (e *Encoder) add(content []byte, g *Glyph) (int, error) {
	e.ensureDocument()
	key, isNew := e.dict.Add(content, g)
	if isNew && key > index.MaxKey16 {
		return 0, errors.NewFormat(index.SequenceFile, -1, fmt.Sprintf("dictionary key %d exceeds the 16-bit limit", key))
	}
	e.seq = append(e.seq, index.ImageRef(key))
	return key, nil
}

// Attach sets the rendered image for a content-keyed entry. A blank render
// becomes a single white pixel so the key still has an image.
func (e *Encoder) Attach(key int, page image.Image) error {
	if key < 0 || key >= e.dict.Len() {
		return errors.NewLookup("image", key, e.dict.Len())
	}
	g := e.dict.Entry(key).Meta.(*Glyph)
	p, ok := raster.Normalize(page)
	if !ok {
		p = image.NewPaletted(image.Rect(0, 0, 1, 1), raster.Epoc16)
		p.SetColorIndex(0, 0, uint8(raster.Epoc16.Index(color.White)))
	}
	g.Image = p
	g.Depth = raster.Resolve(p, g.Depth)
	return nil
}

// Len returns the number of unique images so far.
func (e *Encoder) Len() int {
	return e.dict.Len()
}

// Stats returns the document, page and unique image counts.
func (e *Encoder) Stats() (docs, pages, unique int) {
	return len(e.contents), len(e.seq), e.dict.Len()
}

// Finish applies the omission rules and returns the encoded result.
func (e *Encoder) Finish() (*Result, error) {
	r := &Result{
		NumDocuments: len(e.contents),
		Entries:      append([]index.Entry(nil), e.seq...),
		Blanks:       e.blanks,
	}
	for _, de := range e.dict.Entries() {
		g := de.Meta.(*Glyph)
		if g.Image == nil {
			return nil, errors.NewLookup("rendered image", de.Key, e.dict.Len())
		}
		g.Digest, g.Uses = de.Digest, de.Uses
		r.Glyphs = append(r.Glyphs, g)
	}

	if len(e.contents) > 1 {
		r.Contents = append(index.Contents(nil), e.contents...)
	}
	if r.Contents != nil || !e.dict.AllUnique() {
		seq, err := index.EncodeSequence(e.seq, index.Width16)
		if err != nil {
			return nil, err
		}
		r.Sequence = seq
	}
	return r, nil
}

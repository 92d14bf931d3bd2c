package edit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/index"
	"github.com/FocuswithJustin/ScanReflow/internal/fileutil"
)

// Standard file names of the edit workflow.
const (
	EnlargedFile = "enlarged.tex"
	BackupFile   = "enlarged-orig.tex"
)

// imageMarker ends the nine-digit word number on an image line.
const imageMarker = ".png}"

// pausePrefix starts every pause line.
const pausePrefix = `\textcolor{blue}`

// tagDigits is the zero-padded width of a word number.
const tagDigits = 9

// LineKind classifies a document line.
type LineKind int

const (
	Markup LineKind = iota
	Image
	Pause
)

// Line is one line of the rendered document. Lines are compared by
// identity, so a copied line is a distinct *Line with the same tag.
type Line struct {
	Kind LineKind
	Text string
	Tag  int // word number, Image lines only
}

func (l *Line) clone() *Line {
	c := *l
	return &c
}

// Document is the working line list the interpreter edits.
type Document struct {
	Lines []*Line
}

// ParseDocument reads a rendered document. name is used in error messages.
func ParseDocument(r io.Reader, name string) (*Document, error) {
	doc := &Document{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line, err := parseLine(scanner.Text())
		if err != nil {
			return nil, errors.NewParse(name, n, err.Error())
		}
		doc.Lines = append(doc.Lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIO("read", name, err)
	}
	return doc, nil
}

// ReadDocumentFile parses the document at path.
func ReadDocumentFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return ParseDocument(f, path)
}

func parseLine(text string) (*Line, error) {
	if i := strings.Index(text, imageMarker); i >= 0 {
		if i < tagDigits {
			return nil, fmt.Errorf("image line has no %d-digit word number", tagDigits)
		}
		digits := text[i-tagDigits : i]
		tag, err := strconv.Atoi(digits)
		if err != nil || tag < 0 {
			return nil, fmt.Errorf("bad word number %q", digits)
		}
		return &Line{Kind: Image, Text: text, Tag: tag}, nil
	}
	if strings.HasPrefix(text, pausePrefix) {
		return &Line{Kind: Pause, Text: text}, nil
	}
	return &Line{Kind: Markup, Text: text}, nil
}

// Find returns the image lines tagged within [first, last] in document order.
func (d *Document) Find(first, last int) []*Line {
	var out []*Line
	for _, l := range d.Lines {
		if l.Kind == Image && l.Tag >= first && l.Tag <= last {
			out = append(out, l)
		}
	}
	return out
}

// indexOf returns the position of the first image line tagged within
// [first, last], skipping lines in exclude, or -1. The position counts only
// lines not excluded.
func (d *Document) indexOf(first, last int, exclude map[*Line]bool) int {
	pos := 0
	for _, l := range d.Lines {
		if exclude[l] {
			continue
		}
		if l.Kind == Image && l.Tag >= first && l.Tag <= last {
			return pos
		}
		pos++
	}
	return -1
}

// remove drops every line in set.
func (d *Document) remove(set map[*Line]bool) {
	if len(set) == 0 {
		return
	}
	kept := d.Lines[:0]
	for _, l := range d.Lines {
		if !set[l] {
			kept = append(kept, l)
		}
	}
	clear(d.Lines[len(kept):])
	d.Lines = kept
}

// insert places lines at position i.
func (d *Document) insert(i int, lines ...*Line) {
	d.Lines = append(d.Lines[:i], append(append([]*Line(nil), lines...), d.Lines[i:]...)...)
}

// Tags returns the word numbers of the image lines in order.
func (d *Document) Tags() []int {
	var tags []int
	for _, l := range d.Lines {
		if l.Kind == Image {
			tags = append(tags, l.Tag)
		}
	}
	return tags
}

// Sequence returns the entries the document serialises to: image lines
// give their tag, pause lines a pause, markup nothing.
func (d *Document) Sequence() []index.Entry {
	var entries []index.Entry
	for _, l := range d.Lines {
		switch l.Kind {
		case Image:
			entries = append(entries, index.ImageRef(l.Tag))
		case Pause:
			entries = append(entries, index.PauseMarker())
		}
	}
	return entries
}

// Encode returns the 32-bit sequence stream of the document.
func (d *Document) Encode() ([]byte, error) {
	return index.EncodeSequence(d.Sequence(), index.Width32)
}

// WriteSequence writes the document's sequence.dat into dir atomically.
func (d *Document) WriteSequence(dir string) error {
	b, err := d.Encode()
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(filepath.Join(dir, index.SequenceFile), b, 0644)
}

// WriteTo writes the document lines, newline terminated.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, l := range d.Lines {
		m, err := bw.WriteString(l.Text + "\n")
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Frame returns the lines before the first entry line and after the last
// one, which Render keeps around a new body.
func (d *Document) Frame() (header, footer []string) {
	first, last := -1, -1
	for i, l := range d.Lines {
		if l.Kind != Markup {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		// No entries: split at the closing line if there is one.
		for i, l := range d.Lines {
			if strings.Contains(l.Text, `\end{document}`) {
				first, last = i, i-1
				break
			}
		}
		if first < 0 {
			first, last = len(d.Lines), len(d.Lines)-1
		}
	}
	for _, l := range d.Lines[:first] {
		header = append(header, l.Text)
	}
	for _, l := range d.Lines[last+1:] {
		footer = append(footer, l.Text)
	}
	return header, footer
}

// RenderOptions control the line form produced by Render.
type RenderOptions struct {
	Header []string // preamble lines, DefaultHeader when nil
	Footer []string // closing lines, DefaultFooter when nil
	Scale  float64  // word scale factor, 1 when zero
}

// DefaultHeader is the preamble of a freshly rendered document with word
// numbers shown above each word.
var DefaultHeader = []string{
	`\documentclass[12pt]{article}\usepackage[pdftex]{graphicx}\usepackage{color}\def\wordnumber#1#2{\includegraphics{#2}}`,
	`\def\wordnumber#1#2{\shortstack{\textcolor{red}{#1}\\\includegraphics{#2}}}`,
	`\pagestyle{empty}`,
	`\begin{document}\raggedright\noindent%`,
}

// DefaultFooter closes a rendered document.
var DefaultFooter = []string{`\end{document}`}

// Render returns the line form of entries, as the rasteriser would write it
// for an edited sequence. Parsing the result gives back the same sequence.
func Render(entries []index.Entry, opts RenderOptions) *Document {
	if opts.Header == nil {
		opts.Header = DefaultHeader
	}
	if opts.Footer == nil {
		opts.Footer = DefaultFooter
	}
	if opts.Scale == 0 {
		opts.Scale = 1
	}
	doc := &Document{}
	for _, h := range opts.Header {
		doc.Lines = append(doc.Lines, &Line{Kind: Markup, Text: h})
	}
	for _, e := range entries {
		if e.IsPause() {
			doc.Lines = append(doc.Lines, &Line{Kind: Pause, Text: PauseText(opts.Scale)})
			continue
		}
		doc.Lines = append(doc.Lines, &Line{Kind: Image, Tag: e.Key(), Text: ImageText(e.Key(), opts.Scale)})
	}
	for _, f := range opts.Footer {
		doc.Lines = append(doc.Lines, &Line{Kind: Markup, Text: f})
	}
	return doc
}

// ImageFile returns the rasterised image name of word tag.
func ImageFile(tag int) string {
	return fmt.Sprintf("%0*d.png", tagDigits, tag)
}

// ImageText is the line form of word tag.
func ImageText(tag int, scale float64) string {
	return fmt.Sprintf(`\wordnumber{%d}{%s}\scalebox{%g}[1]{ } %%`, tag, ImageFile(tag), scale)
}

// PauseText is the line form of a pause marker.
func PauseText(scale float64) string {
	return fmt.Sprintf(`%s{\scalebox{%g}[%g]{\raisebox{3pt}[12pt][0pt]{//}}}`, pausePrefix, scale, scale)
}

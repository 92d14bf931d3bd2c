package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/FocuswithJustin/ScanReflow/core/encoder"
	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/raster"
	"github.com/FocuswithJustin/ScanReflow/internal/logging"
	"github.com/FocuswithJustin/ScanReflow/internal/validation"
)

// Word markers in word-flow TeX sources.
const (
	StartWord = "\n%StartWord\n"
	EndWord   = "\n%EndWord\n"
)

// Word is the TeX source of one typeset word and the depth its markers ask
// for.
type Word struct {
	Source string
	Depth  raster.Depth
}

// WordFile is a word-flow source split at its markers.
type WordFile struct {
	Preamble string // everything before the first word, with a newline
	Words    []Word
	End      string // from the last end marker to the end of the file
}

// SplitWords splits src into its preamble, words and trailer. Blank words
// are dropped.
func SplitWords(name string, src []byte) (*WordFile, error) {
	dat := strings.ReplaceAll(string(src), "\r\n", "\n")
	first := strings.Index(dat, StartWord)
	if first < 0 {
		return nil, errors.NewParse(name, 0, "no %StartWord marker")
	}
	last := strings.LastIndex(dat, EndWord)
	if last < 0 {
		return nil, errors.NewParse(name, 0, "no %EndWord marker")
	}
	wf := &WordFile{Preamble: dat[:first] + "\n", End: dat[last:]}
	for _, part := range strings.Split(dat, StartWord)[1:] {
		part += "\n"
		end := strings.Index(part, EndWord)
		if end < 0 {
			return nil, errors.NewParse(name, 0, "%StartWord without a matching %EndWord")
		}
		word := part[:end+1]
		if strings.TrimSpace(word) == "" {
			continue
		}
		wf.Words = append(wf.Words, Word{Source: word, Depth: wordDepth(word)})
	}
	return wf, nil
}

func wordDepth(word string) raster.Depth {
	switch {
	case strings.Contains(word, "%Colour"):
		return raster.Colour
	case strings.Contains(word, "%Grey"):
		return raster.Grey
	}
	return raster.Mono
}

// EncodeWords encodes word-flow TeX files. Each file is one document of
// words, identical word sources share a key, and every unique word is
// typeset once, as page key+1 of a single LaTeX run.
func (p *Pipeline) EncodeWords(ctx context.Context, files []string) (*Report, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.NewValidation("input", "no documents given")
	}

	enc := encoder.New()
	var preamble, end string
	var unique []string
	for i, name := range files {
		if err := validation.ValidatePath(name); err != nil {
			return nil, errors.NewValidation("input", err.Error())
		}
		src, err := os.ReadFile(name)
		if err != nil {
			return nil, errors.NewIO("read", name, err)
		}
		wf, err := SplitWords(name, src)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			if err := validation.ValidateTeX(name, []byte(wf.Preamble)); err != nil {
				return nil, err
			}
			preamble = wf.Preamble
		} else if wf.Preamble != preamble {
			return nil, errors.NewValidation(name, "all TeX files must contain identical material before the first %StartWord")
		}
		end = wf.End

		enc.StartDocument()
		for _, w := range wf.Words {
			before := enc.Len()
			if _, err := enc.AddContent([]byte(w.Source), w.Depth); err != nil {
				return nil, errors.Wrapf(err, "input %s", name)
			}
			if enc.Len() > before {
				unique = append(unique, w.Source)
			}
		}
	}
	docs, chars, n := enc.Stats()
	logging.InfoContext(ctx, "split words", "docs", docs, "chars", chars, "unique", n)

	ws, err := p.workspace("reflow-words-")
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	tools := p.tools()
	g := p.Config.Geometry(false)
	start, err := tools.Preamble(ctx, ws.Dir, g)
	if err != nil {
		return nil, err
	}
	logging.Stage(ctx, "typeset", "words", len(unique))
	ps, err := typeset(ctx, tools, ws.Dir, g, start+preamble+strings.Join(unique, "\n")+end)
	if err != nil {
		return nil, err
	}
	logging.Stage(ctx, "rasterise", "dpi", p.Config.DPI)
	if err := rasterise(ctx, tools, ws.Dir, g, "png16", p.Config.DPI, ps); err != nil {
		return nil, err
	}
	pages, err := pagesIn(ws.Dir)
	if err != nil {
		return nil, err
	}
	if len(pages) < len(unique) {
		return nil, errors.NewValidation("input", fmt.Sprintf("Not enough pages were generated (maybe some of your words did not actually generate pages?): %d pages for %d words", len(pages), len(unique)))
	}
	logging.Stage(ctx, "trim", "pages", len(pages))
	for key := range unique {
		img, err := raster.LoadPNG(pages[key])
		if err != nil {
			return nil, err
		}
		if err := enc.Attach(key, img); err != nil {
			return nil, err
		}
	}

	res, err := enc.Finish()
	if err != nil {
		return nil, err
	}
	return p.deliver(ctx, ws, BaseFont, res)
}

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/FocuswithJustin/ScanReflow/core/encoder"
	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/raster"
	"github.com/FocuswithJustin/ScanReflow/internal/fileutil"
	"github.com/FocuswithJustin/ScanReflow/internal/logging"
	"github.com/FocuswithJustin/ScanReflow/internal/validation"
)

// PSOnlyMessage is reported after a PostScript-only run.
const PSOnlyMessage = "Made *.ps files - you now need to run this on a more powerful machine, without PostScript-only mode and with whole slides off"

// EncodeRaster rasterises each input into one document and encodes the
// pages. Inputs are .tex, .ps and .pdf files, and positive numbers that
// multiply the DPI for the .ps and .pdf inputs after them.
func (p *Pipeline) EncodeRaster(ctx context.Context, args []string) (*Report, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	inputs, err := validation.ClassifyInputs(args)
	if err != nil {
		return nil, err
	}
	hasTeX := slices.ContainsFunc(inputs, func(in validation.Input) bool { return in.Kind == validation.InputTeX })

	base, whole := BaseFont, false
	if !hasTeX && p.Options.WholeSlides {
		base, whole = BaseSlides, true
	}
	g := p.Config.Geometry(whole)

	ws, err := p.workspace("reflow-")
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	tools := p.tools()
	var preamble string
	if hasTeX {
		if preamble, err = tools.Preamble(ctx, ws.Dir, g); err != nil {
			return nil, err
		}
	}

	enc := encoder.New()
	dpi := p.Config.DPI
	var made []string
	for i, in := range inputs {
		if in.Kind == validation.InputScale {
			dpi *= in.Scale
			continue
		}
		dir := ws.Path(fmt.Sprintf("doc%04d", i))
		if err := os.Mkdir(dir, 0755); err != nil {
			return nil, errors.NewIO("create", dir, err)
		}
		logging.Stage(ctx, "prepare", "input", in.Arg, "kind", in.Kind.String())
		gsInput, err := p.prepare(ctx, tools, dir, g, preamble, in)
		if err != nil {
			return nil, errors.Wrapf(err, "input %s", in.Arg)
		}

		if p.Options.PSOnly {
			out, err := keepPS(in, gsInput)
			if err != nil {
				return nil, err
			}
			if out != "" {
				made = append(made, out)
			}
			continue
		}

		logging.Stage(ctx, "rasterise", "input", in.Arg, "dpi", dpi)
		if err := rasterise(ctx, tools, dir, g, "png16m", dpi, gsInput); err != nil {
			return nil, errors.Wrapf(err, "input %s", in.Arg)
		}
		pages, err := pagesIn(dir)
		if err != nil {
			return nil, err
		}
		enc.StartDocument()
		for _, page := range pages {
			img, err := raster.LoadPNG(page)
			if err != nil {
				return nil, err
			}
			if _, _, err := enc.Add(img, raster.Auto); err != nil {
				return nil, errors.Wrapf(err, "input %s", in.Arg)
			}
		}
		docs, chars, unique := enc.Stats()
		logging.InfoContext(ctx, "encoded document", "input", in.Arg, "docs", docs, "chars", chars, "unique", unique)
		if !ws.Kept() {
			os.RemoveAll(dir)
		}
	}

	if p.Options.PSOnly {
		return &Report{BaseName: base, Files: made, Lines: []string{PSOnlyMessage}}, nil
	}
	if docs, _, _ := enc.Stats(); docs == 0 {
		return nil, errors.NewValidation("input", "no documents given")
	}
	res, err := enc.Finish()
	if err != nil {
		return nil, err
	}
	return p.deliver(ctx, ws, base, res)
}

// prepare turns one input into a file Ghostscript can read, in dir.
func (p *Pipeline) prepare(ctx context.Context, tools Tools, dir string, g Geometry, preamble string, in validation.Input) (string, error) {
	switch in.Kind {
	case validation.InputTeX:
		src, err := os.ReadFile(in.Arg)
		if err != nil {
			return "", errors.NewIO("read", in.Arg, err)
		}
		if err := validation.ValidateTeX(in.Arg, src); err != nil {
			return "", err
		}
		return typeset(ctx, tools, dir, g, preamble+string(src))
	case validation.InputPS, validation.InputPDF:
		if err := checkType(in.Arg); err != nil {
			return "", err
		}
		dst := filepath.Join(dir, "tmp"+strings.ToLower(filepath.Ext(in.Arg)))
		return dst, fileutil.CopyFile(in.Arg, dst)
	}
	return "", errors.NewUnsupported("input", in.Kind.String())
}

// checkType refuses a .ps or .pdf input whose content says otherwise.
func checkType(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewIO("open", path, err)
	}
	defer f.Close()
	_, err = validation.ValidateFileType(f, path)
	return err
}

// typeset writes tmp.tex into dir and runs LaTeX and dvips over it.
func typeset(ctx context.Context, tools Tools, dir string, g Geometry, src string) (string, error) {
	path := filepath.Join(dir, "tmp.tex")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		return "", errors.NewIO("write", path, err)
	}
	if err := tools.Latex(ctx, dir); err != nil {
		return "", errors.Wrap(err, "TeX error")
	}
	if err := tools.Dvips(ctx, dir, g); err != nil {
		return "", errors.Wrap(err, "dvips error")
	}
	return filepath.Join(dir, "tmp.ps"), nil
}

func rasterise(ctx context.Context, tools Tools, dir string, g Geometry, device string, dpi float64, input string) error {
	f, err := os.Open(input)
	if err != nil {
		return errors.NewIO("open", input, err)
	}
	defer f.Close()
	return errors.Wrap(tools.Rasterise(ctx, dir, g, device, dpi, f), "gs error")
}

// pagesIn returns the rendered pages in dir in page order.
func pagesIn(dir string) ([]string, error) {
	pages, err := filepath.Glob(filepath.Join(dir, "tmp*.png"))
	if err != nil {
		return nil, err
	}
	slices.Sort(pages)
	return pages, nil
}

// keepPS copies the PostScript made for in next to it. A .ps input is
// already there.
func keepPS(in validation.Input, ps string) (string, error) {
	switch in.Kind {
	case validation.InputPS:
		return "", nil
	case validation.InputPDF:
		return "", errors.NewUnsupported("input", fmt.Sprintf("PostScript-only mode cannot convert %s", in.Arg))
	}
	dst := strings.TrimSuffix(in.Arg, filepath.Ext(in.Arg)) + ".ps"
	if err := fileutil.CopyFile(ps, dst); err != nil {
		return "", err
	}
	return dst, nil
}

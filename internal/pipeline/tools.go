package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/runner"
)

// ToolRunner executes one external command. *runner.Runner implements it.
type ToolRunner interface {
	Run(ctx context.Context, c runner.Command) (*runner.Result, error)
}

var _ ToolRunner = (*runner.Runner)(nil)

// Tools wraps the external collaborators with the argv each one expects.
type Tools struct {
	Config Config
	Runner ToolRunner
}

// helper runs the papersize helper for target with the page geometry in
// its environment.
func (t Tools) helper(ctx context.Context, dir string, g Geometry, target string) (string, error) {
	res, err := t.Runner.Run(ctx, runner.Command{
		Name: t.Config.Python,
		Args: []string{t.Config.PapersizeHelper, formatFloat(t.Config.BaseSizePoints), formatFloat(g.FontSizePt), target},
		Dir:  dir,
		Env:  g.HelperEnv(),
	})
	if err != nil {
		return "", err
	}
	return string(res.Stdout), nil
}

// Preamble returns the text prepended to every TeX source: the document
// class, the helper's geometry settings and the T1 font encoding.
func (t Tools) Preamble(ctx context.Context, dir string, g Geometry) (string, error) {
	out, err := t.helper(ctx, dir, g, "tex")
	if err != nil {
		return "", errors.Wrap(err, "papersize preamble")
	}
	return t.Config.DocumentClass + out + `\usepackage[T1]{fontenc}` + "\n", nil
}

// Latex typesets tmp.tex in dir into tmp.dvi.
func (t Tools) Latex(ctx context.Context, dir string) error {
	_, err := t.Runner.Run(ctx, runner.Command{
		Name:  t.Config.Latex,
		Args:  []string{"-interaction=nonstopmode", "tmp.tex"},
		Dir:   dir,
		Stdin: strings.NewReader(""),
	})
	return err
}

// Dvips converts tmp.dvi in dir to tmp.ps using the command line the
// helper prints for the page geometry.
func (t Tools) Dvips(ctx context.Context, dir string, g Geometry) error {
	out, err := t.helper(ctx, dir, g, "tmp.dvi")
	if err != nil {
		return errors.Wrap(err, "dvips command")
	}
	argv := strings.Fields(out)
	if len(argv) == 0 {
		return errors.NewExternalTool(t.Config.PapersizeHelper, []string{"tmp.dvi"}, 0, "", fmt.Errorf("no dvips command printed"))
	}
	argv = append(argv, "-o", "tmp.ps", "-D", formatFloat(g.DPI))
	_, err = t.Runner.Run(ctx, runner.Command{Name: argv[0], Args: argv[1:], Dir: dir})
	return err
}

// Rasterise renders the PostScript or PDF on input to tmp%08d.png pages in
// dir. device is png16m for arbitrary input and png16 for typeset words.
func (t Tools) Rasterise(ctx context.Context, dir string, g Geometry, device string, dpi float64, input io.Reader) error {
	_, err := t.Runner.Run(ctx, runner.Command{
		Name:  t.Config.Ghostscript,
		Args:  g.GhostscriptArgs(device, dpi),
		Dir:   dir,
		Stdin: input,
	})
	return err
}

// Convert runs the bitmap converter in dir to build mbm from args, each a
// depth flag followed by a .bmp file name.
func (t Tools) Convert(ctx context.Context, dir, mbm string, args []string) error {
	argv := append(append(append([]string(nil), t.Config.Converter[1:]...), mbm), args...)
	_, err := t.Runner.Run(ctx, runner.Command{Name: t.Config.Converter[0], Args: argv, Dir: dir})
	return err
}

// ConverterCommand returns the converter command line for printing.
func (t Tools) ConverterCommand(mbm string, args []string) string {
	var b bytes.Buffer
	b.WriteString(strings.Join(t.Config.Converter, " "))
	b.WriteString(" " + mbm)
	for _, a := range args {
		b.WriteString(" " + a)
	}
	return b.String()
}

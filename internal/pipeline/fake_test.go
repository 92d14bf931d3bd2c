package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	rerrors "github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/raster"
	"github.com/FocuswithJustin/ScanReflow/core/runner"
)

const (
	fakePreamble = "\\usepackage{fake-geometry}\n"
	fakeDvips    = "dvips -T 162.56mm,40.64mm tmp.dvi\n"
)

// fakeTools stands in for the external tools. Each gs call renders the
// next entry of pages into the working directory.
type fakeTools struct {
	t     *testing.T
	pages [][]image.Image
	fail  string // tool name that exits non-zero

	calls []runner.Command
	texts []string // tmp.tex contents seen by latex
	gs    int
}

func (f *fakeTools) Run(_ context.Context, c runner.Command) (*runner.Result, error) {
	f.calls = append(f.calls, c)
	if c.Name == f.fail {
		return nil, rerrors.NewExternalTool(c.Name, c.Args, 1, "fake failure", nil)
	}
	switch c.Name {
	case "python":
		switch c.Args[len(c.Args)-1] {
		case "tex":
			return &runner.Result{Stdout: []byte(fakePreamble)}, nil
		case "tmp.dvi":
			return &runner.Result{Stdout: []byte(fakeDvips)}, nil
		}
	case "latex":
		src, err := os.ReadFile(filepath.Join(c.Dir, "tmp.tex"))
		if err != nil {
			f.t.Fatalf("latex without tmp.tex: %v", err)
		}
		f.texts = append(f.texts, string(src))
		f.write(c.Dir, "tmp.dvi", "dvi")
	case "dvips":
		f.write(c.Dir, "tmp.ps", "%!PS")
	case "gs":
		if f.gs >= len(f.pages) {
			f.t.Fatalf("unexpected gs call %d", f.gs)
		}
		for i, img := range f.pages[f.gs] {
			if err := raster.SavePNG(filepath.Join(c.Dir, fmt.Sprintf("tmp%08d.png", i+1)), img); err != nil {
				f.t.Fatalf("SavePNG failed: %v", err)
			}
		}
		f.gs++
	case "wine":
		// wine Bmconv.exe <mbm> <flag><file>...
		f.write(c.Dir, c.Args[1], strings.Join(c.Args[2:], " "))
	}
	return &runner.Result{}, nil
}

func (f *fakeTools) write(dir, name, content string) {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		f.t.Fatalf("fake tool write failed: %v", err)
	}
}

// named returns the calls to tool.
func (f *fakeTools) named(tool string) []runner.Command {
	var out []runner.Command
	for _, c := range f.calls {
		if c.Name == tool {
			out = append(out, c)
		}
	}
	return out
}

// shape returns a white page with a black bar n pixels tall, which crops
// to a distinct 1xn bitmap for each n.
func shape(n int) image.Image {
	return tinted(n, color.RGBA{A: 0xff})
}

func tinted(n int, ink color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	for y := 0; y < n; y++ {
		img.SetRGBA(3, y, ink)
	}
	return img
}

func pagesOf(ns ...int) []image.Image {
	out := make([]image.Image, len(ns))
	for i, n := range ns {
		out[i] = shape(n)
	}
	return out
}

// newTestPipeline returns a pipeline writing to a fresh output directory.
func newTestPipeline(t *testing.T, fake *fakeTools) *Pipeline {
	t.Helper()
	fake.t = t
	opts := DefaultOptions()
	opts.OutputDir = t.TempDir()
	opts.WorkDir = t.TempDir()
	return &Pipeline{Config: DefaultConfig(), Options: opts, Runner: fake}
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

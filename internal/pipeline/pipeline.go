package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/ScanReflow/core/blobstore"
	"github.com/FocuswithJustin/ScanReflow/core/encoder"
	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/runner"
)

// Base names of the converter output.
const (
	BaseFont   = "font"
	BaseSlides = "slides"
)

// DefaultPackage is the archive the index files and bitmaps are zipped into.
const DefaultPackage = "to-epoc.zip"

// Options select the optional behaviour of an encode.
type Options struct {
	OutputDir     string // "." when empty
	WorkDir       string // parent of the scratch directory
	WholeSlides   bool   // .ps/.pdf-only input holds whole slides, not lines
	PSOnly        bool   // stop after making one .ps per input
	DeferConvert  bool   // record the converter run in the catalog instead
	Images        bool   // also write images.dat
	Payload       string // images.dat payload kind
	Codec         string // images.dat codec
	Package       string // archive name, no packaging when empty
	KeepOriginals bool   // leave packaged files in place
	KeepWorkspace bool
}

// DefaultOptions matches the behaviour of a plain encode.
func DefaultOptions() Options {
	return Options{
		OutputDir:   ".",
		WholeSlides: true,
		Payload:     encoder.PayloadXBM,
		Codec:       "zlib",
		Package:     DefaultPackage,
	}
}

// Pipeline runs encodes and edits against one configuration.
type Pipeline struct {
	Config  Config
	Options Options
	Runner  ToolRunner
}

// New returns a pipeline that runs real tools.
func New(cfg Config, opts Options) *Pipeline {
	return &Pipeline{Config: cfg, Options: opts, Runner: runner.New()}
}

// Report describes a finished run.
type Report struct {
	BaseName string
	RunID    uuid.UUID // set when conversion was deferred
	Result   *encoder.Result
	Files    []string // files made in the output directory
	Archive  string
	WorkDir  string // kept scratch directory, if any
	Commands []string
	Warnings []error
	Lines    []string
}

// Print writes the report lines to w.
func (r *Report) Print(w io.Writer) error {
	for _, l := range r.Lines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) tools() Tools {
	return Tools{Config: p.Config, Runner: p.Runner}
}

func (p *Pipeline) outputDir() string {
	if p.Options.OutputDir == "" {
		return "."
	}
	return p.Options.OutputDir
}

func (p *Pipeline) output(name string) string {
	return filepath.Join(p.outputDir(), name)
}

// workspace creates the scratch directory, keeping it when asked to.
func (p *Pipeline) workspace(pattern string) (*runner.Workspace, error) {
	ws, err := runner.NewWorkspace(p.Options.WorkDir, pattern)
	if err != nil {
		return nil, err
	}
	if p.Options.KeepWorkspace {
		ws.Keep()
	}
	return ws, nil
}

func (p *Pipeline) check(ctx context.Context) error {
	if err := p.Config.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Options.Images {
		if _, err := blobstore.CodecByName(p.Options.Codec); err != nil {
			return err
		}
		switch p.Options.Payload {
		case "", encoder.PayloadXBM, encoder.PayloadPPM:
		default:
			return errors.NewUnsupported("payload", fmt.Sprintf("%q (want xbm or ppm)", p.Options.Payload))
		}
	}
	return os.MkdirAll(p.outputDir(), 0755)
}

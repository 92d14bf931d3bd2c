package pipeline

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/FocuswithJustin/ScanReflow/core/edit"
	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/index"
	"github.com/FocuswithJustin/ScanReflow/internal/fileutil"
	"github.com/FocuswithJustin/ScanReflow/internal/logging"
)

// ReEditWarning is printed when a backup from an earlier edit exists.
var ReEditWarning = []string{
	"WARNING!!!  " + edit.BackupFile + " already exists.",
	"This probably means you are running the edit for a second time.",
	"Note that your edits WILL BE ADDED to existing edits",
	"(in particular, existing deletions will not be reverted)",
	"unless you move " + edit.BackupFile + " to " + edit.EnlargedFile + " before editing again.",
	"----------------------------------",
}

// EditDone is printed after a successful edit.
var EditDone = []string{
	"All done.  You now need to run the reflow again, specifying",
	"the final scale factor, possibly preceded by paper type,",
	"and no other options or file names.",
	"",
	"Note: If you edit again, further edits will be ADDED to the",
	"edits you've made.  If you don't want this, move",
	edit.BackupFile + " to " + edit.EnlargedFile + " before editing again.",
}

// EditOptions configure one edit run.
type EditOptions struct {
	Dir          string    // holds enlarged.tex and the %09d.png word images
	Instructions io.Reader // the edit language text
	Rerender     bool      // also write the edited document back to enlarged.tex
	Messages     io.Writer // receives warnings as they happen, may be nil
}

// EditColours returns the edit colour table: the defaults plus the configured
// entries.
func (c Config) EditColours() (map[string]color.RGBA, error) {
	colours := edit.DefaultColours()
	extra, err := edit.ParseColours(c.Colours)
	if err != nil {
		return nil, errors.NewValidation("colours", err.Error())
	}
	maps.Copy(colours, extra)
	return colours, nil
}

// Edit applies the instructions to the document in opts.Dir and writes the
// 32-bit sequence.dat there. The first edit backs up enlarged.tex; a later
// one warns that edits accumulate.
func (p *Pipeline) Edit(ctx context.Context, opts EditOptions) (*Report, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	say := func(lines ...string) {
		if opts.Messages == nil {
			return
		}
		for _, l := range lines {
			fmt.Fprintln(opts.Messages, l)
		}
	}

	if opts.Instructions == nil {
		return nil, errors.NewValidation("instructions", "no instructions given")
	}
	colours, err := p.Config.EditColours()
	if err != nil {
		return nil, err
	}
	enlarged := filepath.Join(dir, edit.EnlargedFile)
	doc, err := edit.ReadDocumentFile(enlarged)
	if err != nil {
		return nil, err
	}
	backup := filepath.Join(dir, edit.BackupFile)
	if fileutil.Exists(backup) {
		say(ReEditWarning...)
		logging.WarnContext(ctx, "re-editing, edits accumulate", "backup", backup)
	} else if err := fileutil.CopyFile(enlarged, backup); err != nil {
		return nil, errors.NewIO("back up", enlarged, err)
	}
	text, err := io.ReadAll(opts.Instructions)
	if err != nil {
		return nil, errors.NewIO("read", "instructions", err)
	}

	in := &edit.Interpreter{
		Colours:   colours,
		Recolorer: edit.PNGRecolorer{Dir: dir},
		Warn: func(err error) {
			logging.EditWarning(ctx, err)
			say("WARNING: " + err.Error())
		},
	}
	logging.Stage(ctx, "edit", "document", enlarged, "lines", len(doc.Lines))
	res, err := in.Run(doc, string(text))
	if err != nil {
		return nil, err
	}
	if err := doc.WriteSequence(dir); err != nil {
		return nil, err
	}

	rep := &Report{Warnings: res.Warnings, Files: []string{index.SequenceFile}}
	if opts.Rerender {
		var b strings.Builder
		if _, err := doc.WriteTo(&b); err != nil {
			return nil, err
		}
		if err := fileutil.WriteFileAtomic(enlarged, []byte(b.String()), 0644); err != nil {
			return nil, err
		}
		rep.Files = append(rep.Files, edit.EnlargedFile)
	}
	logging.InfoContext(ctx, "edited", "tokens", res.Tokens, "entries", len(res.Sequence), "warnings", len(res.Warnings))
	rep.Lines = slices.Clone(EditDone)
	return rep, nil
}

package pipeline

import (
	"context"
	"os"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/ScanReflow/core/catalog"
	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/internal/logging"
)

// ConvertDeferred runs the converter for runs recorded in the catalog in
// dir, or for every pending run when ids is empty. Each run's output is
// packaged in its output directory and its bitmaps are removed.
func (p *Pipeline) ConvertDeferred(ctx context.Context, dir string, ids ...uuid.UUID) (*Report, error) {
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}
	cat, err := catalog.Open(dir)
	if err != nil {
		return nil, err
	}
	defer cat.Close()

	var runs []*catalog.Run
	if len(ids) == 0 {
		if runs, err = cat.Runs(ctx, true); err != nil {
			return nil, err
		}
	}
	for _, id := range ids {
		run, err := cat.Run(ctx, id)
		if err != nil {
			return nil, err
		}
		if run.Converted {
			return nil, errors.NewValidation("run", "run "+id.String()+" is already converted")
		}
		runs = append(runs, run)
	}

	rep := &Report{}
	if len(runs) == 0 {
		rep.Lines = append(rep.Lines, "No pending conversions in "+cat.Path())
		return rep, nil
	}
	for _, run := range runs {
		if err := p.convertRun(ctx, cat, run, rep); err != nil {
			return nil, errors.Wrapf(err, "run %s", run.ID)
		}
	}
	return rep, nil
}

func (p *Pipeline) convertRun(ctx context.Context, cat *catalog.Catalog, run *catalog.Run, rep *Report) error {
	ctx = logging.WithRunID(ctx, run.ID.String())
	images, err := cat.Images(ctx, run.ID)
	if err != nil {
		return err
	}
	batches, err := cat.Batches(ctx, run.ID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(run.OutputDir, 0755); err != nil {
		return errors.NewIO("create", run.OutputDir, err)
	}
	var mbms []string
	for _, b := range batches {
		if err := p.convertTo(ctx, run.WorkDir, run.OutputDir, b.File, catalog.ConverterArgs(images, b)); err != nil {
			return err
		}
		mbms = append(mbms, b.File)
	}
	if err := cat.MarkConverted(ctx, run.ID); err != nil {
		return err
	}

	rep.BaseName = run.BaseName
	rep.RunID = run.ID
	rep.Files = append(outputFiles(run.OutputDir), mbms...)
	rep.Lines = append(rep.Lines, "Made "+run.BaseName+"*.mbm")
	if err := p.pack(rep, run.OutputDir, rep.Files); err != nil {
		return err
	}
	if !p.Options.KeepWorkspace {
		if err := os.RemoveAll(run.WorkDir); err != nil {
			return errors.NewIO("remove", run.WorkDir, err)
		}
	}
	logging.InfoContext(ctx, "converted deferred run", "batches", len(batches), "images", len(images))
	return nil
}

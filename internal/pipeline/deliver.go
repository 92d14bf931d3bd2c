package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/FocuswithJustin/ScanReflow/core/blobstore"
	"github.com/FocuswithJustin/ScanReflow/core/catalog"
	"github.com/FocuswithJustin/ScanReflow/core/encoder"
	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/index"
	"github.com/FocuswithJustin/ScanReflow/core/runner"
	"github.com/FocuswithJustin/ScanReflow/internal/archive"
	"github.com/FocuswithJustin/ScanReflow/internal/fileutil"
	"github.com/FocuswithJustin/ScanReflow/internal/logging"
	"github.com/FocuswithJustin/ScanReflow/internal/validation"
)

// ImagesMessage is reported after images.dat is written.
const ImagesMessage = "Made images.dat (compressed XBM for XBMshow.py)"

// deliver converts the dictionary images of res, or records them for
// later conversion, then writes the index files and packages the output.
func (p *Pipeline) deliver(ctx context.Context, ws *runner.Workspace, base string, res *encoder.Result) (*Report, error) {
	if err := validation.ValidateBaseName(base); err != nil {
		return nil, err
	}
	rep := &Report{BaseName: base, Result: res}
	tools := p.tools()

	logging.Stage(ctx, "bitmaps", "images", len(res.Glyphs))
	if err := res.WriteBMPs(ws.Dir); err != nil {
		return nil, err
	}

	var mbms []string
	if p.Options.DeferConvert {
		ws.Keep()
		rep.WorkDir = ws.Dir
		id, err := p.record(ctx, ws.Dir, base, res)
		if err != nil {
			return nil, err
		}
		rep.RunID = id
		for _, b := range res.Batches() {
			rep.Commands = append(rep.Commands, tools.ConverterCommand(b.FileName(base), res.ConverterArgs(b)))
		}
	} else {
		for _, b := range res.Batches() {
			name := b.FileName(base)
			if err := p.convert(ctx, ws.Dir, name, res.ConverterArgs(b)); err != nil {
				return nil, err
			}
			mbms = append(mbms, name)
		}
	}

	written, err := res.WriteFiles(p.outputDir())
	if err != nil {
		return nil, err
	}
	files := append(written, mbms...)
	rep.Files = files
	rep.Lines = append(rep.Lines, res.Summary()...)

	if p.Options.DeferConvert {
		rep.Lines = append(rep.Lines, rep.Commands...)
		rep.Lines = append(rep.Lines,
			fmt.Sprintf("Made bmconv commands (which should be run using the *.bmp files in %s)", ws.Dir),
			fmt.Sprintf("Recorded run %s in %s", rep.RunID, p.output(catalog.File)))
	} else {
		rep.Lines = append(rep.Lines, "Made "+base+"*.mbm")
		if err := p.pack(rep, p.outputDir(), files); err != nil {
			return nil, err
		}
	}

	if p.Options.Images {
		if err := p.writeImages(ctx, res); err != nil {
			return nil, err
		}
		rep.Files = append(rep.Files, blobstore.ImagesFile)
		rep.Lines = append(rep.Lines, ImagesMessage)
	}
	return rep, nil
}

// convert runs one converter batch in dir and moves its output to the
// output directory.
func (p *Pipeline) convert(ctx context.Context, dir, mbm string, args []string) error {
	return p.convertTo(ctx, dir, p.outputDir(), mbm, args)
}

func (p *Pipeline) convertTo(ctx context.Context, dir, out, mbm string, args []string) error {
	logging.Stage(ctx, "convert", "file", mbm, "images", len(args))
	if err := p.tools().Convert(ctx, dir, mbm, args); err != nil {
		return errors.Wrap(err, "bitmap converter exited with an error")
	}
	return fileutil.MoveFile(filepath.Join(dir, mbm), filepath.Join(out, mbm))
}

// record stores a deferred conversion in the catalog of the output
// directory.
func (p *Pipeline) record(ctx context.Context, workDir, base string, res *encoder.Result) (uuid.UUID, error) {
	out, err := filepath.Abs(p.outputDir())
	if err != nil {
		return uuid.Nil, err
	}
	cat, err := catalog.Open(out)
	if err != nil {
		return uuid.Nil, err
	}
	defer cat.Close()

	run := catalog.NewRun(base, workDir, out)
	images := make([]catalog.Image, len(res.Glyphs))
	for k, g := range res.Glyphs {
		images[k] = catalog.Image{
			Key:    k,
			Digest: g.Digest.String(),
			Flag:   g.Depth.Flag(),
			File:   blobstore.BMPName(k),
			Uses:   g.Uses,
		}
	}
	var batches []catalog.Batch
	for _, b := range res.Batches() {
		batches = append(batches, catalog.Batch{Index: b.Index, File: b.FileName(base), Start: b.Start, End: b.End})
	}
	if err := cat.Record(ctx, run, images, batches); err != nil {
		return uuid.Nil, err
	}
	logging.InfoContext(ctx, "recorded deferred conversion", "run_id", run.ID.String(), "images", len(images), "batches", len(batches))
	return run.ID, nil
}

// pack archives files from dir into the configured package and removes
// them unless asked to keep them.
func (p *Pipeline) pack(rep *Report, dir string, files []string) error {
	if p.Options.Package == "" || len(files) == 0 {
		return nil
	}
	dst := filepath.Join(dir, p.Options.Package)
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(dir, f)
	}
	format, err := archive.Create(dst, paths)
	if err != nil {
		return err
	}
	if !p.Options.KeepOriginals {
		for _, path := range paths {
			if err := os.Remove(path); err != nil {
				return errors.NewIO("remove", path, err)
			}
		}
	}
	rep.Archive = dst
	verb := "Zipped"
	if format != archive.FormatZip {
		verb = "Packed"
	}
	rep.Lines = append(rep.Lines, fmt.Sprintf("%s into %s for transfer to the device", verb, p.Options.Package))
	return nil
}

func (p *Pipeline) writeImages(ctx context.Context, res *encoder.Result) error {
	codec, err := blobstore.CodecByName(p.Options.Codec)
	if err != nil {
		return err
	}
	payloads, err := res.Payloads(p.Options.Payload)
	if err != nil {
		return err
	}
	path := p.output(blobstore.ImagesFile)
	if err := blobstore.WriteFile(path, payloads, codec); err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil {
		logging.InfoContext(ctx, "wrote blob store", "file", path, "blobs", len(payloads), "size", humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

// outputFiles lists the index files present in dir.
func outputFiles(dir string) []string {
	var files []string
	for _, name := range []string{index.ContentsFile, index.SequenceFile} {
		if fileutil.Exists(filepath.Join(dir, name)) {
			files = append(files, name)
		}
	}
	return files
}

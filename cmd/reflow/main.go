// Command reflow turns TeX, PostScript and PDF documents into slide sets
// for a handheld viewer, and edits the word order of reflowed documents.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/FocuswithJustin/ScanReflow/core/blobstore"
	"github.com/FocuswithJustin/ScanReflow/core/catalog"
	"github.com/FocuswithJustin/ScanReflow/core/decoder"
	"github.com/FocuswithJustin/ScanReflow/core/index"
	"github.com/FocuswithJustin/ScanReflow/internal/archive"
	"github.com/FocuswithJustin/ScanReflow/internal/fileutil"
	"github.com/FocuswithJustin/ScanReflow/internal/logging"
	"github.com/FocuswithJustin/ScanReflow/internal/pipeline"
)

const version = "1.0.0"

// Injectable for testing.
var (
	stdin     io.Reader = os.Stdin
	newRunner           = func(p *pipeline.Pipeline) pipeline.ToolRunner { return p.Runner }
)

// CLI defines the command-line interface for reflow.
type CLI struct {
	Config    kong.ConfigFlag `help:"JSON configuration file" type:"path"`
	LogLevel  string          `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string          `name:"log-format" default:"text" enum:"text,json" help:"Log format"`

	Device DeviceFlags `embed:""`

	Encode      EncodeCmd      `cmd:"" help:"Rasterise .tex, .ps and .pdf documents into a slide set"`
	EncodeWords EncodeWordsCmd `cmd:"" name:"encode-words" help:"Typeset %StartWord/%EndWord TeX files word by word"`
	Convert     ConvertCmd     `cmd:"" help:"Run deferred bitmap conversions recorded in the catalog"`
	Edit        EditCmd        `cmd:"" help:"Apply edit instructions to enlarged.tex and write sequence.dat"`
	Show        ShowCmd        `cmd:"" help:"Show the documents and images of an encoded directory"`
	Package     PackageGroup   `cmd:"" help:"Package operations"`
	Version     VersionCmd     `cmd:"" help:"Print version information"`
}

// DeviceFlags override the device and typesetting defaults.
type DeviceFlags struct {
	DeviceWidth     int               `name:"device-width" help:"Device screen width in pixels (640)"`
	DeviceHeight    int               `name:"device-height" help:"Device screen height in pixels (480)"`
	LinesPerScreen  int               `name:"lines-per-screen" help:"Text lines per screen (3)"`
	BaseSizePoints  float64           `name:"base-size-points" help:"Font size the TeX documents are written at (25)"`
	DocumentClass   string            `name:"document-class" help:"LaTeX document class line"`
	MaxSymbolHeight float64           `name:"max-symbol-height" help:"Document lines the tallest symbol takes (1.67)"`
	DPI             float64           `name:"dpi" help:"Rasterisation resolution (100)"`
	Python          string            `name:"python" help:"Python interpreter for the papersize helper"`
	PapersizeHelper string            `name:"papersize-helper" help:"Path to latex-papersize.py" type:"path"`
	Latex           string            `name:"latex" help:"LaTeX command"`
	Ghostscript     string            `name:"ghostscript" help:"Ghostscript command"`
	Converter       []string          `name:"converter" help:"Bitmap converter command and leading arguments"`
	Colours         map[string]string `name:"colours" help:"Extra edit colours as name=#rgb pairs"`
}

// Config returns the defaults with the given flags applied.
func (d DeviceFlags) Config() pipeline.Config {
	c := pipeline.DefaultConfig()
	setInt(&c.DeviceWidth, d.DeviceWidth)
	setInt(&c.DeviceHeight, d.DeviceHeight)
	setInt(&c.LinesPerScreen, d.LinesPerScreen)
	setFloat(&c.BaseSizePoints, d.BaseSizePoints)
	setFloat(&c.MaxSymbolHeight, d.MaxSymbolHeight)
	setFloat(&c.DPI, d.DPI)
	setString(&c.DocumentClass, d.DocumentClass)
	setString(&c.Python, d.Python)
	setString(&c.PapersizeHelper, d.PapersizeHelper)
	setString(&c.Latex, d.Latex)
	setString(&c.Ghostscript, d.Ghostscript)
	if len(d.Converter) > 0 {
		c.Converter = d.Converter
	}
	c.Colours = d.Colours
	return c
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// OutputFlags are shared by the encode commands.
type OutputFlags struct {
	OutputDir    string `name:"output-dir" short:"o" default:"." help:"Directory for the index files and package" type:"path"`
	WorkDir      string `name:"work-dir" help:"Parent of the scratch directory" type:"path"`
	KeepWorkDir  bool   `name:"keep-work-dir" help:"Do not remove the scratch directory"`
	DeferConvert bool   `name:"defer-convert" help:"Record the bitmap conversion in catalog.db instead of running it"`
	Images       bool   `name:"images" help:"Also write images.dat for the paging viewer"`
	Payload      string `name:"payload" default:"xbm" enum:"xbm,ppm" help:"images.dat payload kind"`
	Codec        string `name:"codec" default:"zlib" enum:"zlib,xz,none" help:"images.dat codec"`
	Package      string `name:"package" default:"to-epoc.zip" help:"Archive for transfer to the device, none when empty"`
	Keep         bool   `name:"keep" help:"Keep the packaged files next to the archive"`
}

func (o OutputFlags) options() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.OutputDir = o.OutputDir
	opts.WorkDir = o.WorkDir
	opts.KeepWorkspace = o.KeepWorkDir
	opts.DeferConvert = o.DeferConvert
	opts.Images = o.Images
	opts.Payload = o.Payload
	opts.Codec = o.Codec
	opts.Package = o.Package
	opts.KeepOriginals = o.Keep
	return opts
}

func (c *CLI) pipeline(opts pipeline.Options) *pipeline.Pipeline {
	p := pipeline.New(c.Device.Config(), opts)
	p.Runner = newRunner(p)
	return p
}

// EncodeCmd runs the raster flow.
type EncodeCmd struct {
	OutputFlags `embed:""`

	Inputs      []string `arg:"" help:"Input .tex, .ps and .pdf files, and DPI scale factors for the .ps and .pdf files after them"`
	WholeSlides bool     `name:"whole-slides" default:"true" negatable:"" help:"Treat .ps/.pdf-only input as whole slides"`
	PSOnly      bool     `name:"ps-only" help:"Only make a .ps file next to each input"`
}

func (c *EncodeCmd) Run(ctx context.Context, cli *CLI, k *kong.Context) error {
	opts := c.options()
	opts.WholeSlides = c.WholeSlides
	opts.PSOnly = c.PSOnly
	rep, err := cli.pipeline(opts).EncodeRaster(ctx, c.Inputs)
	if err != nil {
		return err
	}
	return printReport(k.Stdout, rep)
}

// EncodeWordsCmd runs the word flow.
type EncodeWordsCmd struct {
	OutputFlags `embed:""`

	Files []string `arg:"" help:"TeX files with %StartWord/%EndWord markers" type:"existingfile"`
}

func (c *EncodeWordsCmd) Run(ctx context.Context, cli *CLI, k *kong.Context) error {
	rep, err := cli.pipeline(c.options()).EncodeWords(ctx, c.Files)
	if err != nil {
		return err
	}
	return printReport(k.Stdout, rep)
}

func printReport(w io.Writer, rep *pipeline.Report) error {
	fmt.Fprintln(w, "\n--------------------------")
	return rep.Print(w)
}

// ConvertCmd runs or lists deferred conversions.
type ConvertCmd struct {
	Dir     string   `name:"dir" short:"d" default:"." help:"Directory holding catalog.db" type:"path"`
	Runs    []string `arg:"" optional:"" help:"Run IDs, every pending run when none"`
	List    bool     `name:"list" short:"l" help:"List recorded runs instead of converting"`
	Package string   `name:"package" default:"to-epoc.zip" help:"Archive for transfer to the device, none when empty"`
	Keep    bool     `name:"keep" help:"Keep the packaged files next to the archive"`
	KeepBMP bool     `name:"keep-bmp" help:"Keep the bitmaps after converting"`
}

func (c *ConvertCmd) Run(ctx context.Context, cli *CLI, k *kong.Context) error {
	if c.List {
		return c.list(ctx, k.Stdout)
	}
	ids := make([]uuid.UUID, len(c.Runs))
	for i, s := range c.Runs {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid run ID %q: %w", s, err)
		}
		ids[i] = id
	}
	opts := pipeline.DefaultOptions()
	opts.Package = c.Package
	opts.KeepOriginals = c.Keep
	opts.KeepWorkspace = c.KeepBMP
	rep, err := cli.pipeline(opts).ConvertDeferred(ctx, c.Dir, ids...)
	if err != nil {
		return err
	}
	return rep.Print(k.Stdout)
}

func (c *ConvertCmd) list(ctx context.Context, w io.Writer) error {
	if !fileutil.Exists(filepath.Join(c.Dir, catalog.File)) {
		fmt.Fprintf(w, "No %s in %s\n", catalog.File, c.Dir)
		return nil
	}
	cat, err := catalog.Open(c.Dir)
	if err != nil {
		return err
	}
	defer cat.Close()
	runs, err := cat.Runs(ctx, false)
	if err != nil {
		return err
	}
	for _, r := range runs {
		state := "pending"
		if r.Converted {
			state = "converted"
		}
		images, err := cat.Images(ctx, r.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s  %s  %-9s  %s*.mbm  %d images  %s\n",
			r.ID, r.Created.Format("2006-01-02 15:04:05"), state, r.BaseName, len(images), humanize.Time(r.Created))
	}
	return nil
}

// EditCmd runs the edit workflow.
type EditCmd struct {
	Dir          string `name:"dir" short:"d" default:"." help:"Directory holding enlarged.tex and the word images" type:"path"`
	Instructions string `name:"instructions" short:"i" help:"Read instructions from a file instead of standard input" type:"existingfile"`
	Rerender     bool   `name:"rerender" help:"Write the edited document back to enlarged.tex"`
}

func (c *EditCmd) Run(ctx context.Context, cli *CLI, k *kong.Context) error {
	in := stdin
	if c.Instructions != "" {
		f, err := os.Open(c.Instructions)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	} else {
		fmt.Fprintln(k.Stdout, "Enter commands (EOF when done)")
	}
	rep, err := cli.pipeline(pipeline.DefaultOptions()).Edit(ctx, pipeline.EditOptions{
		Dir:          c.Dir,
		Instructions: in,
		Rerender:     c.Rerender,
		Messages:     k.Stdout,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(k.Stdout)
	return rep.Print(k.Stdout)
}

// ShowCmd inspects an encoded directory.
type ShowCmd struct {
	Dir      string `arg:"" optional:"" default:"." help:"Directory holding the index files" type:"existingdir"`
	Document int    `name:"document" short:"n" default:"-1" help:"Only list this document"`
	Blob     int    `name:"blob" default:"-1" help:"Write the payload of this image key to standard output instead"`
	Width    int    `name:"width" default:"16" enum:"16,32" help:"Sequence width in bits"`
	Codec    string `name:"codec" default:"zlib" enum:"zlib,xz,none" help:"images.dat codec"`
}

func (c *ShowCmd) Run(k *kong.Context) error {
	codec, err := blobstore.CodecByName(c.Codec)
	if err != nil {
		return err
	}
	width := index.Width16
	if c.Width == 32 {
		width = index.Width32
	}
	r, err := decoder.Open(c.Dir, decoder.Options{Width: width, Codec: codec})
	if err != nil {
		return err
	}
	defer r.Close()

	if c.Blob >= 0 {
		b, err := r.ReadSequenceEntry(c.Blob)
		if err != nil {
			return err
		}
		_, err = k.Stdout.Write(b)
		return err
	}

	fmt.Fprintf(k.Stdout, "%d documents, %d entries, %d images\n", r.NumDocuments(), r.NumEntries(), r.NumImages())
	first, last := 0, r.NumDocuments()-1
	if c.Document >= 0 {
		first, last = c.Document, c.Document
	}
	cached := decoder.NewCachedReader(r, 0)
	for d := first; d <= last; d++ {
		entries, err := cached.Entries(d)
		if err != nil {
			return err
		}
		keys := make([]string, len(entries))
		var size int
		for i, e := range entries {
			keys[i] = e.String()
			if e.IsPause() || r.NumImages() == 0 {
				continue
			}
			b, err := cached.ReadSequenceEntry(e.Key())
			if err != nil {
				return err
			}
			size += len(b)
		}
		line := fmt.Sprintf("document %d: %s", d, strings.Join(keys, " "))
		if r.NumImages() > 0 {
			line += " (" + humanize.Bytes(uint64(size)) + ")"
		}
		fmt.Fprintln(k.Stdout, line)
	}
	st := cached.Stats()
	logging.Debug("blob cache", "hits", st.Hits, "misses", st.Misses)
	return nil
}

// PackageGroup contains package operations.
type PackageGroup struct {
	List PackageListCmd `cmd:"" help:"List the files in a package"`
}

// PackageListCmd lists an archive.
type PackageListCmd struct {
	Archive string `arg:"" help:"Package to list" type:"existingfile"`
}

func (c *PackageListCmd) Run(k *kong.Context) error {
	entries, err := archive.List(c.Archive)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(k.Stdout, "%10s  %s\n", strconv.FormatInt(e.Size, 10), e.Name)
	}
	return nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(k *kong.Context) error {
	fmt.Fprintf(k.Stdout, "reflow version %s\n", version)
	return nil
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("reflow"),
		kong.Description("Reflow documents into slide sets for a handheld viewer"),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	}, options...)
	return kong.New(cli, options...)
}

// run parses args and runs the selected command, writing reports to
// stdout and logs to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := newParser(&cli, kong.Writers(stdout, stderr))
	if err != nil {
		return err
	}
	k, err := parser.Parse(args)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cli.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cli.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLoggerTo(stderr, level, format)

	ctx = logging.WithRunID(ctx, uuid.NewString())
	k.BindTo(ctx, (*context.Context)(nil))
	return k.Run(&cli)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reflow: error: %v\n", err)
		os.Exit(1)
	}
}

package edit

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	rerrors "github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/index"
	"github.com/FocuswithJustin/ScanReflow/core/raster"
)

// docOf renders a document whose image lines carry tags in order.
func docOf(tags ...int) *Document {
	entries := make([]index.Entry, len(tags))
	for i, tag := range tags {
		entries[i] = index.ImageRef(tag)
	}
	return Render(entries, RenderOptions{})
}

func seqOf(entries ...int) []index.Entry {
	out := make([]index.Entry, len(entries))
	for i, k := range entries {
		if k < 0 {
			out[i] = index.PauseMarker()
		} else {
			out[i] = index.ImageRef(k)
		}
	}
	return out
}

func run(t *testing.T, doc *Document, instructions string) *Result {
	t.Helper()
	in := &Interpreter{}
	res, err := in.Run(doc, instructions)
	if err != nil {
		t.Fatalf("Run(%q) failed: %v", instructions, err)
	}
	return res
}

func tagsOf(n int) []int {
	tags := make([]int, n)
	for i := range tags {
		tags[i] = i
	}
	return tags
}

func TestRun(t *testing.T) {
	tests := []struct {
		name         string
		tags         []int
		instructions string
		want         []index.Entry
	}{
		{"delete list", tagsOf(6), "delete 1 3-4", seqOf(0, 2, 5)},
		{"delete keeps numbering", tagsOf(6), "delete 0-2 delete 4", seqOf(3, 5)},
		{"keep", tagsOf(6), "keep 1 4-5", seqOf(1, 4, 5)},
		{"keep twice", tagsOf(6), "keep 1 keep 3", seqOf(1, 3)},
		{"move after", tagsOf(8), "move 1-2 to after 5", seqOf(0, 3, 4, 5, 1, 2, 6, 7)},
		{"move before", tagsOf(8), "move 5 to before 1", seqOf(0, 5, 1, 2, 3, 4, 6, 7)},
		{"move keeps collection order", tagsOf(6), "move 4 1 to after 5", seqOf(0, 2, 3, 5, 4, 1)},
		{"move backwards", tagsOf(5), "move 3-4 to 0", seqOf(3, 4, 0, 1, 2)},
		{"copy", tagsOf(5), "copy 1-2 to after 4", seqOf(0, 1, 2, 3, 4, 1, 2)},
		{"pause after", tagsOf(3), "pause after 1", seqOf(0, 1, -1, 2)},
		{"pause before first", tagsOf(3), "pause 0", seqOf(-1, 0, 1, 2)},
		{"pause after last", tagsOf(3), "pause after 2", seqOf(0, 1, 2, -1)},
		{"disposition persists", tagsOf(4), "after pause 0 2", seqOf(0, -1, 1, 2, -1, 3)},
		{"later ops see earlier", tagsOf(5), "move 4 to 0 delete 4", seqOf(0, 1, 2, 3)},
		{"delete drops buffered lines", tagsOf(5), "move 2 delete 2 to after 4", seqOf(0, 1, 3, 4)},
		{"target in the moved range", tagsOf(5), "move 1-3 to after 2", seqOf(0, 1, 2, 3, 4)},
		{"to range takes first match", tagsOf(6), "move 0 to after 3-5", seqOf(1, 2, 3, 0, 4, 5)},
		{"truncated range", tagsOf(130), "keep 124-8", seqOf(124, 125, 126, 127, 128)},
		{"empty", tagsOf(3), "", seqOf(0, 1, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, docOf(tt.tags...), tt.instructions)
			if diff := cmp.Diff(tt.want, res.Sequence, cmp.AllowUnexported(index.Entry{})); diff != "" {
				t.Errorf("sequence mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTagStability(t *testing.T) {
	doc := docOf(tagsOf(20)...)
	res := run(t, doc, "delete 3 7-9 move 15-17 to after 2 copy 0-1 to before 19 pause after 5 move 4 to 18")
	seen := map[int]int{}
	for _, e := range res.Sequence {
		if !e.IsPause() {
			seen[e.Key()]++
		}
	}
	for _, deleted := range []int{3, 7, 8, 9} {
		if seen[deleted] != 0 {
			t.Errorf("deleted tag %d survived", deleted)
		}
	}
	for tag := 0; tag < 20; tag++ {
		if tag == 3 || (tag >= 7 && tag <= 9) {
			continue
		}
		want := 1
		if tag <= 1 {
			want = 2
		}
		if seen[tag] != want {
			t.Errorf("tag %d appears %d times, want %d", tag, seen[tag], want)
		}
	}
	for _, l := range doc.Lines {
		if l.Kind == Image && l.Text != ImageText(l.Tag, 1) {
			t.Errorf("line text for tag %d was rewritten: %q", l.Tag, l.Text)
		}
	}
}

func TestKeepDeleteComplement(t *testing.T) {
	keepSet := []string{"2 5-7 11", "0", "13"}
	deleteSet := []string{"0-1 3-4 8-10 12-13", "1-13", "0-12"}
	for i := range keepSet {
		kept := run(t, docOf(tagsOf(14)...), "keep "+keepSet[i])
		deleted := run(t, docOf(tagsOf(14)...), "delete "+deleteSet[i])
		if diff := cmp.Diff(deleted.Sequence, kept.Sequence, cmp.AllowUnexported(index.Entry{})); diff != "" {
			t.Errorf("keep %s != delete %s (-delete +keep):\n%s", keepSet[i], deleteSet[i], diff)
		}
	}
}

func TestMoveAndCopy(t *testing.T) {
	tags := tagsOf(60)

	moved := run(t, docOf(tags...), "move 47-53 to after 34")
	var want []int
	for _, tag := range tags {
		if tag >= 47 && tag <= 53 {
			continue
		}
		want = append(want, tag)
		if tag == 34 {
			want = append(want, 47, 48, 49, 50, 51, 52, 53)
		}
	}
	if diff := cmp.Diff(seqOf(want...), moved.Sequence, cmp.AllowUnexported(index.Entry{})); diff != "" {
		t.Errorf("move mismatch (-want +got):\n%s", diff)
	}

	copied := run(t, docOf(tags...), "copy 47-53 to after 34")
	want = nil
	for _, tag := range tags {
		want = append(want, tag)
		if tag == 34 {
			want = append(want, 47, 48, 49, 50, 51, 52, 53)
		}
	}
	if diff := cmp.Diff(seqOf(want...), copied.Sequence, cmp.AllowUnexported(index.Entry{})); diff != "" {
		t.Errorf("copy mismatch (-want +got):\n%s", diff)
	}
}

func TestCopiesAreDistinctLines(t *testing.T) {
	doc := docOf(0, 1, 2)
	res := run(t, doc, "copy 0 to after 2 move 0 to after 1")
	// The move buffer takes both the original and the copy of 0.
	if diff := cmp.Diff(seqOf(1, 0, 0, 2), res.Sequence, cmp.AllowUnexported(index.Entry{})); diff != "" {
		t.Errorf("sequence mismatch (-want +got):\n%s", diff)
	}
	if doc.Lines[5] == doc.Lines[6] {
		t.Error("copy shares identity with original")
	}
}

func TestUnresolvedIsNonFatal(t *testing.T) {
	tests := []struct {
		instructions string
		want         []index.Entry
	}{
		{"pause after 99999", seqOf(0, 1, 2)},
		{"move 1 to after 99999", seqOf(0, 1, 2)},
		{"move 1 to after 1", seqOf(0, 1, 2)},
		{"move 1 to 99999 pause 0", seqOf(-1, 0, 1, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.instructions, func(t *testing.T) {
			var streamed []error
			in := &Interpreter{Warn: func(err error) { streamed = append(streamed, err) }}
			res, err := in.Run(docOf(0, 1, 2), tt.instructions)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, res.Sequence, cmp.AllowUnexported(index.Entry{})); diff != "" {
				t.Errorf("sequence mismatch (-want +got):\n%s", diff)
			}
			if len(res.Warnings) != 1 || !errors.Is(res.Warnings[0], rerrors.ErrUnresolved) {
				t.Errorf("warnings = %v, want one unresolved reference", res.Warnings)
			}
			if len(streamed) != len(res.Warnings) {
				t.Errorf("Warn called %d times, want %d", len(streamed), len(res.Warnings))
			}
		})
	}
}

func TestUnresolvedMessage(t *testing.T) {
	res := run(t, docOf(0), "pause after 99999")
	want := "could not find where word 99999 is (in 'pause 99999'); ignoring that instruction"
	if got := res.Warnings[0].Error(); got != want {
		t.Errorf("warning = %q, want %q", got, want)
	}
}

func TestAccumulativeReEdit(t *testing.T) {
	batchA := "delete 3 move 7-8 to after 1 pause after 0"
	batchB := "move 0 to before 9 delete 8 pause after 5 copy 2 to after 4"

	once := run(t, docOf(tagsOf(12)...), batchA+"\n"+batchB)

	first := docOf(tagsOf(12)...)
	resA := run(t, first, batchA)
	header, footer := first.Frame()
	second := Render(resA.Sequence, RenderOptions{Header: header, Footer: footer})
	twice := run(t, second, batchB)

	if diff := cmp.Diff(once.Sequence, twice.Sequence, cmp.AllowUnexported(index.Entry{})); diff != "" {
		t.Errorf("A then B differs from A B (-single +two runs):\n%s", diff)
	}
}

func TestStartModeWarning(t *testing.T) {
	res := run(t, docOf(0, 1), "1 delete 0")
	if diff := cmp.Diff(seqOf(1), res.Sequence, cmp.AllowUnexported(index.Entry{})); diff != "" {
		t.Errorf("sequence mismatch (-want +got):\n%s", diff)
	}
	var w *Warning
	if len(res.Warnings) != 1 || !errors.As(res.Warnings[0], &w) || w.Token != "1" {
		t.Errorf("warnings = %v, want start-mode warning", res.Warnings)
	}
}

func TestParseErrorBeforeEdits(t *testing.T) {
	doc := docOf(0, 1, 2)
	in := &Interpreter{}
	if _, err := in.Run(doc, "delete 1 frobnicate 2"); !errors.Is(err, rerrors.ErrInvalidInput) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, doc.Tags()); diff != "" {
		t.Errorf("document changed despite parse error (-want +got):\n%s", diff)
	}
}

type recordingRecolorer struct {
	calls   []int
	missing map[int]bool
}

func (r *recordingRecolorer) Recolor(tag int, c color.Color) error {
	r.calls = append(r.calls, tag)
	if r.missing[tag] {
		return &os.PathError{Op: "open", Path: ImageFile(tag), Err: os.ErrNotExist}
	}
	return nil
}

func TestColour(t *testing.T) {
	rec := &recordingRecolorer{missing: map[int]bool{5: true}}
	in := &Interpreter{Recolorer: rec}
	res, err := in.Run(docOf(tagsOf(4)...), "yellow 1 3-5 Red 0")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]int{1, 3, 4, 5, 0}, rec.calls); diff != "" {
		t.Errorf("recolour calls mismatch (-want +got):\n%s", diff)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one for the missing image", res.Warnings)
	}
	if diff := cmp.Diff(seqOf(0, 1, 2, 3), res.Sequence, cmp.AllowUnexported(index.Entry{})); diff != "" {
		t.Errorf("colour changed the sequence (-want +got):\n%s", diff)
	}
}

func TestColour_NoRecolorer(t *testing.T) {
	in := &Interpreter{}
	if _, err := in.Run(docOf(0), "green 0"); !errors.Is(err, rerrors.ErrUnsupported) {
		t.Errorf("expected UnsupportedError, got %v", err)
	}
}

func TestPNGRecolorer(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{A: 0xff})
	img.SetRGBA(1, 0, color.RGBA{0xff, 0xff, 0xff, 0xff})
	if err := raster.SavePNG(filepath.Join(dir, ImageFile(7)), img); err != nil {
		t.Fatal(err)
	}

	in := &Interpreter{Recolorer: PNGRecolorer{Dir: dir}}
	res, err := in.Run(docOf(7, 8), "cyan 7-8")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one for missing 000000008.png", res.Warnings)
	}

	got, err := raster.LoadPNG(filepath.Join(dir, ImageFile(7)))
	if err != nil {
		t.Fatal(err)
	}
	if r, g, b, _ := got.At(1, 0).RGBA(); r != 0 || g != 0xffff || b != 0xffff {
		t.Errorf("background = %v, want cyan", got.At(1, 0))
	}
	if r, g, b, _ := got.At(0, 0).RGBA(); r|g|b != 0 {
		t.Errorf("ink = %v, want black", got.At(0, 0))
	}
}

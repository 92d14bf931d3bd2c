package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/FocuswithJustin/ScanReflow/core/blobstore"
	"github.com/FocuswithJustin/ScanReflow/core/edit"
	"github.com/FocuswithJustin/ScanReflow/core/index"
	"github.com/FocuswithJustin/ScanReflow/internal/archive"
	"github.com/FocuswithJustin/ScanReflow/internal/pipeline"
)

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if out != "reflow version "+version+"\n" {
		t.Errorf("output = %q", out)
	}
}

func TestDeviceFlags_Config(t *testing.T) {
	dir := t.TempDir()
	cfgPath := createTestFile(t, dir, "reflow.json", `{"device_width": 480, "lines_per_screen": 2, "dpi": 150, "latex": "pdflatex"}`)

	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		t.Fatalf("newParser failed: %v", err)
	}
	if _, err := parser.Parse([]string{"--config", cfgPath, "--device-height", "160", "version"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := pipeline.DefaultConfig()
	want.DeviceWidth, want.DeviceHeight = 480, 160
	want.LinesPerScreen = 2
	want.DPI = 150
	want.Latex = "pdflatex"
	if diff := cmp.Diff(want, cli.Device.Config(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestShowCmd(t *testing.T) {
	dir := t.TempDir()
	seq, err := index.EncodeSequence([]index.Entry{index.ImageRef(0), index.ImageRef(1), index.ImageRef(0), index.ImageRef(2), index.ImageRef(1)}, index.Width16)
	if err != nil {
		t.Fatal(err)
	}
	createTestFile(t, dir, index.SequenceFile, string(seq))
	createTestFile(t, dir, index.ContentsFile, string(index.Contents{0, 6}.Bytes()))
	blobs := [][]byte{[]byte("zero"), []byte("one"), []byte("two")}
	if err := blobstore.WriteFile(filepath.Join(dir, blobstore.ImagesFile), blobs, blobstore.Zlib{}); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "show", dir)
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("output = %q, want 3 lines", out)
	}
	if lines[0] != "2 documents, 5 entries, 3 images" {
		t.Errorf("summary = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "document 0: 0 1 0 (") || !strings.HasPrefix(lines[2], "document 1: 2 1 (") {
		t.Errorf("documents = %q", lines[1:])
	}

	out, err = runCLI(t, "show", dir, "--document", "1")
	if err != nil {
		t.Fatalf("show --document failed: %v", err)
	}
	if strings.Contains(out, "document 0") || !strings.Contains(out, "document 1") {
		t.Errorf("output = %q, want only document 1", out)
	}

	out, err = runCLI(t, "show", dir, "--blob", "1")
	if err != nil {
		t.Fatalf("show --blob failed: %v", err)
	}
	if out != "one" {
		t.Errorf("blob = %q, want %q", out, "one")
	}

	if _, err := runCLI(t, "show", dir, "--document", "5"); err == nil {
		t.Error("expected error for missing document")
	}
}

func TestPackageListCmd(t *testing.T) {
	dir := t.TempDir()
	a := createTestFile(t, dir, "sequence.dat", "abcd")
	b := createTestFile(t, dir, "font.mbm", "mbm!!")
	pkg := filepath.Join(dir, "to-epoc.zip")
	if _, err := archive.Create(pkg, []string{a, b}); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "package", "list", pkg)
	if err != nil {
		t.Fatalf("package list failed: %v", err)
	}
	want := "         4  sequence.dat\n         5  font.mbm\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestEditCmd(t *testing.T) {
	dir := t.TempDir()
	doc := edit.Render(index.Implicit(3), edit.RenderOptions{})
	var b bytes.Buffer
	if _, err := doc.WriteTo(&b); err != nil {
		t.Fatal(err)
	}
	createTestFile(t, dir, edit.EnlargedFile, b.String())
	instr := createTestFile(t, t.TempDir(), "edits.txt", "delete 1\npause 5\n")

	out, err := runCLI(t, "edit", "--dir", dir, "--instructions", instr)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if !strings.Contains(out, "WARNING: could not find where word 5 is") {
		t.Errorf("output lacks the unresolved warning: %q", out)
	}
	if !strings.Contains(out, pipeline.EditDone[0]) {
		t.Errorf("output lacks the closing text: %q", out)
	}
	seq, err := os.ReadFile(filepath.Join(dir, index.SequenceFile))
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0, 0, 0, 0, 2, 0, 0, 0}; !bytes.Equal(seq, want) {
		t.Errorf("sequence.dat = %v, want %v", seq, want)
	}
}

func TestEditCmd_Stdin(t *testing.T) {
	dir := t.TempDir()
	doc := edit.Render(index.Implicit(2), edit.RenderOptions{})
	var b bytes.Buffer
	if _, err := doc.WriteTo(&b); err != nil {
		t.Fatal(err)
	}
	createTestFile(t, dir, edit.EnlargedFile, b.String())

	old := stdin
	stdin = strings.NewReader("keep 1")
	defer func() { stdin = old }()

	out, err := runCLI(t, "edit", "-d", dir)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if !strings.HasPrefix(out, "Enter commands (EOF when done)\n") {
		t.Errorf("output = %q", out)
	}
	seq, err := os.ReadFile(filepath.Join(dir, index.SequenceFile))
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{1, 0, 0, 0}; !bytes.Equal(seq, want) {
		t.Errorf("sequence.dat = %v, want %v", seq, want)
	}
}

func TestConvertCmd_List(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, "convert", "--list", "--dir", dir)
	if err != nil {
		t.Fatalf("convert --list failed: %v", err)
	}
	if !strings.HasPrefix(out, "No catalog.db in ") {
		t.Errorf("output = %q", out)
	}

	out, err = runCLI(t, "convert", "--dir", dir)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !strings.HasPrefix(out, "No pending conversions") {
		t.Errorf("output = %q", out)
	}

	if _, err := runCLI(t, "convert", "--dir", dir, "not-a-uuid"); err == nil {
		t.Error("expected error for invalid run ID")
	}
}

func TestEncodeCmd_Errors(t *testing.T) {
	if _, err := runCLI(t, "encode", "-o", t.TempDir(), "notes.doc"); err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Errorf("expected unsupported extension error, got %v", err)
	}
	if _, err := runCLI(t, "encode-words", filepath.Join(t.TempDir(), "missing.tex")); err == nil {
		t.Error("expected error for missing file")
	}
}

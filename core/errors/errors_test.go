package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name    string
		err     *FormatError
		wantMsg string
	}{
		{
			name:    "with offset",
			err:     NewFormat("contents.dat", 12, "need 4 bytes, have 2"),
			wantMsg: "malformed contents.dat at byte 12: need 4 bytes, have 2",
		},
		{
			name:    "without offset",
			err:     NewFormat("sequence", -1, "length 7 is not a multiple of 2"),
			wantMsg: "malformed sequence: length 7 is not a multiple of 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrFormat) {
				t.Error("errors.Is(err, ErrFormat) = false")
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		err := &FormatError{Structure: "images.dat", Offset: -1, Message: "short read", Err: io.ErrUnexpectedEOF}
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Error("underlying error not reachable")
		}
		if !errors.Is(err, ErrFormat) {
			t.Error("sentinel not reachable when underlying error is set")
		}
	})
}

func TestLookupError(t *testing.T) {
	err := NewLookup("document", 5, 3)
	if got, want := err.Error(), "document 5 not found (have 3)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	wrapped := fmt.Errorf("show: %w", err)
	if !errors.Is(wrapped, ErrLookup) {
		t.Error("wrapped LookupError does not match ErrLookup")
	}
	var le *LookupError
	if !As(wrapped, &le) || le.Index != 5 {
		t.Errorf("As() did not recover LookupError: %+v", le)
	}
}

func TestUnresolvedReferenceError(t *testing.T) {
	tests := []struct {
		name    string
		err     *UnresolvedReferenceError
		wantMsg string
	}{
		{
			name:    "single word",
			err:     NewUnresolved("pause", 99999, 99999),
			wantMsg: "could not find where word 99999 is (in 'pause 99999'); ignoring that instruction",
		},
		{
			name:    "range",
			err:     NewUnresolved("to", 10, 12),
			wantMsg: "could not find any of words 10-12 (in 'to 10-12'); ignoring that instruction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrUnresolved) {
				t.Error("errors.Is(err, ErrUnresolved) = false")
			}
		})
	}
}

func TestExternalToolError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ExternalToolError
		wantMsg string
	}{
		{
			name:    "exit status",
			err:     NewExternalTool("latex", []string{"tmp.tex"}, 1, "", nil),
			wantMsg: "latex tmp.tex exited with status 1",
		},
		{
			name:    "exit status with stderr",
			err:     NewExternalTool("gs", []string{"-q", "-"}, 2, "Unrecoverable error", nil),
			wantMsg: "gs -q - exited with status 2: Unrecoverable error",
		},
		{
			name:    "not started",
			err:     NewExternalTool("Bmconv.exe", nil, -1, "", fmt.Errorf("executable file not found")),
			wantMsg: "Bmconv.exe could not be run: executable file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrExternalTool) {
				t.Error("errors.Is(err, ErrExternalTool) = false")
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidation("base name", "must not contain spaces")
	if got, want := err.Error(), "validation failed for base name: must not contain spaces"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError does not unwrap to ErrInvalidInput")
	}
	if got, want := (&ValidationError{Message: "empty"}).Error(), "validation failed: empty"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIOError(t *testing.T) {
	err := NewIO("open", "enlarged.tex", io.EOF)
	if got, want := err.Error(), "failed to open enlarged.tex: EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, io.EOF) {
		t.Error("IOError does not unwrap to underlying error")
	}
	noPath := &IOError{Operation: "write", Err: io.ErrShortWrite}
	if got, want := noPath.Error(), "failed to write: short write"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseError(t *testing.T) {
	err := NewParse("instructions", 0, `unknown word "delet"`)
	if got, want := err.Error(), `failed to parse instructions: unknown word "delet"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ParseError does not unwrap to ErrInvalidInput")
	}
	withLine := NewParse("enlarged.tex", 7, "bad word number")
	if got, want := withLine.Error(), "failed to parse enlarged.tex at line 7: bad word number"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("input", "extension of filename 'x.doc' not supported")
	if got, want := err.Error(), "unsupported input: extension of filename 'x.doc' not supported"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("UnsupportedError does not unwrap to ErrUnsupported")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
	base := NewLookup("image", 3, 2)
	wrapped := Wrapf(base, "document %d", 0)
	if got, want := wrapped.Error(), "document 0: image 3 not found (have 2)"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}
	if !Is(Wrap(base, "x"), ErrLookup) {
		t.Error("Wrap lost the sentinel")
	}
}

// Package validation checks command-line inputs before any external tool
// is run: input kinds, scale factors, TeX sources that would fight the
// generated page geometry, and output names.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	rerrors "github.com/FocuswithJustin/ScanReflow/core/errors"
)

const (
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
)

// ValidateFilename checks that a name is a single safe path element.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	// Names are passed as converter arguments.
	if strings.HasPrefix(filename, "-") || strings.HasPrefix(filename, "/") {
		return fmt.Errorf("%w: filename cannot start with a flag character", ErrInvalidFilename)
	}
	return nil
}

// ValidatePath checks a path for length limits and control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateBaseName checks the converter output base name. It ends up
// unquoted in the converter's argument list, so spaces are refused.
func ValidateBaseName(name string) error {
	if strings.ContainsFunc(name, unicode.IsSpace) {
		return rerrors.NewValidation("base name", fmt.Sprintf("%q must not contain spaces", name))
	}
	if err := ValidateFilename(name); err != nil {
		return rerrors.NewValidation("base name", err.Error())
	}
	return nil
}

// GeometryCommands are the TeX commands the generated preamble sets and
// input sources must therefore not contain.
var GeometryCommands = []string{
	"documentclass", "textwidth", "textheight", "topmargin",
	"marginparwidth", "oddsidemargin", "evensidemargin",
}

// ValidateTeX rejects a TeX source that sets its own page geometry.
func ValidateTeX(name string, src []byte) error {
	for _, cmd := range GeometryCommands {
		if bytes.Contains(src, []byte(`\`+cmd)) {
			return rerrors.NewValidation(name, fmt.Sprintf(`TeX files must NOT contain \%s (this will be added by the script)`, cmd))
		}
	}
	return nil
}

// InputKind classifies a raster-flow argument.
type InputKind int

const (
	InputTeX InputKind = iota
	InputPS
	InputPDF
	InputScale
)

func (k InputKind) String() string {
	switch k {
	case InputTeX:
		return "tex"
	case InputPS:
		return "ps"
	case InputPDF:
		return "pdf"
	case InputScale:
		return "scale"
	}
	return fmt.Sprintf("input(%d)", int(k))
}

// Input is one classified argument.
type Input struct {
	Arg   string
	Kind  InputKind
	Scale float64 // InputScale only
}

// ClassifyInput classifies arg by extension. A positive number is a scale
// factor for the DPI of following .ps and .pdf inputs.
func ClassifyInput(arg string) (Input, error) {
	if err := ValidatePath(arg); err != nil {
		return Input{}, rerrors.NewValidation("input", err.Error())
	}
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".tex":
		return Input{Arg: arg, Kind: InputTeX}, nil
	case ".ps":
		return Input{Arg: arg, Kind: InputPS}, nil
	case ".pdf":
		return Input{Arg: arg, Kind: InputPDF}, nil
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil && f > 0 {
		return Input{Arg: arg, Kind: InputScale, Scale: f}, nil
	}
	return Input{}, rerrors.NewUnsupported("input", fmt.Sprintf("extension of filename '%s' not supported", arg))
}

// ClassifyInputs classifies every argument and rejects scale factors mixed
// with TeX input.
func ClassifyInputs(args []string) ([]Input, error) {
	inputs := make([]Input, 0, len(args))
	hasTeX, hasScale := false, false
	for _, arg := range args {
		in, err := ClassifyInput(arg)
		if err != nil {
			return nil, err
		}
		hasTeX = hasTeX || in.Kind == InputTeX
		hasScale = hasScale || in.Kind == InputScale
		inputs = append(inputs, in)
	}
	if hasTeX && hasScale {
		return nil, rerrors.NewValidation("input", "scale factors on the command line should be used only with .ps or .pdf input; for .tex input change the font settings instead")
	}
	return inputs, nil
}

// FileType represents a detected file type.
type FileType string

const (
	FileTypePS      FileType = "ps"
	FileTypePDF     FileType = "pdf"
	FileTypePNG     FileType = "png"
	FileTypeZip     FileType = "zip"
	FileTypeGzip    FileType = "gzip"
	FileTypeXZ      FileType = "xz"
	FileTypeSQLite  FileType = "sqlite"
	FileTypeText    FileType = "text"
	FileTypeUnknown FileType = "unknown"
)

// magicBytes defines magic byte signatures for file type detection.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
	offset   int
}{
	{FileTypePS, []byte("%!PS"), 0},
	{FileTypePDF, []byte("%PDF-"), 0},
	{FileTypePNG, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, 0},
	{FileTypeGzip, []byte{0x1f, 0x8b}, 0},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}, 0},
	{FileTypeZip, []byte{0x50, 0x4b, 0x03, 0x04}, 0},
	{FileTypeSQLite, []byte("SQLite format 3"), 0},
}

// ValidateFileType checks that the content of a .ps or .pdf input matches
// its extension. Other kinds are only checked to look like text.
func ValidateFileType(reader io.Reader, filename string) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	detected := detectFileTypeFromMagic(buf)
	expected := detectFileTypeFromExtension(filename)

	switch {
	case detected == expected:
		return detected, nil
	case expected == FileTypeText && detected == FileTypeUnknown && isLikelyText(buf):
		return FileTypeText, nil
	case expected == FileTypeUnknown:
		return detected, nil
	}
	return FileTypeUnknown, rerrors.NewValidation(filename,
		fmt.Sprintf("file type mismatch: extension suggests %s but content is %s", expected, detected))
}

func detectFileTypeFromMagic(buf []byte) FileType {
	for _, sig := range magicBytes {
		if sig.offset+len(sig.magic) <= len(buf) && bytes.Equal(buf[sig.offset:sig.offset+len(sig.magic)], sig.magic) {
			return sig.fileType
		}
	}
	return FileTypeUnknown
}

func detectFileTypeFromExtension(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ps":
		return FileTypePS
	case ".pdf":
		return FileTypePDF
	case ".png":
		return FileTypePNG
	case ".zip":
		return FileTypeZip
	case ".gz":
		return FileTypeGzip
	case ".xz":
		return FileTypeXZ
	case ".db":
		return FileTypeSQLite
	case ".tex", ".txt":
		return FileTypeText
	}
	return FileTypeUnknown
}

// isLikelyText reports whether buf has no NUL bytes and is at least 95%
// printable ASCII or whitespace, ignoring high bytes.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b >= 0x20 && b <= 0x7e, b == '\t', b == '\n', b == '\r':
			printable++
		case b < 0x20:
			control++
		}
	}
	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}

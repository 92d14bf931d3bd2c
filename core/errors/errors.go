// Package errors provides the error taxonomy shared by the encoder, decoder,
// edit interpreter and tool runner.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common cases
var (
	// ErrFormat indicates a malformed or truncated binary structure
	ErrFormat = errors.New("malformed data")
	// ErrLookup indicates a document index or dictionary key that does not exist
	ErrLookup = errors.New("no such entry")
	// ErrUnresolved indicates an edit target that matches no line
	ErrUnresolved = errors.New("unresolved reference")
	// ErrExternalTool indicates a delegated external step failed
	ErrExternalTool = errors.New("external tool failed")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// FormatError reports a malformed or truncated binary structure.
type FormatError struct {
	Structure string // e.g. "contents.dat", "sequence", "images.dat"
	Offset    int64  // Byte offset where the problem was found, -1 if unknown
	Message   string
	Err       error
}

func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("malformed %s at byte %d: %s", e.Structure, e.Offset, e.Message)
	}
	return fmt.Sprintf("malformed %s: %s", e.Structure, e.Message)
}

func (e *FormatError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrFormat
}

// Is lets errors.Is match the sentinel even when an underlying error is kept.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// LookupError reports a document index or dictionary key that does not exist.
type LookupError struct {
	Resource string // "document" or "image"
	Index    int
	Limit    int // Number of valid entries
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %d not found (have %d)", e.Resource, e.Index, e.Limit)
}

func (e *LookupError) Unwrap() error {
	return ErrLookup
}

// UnresolvedReferenceError reports a to/pause instruction whose target
// matches no line. It is never fatal to an edit run.
type UnresolvedReferenceError struct {
	Instruction string // "to" or "pause"
	First       int
	Last        int
}

func (e *UnresolvedReferenceError) Error() string {
	if e.First == e.Last {
		return fmt.Sprintf("could not find where word %d is (in '%s %d'); ignoring that instruction", e.First, e.Instruction, e.First)
	}
	return fmt.Sprintf("could not find any of words %d-%d (in '%s %d-%d'); ignoring that instruction", e.First, e.Last, e.Instruction, e.First, e.Last)
}

func (e *UnresolvedReferenceError) Unwrap() error {
	return ErrUnresolved
}

// ExternalToolError reports a delegated tool that could not be started or
// exited with a failure status.
type ExternalToolError struct {
	Tool     string
	Args     []string
	ExitCode int    // -1 if the process never ran
	Stderr   string // Tail of the tool's standard error
	Err      error
}

func (e *ExternalToolError) Error() string {
	cmdline := strings.TrimSpace(e.Tool + " " + strings.Join(e.Args, " "))
	var msg string
	if e.ExitCode < 0 {
		msg = fmt.Sprintf("%s could not be run: %v", cmdline, e.Err)
	} else {
		msg = fmt.Sprintf("%s exited with status %d", cmdline, e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrExternalTool
}

// Is lets errors.Is match the sentinel even when an underlying error is kept.
func (e *ExternalToolError) Is(target error) bool {
	return target == ErrExternalTool
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing error in textual input
type ParseError struct {
	Format  string // Format being parsed (e.g., "instructions", "enlarged.tex")
	Line    int    // 1-based line, 0 if not applicable
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("failed to parse %s at line %d: %s", e.Format, e.Line, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewFormat creates a FormatError at a known offset.
func NewFormat(structure string, offset int64, message string) *FormatError {
	return &FormatError{Structure: structure, Offset: offset, Message: message}
}

// NewLookup creates a LookupError
func NewLookup(resource string, index, limit int) *LookupError {
	return &LookupError{Resource: resource, Index: index, Limit: limit}
}

// NewUnresolved creates an UnresolvedReferenceError
func NewUnresolved(instruction string, first, last int) *UnresolvedReferenceError {
	return &UnresolvedReferenceError{Instruction: instruction, First: first, Last: last}
}

// NewExternalTool creates an ExternalToolError
func NewExternalTool(tool string, args []string, exitCode int, stderr string, err error) *ExternalToolError {
	return &ExternalToolError{
		Tool:     tool,
		Args:     args,
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      err,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format string, line int, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Line:    line,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrFormat marks malformed input rows or files.
	ErrFormat = errors.New("format error")

	// ErrConfiguration marks unusable weights or weighting exponents.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrMissingEvidence marks a pair whose marginal counts are zero.
	ErrMissingEvidence = errors.New("missing evidence")
)

// FormatError reports a malformed record in an input file.
// Line is 1-based; zero means the error concerns the whole file.
type FormatError struct {
	Path string
	Line int
	Msg  string
	Err  error
}

func (e *FormatError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", ErrFormat, loc, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", ErrFormat, loc, e.Msg)
}

// Unwrap exposes both ErrFormat and the underlying cause to errors.Is.
func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFormat}
	}
	return []error{ErrFormat, e.Err}
}

// Formatf builds a FormatError for the given file position.
func Formatf(path string, line int, format string, args ...any) *FormatError {
	return &FormatError{Path: path, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Configf wraps ErrConfiguration with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

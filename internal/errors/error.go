package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"

	"github.com/prowser-dev/prowser/pkg/source"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig    Category = "config"
	CategorySource    Category = "source"
	CategoryDocument  Category = "document"
	CategoryReconcile Category = "reconcile"
	CategoryCLI       Category = "cli"
)

// Location represents a position in a file.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// ProwserError is a structured error with a code, an optional file
// location and a suggestion.
type ProwserError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is where in a file the error occurred.
	Location *Location

	// Context contains the lines around Location.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *ProwserError) Error() string {
	msg := e.Message
	if e.Wrapped != nil {
		if msg == "" {
			msg = e.Wrapped.Error()
		} else {
			msg += ": " + e.Wrapped.Error()
		}
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *ProwserError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a file location to the error.
func (e *ProwserError) WithLocation(file string, line, column int) *ProwserError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// WithLocationFromError extracts a line number from a parser error such as
// "yaml: line 4: mapping values are not allowed in this context".
func (e *ProwserError) WithLocationFromError(file string, err error) *ProwserError {
	if err == nil {
		return e
	}
	m := yamlLine.FindStringSubmatch(err.Error())
	if m == nil {
		return e
	}
	line, _ := strconv.Atoi(m[1])
	if line > 0 {
		e.WithLocation(file, line, 0)
	}
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *ProwserError) WithSuggestion(s string) *ProwserError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *ProwserError) WithDetail(d string) *ProwserError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *ProwserError) Wrap(err error) *ProwserError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates a ProwserError from a registered error code.
func New(code string) *ProwserError {
	template, ok := registry[code]
	if !ok {
		return &ProwserError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &ProwserError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new ProwserError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *ProwserError {
	return &ProwserError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a ProwserError.
func FromError(err error, code string) *ProwserError {
	if err == nil {
		return nil
	}
	var pe *ProwserError
	if stderrors.As(err, &pe) {
		return pe
	}
	return New(code).Wrap(err)
}

// Classify maps an error from the library packages onto a registered code.
// Errors it does not recognize are returned as uncoded ProwserErrors.
func Classify(err error) *ProwserError {
	if err == nil {
		return nil
	}
	var pe *ProwserError
	if stderrors.As(err, &pe) {
		return pe
	}
	var status *source.StatusError
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return New("E200").Wrap(err)
	case stderrors.Is(err, source.ErrUnsupportedScheme):
		return New("E201").Wrap(err).WithSuggestion("Use an http://, https://, file:// or s3:// location")
	case stderrors.As(err, &status):
		return New("E202").Wrap(err)
	case stderrors.Is(err, source.ErrNotSubmittable):
		return New("E204").Wrap(err)
	case stderrors.Is(err, vdom.ErrEmptyDocument):
		return New("E250").Wrap(err)
	case stderrors.Is(err, vdom.ErrMaxDepth):
		return New("E251").Wrap(err).WithSuggestion("Raise builder.maxDepth in prowser.json")
	case stderrors.Is(err, vdom.ErrDesync):
		return New("E300").Wrap(err)
	case stderrors.Is(err, vdom.ErrAdapter):
		return New("E301").Wrap(err)
	case stderrors.Is(err, vdom.ErrReconcilerFailed):
		return New("E302").Wrap(err)
	}
	return &ProwserError{Wrapped: err}
}

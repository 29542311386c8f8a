// Package errors defines the located fault types produced by pipeline tasks
// and a collector that lets a task keep going after per-file faults.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of a pipeline fault.
type Kind string

const (
	KindIO     Kind = "io"
	KindRender Kind = "render"
	KindLint   Kind = "lint"
	KindConfig Kind = "config"
)

// PipelineError is a fault with enough context to locate it.
type PipelineError struct {
	Kind    Kind
	Task    string
	File    string
	Line    int
	Column  int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Task != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Task))
	}

	if e.File != "" {
		location := e.File
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location+":")
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		if e.Message == "" {
			return result + " " + e.Cause.Error()
		}
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches another PipelineError of the same kind.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && (t.Task == "" || e.Task == t.Task)
	}
	return false
}

// WithTask sets the owning task.
func (e *PipelineError) WithTask(task string) *PipelineError {
	e.Task = task
	return e
}

// WithLocation adds file location information.
func (e *PipelineError) WithLocation(file string, line, column int) *PipelineError {
	e.File = file
	e.Line = line
	e.Column = column
	return e
}

// NewIOError wraps a read, copy or delete failure on file.
func NewIOError(file, message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindIO, File: file, Message: message, Cause: cause}
}

// NewRenderError wraps a template or stylesheet processing failure.
func NewRenderError(file, message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindRender, File: file, Message: message, Cause: cause}
}

// NewLintError reports lint problems that survived the fix pass.
func NewLintError(file, message string) *PipelineError {
	return &PipelineError{Kind: KindLint, File: file, Message: message}
}

// NewConfigError reports an invalid configuration value.
func NewConfigError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindConfig, Message: message, Cause: cause}
}

// IsKind reports whether err carries a PipelineError of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Split flattens errors joined with errors.Join into their parts.
func Split(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, Split(e)...)
		}
		return out
	}
	return []error{err}
}

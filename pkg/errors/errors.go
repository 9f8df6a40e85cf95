// Package errors provides structured error handling for transmuta
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeIO represents source or sink open/read/write failures
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeMalformedInput represents structurally invalid input (short schema rows,
	// empty schemas, empty sources)
	ErrorTypeMalformedInput ErrorType = "malformed_input"
	// ErrorTypeUnsupportedType represents an unresolvable type name or an unencodable value
	ErrorTypeUnsupportedType ErrorType = "unsupported_type"
	// ErrorTypeEncoding represents sink-specific serialization errors
	ErrorTypeEncoding ErrorType = "encoding"
	// ErrorTypeConfig represents invalid command line or configuration values
	ErrorTypeConfig ErrorType = "config"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the type of the outermost structured error, or "" when err
// carries none.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Type
}

// MalformedSchemaRow reports a column-definition row with fewer than two fields.
// row is 1-based.
func MalformedSchemaRow(row int) *Error {
	return Newf(ErrorTypeMalformedInput,
		"schema row %d is malformed: expected at least a column name and a data type", row).
		WithDetail("row", row)
}

// EmptySchema reports a column-definition source that produced no columns.
func EmptySchema() *Error {
	return New(ErrorTypeMalformedInput, "schema defines no columns")
}

// EmptySource reports a row source without a single row.
func EmptySource(path string) *Error {
	return Newf(ErrorTypeMalformedInput, "source %s contains no rows", path).
		WithDetail("file", path)
}

// UnsupportedType reports a type name that does not resolve to a logical type.
func UnsupportedType(name string) *Error {
	return Newf(ErrorTypeUnsupportedType, "unsupported data type %q", name).
		WithDetail("type", name)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}

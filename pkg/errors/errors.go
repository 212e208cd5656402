// Package errors provides the structured error taxonomy used throughout crossbow.
//
// Every failure surfaced by the conversion core is an *Error carrying one of a
// small set of types. The type decides how a caller should react:
//
//   - ErrorTypeSourceOpen: the source or selector could not be opened; nothing was read
//   - ErrorTypeSourceRead: malformed bytes mid-stream; the in-flight chunk was discarded
//   - ErrorTypeSchemaMismatch: row width or assembler invariant violated for a batch
//   - ErrorTypeConfig: invalid options
//   - ErrorTypeCanceled: the context was canceled between rows or chunks
//   - ErrorTypeInternal: a broken invariant inside crossbow itself
//
// Details attach the context needed to act on the error (source identifier,
// sheet, 1-based row and column, column name):
//
//	return errors.New(errors.ErrorTypeSchemaMismatch, "row has more cells than declared columns").
//	    WithDetail(errors.DetailSource, path).
//	    WithDetail(errors.DetailRow, 17)
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeSourceOpen represents failures to open a source or resolve a selector
	ErrorTypeSourceOpen ErrorType = "source_open"
	// ErrorTypeSourceRead represents malformed container bytes encountered mid-stream
	ErrorTypeSourceRead ErrorType = "source_read"
	// ErrorTypeSchemaMismatch represents row width or batch assembly violations
	ErrorTypeSchemaMismatch ErrorType = "schema_mismatch"
	// ErrorTypeConfig represents invalid configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeCanceled represents cooperative cancellation
	ErrorTypeCanceled ErrorType = "canceled"
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
)

// Well-known detail keys.
const (
	DetailSource     = "source"
	DetailSheet      = "sheet"
	DetailFormat     = "format"
	DetailRow        = "row"
	DetailColumn     = "column"
	DetailColumnName = "column_name"
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

// Error implements the error interface. Details are rendered in key order so
// the message is stable across runs.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteString(": ")
	b.WriteString(e.Message)

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Details[k])
		}
		b.WriteByte(']')
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
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

// Detail returns a detail value and whether it was set.
func (e *Error) Detail(key string) (interface{}, bool) {
	v, ok := e.Details[key]
	return v, ok
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

// Classify returns err as an *Error. Errors that already carry a type are
// returned as-is so their classification survives; anything else is wrapped
// with errType and message.
func Classify(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsSourceOpen reports whether err is a source open failure.
func IsSourceOpen(err error) bool { return IsType(err, ErrorTypeSourceOpen) }

// IsSourceRead reports whether err is a mid-stream read failure.
func IsSourceRead(err error) bool { return IsType(err, ErrorTypeSourceRead) }

// IsSchemaMismatch reports whether err is a schema mismatch.
func IsSchemaMismatch(err error) bool { return IsType(err, ErrorTypeSchemaMismatch) }

// IsCanceled reports whether err came from cooperative cancellation.
func IsCanceled(err error) bool { return IsType(err, ErrorTypeCanceled) }

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

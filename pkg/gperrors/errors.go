// Package gperrors provides structured error handling for gpload with
// error categorization, key-value context and stack traces.
//
// Errors are categorized by ErrorType, which drives both handling
// strategy (only cleanup-class failures are ever retried or swallowed)
// and log/monitoring labels. Use New to create errors and Wrap to add
// context while preserving the cause chain:
//
//	if err := conn.Exec(ctx, ddl); err != nil {
//	    return gperrors.Wrap(err, gperrors.ErrorTypeStaging, "failed to create staging table").
//	        WithDetail("table", staging)
//	}
//
// Error instances are not safe for concurrent modification; attach all
// details before sharing across goroutines.
package gperrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType categorizes an error for handling strategy, monitoring and
// log labeling.
type ErrorType string

const (
	// ErrorTypeConfig represents invalid or missing configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeIdentifier represents a malformed table identifier, raised
	// at parse time before any I/O
	ErrorTypeIdentifier ErrorType = "identifier"
	// ErrorTypeConnection represents connection establishment failures
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeStaging represents staging-table creation failures; fatal,
	// the job aborts before any partition is attempted
	ErrorTypeStaging ErrorType = "staging"
	// ErrorTypeUpload represents a per-partition upload failure; it is not
	// retried individually and surfaces at job level only through the
	// success-count mismatch
	ErrorTypeUpload ErrorType = "upload"
	// ErrorTypeTimeout represents a COPY transfer exceeding its deadline
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeJobAborted represents a transactional job aborted because
	// fewer partitions succeeded than were dispatched
	ErrorTypeJobAborted ErrorType = "job_aborted"
	// ErrorTypeCleanup represents staging-table cleanup failures; always
	// logged, never raised
	ErrorTypeCleanup ErrorType = "cleanup"
	// ErrorTypeQuery represents DDL or query execution failures
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeData represents row encoding or value conversion failures
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents local spool file failures
	ErrorTypeFile ErrorType = "file"
)

// Error is a structured error carrying a category, a cause chain,
// key-value details and the call stack captured at creation.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is a single frame of the call stack at error creation.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key-value detail to the error. It returns the
// receiver so calls can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type, capturing the call stack at
// the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates an error of the given type with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with a type and message, preserving the
// original as the cause. If the error is already a structured Error its
// stack trace is kept. Returns nil if err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existing.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType reports whether err is a structured Error of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsRetryable reports whether the error may be retried. Only cleanup
// and connection failures qualify; primary data-moving operations
// (create table, COPY, rename) require the caller to resubmit the
// whole job instead.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrorTypeCleanup, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// captureStack records the call stack up to maxFrames deep, skipping
// the given number of leading frames.
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

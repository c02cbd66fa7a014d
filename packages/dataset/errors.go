package dataset

import (
	"fmt"

	"github.com/pkg/errors"
)

// AppErrorCode represents gRPC-style error codes for misuse of the dataset
// API. formula problems are never reported this way; they are stored on the
// column as a CompileError.
type AppErrorCode int

const (
	// InvalidArgument indicates the caller passed an unusable argument.
	InvalidArgument AppErrorCode = 3

	// NotFound means the requested column does not exist.
	NotFound AppErrorCode = 5

	// AlreadyExists means a column with the same id or name exists.
	AlreadyExists AppErrorCode = 6

	// FailedPrecondition indicates the column is not in a state required
	// for the operation, e.g. it has no storage yet.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means a row or column index was past the valid range.
	OutOfRange AppErrorCode = 11

	// Internal errors. some invariant of the dependency graph was broken.
	Internal AppErrorCode = 13
)

// AppError represents errors at the application level (not formula errors)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

var (
	// ErrVirtualColumn is returned for operations that need storage on a
	// column that has none
	ErrVirtualColumn = NewApplicationError(FailedPrecondition, "column is virtual")

	ErrNoSuchColumn    = NewApplicationError(NotFound, "no such column")
	ErrIndexOutOfRange = NewApplicationError(OutOfRange, "index out of range")
)

// CompileErrorKind classifies why a formula failed to compile
type CompileErrorKind uint8

const (
	CompileCircular CompileErrorKind = iota + 1
	CompileSyntax
	CompileSemantic
	CompileInternal
)

func (k CompileErrorKind) String() string {
	switch k {
	case CompileCircular:
		return "circular"
	case CompileSyntax:
		return "syntax"
	case CompileSemantic:
		return "semantic"
	case CompileInternal:
		return "internal"
	}
	return "unknown"
}

// CompileError is the reason a column's formula is in the error state.
// Message is what the user sees.
type CompileError struct {
	Kind    CompileErrorKind
	Message string
	cause   error
}

func (e *CompileError) Error() string {
	return e.Message
}

// Cause returns the error that the compiler raised
func (e *CompileError) Cause() error {
	return e.cause
}

func (e *CompileError) Unwrap() error {
	return e.cause
}

func newCompileError(kind CompileErrorKind, cause error) *CompileError {
	var msg string
	switch kind {
	case CompileCircular:
		msg = "Circular reference detected"
	case CompileSyntax:
		msg = "The formula is mis-specified"
	case CompileSemantic:
		msg = cause.Error()
	default:
		var kindOf any = errors.Cause(cause)
		if p, ok := cause.(*panicError); ok {
			kindOf = p.value
		}
		msg = fmt.Sprintf("Unexpected error (%v, %T)", cause, kindOf)
	}
	return &CompileError{Kind: kind, Message: msg, cause: cause}
}

// panicError carries a value recovered while compiling or evaluating
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprint(e.value)
}

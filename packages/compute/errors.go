package compute

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrCircularReference is returned when a formula would read, directly or
// through other columns, the column it belongs to
var ErrCircularReference = errors.New("circular reference")

// SyntaxError is raised when formula text cannot be parsed
type SyntaxError struct {
	Message string
	Pos     int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s (at %d)", e.Message, e.Pos)
}

// NameError is raised for references to unknown columns or functions
type NameError struct {
	Name    string
	Message string
}

func (e *NameError) Error() string {
	return e.Message
}

// TypeError is raised when an operator or function is applied to values of
// the wrong type, or with the wrong number of arguments
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string {
	return e.Message
}

// ValueError is raised when a value is of the right type but unusable
type ValueError struct {
	Message string
}

func (e *ValueError) Error() string {
	return e.Message
}

func newNameError(name, format string, args ...any) *NameError {
	return &NameError{Name: name, Message: fmt.Sprintf(format, args...)}
}

func newTypeError(format string, args ...any) *TypeError {
	return &TypeError{Message: fmt.Sprintf(format, args...)}
}

// EvalErrorCode classifies a failure evaluating one row
type EvalErrorCode uint8

const (
	EvalErrorDiv0  EvalErrorCode = 1 // division by zero
	EvalErrorValue EvalErrorCode = 2 // wrong type of operand
	EvalErrorRef   EvalErrorCode = 3 // referenced column no longer exists
	EvalErrorNum   EvalErrorCode = 4 // result not representable
)

var evalErrorNames = map[EvalErrorCode]string{
	EvalErrorDiv0:  "#DIV/0!",
	EvalErrorValue: "#VALUE!",
	EvalErrorRef:   "#REF!",
	EvalErrorNum:   "#NUM!",
}

// EvalError is returned by Node.Eval for a row that cannot be computed. the
// recalculation engine contains it and writes missing for the row.
type EvalError struct {
	Code    EvalErrorCode
	Message string
}

func (e *EvalError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return evalErrorNames[e.Code]
}

// NewEvalError creates an evaluation error, defaulting the message to the
// code's name
func NewEvalError(code EvalErrorCode, message string) *EvalError {
	if message == "" {
		message = evalErrorNames[code]
	}
	return &EvalError{Code: code, Message: message}
}

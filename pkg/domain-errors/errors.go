// Package domainerrors carries coded errors across service boundaries.
//
// Services translate store and infrastructure failures into a coded error so
// callers (CLI, schedulers, operators) can branch on the category without string
// matching. Wrapping keeps the original cause reachable through errors.Is/As.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code categorizes a failure.
type Code string

const (
	CodeValidation  Code = "validation"
	CodeNotFound    Code = "not_found"
	CodeConflict    Code = "conflict"
	CodeInternal    Code = "internal"
	CodeTimeout     Code = "timeout"
	CodeUnavailable Code = "unavailable"
	CodeParse       Code = "parse"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to err. A nil err returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// GetCode returns the outermost code in the chain, or CodeInternal when the
// chain carries none.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

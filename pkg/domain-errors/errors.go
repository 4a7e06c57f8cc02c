// Package domainerrors carries coded errors across service boundaries so
// transports can translate them without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the category of a domain error.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeRateLimited        Code = "rate_limited"
	CodeUnavailable        Code = "service_unavailable"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if errors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.Err
			continue
		}
		return false
	}
	return false
}

// Is reports whether the outermost domain error in the chain carries code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the outermost domain code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

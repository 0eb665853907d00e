package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for transport mapping and logging. The pipeline
// never panics across component boundaries; everything surfaces as a coded error.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// Metadata describes how a code crosses the HTTP boundary. DetailsAllowed
// gates whether the typed message and details reach the client or the
// generic PublicMessage is served instead.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// MetadataFor resolves transport metadata for a code; unknown codes map
// to internal.
func MetadataFor(code Code) Metadata {
	switch code {
	case CodeValidation:
		return Metadata{
			HTTPStatus:     http.StatusBadRequest,
			PublicMessage:  "validation failed",
			DetailsAllowed: true,
		}
	case CodeNotFound:
		return Metadata{
			HTTPStatus:    http.StatusNotFound,
			PublicMessage: "resource not found",
		}
	case CodeConflict:
		return Metadata{
			HTTPStatus:    http.StatusConflict,
			PublicMessage: "conflict detected",
		}
	case CodeStateConflict:
		return Metadata{
			HTTPStatus:     http.StatusUnprocessableEntity,
			PublicMessage:  "state transition disallowed",
			DetailsAllowed: true,
		}
	case CodeDependency:
		return Metadata{
			HTTPStatus:     http.StatusServiceUnavailable,
			Retryable:      true,
			PublicMessage:  "dependency unavailable",
			DetailsAllowed: true,
		}
	default:
		return Metadata{
			HTTPStatus:    http.StatusInternalServerError,
			Retryable:     true,
			PublicMessage: "internal server error",
		}
	}
}

// Error carries a code plus an operator-facing message and optional
// structured details.
type Error struct {
	code    Code
	message string
	details any
	wrapped error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, wrapped: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.wrapped
}

// As extracts a coded error from anywhere in the chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

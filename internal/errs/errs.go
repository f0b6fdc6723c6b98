package errs

import (
	"errors"
	"net/http"
)

// Code is an application error code.
type Code string

const (
	InvalidArgument   Code = "invalid_argument"
	Malformed         Code = "malformed"
	NotFound          Code = "not_found"
	AlreadyExists     Code = "already_exists"
	ResourceExhausted Code = "resource_exhausted"
	Unavailable       Code = "unavailable"
	TooLarge          Code = "too_large"
	Internal          Code = "internal"
)

// FieldViolation describes one rejected input field.
type FieldViolation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error is a coded application error.
type Error struct {
	Code    Code
	Message string
	Err     error

	// Details lists every violated field for InvalidArgument errors.
	Details []FieldViolation
	// Fields carries the conflicting values for AlreadyExists errors.
	Fields map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// Invalid creates an InvalidArgument error listing every field violation.
func Invalid(details ...FieldViolation) error {
	return &Error{
		Code:    InvalidArgument,
		Message: "Validation failed",
		Details: details,
	}
}

// Duplicate creates an AlreadyExists error for the given conflicting fields.
func Duplicate(message string, fields map[string]any) error {
	return &Error{
		Code:    AlreadyExists,
		Message: message,
		Fields:  fields,
	}
}

// CodeOf returns the error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	return Internal
}

// MessageOf returns a user-facing error message.
// Untyped errors yield "internal error" so driver text, file paths and
// connection strings never reach a response body.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return "internal error"
}

// DetailsOf returns field violations carried by a typed error.
func DetailsOf(err error) []FieldViolation {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Details
	}
	return nil
}

// FieldsOf returns conflicting fields carried by a typed error.
func FieldsOf(err error) map[string]any {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Fields
	}
	return nil
}

// HTTPStatus maps error code to HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidArgument, Malformed:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case AlreadyExists:
		return http.StatusConflict
	case ResourceExhausted:
		return http.StatusTooManyRequests
	case Unavailable:
		return http.StatusServiceUnavailable
	case TooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Kind maps error code to the error kind reported on the wire.
func Kind(code Code) string {
	switch code {
	case InvalidArgument:
		return "ValidationError"
	case Malformed:
		return "BadRequest"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "DuplicateError"
	case ResourceExhausted:
		return "TooManyRequests"
	case Unavailable:
		return "ServiceUnavailable"
	case TooLarge:
		return "PayloadTooLarge"
	default:
		return "InternalError"
	}
}

// CodeForKind is the inverse of Kind. Unknown kinds map to Internal.
func CodeForKind(kind string) Code {
	for _, code := range []Code{InvalidArgument, Malformed, NotFound, AlreadyExists, ResourceExhausted, Unavailable, TooLarge} {
		if Kind(code) == kind {
			return code
		}
	}
	return Internal
}

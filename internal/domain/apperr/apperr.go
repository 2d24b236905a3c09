package apperr

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
	ErrIntegrity       = errors.New("data integrity violation")
)

// Error carries a stable machine code next to the human message. errors.Is
// matches it against its Kind sentinel.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func New(kind error, code, message string) error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Unauthenticated() error {
	return New(ErrUnauthenticated, "unauthenticated", "authentication required")
}

func Forbidden(message string) error {
	return New(ErrForbidden, "forbidden", message)
}

func NotFound(what string) error {
	return New(ErrNotFound, "not_found", what+" not found")
}

func Conflict(code, message string) error {
	return New(ErrConflict, code, message)
}

func Validation(code, message string) error {
	return New(ErrValidation, code, message)
}

func Integrity(code, message string) error {
	return New(ErrIntegrity, code, message)
}

// Code returns the machine code of err, or "" when err is not an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

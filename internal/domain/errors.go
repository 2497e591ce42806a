package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
)

// ErrorKind classifies errors that end up in front of the shopper.
type ErrorKind string

const (
	KindPermission ErrorKind = "permission"
	KindValidation ErrorKind = "validation"
)

// UserError carries a message meant to be shown as-is in an alert.
type UserError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// Validation builds a validation UserError.
func Validation(msg string) *UserError {
	return &UserError{Kind: KindValidation, Message: msg}
}

// Permission builds a permission/capability UserError wrapping cause.
func Permission(msg string, cause error) *UserError {
	return &UserError{Kind: KindPermission, Message: msg, Err: cause}
}

// AsUserError reports whether err carries a user-facing message.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

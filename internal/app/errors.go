package app

import "errors"

var (
	// ErrNotFound signals a missing job, glossary, user or target.
	ErrNotFound = errors.New("not found")
	// ErrNotReady signals a download request before any target finished.
	ErrNotReady = errors.New("not ready")
	// ErrInvalidCredentials signals a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError carries a user-facing message for a rejected request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(msg string) error { return &ValidationError{Msg: msg} }

package errprocess

import (
	"errors"
)

// Kind classify an error for the transport boundary
type Kind int

const (
	// KindInternal unexpected failure, detail is never shown to the client
	KindInternal Kind = iota
	// KindNotFound referenced message or user is absent
	KindNotFound
	// KindForbidden caller is not allowed to perform the action
	KindForbidden
	// KindValidation missing or malformed input
	KindValidation
)

// Error carry a Kind and a client safe message
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound create a NotFound error
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Forbidden create a Forbidden error
func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Msg: msg}
}

// Validation create a Validation error
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Internal wrap an unexpected error
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf return the Kind of err, anything unclassified is internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message return the client safe message of err
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "Internal server error"
}

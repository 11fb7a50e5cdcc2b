package common

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete module errors wrap exactly one of these so callers
// can branch with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrState         = errors.New("invalid state")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrModulePaused  = errors.New("module paused")
	ErrReentrantCall = errors.New("reentrant call")
)

// Error is a stable message tagged with an error kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	if len(args) == 0 {
		return &Error{Kind: kind, Msg: format}
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error { return newError(ErrNotFound, format, args...) }

func Validation(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func State(format string, args ...any) error { return newError(ErrState, format, args...) }

func Unauthorized(format string, args ...any) error {
	return newError(ErrUnauthorized, format, args...)
}

// KindOf returns the error kind wrapped by err, or nil when err carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrState, ErrUnauthorized, ErrModulePaused, ErrReentrantCall} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

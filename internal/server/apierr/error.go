package apierr

import (
	"errors"
	"fmt"

	"github.com/circa10a/push-timer/internal/server/database"
)

// Error is returned by handlers. Msg is shown to the caller, Err is only logged.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

// New builds an Error.
func New(code Code, msg string, underlying error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Code == code
	}
	return false
}

// WrapStoreError converts a store failure for target into an API error.
func WrapStoreError(target string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return New(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	return New(Unavailable, "Database error", fmt.Errorf("%s: %w", target, err))
}

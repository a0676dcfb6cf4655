package media

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrConfiguration = errors.New("media configuration error")
	ErrValidation    = errors.New("media validation error")
	ErrRemoteFetch   = errors.New("remote fetch error")
	ErrStorageWrite  = errors.New("storage write error")
	ErrCleanup       = errors.New("media cleanup error")
	ErrNotFound      = errors.New("media not found")
)

// Error carries the kind of failure, the operation that produced it and the
// underlying cause, if any.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%v: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func configurationError(op, format string, args ...any) error {
	return &Error{Kind: ErrConfiguration, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func validationError(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func remoteFetchError(op string, err error, format string, args ...any) error {
	return &Error{Kind: ErrRemoteFetch, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

func storageWriteError(op string, err error, format string, args ...any) error {
	return &Error{Kind: ErrStorageWrite, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

func cleanupError(op string, err error, format string, args ...any) error {
	return &Error{Kind: ErrCleanup, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsNotFound reports whether err means the requested media does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

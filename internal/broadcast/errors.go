package broadcast

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrTranscodeFailure = errors.New("transcode failed")
	ErrTranscodeTimeout = fmt.Errorf("%w: timed out", ErrTranscodeFailure)
	ErrDerivedArtifact  = errors.New("derived artifact unavailable")
	ErrPersistence      = errors.New("persistence failed")
)

// Error carries one of the base errors above, a caller-facing message and
// the underlying cause. errors.Is matches both Base and Err.
type Error struct {
	Base    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Base, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Base, e.Message)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Base != nil {
		errs = append(errs, e.Base)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(base error, msg string, err error) *Error {
	return &Error{Base: base, Message: msg, Err: err}
}

func validationError(format string, args ...any) *Error {
	return newError(ErrValidation, fmt.Sprintf(format, args...), nil)
}

func notFound(resource string, id any) *Error {
	return newError(ErrNotFound, fmt.Sprintf("%s not found", resource), fmt.Errorf("%s %v does not exist", resource, id))
}

func persistenceError(op string, err error) *Error {
	return newError(ErrPersistence, op, err)
}

// Message returns the caller-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

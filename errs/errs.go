// Package errs defines the error kinds shared across the store, the remote
// adapter and the sync engine, and their HTTP status mapping.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnsupportedMedia
	KindNotFound
	KindForbidden
	KindConflict
	KindRemoteRejected
	KindRemoteUnavailable
	KindCycle
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two *Error values by kind, so sentinel comparisons like
// errors.Is(err, errs.NotFound("")) work regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func UnsupportedMedia(format string, args ...interface{}) *Error {
	return New(KindUnsupportedMedia, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(KindForbidden, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

func RemoteRejected(format string, args ...interface{}) *Error {
	return New(KindRemoteRejected, format, args...)
}

func RemoteUnavailable(format string, args ...interface{}) *Error {
	return New(KindRemoteUnavailable, format, args...)
}

func Cycle(format string, args ...interface{}) *Error {
	return New(KindCycle, format, args...)
}

// KindOf returns the kind of err, or KindUnknown for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code handlers should respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindRemoteRejected:
		return http.StatusBadGateway
	case KindRemoteUnavailable:
		return http.StatusServiceUnavailable
	case KindCycle:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

package services

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the API layer can pick a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal"
	}
}

// Error is a user-facing failure. Message is safe to return to clients;
// Err holds the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func BadRequest(msg string) *Error {
	return newError(KindBadRequest, msg, nil)
}

func Unauthorized(msg string) *Error {
	return newError(KindUnauthorized, msg, nil)
}

func Forbidden(msg string) *Error {
	return newError(KindForbidden, msg, nil)
}

func NotFound(msg string) *Error {
	return newError(KindNotFound, msg, nil)
}

func Conflict(msg string) *Error {
	return newError(KindConflict, msg, nil)
}

func Unavailable(msg string, err error) *Error {
	return newError(KindServiceUnavailable, msg, err)
}

func Internal(msg string, err error) *Error {
	return newError(KindInternal, msg, err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

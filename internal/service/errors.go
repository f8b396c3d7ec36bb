package service

import (
	"context"
	"errors"

	"github.com/iliyamo/peer-support/internal/repository"
)

// Kind classifies a service failure.  The HTTP layer maps each kind to a
// fixed status code.
type Kind uint8

const (
	Internal Kind = iota
	Validation
	Unauthorized
	InvalidCredential
	Forbidden
	NotFound
	Conflict
	ExternalDependency
	Timeout
)

var kindNames = [...]string{
	Internal:           "internal",
	Validation:         "validation",
	Unauthorized:       "unauthorized",
	InvalidCredential:  "invalid_credential",
	Forbidden:          "forbidden",
	NotFound:           "not_found",
	Conflict:           "conflict",
	ExternalDependency: "external_dependency",
	Timeout:            "timeout",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Error is the only error type the service returns.  Msg is safe to show
// to callers; Err is the underlying cause and is never exposed.
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

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, msg string) error { return &Error{Kind: k, Msg: msg} }

func wrapErr(k Kind, msg string, err error) error { return &Error{Kind: k, Msg: msg, Err: err} }

// KindOf returns the kind of err.  Anything that is not an *Error is
// Internal, except deadline and cancellation errors which are Timeout.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Timeout
	}
	return Internal
}

// PublicMessage returns the caller-facing text for err.
func PublicMessage(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Msg != "" && se.Kind != Internal {
		return se.Msg
	}
	if KindOf(err) == Timeout {
		return "request timed out"
	}
	return "internal server error"
}

// IsKind reports whether err is a service error of kind k.
func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// storeErr translates a repository failure.  notFound is the message used
// for repository.ErrNotFound and defaults to "not found".
func storeErr(err error, notFound string) error {
	if notFound == "" {
		notFound = "not found"
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return wrapErr(NotFound, notFound, err)
	case errors.Is(err, repository.ErrEmailExists):
		return wrapErr(Conflict, "email is already registered", err)
	case errors.Is(err, repository.ErrConflict):
		return wrapErr(Conflict, "conflicting update", err)
	case errors.Is(err, context.DeadlineExceeded):
		return wrapErr(Timeout, "data store timed out", err)
	case errors.Is(err, context.Canceled):
		return wrapErr(Timeout, "request cancelled", err)
	}
	return wrapErr(Internal, "data store error", err)
}

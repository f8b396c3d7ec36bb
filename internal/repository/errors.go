// Package repository defines the store contracts used by the service layer,
// the sentinel errors every backend translates its driver errors into, and
// the MySQL implementation.  The MongoDB and in-process implementations
// live in the mongostore and memstore subpackages.
package repository

import "errors"

// ErrNotFound is returned when the addressed record does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when creating or renaming a user would collide
// with an existing (case-insensitive) email.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when a write cannot be applied because of
// conflicting state, such as attaching a response to a message that
// already has one.  Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// ErrStale is returned by a conditional write whose guard no longer holds:
// the record exists but changed since the caller read it.
var ErrStale = errors.New("stale state")

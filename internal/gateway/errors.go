package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Kind categorizes a gateway failure so callers can branch on it
type Kind string

const (
	// KindNotFound means the addressed record does not exist remotely.
	KindNotFound Kind = "not_found"

	// KindUnauthorized means the store refused the caller.
	KindUnauthorized Kind = "unauthorized"

	// KindConflict means a uniqueness or referential constraint failed.
	KindConflict Kind = "conflict"

	// KindInvalid means the store rejected the record's contents.
	KindInvalid Kind = "invalid"

	// KindTimeout means the call did not finish before its deadline.
	KindTimeout Kind = "timeout"

	// KindUnavailable covers every other transport or store failure.
	KindUnavailable Kind = "unavailable"
)

// Error is the failure result of a gateway call
type Error struct {
	// Op names the gateway operation, e.g. "create task".
	Op string

	// Kind identifies the failure category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// NewError builds a gateway error without an underlying cause.
func NewError(op string, kind Kind, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// classify wraps a store error into an *Error with the matching kind
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}

	kind := KindUnavailable
	message := err.Error()

	var sqliteErr sqlite3.Error
	switch {
	case errors.Is(err, sql.ErrNoRows):
		kind, message = KindNotFound, "record not found"
	case errors.Is(err, context.DeadlineExceeded):
		kind, message = KindTimeout, "request timed out"
	case errors.Is(err, context.Canceled):
		kind, message = KindUnavailable, "request cancelled"
	case errors.As(err, &sqliteErr):
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintNotNull:
			kind = KindInvalid
		case sqliteErr.Code == sqlite3.ErrConstraint:
			kind = KindConflict
		case sqliteErr.Code == sqlite3.ErrAuth, sqliteErr.Code == sqlite3.ErrPerm:
			kind = KindUnauthorized
		}
	}

	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}

// Package apperr defines the error taxonomy shared by every service and the
// Result envelope returned across the transport boundary.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error for callers that need to branch on it.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindInvalid
	KindArchivalFailed
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindInvalid:
		return "invalid"
	case KindArchivalFailed:
		return "archival_failed"
	case KindTransient:
		return "transient_store_error"
	default:
		return "unknown"
	}
}

// Error carries a Kind, the operation that failed and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// NotFound reports an absent entity. cause is usually a package sentinel.
func NotFound(op string, cause error) error { return newErr(KindNotFound, op, "", cause) }

// Conflict reports a duplicate write.
func Conflict(op string, cause error) error { return newErr(KindConflict, op, "", cause) }

// Forbidden reports a blocked user or a non-participant.
func Forbidden(op string, cause error) error { return newErr(KindForbidden, op, "", cause) }

// Invalid reports a malformed request.
func Invalid(op, msg string) error { return newErr(KindInvalid, op, msg, nil) }

// Archival reports a cold storage write failure.
func Archival(op string, cause error) error { return newErr(KindArchivalFailed, op, "", cause) }

// Transient wraps a key-value or relational I/O failure.
func Transient(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return newErr(KindTransient, op, "", errors.WithStack(cause))
}

// KindOf returns the Kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

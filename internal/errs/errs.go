// Package errs classifies failures into the kinds shared by both execution
// modes, so callers see identical errors whether an operation ran in-process
// or through the coordinator.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the coarse classification of an error.
type Kind int

const (
	// KindInternal - invariant violations and unexpected failures
	KindInternal Kind = iota
	// KindNotFound - a referenced task, session or template does not exist
	KindNotFound
	// KindInvalidArgument - malformed or out-of-range input
	KindInvalidArgument
	// KindConflict - the operation is illegal in the current state
	KindConflict
	// KindLockTimeout - the store lock could not be acquired in time
	KindLockTimeout
	// KindUnavailable - the coordinator could not be reached
	KindUnavailable
	// KindStale - the operation references a session whose heartbeat expired
	KindStale
)

var kindNames = map[Kind]string{
	KindInternal:        "internal",
	KindNotFound:        "not_found",
	KindInvalidArgument: "invalid_argument",
	KindConflict:        "conflict",
	KindLockTimeout:     "lock_timeout",
	KindUnavailable:     "unavailable",
	KindStale:           "stale",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "internal"
}

// ParseKind maps a wire name back to its Kind. Unknown names fall back to
// KindInternal so a newer server cannot crash an older client.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindInternal
}

// Error is a classified failure.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error with the given message.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf returns a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error without discarding it.
func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Convenience constructors for the common kinds.

func NotFoundf(format string, args ...any) error {
	return Newf(KindNotFound, format, args...)
}

func InvalidArgumentf(format string, args ...any) error {
	return Newf(KindInvalidArgument, format, args...)
}

func Conflictf(format string, args ...any) error {
	return Newf(KindConflict, format, args...)
}

func LockTimeoutf(format string, args ...any) error {
	return Newf(KindLockTimeout, format, args...)
}

func Unavailablef(format string, args ...any) error {
	return Newf(KindUnavailable, format, args...)
}

func Stalef(format string, args ...any) error {
	return Newf(KindStale, format, args...)
}

func Internalf(format string, args ...any) error {
	return Newf(KindInternal, format, args...)
}

// KindOf extracts the classification of an error. Unclassified errors
// report KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether the error carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code the coordinator responds with.
func HTTPStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindConflict, KindStale:
		return http.StatusConflict
	case KindLockTimeout, KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// KindForStatus is the client-side inverse of HTTPStatus, used when an
// error response carries no kind of its own.
func KindForStatus(code int) Kind {
	switch code {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest:
		return KindInvalidArgument
	case http.StatusConflict:
		return KindConflict
	case http.StatusServiceUnavailable:
		return KindUnavailable
	}
	return KindInternal
}

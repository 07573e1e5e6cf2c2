package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the service-wide failure categories.
type Kind int

const (
	// KindUnknown is the zero value; it never matches a classified error.
	KindUnknown Kind = iota
	// KindForbidden means the caller holds no grant covering the operation.
	KindForbidden
	// KindNotFound means the target document does not exist. Read paths also
	// use it for documents the caller is not allowed to see, so existence is
	// never leaked.
	KindNotFound
	// KindConflict means a uniqueness constraint or compare-and-swap
	// precondition failed.
	KindConflict
	// KindInvalidTransition means the lesson state does not admit the
	// requested lifecycle transition.
	KindInvalidTransition
	// KindStorageFailure means the document store or blob store failed before
	// any state was committed.
	KindStorageFailure
	// KindPartialFailure means the document change committed but a
	// best-effort blob side effect did not complete.
	KindPartialFailure
)

func (k Kind) String() string {
	switch k {
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindInvalidTransition:
		return "invalid transition"
	case KindStorageFailure:
		return "storage failure"
	case KindPartialFailure:
		return "partial failure"
	default:
		return "unknown"
	}
}

// Error is a classified service error. It carries the Kind for callers, a
// human-readable message, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match any *Error with the same Kind, so sentinel-style
// checks like errors.Is(err, apperrors.Forbidden("")) work through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New builds a classified error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Forbidden returns a KindForbidden error.
func Forbidden(message string) *Error { return New(KindForbidden, message) }

// NotFound returns a KindNotFound error.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Conflict returns a KindConflict error.
func Conflict(message string) *Error { return New(KindConflict, message) }

// InvalidTransition returns a KindInvalidTransition error.
func InvalidTransition(message string) *Error { return New(KindInvalidTransition, message) }

// StorageFailure wraps a cause as KindStorageFailure.
func StorageFailure(message string, err error) *Error {
	return Wrap(KindStorageFailure, message, err)
}

// PartialFailure wraps a cause as KindPartialFailure.
func PartialFailure(message string, err error) *Error {
	return Wrap(KindPartialFailure, message, err)
}

// KindOf extracts the Kind of a classified error anywhere in err's chain.
// Unclassified errors report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsForbidden reports whether err is classified KindForbidden.
func IsForbidden(err error) bool { return KindOf(err) == KindForbidden }

// IsNotFound reports whether err is classified KindNotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is classified KindConflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsInvalidTransition reports whether err is classified KindInvalidTransition.
func IsInvalidTransition(err error) bool { return KindOf(err) == KindInvalidTransition }

// IsStorageFailure reports whether err is classified KindStorageFailure.
func IsStorageFailure(err error) bool { return KindOf(err) == KindStorageFailure }

// IsPartialFailure reports whether err is classified KindPartialFailure.
func IsPartialFailure(err error) bool { return KindOf(err) == KindPartialFailure }

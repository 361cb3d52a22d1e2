// Package apperror defines the error taxonomy shared by the core services:
// NotFound, Validation, Conflict and Storage.
package apperror

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error
type Kind int

// Error kinds, see package doc
const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// storageMessage is all a caller ever sees of a storage failure
const storageMessage = "internal server error"

// Error is a classified error carrying a caller-facing message.
// Err holds internal detail and is never shown to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports an entity absent or outside the caller's scope
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation reports a malformed or logically invalid request
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a request that clashes with current state
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a transaction or connectivity failure
func Storage(err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStorage, Message: storageMessage, Err: errors.Wrap(err, op)}
}

// From returns err unchanged when it is already classified and wraps it as a
// storage error otherwise.
func From(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return Storage(err, op)
}

// KindOf reports the kind of err, KindUnknown for unclassified errors
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Message is the caller-facing text for err
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return storageMessage
}

// IsNotFound reports whether err is a NotFound error
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsValidation reports whether err is a Validation error
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsConflict reports whether err is a Conflict error
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsStorage reports whether err is a Storage error
func IsStorage(err error) bool { return KindOf(err) == KindStorage }

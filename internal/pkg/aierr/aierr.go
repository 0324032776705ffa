// Package aierr defines the error vocabulary shared by the AI provider,
// cache and model-store layers. Every failure that crosses a package
// boundary carries a machine-readable Kind; callers branch on the kind,
// never on message text.
package aierr

import (
	"errors"
	"fmt"
)

// Kind classifies an AI-layer failure.
type Kind string

const (
	// KindConfiguration marks a missing or unusable provider setup.
	// The message names the missing fields so the UI can point at settings.
	KindConfiguration Kind = "configuration"
	// KindInvalidModelFile marks a model path that is absent on disk or
	// whose filename was corrupted by URL query parameters.
	KindInvalidModelFile Kind = "invalid_model_file"
	// KindNetwork marks a transient transport failure (timeouts included).
	KindNetwork Kind = "network"
	// KindAuthentication marks a permanent credential rejection (cloud only).
	KindAuthentication Kind = "authentication"
	// KindChunkPartial marks a best-effort result where some chunks failed.
	KindChunkPartial Kind = "chunk_partial_failure"
	// KindTotal marks a run where every attempt or chunk failed.
	KindTotal Kind = "total_failure"
	// KindInvalidURL marks a download link that does not resolve to a
	// clean model filename.
	KindInvalidURL Kind = "invalid_url"
	// KindValidation marks rejected user input (e.g. settings payloads).
	KindValidation Kind = "validation"
)

// Error is a kinded AI-layer error.
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

// New creates a kinded error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// Transient reports whether err is worth retrying or falling back on.
func Transient(err error) bool {
	switch KindOf(err) {
	case KindNetwork:
		return true
	}
	return false
}

// Package apperror holds the error taxonomy of spec.md §7. Each kind maps
// to one HTTP disposition in the handler layer and one worker disposition
// in the stage runner.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy entries of spec.md §7.
type Kind string

const (
	KindValidation  Kind = "ValidationError"
	KindAuth        Kind = "AuthError"
	KindConflict    Kind = "ConflictError"
	KindMetadata    Kind = "MetadataError"
	KindStorage     Kind = "StorageError"
	KindTranscode   Kind = "TranscodeError"
	KindTranscribe  Kind = "TranscribeError"
	KindInternal    Kind = "InternalError"
)

// Error wraps an underlying cause with its taxonomy Kind and a
// user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error { return New(KindValidation, message, nil) }
func Auth(message string) *Error       { return New(KindAuth, message, nil) }
func Conflict(message string) *Error   { return New(KindConflict, message, nil) }

func Metadata(message string, cause error) *Error  { return New(KindMetadata, message, cause) }
func Storage(message string, cause error) *Error   { return New(KindStorage, message, cause) }
func Transcode(message string, cause error) *Error { return New(KindTranscode, message, cause) }
func Transcribe(message string, cause error) *Error {
	return New(KindTranscribe, message, cause)
}
func Internal(message string, cause error) *Error { return New(KindInternal, message, cause) }

// KindOf extracts the Kind of err if it is (or wraps) an *Error, otherwise
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Package apperr is the error taxonomy shared by ingestion, rendering and
// persistence. Errors from collaborators are converted into one of these
// kinds at the operation boundary.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindValidation is an oversized or unsupported input, rejected before
	// any mutation.
	KindValidation Kind = "VALIDATION"
	// KindDecode is an image or PDF that could not be decoded.
	KindDecode Kind = "DECODE"
	// KindNetwork is a failed upload, fetch or snapshot write.
	KindNetwork Kind = "NETWORK"
	// KindStorageUnavailable means no backing store is configured.
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
)

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

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NewDecode(message string, err error) error {
	return &Error{Kind: KindDecode, Message: message, Err: err}
}

func NewNetwork(message string, err error) error {
	return &Error{Kind: KindNetwork, Message: message, Err: err}
}

func NewStorageUnavailable(message string) error {
	return &Error{Kind: KindStorageUnavailable, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Retryable reports whether retrying the same operation may succeed.
// StorageUnavailable is handled like a network failure.
func Retryable(err error) bool {
	k, ok := KindOf(err)
	return ok && (k == KindNetwork || k == KindStorageUnavailable)
}

// UserMessage converts err into text suitable for the exit dialog or an
// ingestion error banner.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong."
	}
	switch e.Kind {
	case KindNetwork:
		return e.Message + ". Check your connection and try again."
	case KindStorageUnavailable:
		return e.Message + ". Try again later or discard."
	default:
		return e.Message + "."
	}
}

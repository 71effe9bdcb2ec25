// Package apperr provides the typed error taxonomy shared across the sync
// core. Every error that crosses a component boundary is, or wraps, an
// *apperr.Error so callers can classify failures without string matching.
package apperr

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Kind names a class of failure. Kind values are stable wire identifiers —
// do not rename.
type Kind string

const (
	KindDeviceNotFound      Kind = "DeviceNotFound"
	KindDeviceDisconnected  Kind = "DeviceDisconnected"
	KindDeviceReadOnly      Kind = "DeviceReadOnly"
	KindInsufficientSpace   Kind = "InsufficientSpace"
	KindReadFailed          Kind = "ReadFailed"
	KindWriteFailed         Kind = "WriteFailed"
	KindRenameFailed        Kind = "RenameFailed"
	KindNotFound            Kind = "NotFound"
	KindPermissionDenied    Kind = "PermissionDenied"
	KindNoSpaceLeft         Kind = "NoSpaceLeft"
	KindChecksumMismatch    Kind = "ChecksumMismatch"
	KindManifestCorrupt     Kind = "ManifestCorrupt"
	KindUnsupportedManifest Kind = "UnsupportedManifestVersion"
	KindCancelled           Kind = "Cancelled"
	KindInvalidInput        Kind = "InvalidInput"
	KindConfiguration       Kind = "Configuration"
	KindNetworkError        Kind = "NetworkError"
	KindRateLimited         Kind = "RateLimited"
	KindUnavailable         Kind = "Unavailable"
)

// retryableKinds lists kinds that are retryable by default. Callers that
// construct an Error with New/Wrap get this default; Retryable() overrides
// it explicitly when a specific instance knows better (e.g. a 429 with a
// Retry-After header).
var retryableKinds = map[Kind]bool{
	KindNetworkError: true,
	KindRateLimited:  true,
	KindUnavailable:  true,
}

// Error is the taxonomy-carrying error type. It wraps an underlying cause
// (captured with github.com/pkg/errors for stack context) with a Kind,
// a retryability flag, and an optional suggested retry delay.
type Error struct {
	Kind       Kind
	Retryable  bool
	RetryDelay *time.Duration
	Message    string
	cause      error
}

// New constructs an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:      kind,
		Retryable: retryableKinds[kind],
		Message:   message,
		cause:     errors.New(message),
	}
}

// Wrap constructs an Error of the given kind around an existing error,
// preserving it as the Unwrap() target and capturing a stack trace.
func Wrap(kind Kind, cause error, message string) *Error {
	if cause == nil {
		return New(kind, message)
	}

	return &Error{
		Kind:      kind,
		Retryable: retryableKinds[kind],
		Message:   message,
		cause:     errors.Wrap(cause, message),
	}
}

// WithRetry overrides the retryability and suggested delay on a constructed
// Error. Returns the receiver for chaining.
func (e *Error) WithRetry(retryable bool, delay time.Duration) *Error {
	e.Retryable = retryable
	e.RetryDelay = &delay

	return e
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s", e.Kind)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// RetryDelaySecs returns the suggested retry delay in whole seconds, or 0
// if none was set.
func (e *Error) RetryDelaySecs() int {
	if e.RetryDelay == nil {
		return 0
	}

	return int(e.RetryDelay.Round(time.Second) / time.Second)
}

// Is reports whether target is an *Error with the same Kind, enabling
// errors.Is(err, apperr.New(apperr.KindDeviceNotFound, "")) style checks
// when target carries no cause of its own. Primarily used internally by
// KindOf below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err if it is, or wraps, an *Error.
// Returns ("", false) otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}

	return "", false
}

// Boundary is the shape serialized to the IPC/CLI boundary per spec.md §7.
type Boundary struct {
	Message        string `json:"message"`
	Kind           string `json:"kind"`
	Retryable      bool   `json:"retryable"`
	RetryDelaySecs int    `json:"retry_delay_secs,omitempty"`
}

// ToBoundary converts any error into the boundary serialization shape.
// Non-apperr errors are reported with an empty Kind and Retryable=false.
func ToBoundary(err error) Boundary {
	if err == nil {
		return Boundary{}
	}

	var e *Error
	if errors.As(err, &e) {
		return Boundary{
			Message:        e.Error(),
			Kind:           string(e.Kind),
			Retryable:      e.Retryable,
			RetryDelaySecs: e.RetryDelaySecs(),
		}
	}

	return Boundary{Message: err.Error()}
}

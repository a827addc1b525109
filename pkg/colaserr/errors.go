// Package colaserr defines the structured error vocabulary shared by the
// codec, queue, stream, and dispatcher packages.
package colaserr

import (
	"errors"
	"fmt"
)

// Code identifies the high-level category of a failure.
type Code string

const (
	// ConfigError marks an unsupported DSN. Operating on a table before Init
	// is not detected up front; the driver's error surfaces as StorageError.
	ConfigError Code = "config_error"
	// StorageError marks an underlying storage failure, surfaced unchanged.
	StorageError Code = "storage_error"
	// CodecError marks a malformed payload on decode, or an unsupported
	// value on encode.
	CodecError Code = "codec_error"
	// CancelError marks cooperative cancellation during polling.
	CancelError Code = "cancel_error"
	// HandlerError marks an error returned by a registered handler.
	HandlerError Code = "handler_error"
)

// Error is the structured error type raised across this module. Op names
// the operation that failed (e.g. "queue.Pop", "backend.Connect"); Code
// classifies the failure; Inner carries the wrapped cause, if any.
type Error struct {
	Op    string
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Inner != nil {
		msg = e.Inner.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("colas: %s: %s: %s", e.Op, e.Code, msg)
	}
	return fmt.Sprintf("colas: %s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is(err, colaserr.Code) style comparison by matching on
// Code when the target is itself an *Error.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// New constructs a structured error with no wrapped cause.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// Wrap constructs a structured error carrying an existing cause. A nil
// inner yields a nil error so call sites can wrap unconditionally.
func Wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Inner: inner}
}

// Of reports whether err carries the given Code, unwrapping as needed.
func Of(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Config is a convenience constructor for ConfigError.
func Config(op, msg string) *Error { return New(op, ConfigError, msg) }

// Storage wraps a storage-layer error.
func Storage(op string, err error) *Error { return Wrap(op, StorageError, err) }

// Codec wraps a codec-layer error.
func Codec(op string, err error) *Error { return Wrap(op, CodecError, err) }

// Cancel wraps a context cancellation observed during polling.
func Cancel(op string, err error) *Error { return Wrap(op, CancelError, err) }

// Handler wraps an error returned by a user handler.
func Handler(op string, err error) *Error { return Wrap(op, HandlerError, err) }

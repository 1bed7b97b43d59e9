package remote

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

// Failure kinds. Every error returned by a Gateway matches exactly one of
// these with errors.Is.
var (
	ErrNetwork    = errors.New("network failure")
	ErrAuth       = errors.New("authentication failure")
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failure")
	ErrConflict   = errors.New("conflict")
)

// Error is a classified failure with a human-readable message.
type Error struct {
	Kind    error  // one of the Err* kinds above
	Op      string // operation that failed, e.g. "select meals"
	Message string // message suitable for display
	Err     error  // underlying cause, may be nil
}

// NewError creates a classified error without an underlying cause.
func NewError(kind error, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the display message of err, falling back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Message
	}
	return err.Error()
}

// Classify turns any error into an *Error. Errors that are already
// classified are returned with their kind intact; Connect errors are mapped
// by code; anything else is treated as a network failure.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		if rerr.Op == "" {
			return &Error{Kind: rerr.Kind, Op: op, Message: rerr.Message, Err: rerr.Err}
		}
		return err
	}
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return &Error{Kind: KindForCode(cerr.Code()), Op: op, Message: cerr.Message(), Err: err}
	}
	return &Error{Kind: ErrNetwork, Op: op, Message: err.Error(), Err: err}
}

// KindForCode maps a Connect status code to a failure kind.
func KindForCode(code connect.Code) error {
	switch code {
	case connect.CodeUnauthenticated, connect.CodePermissionDenied:
		return ErrAuth
	case connect.CodeNotFound:
		return ErrNotFound
	case connect.CodeAlreadyExists, connect.CodeAborted, connect.CodeFailedPrecondition:
		return ErrConflict
	case connect.CodeInvalidArgument:
		return ErrValidation
	default:
		return ErrNetwork
	}
}

// CodeForKind is the inverse of KindForCode, used by servers.
func CodeForKind(err error) connect.Code {
	switch {
	case errors.Is(err, ErrAuth):
		return connect.CodeUnauthenticated
	case errors.Is(err, ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, ErrConflict):
		return connect.CodeAlreadyExists
	case errors.Is(err, ErrValidation):
		return connect.CodeInvalidArgument
	default:
		return connect.CodeInternal
	}
}

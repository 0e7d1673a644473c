package sound

import (
	"errors"
	"fmt"
)

// Common sound errors
var (
	// ErrResourceLoad indicates the backend could not open or decode a resource
	ErrResourceLoad = errors.New("resource could not be loaded")

	// ErrBackend indicates a backend call failed outside of loading
	ErrBackend = errors.New("audio backend failure")

	// ErrNotLoaded indicates a sound identity was never loaded
	ErrNotLoaded = errors.New("sound not loaded")

	// ErrUnknownEvent indicates an event name was never loaded
	ErrUnknownEvent = errors.New("unknown event")

	// ErrInvalidInstance indicates an event instance index has no live instance
	ErrInvalidInstance = errors.New("invalid event instance")

	// ErrInvalidOrientation indicates listener forward/up vectors are unusable
	ErrInvalidOrientation = errors.New("invalid listener orientation")

	// ErrInstanceLimit indicates an event reached its instance limit
	ErrInstanceLimit = errors.New("event instance limit reached")

	// ErrClosed indicates the engine was closed
	ErrClosed = errors.New("sound engine is closed")
)

// ErrorCode identifies specific error types
type ErrorCode string

const (
	// Environment errors
	ErrorCodeResourceLoad  ErrorCode = "RESOURCE_LOAD"
	ErrorCodeBackend       ErrorCode = "BACKEND_FAILURE"
	ErrorCodeInstanceLimit ErrorCode = "INSTANCE_LIMIT"

	// Caller errors
	ErrorCodeNotLoaded          ErrorCode = "NOT_LOADED"
	ErrorCodeUnknownEvent       ErrorCode = "UNKNOWN_EVENT"
	ErrorCodeInvalidInstance    ErrorCode = "INVALID_INSTANCE"
	ErrorCodeInvalidOrientation ErrorCode = "INVALID_ORIENTATION"
	ErrorCodeClosed             ErrorCode = "CLOSED"
)

var codeSentinels = map[ErrorCode]error{
	ErrorCodeResourceLoad:       ErrResourceLoad,
	ErrorCodeBackend:            ErrBackend,
	ErrorCodeInstanceLimit:      ErrInstanceLimit,
	ErrorCodeNotLoaded:          ErrNotLoaded,
	ErrorCodeUnknownEvent:       ErrUnknownEvent,
	ErrorCodeInvalidInstance:    ErrInvalidInstance,
	ErrorCodeInvalidOrientation: ErrInvalidOrientation,
	ErrorCodeClosed:             ErrClosed,
}

// Error is an engine error carrying the operation and identity it concerns.
type Error struct {
	Code     ErrorCode
	Op       string
	Identity string
	Cause    error
}

// NewError creates an engine error.
func NewError(code ErrorCode, op, identity string, cause error) *Error {
	return &Error{
		Code:     code,
		Op:       op,
		Identity: identity,
		Cause:    cause,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Code)
	if e.Identity != "" {
		msg = fmt.Sprintf("%s %q: %s", e.Op, e.Identity, e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel error for the error's code.
func (e *Error) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && target == sentinel
}

// IsMisuse returns true if the error points at a caller bug rather than at
// the environment.
func (e *Error) IsMisuse() bool {
	switch e.Code {
	case ErrorCodeNotLoaded,
		ErrorCodeUnknownEvent,
		ErrorCodeInvalidInstance,
		ErrorCodeInvalidOrientation,
		ErrorCodeClosed:
		return true
	default:
		return false
	}
}

// IsTransient returns true if the error depends on the environment and the
// operation may succeed later.
func (e *Error) IsTransient() bool {
	switch e.Code {
	case ErrorCodeResourceLoad,
		ErrorCodeBackend,
		ErrorCodeInstanceLimit:
		return true
	default:
		return false
	}
}

// IsMisuse reports whether err is an engine error caused by the caller.
func IsMisuse(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.IsMisuse()
}

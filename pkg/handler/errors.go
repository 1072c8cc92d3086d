package handler

import (
	"errors"
	"fmt"
)

// HandlerErrorType is the closed set of infrastructure error kinds.
type HandlerErrorType int

const (
	HandlerErrorTypeUnknown HandlerErrorType = iota
	HandlerErrorTypeBadRequest
	HandlerErrorTypeUnauthenticated
	HandlerErrorTypeUnauthorized
	HandlerErrorTypeNotFound
	HandlerErrorTypeResourceExhausted
	HandlerErrorTypeInternal
	HandlerErrorTypeNotImplemented
	HandlerErrorTypeUnavailable
	HandlerErrorTypeUpstreamTimeout
)

var handlerErrorTypeWire = map[HandlerErrorType]string{
	HandlerErrorTypeUnknown:           "UNKNOWN",
	HandlerErrorTypeBadRequest:        "BAD_REQUEST",
	HandlerErrorTypeUnauthenticated:   "UNAUTHENTICATED",
	HandlerErrorTypeUnauthorized:      "UNAUTHORIZED",
	HandlerErrorTypeNotFound:          "NOT_FOUND",
	HandlerErrorTypeResourceExhausted: "RESOURCE_EXHAUSTED",
	HandlerErrorTypeInternal:          "INTERNAL",
	HandlerErrorTypeNotImplemented:    "NOT_IMPLEMENTED",
	HandlerErrorTypeUnavailable:       "UNAVAILABLE",
	HandlerErrorTypeUpstreamTimeout:   "UPSTREAM_TIMEOUT",
}

var handlerErrorTypeByWire = func() map[string]HandlerErrorType {
	m := make(map[string]HandlerErrorType, len(handlerErrorTypeWire))
	for t, s := range handlerErrorTypeWire {
		m[s] = t
	}
	return m
}()

// String returns the canonical wire string, e.g. "BAD_REQUEST".
func (t HandlerErrorType) String() string {
	if s, ok := handlerErrorTypeWire[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseHandlerErrorType decodes a wire string. Unrecognized strings yield
// HandlerErrorTypeUnknown and false.
func ParseHandlerErrorType(s string) (HandlerErrorType, bool) {
	t, ok := handlerErrorTypeByWire[s]
	return t, ok
}

// Retryable reports the default retry classification of the kind.
func (t HandlerErrorType) Retryable() bool {
	switch t {
	case HandlerErrorTypeBadRequest,
		HandlerErrorTypeUnauthenticated,
		HandlerErrorTypeUnauthorized,
		HandlerErrorTypeNotFound,
		HandlerErrorTypeNotImplemented:
		return false
	default:
		return true
	}
}

// HandlerErrorRetryBehavior overrides the retry classification of a kind.
type HandlerErrorRetryBehavior int

const (
	HandlerErrorRetryBehaviorUnspecified HandlerErrorRetryBehavior = iota
	HandlerErrorRetryBehaviorRetryable
	HandlerErrorRetryBehaviorNonRetryable
)

// HandlerError is an infrastructure-level failure of a handler call. Its
// retry classification is advisory; the handler itself never retries.
type HandlerError struct {
	Type HandlerErrorType
	// RawType is the wire string the error was decoded from. Empty for
	// locally created errors.
	RawType       string
	Message       string
	Cause         error
	RetryBehavior HandlerErrorRetryBehavior
}

// NewHandlerError creates a HandlerError with the kind's default retry behavior.
func NewHandlerError(t HandlerErrorType, message string) *HandlerError {
	return &HandlerError{Type: t, Message: message}
}

// NewHandlerErrorf creates a HandlerError with a formatted message. A %w
// verb sets Cause.
func NewHandlerErrorf(t HandlerErrorType, format string, args ...any) *HandlerError {
	err := fmt.Errorf(format, args...)
	return &HandlerError{Type: t, Message: err.Error(), Cause: errors.Unwrap(err)}
}

// HandlerErrorFromWire reconstructs a HandlerError received from another
// process. Unrecognized kinds become HandlerErrorTypeUnknown while RawType
// keeps the original string.
func HandlerErrorFromWire(rawType, message string, cause error, retry HandlerErrorRetryBehavior) *HandlerError {
	t, _ := ParseHandlerErrorType(rawType)
	return &HandlerError{Type: t, RawType: rawType, Message: message, Cause: cause, RetryBehavior: retry}
}

func (e *HandlerError) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// WireType returns the raw wire string if the error was decoded from the
// wire, otherwise the canonical string of Type.
func (e *HandlerError) WireType() string {
	if e.RawType != "" {
		return e.RawType
	}
	return e.Type.String()
}

// Retryable returns the explicit override when set and the kind default otherwise.
func (e *HandlerError) Retryable() bool {
	switch e.RetryBehavior {
	case HandlerErrorRetryBehaviorRetryable:
		return true
	case HandlerErrorRetryBehaviorNonRetryable:
		return false
	default:
		return e.Type.Retryable()
	}
}

// ErrInvalidInput is wrapped by the generic adapter when an input value does
// not match the wrapped handler's declared input type.
var ErrInvalidInput = errors.New("invalid operation input")

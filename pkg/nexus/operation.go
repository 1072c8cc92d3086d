package nexus

import (
	"errors"
	"fmt"
)

// OperationState is the state of an operation as reported by FetchInfo.
type OperationState int

const (
	// OperationStateRunning is the only non-terminal state.
	OperationStateRunning OperationState = iota
	OperationStateSucceeded
	OperationStateFailed
	OperationStateCanceled
)

var operationStateNames = map[OperationState]string{
	OperationStateRunning:   "running",
	OperationStateSucceeded: "succeeded",
	OperationStateFailed:    "failed",
	OperationStateCanceled:  "canceled",
}

func (s OperationState) String() string {
	if name, ok := operationStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OperationState(%d)", int(s))
}

// Terminal reports whether the state is final.
func (s OperationState) Terminal() bool {
	return s != OperationStateRunning
}

// ParseOperationState parses the lower-case state name produced by String.
func ParseOperationState(s string) (OperationState, bool) {
	for state, name := range operationStateNames {
		if name == s {
			return state, true
		}
	}
	return OperationStateRunning, false
}

// OperationInfo describes an operation started asynchronously.
type OperationInfo struct {
	Token string
	State OperationState
}

// ErrOperationStillRunning is returned by FetchResult when the operation has
// not completed and either no wait was requested or the wait elapsed. It is
// neither a success nor an infrastructure failure.
var ErrOperationStillRunning = errors.New("operation still running")

// OperationError reports that the operation itself concluded unsuccessfully.
// It is a business outcome, unrelated to the health of the call that
// observed it.
type OperationError struct {
	State   OperationState
	Message string
	Cause   error
}

// NewFailedOperationError creates an OperationError in the failed state.
func NewFailedOperationError(message string, cause error) *OperationError {
	return &OperationError{State: OperationStateFailed, Message: message, Cause: cause}
}

// NewCanceledOperationError creates an OperationError in the canceled state.
func NewCanceledOperationError(message string, cause error) *OperationError {
	return &OperationError{State: OperationStateCanceled, Message: message, Cause: cause}
}

func (e *OperationError) Error() string {
	if e.Message == "" && e.Cause != nil {
		return fmt.Sprintf("operation %s: %v", e.State, e.Cause)
	}
	return fmt.Sprintf("operation %s: %s", e.State, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

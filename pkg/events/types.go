// Package events defines operation lifecycle events and the publishers that
// emit them.
package events

// Outcome values carried by OperationEvent.
const (
	OutcomeOK           = "ok"
	OutcomeStillRunning = "still_running"
	OutcomeAsync        = "async"
	OutcomeFailed       = "failed"
	OutcomeCanceled     = "canceled"
	OutcomeError        = "error"
)

// Method values carried by OperationEvent.
const (
	MethodStartOperation       = "startOperation"
	MethodFetchOperationResult = "fetchOperationResult"
	MethodFetchOperationInfo   = "fetchOperationInfo"
	MethodCancelOperation      = "cancelOperation"
)

// OperationEvent is emitted once per lifecycle call that reached an
// operation handler.
type OperationEvent struct {
	Service        string `json:"service"`
	Operation      string `json:"operation"`
	Method         string `json:"method"`
	RequestID      string `json:"requestId,omitempty"`
	OperationToken string `json:"operationToken,omitempty"`
	Outcome        string `json:"outcome"`
	// ErrorType is the wire error kind for OutcomeError.
	ErrorType  string `json:"errorType,omitempty"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Timestamp  string `json:"timestamp"`
}

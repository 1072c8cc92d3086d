// Package dispatcher binds the Nexus dispatch engine to COMMS request/reply
// messaging.
package dispatcher

// Lifecycle methods accepted in NexusRequest.Method.
const (
	MethodStartOperation       = "startOperation"
	MethodFetchOperationResult = "fetchOperationResult"
	MethodFetchOperationInfo   = "fetchOperationInfo"
	MethodCancelOperation      = "cancelOperation"
)

// NexusRequest is the JSON envelope for incoming COMMS Nexus requests.
// Payload travels base64-encoded.
type NexusRequest struct {
	ID              string             `json:"id"`
	Method          string             `json:"method"`
	Service         string             `json:"service"`
	Operation       string             `json:"operation"`
	RequestID       string             `json:"requestId,omitempty"`
	OperationToken  string             `json:"operationToken,omitempty"`
	CallbackURL     string             `json:"callbackUrl,omitempty"`
	CallbackHeaders map[string]string  `json:"callbackHeaders,omitempty"`
	Links           []LinkDetail       `json:"links,omitempty"`
	Headers         map[string]string  `json:"headers,omitempty"`
	WaitMs          int64              `json:"waitMs,omitempty"`
	Payload         []byte             `json:"payload,omitempty"`
	PayloadHeaders  map[string]string  `json:"payloadHeaders,omitempty"`
	Ctx             *InvocationContext `json:"ctx,omitempty"`
}

// NexusResponse is the JSON envelope for COMMS Nexus responses.
type NexusResponse struct {
	ID     string        `json:"id"`
	Ok     bool          `json:"ok"`
	Result *ResultDetail `json:"result,omitempty"`
	Error  *ErrorDetail  `json:"error,omitempty"`
}

// ResultDetail carries the outcome of a successful call. A start result is
// asynchronous iff Token is set.
type ResultDetail struct {
	Token          string            `json:"token,omitempty"`
	Payload        []byte            `json:"payload,omitempty"`
	PayloadHeaders map[string]string `json:"payloadHeaders,omitempty"`
	StillRunning   bool              `json:"stillRunning,omitempty"`
	Info           *InfoDetail       `json:"info,omitempty"`
	Links          []LinkDetail      `json:"links,omitempty"`
}

// InfoDetail is the wire form of nexus.OperationInfo.
type InfoDetail struct {
	Token string `json:"token"`
	State string `json:"state"`
}

// LinkDetail is the wire form of nexus.Link.
type LinkDetail struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	// OperationState is set for operation outcomes (failed or canceled).
	OperationState string `json:"operationState,omitempty"`
}

// InvocationContext holds deadlines from the caller.
type InvocationContext struct {
	DeadlineMs int64 `json:"deadlineMs,omitempty"`
	TimeoutMs  int64 `json:"timeoutMs,omitempty"`
}

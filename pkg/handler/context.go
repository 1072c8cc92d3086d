package handler

import (
	"sync/atomic"
	"time"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

// OperationContext carries the fields shared by every lifecycle call. The
// call-scoped cancellation signal is the context.Context passed alongside
// it; canceling that context aborts the call, never the operation.
type OperationContext struct {
	Service   string
	Operation string
	Header    nexus.Header
	// OutboundLinks may be appended to by the handler and are returned to
	// the caller by the transport.
	OutboundLinks []nexus.Link

	cancellationReason atomic.Pointer[string]
}

// CancellationReason returns the reason the call context was canceled, if
// the transport recorded one. It is set independently of the context's
// cancellation, so it may not be visible yet when ctx.Done() fires.
func (c *OperationContext) CancellationReason() (string, bool) {
	if r := c.cancellationReason.Load(); r != nil {
		return *r, true
	}
	return "", false
}

// SetCancellationReason records why the call context is being canceled.
// Transports call it just before canceling.
func (c *OperationContext) SetCancellationReason(reason string) {
	c.cancellationReason.Store(&reason)
}

// StartOperationContext is the context of a start call.
type StartOperationContext struct {
	OperationContext
	RequestID      string
	CallbackURL    string
	CallbackHeader nexus.Header
	InboundLinks   []nexus.Link
}

// FetchOperationResultContext is the context of a fetch-result call.
type FetchOperationResultContext struct {
	OperationContext
	OperationToken string
	// Wait is how long the caller is willing to wait for completion. Zero
	// means return immediately.
	Wait time.Duration
}

// FetchOperationInfoContext is the context of a fetch-info call.
type FetchOperationInfoContext struct {
	OperationContext
	OperationToken string
}

// CancelOperationContext is the context of a cancel call.
type CancelOperationContext struct {
	OperationContext
	OperationToken string
}

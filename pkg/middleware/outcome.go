// Package middleware provides reusable operation middleware for the Nexus
// dispatch engine.
package middleware

import (
	"errors"

	"github.com/morezero/nexus-handler/pkg/events"
	"github.com/morezero/nexus-handler/pkg/handler"
	"github.com/morezero/nexus-handler/pkg/nexus"
)

// result summarizes how a lifecycle call ended.
type result struct {
	outcome   string
	errorType string
	message   string
}

func classify(err error) result {
	if err == nil {
		return result{outcome: events.OutcomeOK}
	}
	if errors.Is(err, nexus.ErrOperationStillRunning) {
		return result{outcome: events.OutcomeStillRunning}
	}
	var opErr *nexus.OperationError
	if errors.As(err, &opErr) {
		if opErr.State == nexus.OperationStateCanceled {
			return result{outcome: events.OutcomeCanceled, message: opErr.Error()}
		}
		return result{outcome: events.OutcomeFailed, message: opErr.Error()}
	}
	var handlerErr *handler.HandlerError
	if errors.As(err, &handlerErr) {
		return result{outcome: events.OutcomeError, errorType: handlerErr.WireType(), message: handlerErr.Error()}
	}
	return result{outcome: events.OutcomeError, errorType: handler.HandlerErrorTypeInternal.String(), message: err.Error()}
}

func classifyStart(r *handler.OperationStartResult[any], err error) result {
	if err == nil && r != nil && !r.IsSync() {
		return result{outcome: events.OutcomeAsync}
	}
	return classify(err)
}

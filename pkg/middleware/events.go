package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/nexus-handler/pkg/events"
	"github.com/morezero/nexus-handler/pkg/handler"
	"github.com/morezero/nexus-handler/pkg/nexus"
)

const eventsLogPrefix = "middleware:events"

// Events publishes one events.OperationEvent per lifecycle call. Publish
// failures are logged and never change the call's result.
func Events(publisher events.EventPublisher) handler.OperationMiddleware {
	return handler.MiddlewareFunc(func(_ context.Context, opCtx *handler.OperationContext, next handler.GenericOperationHandler) handler.GenericOperationHandler {
		return &eventsHandler{
			PassthroughHandler: handler.PassthroughHandler{Next: next},
			publisher:          publisher,
			service:            opCtx.Service,
			operation:          opCtx.Operation,
		}
	})
}

type eventsHandler struct {
	handler.PassthroughHandler
	publisher events.EventPublisher
	service   string
	operation string
}

func (e *eventsHandler) publish(ctx context.Context, event *events.OperationEvent, started time.Time, r result) {
	event.Service = e.service
	event.Operation = e.operation
	event.Outcome = r.outcome
	event.ErrorType = r.errorType
	event.Message = r.message
	event.DurationMs = time.Since(started).Milliseconds()
	event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	// The call context may already be done; the event still goes out.
	if err := e.publisher.PublishOperation(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish %s event for %s.%s: %v", eventsLogPrefix, event.Method, e.service, e.operation, err))
	}
}

func (e *eventsHandler) Start(ctx context.Context, opCtx *handler.StartOperationContext, input any) (*handler.OperationStartResult[any], error) {
	started := time.Now()
	res, err := e.Next.Start(ctx, opCtx, input)
	event := &events.OperationEvent{Method: events.MethodStartOperation, RequestID: opCtx.RequestID}
	if err == nil && res != nil && !res.IsSync() {
		event.OperationToken = res.AsyncToken()
	}
	e.publish(ctx, event, started, classifyStart(res, err))
	return res, err
}

func (e *eventsHandler) FetchResult(ctx context.Context, opCtx *handler.FetchOperationResultContext) (any, error) {
	started := time.Now()
	v, err := e.Next.FetchResult(ctx, opCtx)
	e.publish(ctx, &events.OperationEvent{Method: events.MethodFetchOperationResult, OperationToken: opCtx.OperationToken}, started, classify(err))
	return v, err
}

func (e *eventsHandler) FetchInfo(ctx context.Context, opCtx *handler.FetchOperationInfoContext) (*nexus.OperationInfo, error) {
	started := time.Now()
	info, err := e.Next.FetchInfo(ctx, opCtx)
	e.publish(ctx, &events.OperationEvent{Method: events.MethodFetchOperationInfo, OperationToken: opCtx.OperationToken}, started, classify(err))
	return info, err
}

func (e *eventsHandler) Cancel(ctx context.Context, opCtx *handler.CancelOperationContext) error {
	started := time.Now()
	err := e.Next.Cancel(ctx, opCtx)
	e.publish(ctx, &events.OperationEvent{Method: events.MethodCancelOperation, OperationToken: opCtx.OperationToken}, started, classify(err))
	return err
}

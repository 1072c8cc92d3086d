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

const loggingLogPrefix = "middleware:logging"

// Logging logs every lifecycle call with its duration and outcome. Successful
// calls log at info, handler errors at warn.
func Logging() handler.OperationMiddleware {
	return handler.MiddlewareFunc(func(_ context.Context, opCtx *handler.OperationContext, next handler.GenericOperationHandler) handler.GenericOperationHandler {
		return &loggingHandler{
			PassthroughHandler: handler.PassthroughHandler{Next: next},
			service:            opCtx.Service,
			operation:          opCtx.Operation,
		}
	})
}

type loggingHandler struct {
	handler.PassthroughHandler
	service   string
	operation string
}

func (l *loggingHandler) log(method string, started time.Time, r result) {
	msg := fmt.Sprintf("%s - %s %s.%s outcome=%s duration=%s", loggingLogPrefix, method, l.service, l.operation, r.outcome, time.Since(started))
	if r.outcome == events.OutcomeError {
		slog.Warn(fmt.Sprintf("%s type=%s message=%q", msg, r.errorType, r.message))
		return
	}
	slog.Info(msg)
}

func (l *loggingHandler) Start(ctx context.Context, opCtx *handler.StartOperationContext, input any) (*handler.OperationStartResult[any], error) {
	started := time.Now()
	res, err := l.Next.Start(ctx, opCtx, input)
	l.log(events.MethodStartOperation, started, classifyStart(res, err))
	return res, err
}

func (l *loggingHandler) FetchResult(ctx context.Context, opCtx *handler.FetchOperationResultContext) (any, error) {
	started := time.Now()
	v, err := l.Next.FetchResult(ctx, opCtx)
	l.log(events.MethodFetchOperationResult, started, classify(err))
	return v, err
}

func (l *loggingHandler) FetchInfo(ctx context.Context, opCtx *handler.FetchOperationInfoContext) (*nexus.OperationInfo, error) {
	started := time.Now()
	info, err := l.Next.FetchInfo(ctx, opCtx)
	l.log(events.MethodFetchOperationInfo, started, classify(err))
	return info, err
}

func (l *loggingHandler) Cancel(ctx context.Context, opCtx *handler.CancelOperationContext) error {
	started := time.Now()
	err := l.Next.Cancel(ctx, opCtx)
	l.log(events.MethodCancelOperation, started, classify(err))
	return err
}

package handler

import (
	"context"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

// OperationMiddleware intercepts calls to operation handlers. Intercept is
// called once per call and returns the handler to invoke instead of next.
// One middleware instance serves all calls concurrently.
type OperationMiddleware interface {
	Intercept(ctx context.Context, opCtx *OperationContext, next GenericOperationHandler) GenericOperationHandler
}

// MiddlewareFunc adapts a function to OperationMiddleware.
type MiddlewareFunc func(ctx context.Context, opCtx *OperationContext, next GenericOperationHandler) GenericOperationHandler

func (f MiddlewareFunc) Intercept(ctx context.Context, opCtx *OperationContext, next GenericOperationHandler) GenericOperationHandler {
	return f(ctx, opCtx, next)
}

// PassthroughHandler forwards every lifecycle call to Next. Middleware
// embeds it and overrides the methods it cares about.
type PassthroughHandler struct {
	Next GenericOperationHandler
}

func (p *PassthroughHandler) UnderlyingHandler() any {
	return p.Next
}

func (p *PassthroughHandler) Start(ctx context.Context, opCtx *StartOperationContext, input any) (*OperationStartResult[any], error) {
	return p.Next.Start(ctx, opCtx, input)
}

func (p *PassthroughHandler) FetchResult(ctx context.Context, opCtx *FetchOperationResultContext) (any, error) {
	return p.Next.FetchResult(ctx, opCtx)
}

func (p *PassthroughHandler) FetchInfo(ctx context.Context, opCtx *FetchOperationInfoContext) (*nexus.OperationInfo, error) {
	return p.Next.FetchInfo(ctx, opCtx)
}

func (p *PassthroughHandler) Cancel(ctx context.Context, opCtx *CancelOperationContext) error {
	return p.Next.Cancel(ctx, opCtx)
}

package middleware

import (
	"context"
	"time"

	"github.com/morezero/nexus-handler/pkg/handler"
)

// WaitCeiling clamps the wait requested on fetch-result calls to ceiling. A
// non-positive ceiling disables the ceiling.
func WaitCeiling(ceiling time.Duration) handler.OperationMiddleware {
	return handler.MiddlewareFunc(func(_ context.Context, _ *handler.OperationContext, next handler.GenericOperationHandler) handler.GenericOperationHandler {
		if ceiling <= 0 {
			return next
		}
		return &waitCeilingHandler{PassthroughHandler: handler.PassthroughHandler{Next: next}, max: ceiling}
	})
}

type waitCeilingHandler struct {
	handler.PassthroughHandler
	max time.Duration
}

func (w *waitCeilingHandler) FetchResult(ctx context.Context, opCtx *handler.FetchOperationResultContext) (any, error) {
	if opCtx.Wait > w.max {
		opCtx.Wait = w.max
	}
	return w.Next.FetchResult(ctx, opCtx)
}

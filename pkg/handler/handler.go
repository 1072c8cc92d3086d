// Package handler implements the server side of the Nexus operation
// protocol: typed operation handlers, their type-erased adapters, binding
// to service definitions, middleware, and the dispatching Handler.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

const logPrefix = "handler:handler"

// Dispatcher is the surface a transport calls into.
type Dispatcher interface {
	StartOperation(ctx context.Context, opCtx *StartOperationContext, input *HandlerContent) (*OperationStartResult[*HandlerContent], error)
	FetchOperationResult(ctx context.Context, opCtx *FetchOperationResultContext) (*OperationResult, error)
	FetchOperationInfo(ctx context.Context, opCtx *FetchOperationInfoContext) (*nexus.OperationInfo, error)
	CancelOperation(ctx context.Context, opCtx *CancelOperationContext) error
}

// Handler dispatches lifecycle calls to bound operation handlers through
// the middleware chain, serializing at the content boundary. Its maps are
// built once and only read afterwards, so it is safe for concurrent use.
type Handler struct {
	instances            map[string]*ServiceHandlerInstance
	serializer           nexus.Serializer
	middlewaresInReverse []OperationMiddleware
}

var _ Dispatcher = (*Handler)(nil)

// NewHandler creates a Handler. Middlewares are listed outermost first: the
// first middleware observes every call before the second, and so on.
func NewHandler(instances []*ServiceHandlerInstance, serializer nexus.Serializer, middlewares ...OperationMiddleware) (*Handler, error) {
	if len(instances) == 0 {
		return nil, errors.New("must have at least one instance")
	}
	if serializer == nil {
		return nil, errors.New("missing serializer")
	}
	byName := make(map[string]*ServiceHandlerInstance, len(instances))
	for _, instance := range instances {
		if instance == nil || instance.Definition == nil {
			return nil, errors.New("service handler instance without definition")
		}
		name := instance.Definition.Name
		if _, ok := byName[name]; ok {
			return nil, fmt.Errorf("duplicate Nexus service named %s", name)
		}
		byName[name] = instance
	}
	reversed := slices.Clone(middlewares)
	slices.Reverse(reversed)
	return &Handler{
		instances:            byName,
		serializer:           serializer,
		middlewaresInReverse: reversed,
	}, nil
}

// StartOperation deserializes input into the operation's input type,
// starts the operation and serializes a synchronous result. Serializer
// errors are returned as is.
func (h *Handler) StartOperation(ctx context.Context, opCtx *StartOperationContext, input *HandlerContent) (*OperationStartResult[*HandlerContent], error) {
	instance, handler, err := h.resolve(ctx, &opCtx.OperationContext)
	if err != nil {
		return nil, err
	}
	opDef := instance.Definition.Operations[opCtx.Operation]

	if input == nil {
		input = NewHandlerContent(nil, nil)
	}
	data, err := input.ConsumeBytes()
	if err != nil {
		return nil, err
	}
	value, err := h.serializer.Deserialize(&nexus.Content{Data: data, Header: input.Header}, nexus.NormalizeType(opDef.InputType))
	if err != nil {
		return nil, err
	}

	result, err := handler.Start(ctx, opCtx, value)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, NewHandlerError(HandlerErrorTypeInternal, "operation handler returned no start result")
	}
	if !result.IsSync() {
		return NewAsyncResult[*HandlerContent](result.AsyncToken()), nil
	}

	content, err := h.serialize(opDef, result.SyncValue())
	if err != nil {
		return nil, err
	}
	return NewSyncResult(content), nil
}

// FetchOperationResult returns the serialized result, or a result whose
// StillRunning is true when the handler reports nexus.ErrOperationStillRunning.
func (h *Handler) FetchOperationResult(ctx context.Context, opCtx *FetchOperationResultContext) (*OperationResult, error) {
	instance, handler, err := h.resolve(ctx, &opCtx.OperationContext)
	if err != nil {
		return nil, err
	}
	opDef := instance.Definition.Operations[opCtx.Operation]

	value, err := handler.FetchResult(ctx, opCtx)
	if errors.Is(err, nexus.ErrOperationStillRunning) {
		return &OperationResult{stillRunning: true}, nil
	}
	if err != nil {
		return nil, err
	}
	content, err := h.serialize(opDef, value)
	if err != nil {
		return nil, err
	}
	return &OperationResult{content: content}, nil
}

// FetchOperationInfo returns the operation info reported by the handler.
func (h *Handler) FetchOperationInfo(ctx context.Context, opCtx *FetchOperationInfoContext) (*nexus.OperationInfo, error) {
	_, handler, err := h.resolve(ctx, &opCtx.OperationContext)
	if err != nil {
		return nil, err
	}
	return handler.FetchInfo(ctx, opCtx)
}

// CancelOperation requests cancellation of the operation.
func (h *Handler) CancelOperation(ctx context.Context, opCtx *CancelOperationContext) error {
	_, handler, err := h.resolve(ctx, &opCtx.OperationContext)
	if err != nil {
		return err
	}
	return handler.Cancel(ctx, opCtx)
}

// resolve looks up the service and operation and wraps the operation
// handler in the middleware chain for this call.
func (h *Handler) resolve(ctx context.Context, opCtx *OperationContext) (*ServiceHandlerInstance, GenericOperationHandler, error) {
	instance, ok := h.instances[opCtx.Service]
	if !ok {
		slog.Debug(fmt.Sprintf("%s - unknown service=%s operation=%s", logPrefix, opCtx.Service, opCtx.Operation))
		return nil, nil, notFound(opCtx)
	}
	handler, ok := instance.OperationHandlers[opCtx.Operation]
	if !ok {
		slog.Debug(fmt.Sprintf("%s - unknown operation=%s on service=%s", logPrefix, opCtx.Operation, opCtx.Service))
		return nil, nil, notFound(opCtx)
	}
	for _, middleware := range h.middlewaresInReverse {
		handler = middleware.Intercept(ctx, opCtx, handler)
	}
	return instance, handler, nil
}

func (h *Handler) serialize(opDef *nexus.OperationDefinition, value any) (*HandlerContent, error) {
	if nexus.IsVoidType(opDef.OutputType) {
		value = nexus.NoValue{}
	}
	content, err := h.serializer.Serialize(value)
	if err != nil {
		return nil, err
	}
	return NewHandlerContent(content.Data, content.Header), nil
}

func notFound(opCtx *OperationContext) *HandlerError {
	return NewHandlerErrorf(HandlerErrorTypeNotFound, "unrecognized service %s or operation %s", opCtx.Service, opCtx.Operation)
}

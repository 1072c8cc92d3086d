package handler

import (
	"context"
	"fmt"
	"reflect"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

// OperationHandler implements the lifecycle of one operation.
//
// Start may return a *HandlerError for infrastructure problems or a
// *nexus.OperationError when the operation itself fails or is canceled
// synchronously. FetchResult returns nexus.ErrOperationStillRunning when the
// operation has not completed within min(opCtx.Wait, an implementation
// ceiling); it must never block unboundedly and must return promptly when
// ctx is done. Cancel requests cancellation and need not wait for it.
//
// Implementations are shared by all calls and must synchronize any state
// they keep per operation token.
type OperationHandler[I, O any] interface {
	Start(ctx context.Context, opCtx *StartOperationContext, input I) (*OperationStartResult[O], error)
	FetchResult(ctx context.Context, opCtx *FetchOperationResultContext) (O, error)
	FetchInfo(ctx context.Context, opCtx *FetchOperationInfoContext) (*nexus.OperationInfo, error)
	Cancel(ctx context.Context, opCtx *CancelOperationContext) error
}

// GenericOperationHandler is the type-erased form stored by the Handler and
// seen by middleware.
type GenericOperationHandler = OperationHandler[any, any]

// HandlerWrapper is implemented by handlers that wrap another handler.
type HandlerWrapper interface {
	// UnderlyingHandler returns the immediately wrapped handler.
	UnderlyingHandler() any
}

// WrapAsGenericHandler erases the input and output types of h. The returned
// handler checks every input against I and fails with ErrInvalidInput on a
// mismatch.
func WrapAsGenericHandler[I, O any](h OperationHandler[I, O]) GenericOperationHandler {
	return &genericOperationHandler[I, O]{
		underlying: h,
		inputType:  reflect.TypeFor[I](),
	}
}

type genericOperationHandler[I, O any] struct {
	underlying OperationHandler[I, O]
	inputType  reflect.Type
}

func (h *genericOperationHandler[I, O]) UnderlyingHandler() any {
	return h.underlying
}

func (h *genericOperationHandler[I, O]) Start(ctx context.Context, opCtx *StartOperationContext, input any) (*OperationStartResult[any], error) {
	typed, err := h.convertInput(input)
	if err != nil {
		return nil, err
	}
	result, err := h.underlying.Start(ctx, opCtx, typed)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, NewHandlerError(HandlerErrorTypeInternal, "operation handler returned no start result")
	}
	if !result.IsSync() {
		return NewAsyncResult[any](result.AsyncToken()), nil
	}
	return NewSyncResult[any](result.SyncValue()), nil
}

func (h *genericOperationHandler[I, O]) FetchResult(ctx context.Context, opCtx *FetchOperationResultContext) (any, error) {
	v, err := h.underlying.FetchResult(ctx, opCtx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (h *genericOperationHandler[I, O]) FetchInfo(ctx context.Context, opCtx *FetchOperationInfoContext) (*nexus.OperationInfo, error) {
	return h.underlying.FetchInfo(ctx, opCtx)
}

func (h *genericOperationHandler[I, O]) Cancel(ctx context.Context, opCtx *CancelOperationContext) error {
	return h.underlying.Cancel(ctx, opCtx)
}

func (h *genericOperationHandler[I, O]) convertInput(input any) (I, error) {
	if typed, ok := input.(I); ok {
		return typed, nil
	}
	var zero I
	// Any void spelling satisfies a void-shaped handler.
	if nexus.IsVoidType(h.inputType) && nexus.IsVoidValue(input) {
		return zero, nil
	}
	if input == nil && nillable(h.inputType) {
		return zero, nil
	}
	return zero, fmt.Errorf("%w: expected input type of %v, but got %T", ErrInvalidInput, h.inputType, input)
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// UnimplementedOperation can be embedded by handlers that support only some
// lifecycle methods. Every method fails with a NOT_IMPLEMENTED HandlerError.
type UnimplementedOperation[I, O any] struct{}

func (UnimplementedOperation[I, O]) Start(context.Context, *StartOperationContext, I) (*OperationStartResult[O], error) {
	return nil, NewHandlerError(HandlerErrorTypeNotImplemented, "start not supported on this operation")
}

func (UnimplementedOperation[I, O]) FetchResult(context.Context, *FetchOperationResultContext) (O, error) {
	var zero O
	return zero, NewHandlerError(HandlerErrorTypeNotImplemented, "not supported on sync operation")
}

func (UnimplementedOperation[I, O]) FetchInfo(context.Context, *FetchOperationInfoContext) (*nexus.OperationInfo, error) {
	return nil, NewHandlerError(HandlerErrorTypeNotImplemented, "not supported on sync operation")
}

func (UnimplementedOperation[I, O]) Cancel(context.Context, *CancelOperationContext) error {
	return NewHandlerError(HandlerErrorTypeNotImplemented, "not supported on sync operation")
}

// SyncStartFunc computes an operation result synchronously.
type SyncStartFunc[I, O any] func(ctx context.Context, opCtx *StartOperationContext, input I) (O, error)

// NewSyncOperation returns a handler whose Start runs fn and returns its
// value synchronously. The other lifecycle methods fail with NOT_IMPLEMENTED.
func NewSyncOperation[I, O any](fn SyncStartFunc[I, O]) OperationHandler[I, O] {
	return &syncOperation[I, O]{start: fn}
}

type syncOperation[I, O any] struct {
	UnimplementedOperation[I, O]
	start SyncStartFunc[I, O]
}

func (h *syncOperation[I, O]) Start(ctx context.Context, opCtx *StartOperationContext, input I) (*OperationStartResult[O], error) {
	v, err := h.start(ctx, opCtx, input)
	if err != nil {
		return nil, err
	}
	return NewSyncResult(v), nil
}

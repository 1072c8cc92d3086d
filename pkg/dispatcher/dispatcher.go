package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/nexus-handler/pkg/handler"
	"github.com/morezero/nexus-handler/pkg/nexus"
	"github.com/morezero/nexus-handler/pkg/serializer"
)

const logPrefix = "dispatcher:dispatch"

// Dispatcher routes COMMS requests to the Nexus dispatch engine.
type Dispatcher struct {
	engine handler.Dispatcher
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(engine handler.Dispatcher) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// Dispatch routes a request to the appropriate lifecycle call and returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *NexusRequest) *NexusResponse {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s service=%s operation=%s", logPrefix, req.Method, req.ID, req.Service, req.Operation))

	switch req.Method {
	case MethodStartOperation:
		return d.handleStart(ctx, req)
	case MethodFetchOperationResult:
		return d.handleFetchResult(ctx, req)
	case MethodFetchOperationInfo:
		return d.handleFetchInfo(ctx, req)
	case MethodCancelOperation:
		return d.handleCancel(ctx, req)
	default:
		return errorResponse(req.ID, "METHOD_NOT_FOUND", fmt.Sprintf("Unknown method: %s", req.Method), false)
	}
}

func (d *Dispatcher) handleStart(ctx context.Context, req *NexusRequest) *NexusResponse {
	links, err := parseLinks(req.Links)
	if err != nil {
		return errorResponse(req.ID, handler.HandlerErrorTypeBadRequest.String(), err.Error(), false)
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	opCtx := &handler.StartOperationContext{
		OperationContext: operationContext(req),
		RequestID:        requestID,
		CallbackURL:      req.CallbackURL,
		CallbackHeader:   nexus.NewHeader(req.CallbackHeaders),
		InboundLinks:     links,
	}
	defer recordCancellation(ctx, &opCtx.OperationContext)()

	input := handler.NewHandlerContent(req.Payload, nexus.NewHeader(req.PayloadHeaders))
	result, err := d.engine.StartOperation(ctx, opCtx, input)
	if err != nil {
		return startErrorToResponse(req.ID, err)
	}

	detail := &ResultDetail{Links: formatLinks(opCtx.OutboundLinks)}
	if !result.IsSync() {
		detail.Token = result.AsyncToken()
		return &NexusResponse{ID: req.ID, Ok: true, Result: detail}
	}
	if err := fillPayload(detail, result.SyncValue()); err != nil {
		return errorToResponse(req.ID, err)
	}
	return &NexusResponse{ID: req.ID, Ok: true, Result: detail}
}

func (d *Dispatcher) handleFetchResult(ctx context.Context, req *NexusRequest) *NexusResponse {
	if req.OperationToken == "" {
		return missingToken(req)
	}
	opCtx := &handler.FetchOperationResultContext{
		OperationContext: operationContext(req),
		OperationToken:   req.OperationToken,
		Wait:             time.Duration(req.WaitMs) * time.Millisecond,
	}
	defer recordCancellation(ctx, &opCtx.OperationContext)()

	result, err := d.engine.FetchOperationResult(ctx, opCtx)
	if err != nil {
		return errorToResponse(req.ID, err)
	}
	if result.StillRunning() {
		return &NexusResponse{ID: req.ID, Ok: true, Result: &ResultDetail{StillRunning: true}}
	}
	detail := &ResultDetail{}
	if err := fillPayload(detail, result.Content()); err != nil {
		return errorToResponse(req.ID, err)
	}
	return &NexusResponse{ID: req.ID, Ok: true, Result: detail}
}

func (d *Dispatcher) handleFetchInfo(ctx context.Context, req *NexusRequest) *NexusResponse {
	if req.OperationToken == "" {
		return missingToken(req)
	}
	opCtx := &handler.FetchOperationInfoContext{
		OperationContext: operationContext(req),
		OperationToken:   req.OperationToken,
	}
	defer recordCancellation(ctx, &opCtx.OperationContext)()

	info, err := d.engine.FetchOperationInfo(ctx, opCtx)
	if err != nil {
		return errorToResponse(req.ID, err)
	}
	if info == nil {
		return errorResponse(req.ID, handler.HandlerErrorTypeInternal.String(), "operation handler returned no info", true)
	}
	return &NexusResponse{ID: req.ID, Ok: true, Result: &ResultDetail{
		Info: &InfoDetail{Token: info.Token, State: info.State.String()},
	}}
}

func (d *Dispatcher) handleCancel(ctx context.Context, req *NexusRequest) *NexusResponse {
	if req.OperationToken == "" {
		return missingToken(req)
	}
	opCtx := &handler.CancelOperationContext{
		OperationContext: operationContext(req),
		OperationToken:   req.OperationToken,
	}
	defer recordCancellation(ctx, &opCtx.OperationContext)()

	if err := d.engine.CancelOperation(ctx, opCtx); err != nil {
		return errorToResponse(req.ID, err)
	}
	return &NexusResponse{ID: req.ID, Ok: true, Result: &ResultDetail{}}
}

// --- helpers ---

func operationContext(req *NexusRequest) handler.OperationContext {
	return handler.OperationContext{
		Service:   req.Service,
		Operation: req.Operation,
		Header:    nexus.NewHeader(req.Headers),
	}
}

// recordCancellation stores the reason ctx ends on opCtx. The returned
// func stops watching.
func recordCancellation(ctx context.Context, opCtx *handler.OperationContext) func() bool {
	return context.AfterFunc(ctx, func() {
		reason := "canceled"
		if cause := context.Cause(ctx); errors.Is(cause, context.DeadlineExceeded) {
			reason = "timed out"
		} else if cause != nil && !errors.Is(cause, context.Canceled) {
			reason = cause.Error()
		}
		opCtx.SetCancellationReason(reason)
	})
}

func fillPayload(detail *ResultDetail, content *handler.HandlerContent) error {
	if content == nil {
		return nil
	}
	data, err := content.ConsumeBytes()
	if err != nil {
		return err
	}
	detail.Payload = data
	if len(content.Header) > 0 {
		detail.PayloadHeaders = content.Header
	}
	return nil
}

func parseLinks(in []LinkDetail) ([]nexus.Link, error) {
	if len(in) == 0 {
		return nil, nil
	}
	links := make([]nexus.Link, 0, len(in))
	for _, l := range in {
		u, err := url.Parse(l.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid link %q: %w", l.URL, err)
		}
		links = append(links, nexus.Link{URL: u, Type: l.Type})
	}
	return links, nil
}

func formatLinks(in []nexus.Link) []LinkDetail {
	if len(in) == 0 {
		return nil
	}
	out := make([]LinkDetail, 0, len(in))
	for _, l := range in {
		detail := LinkDetail{Type: l.Type}
		if l.URL != nil {
			detail.URL = l.URL.String()
		}
		out = append(out, detail)
	}
	return out
}

func missingToken(req *NexusRequest) *NexusResponse {
	return errorResponse(req.ID, handler.HandlerErrorTypeBadRequest.String(), fmt.Sprintf("%s requires operationToken", req.Method), false)
}

func errorResponse(id, code, message string, retryable bool) *NexusResponse {
	return &NexusResponse{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

// startErrorToResponse reports an undecodable start payload as the caller's
// fault. Errors a handler already classified keep their classification.
func startErrorToResponse(id string, err error) *NexusResponse {
	var handlerErr *handler.HandlerError
	var opErr *nexus.OperationError
	if errors.Is(err, serializer.ErrDecode) && !errors.As(err, &handlerErr) && !errors.As(err, &opErr) {
		return errorResponse(id, handler.HandlerErrorTypeBadRequest.String(), err.Error(), false)
	}
	return errorToResponse(id, err)
}

func errorToResponse(id string, err error) *NexusResponse {
	var handlerErr *handler.HandlerError
	if errors.As(err, &handlerErr) {
		return errorResponse(id, handlerErr.WireType(), handlerErr.Error(), handlerErr.Retryable())
	}
	var opErr *nexus.OperationError
	if errors.As(err, &opErr) {
		code := "OPERATION_FAILED"
		if opErr.State == nexus.OperationStateCanceled {
			code = "OPERATION_CANCELED"
		}
		resp := errorResponse(id, code, opErr.Error(), false)
		resp.Error.OperationState = opErr.State.String()
		return resp
	}
	slog.Error(fmt.Sprintf("%s - internal error id=%s: %v", logPrefix, id, err))
	return errorResponse(id, handler.HandlerErrorTypeInternal.String(), err.Error(), true)
}

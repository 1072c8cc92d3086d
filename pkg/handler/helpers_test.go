package handler

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/morezero/nexus-handler/pkg/nexus"
)

// recordingSerializer is a JSON serializer that records every call.
type recordingSerializer struct {
	mu               sync.Mutex
	serializeCalls   []any
	deserializeCalls []deserializeCall
	serializeErr     error
	deserializeErr   error
}

type deserializeCall struct {
	content *nexus.Content
	typ     reflect.Type
}

func (s *recordingSerializer) Serialize(v any) (*nexus.Content, error) {
	s.mu.Lock()
	s.serializeCalls = append(s.serializeCalls, v)
	s.mu.Unlock()
	if s.serializeErr != nil {
		return nil, s.serializeErr
	}
	if _, ok := v.(nexus.NoValue); ok {
		return &nexus.Content{Data: []byte{}}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &nexus.Content{Data: data, Header: nexus.Header{"type": "application/json"}}, nil
}

func (s *recordingSerializer) Deserialize(c *nexus.Content, t reflect.Type) (any, error) {
	s.mu.Lock()
	s.deserializeCalls = append(s.deserializeCalls, deserializeCall{content: c, typ: t})
	s.mu.Unlock()
	if s.deserializeErr != nil {
		return nil, s.deserializeErr
	}
	if t == nexus.NoValueType {
		return nexus.NoValue{}, nil
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(c.Data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func simpleServiceDefinition(t *testing.T) *nexus.ServiceDefinition {
	t.Helper()
	def, err := nexus.NewServiceBuilder("ISimpleService").
		Operation("SayHello", (func(string) string)(nil)).
		Build()
	require.NoError(t, err)
	return def
}

func newSyncSayHello() OperationHandler[string, string] {
	return NewSyncOperation(func(_ context.Context, _ *StartOperationContext, name string) (string, error) {
		return "Hello, " + name, nil
	})
}

// asyncSayHello records every context it receives.
type asyncSayHello struct {
	mu    sync.Mutex
	calls []any
}

func (h *asyncSayHello) record(opCtx any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, opCtx)
}

func (h *asyncSayHello) Start(_ context.Context, opCtx *StartOperationContext, name string) (*OperationStartResult[string], error) {
	h.record(opCtx)
	return NewAsyncResult[string](name + "-token"), nil
}

func (h *asyncSayHello) FetchResult(_ context.Context, opCtx *FetchOperationResultContext) (string, error) {
	h.record(opCtx)
	return "Hello, " + strings.TrimSuffix(opCtx.OperationToken, "-token"), nil
}

func (h *asyncSayHello) FetchInfo(_ context.Context, opCtx *FetchOperationInfoContext) (*nexus.OperationInfo, error) {
	h.record(opCtx)
	return &nexus.OperationInfo{Token: opCtx.OperationToken, State: nexus.OperationStateRunning}, nil
}

func (h *asyncSayHello) Cancel(_ context.Context, opCtx *CancelOperationContext) error {
	h.record(opCtx)
	return nil
}

// trackingMiddleware records every lifecycle call that passes through it.
type trackingMiddleware struct {
	mu         sync.Mutex
	intercepts int
	calls      []any
}

func (m *trackingMiddleware) Intercept(_ context.Context, _ *OperationContext, next GenericOperationHandler) GenericOperationHandler {
	m.mu.Lock()
	m.intercepts++
	m.mu.Unlock()
	return &trackingHandler{PassthroughHandler: PassthroughHandler{Next: next}, m: m}
}

func (m *trackingMiddleware) record(opCtx any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, opCtx)
}

type trackingHandler struct {
	PassthroughHandler
	m *trackingMiddleware
}

func (t *trackingHandler) Start(ctx context.Context, opCtx *StartOperationContext, input any) (*OperationStartResult[any], error) {
	t.m.record(opCtx)
	return t.Next.Start(ctx, opCtx, input)
}

func (t *trackingHandler) FetchResult(ctx context.Context, opCtx *FetchOperationResultContext) (any, error) {
	t.m.record(opCtx)
	return t.Next.FetchResult(ctx, opCtx)
}

func (t *trackingHandler) FetchInfo(ctx context.Context, opCtx *FetchOperationInfoContext) (*nexus.OperationInfo, error) {
	t.m.record(opCtx)
	return t.Next.FetchInfo(ctx, opCtx)
}

func (t *trackingHandler) Cancel(ctx context.Context, opCtx *CancelOperationContext) error {
	t.m.record(opCtx)
	return t.Next.Cancel(ctx, opCtx)
}

func startContext(service, operation string) *StartOperationContext {
	return &StartOperationContext{
		OperationContext: OperationContext{Service: service, Operation: operation},
		RequestID:        "request-1",
	}
}

func fetchResultContext(service, operation, token string) *FetchOperationResultContext {
	return &FetchOperationResultContext{
		OperationContext: OperationContext{Service: service, Operation: operation},
		OperationToken:   token,
	}
}

func fetchInfoContext(service, operation, token string) *FetchOperationInfoContext {
	return &FetchOperationInfoContext{
		OperationContext: OperationContext{Service: service, Operation: operation},
		OperationToken:   token,
	}
}

func cancelContext(service, operation, token string) *CancelOperationContext {
	return &CancelOperationContext{
		OperationContext: OperationContext{Service: service, Operation: operation},
		OperationToken:   token,
	}
}

func jsonContent(s string) *HandlerContent {
	return NewHandlerContent([]byte(s), nil)
}

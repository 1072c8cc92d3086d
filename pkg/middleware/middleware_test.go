package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/nexus-handler/pkg/events"
	"github.com/morezero/nexus-handler/pkg/handler"
	"github.com/morezero/nexus-handler/pkg/nexus"
	"github.com/morezero/nexus-handler/pkg/serializer"
)

// scriptedOperation returns the configured values from each lifecycle method.
type scriptedOperation struct {
	startToken string
	startErr   error
	fetchErr   error
	infoErr    error
	cancelErr  error
	wait       time.Duration
}

func (s *scriptedOperation) Start(_ context.Context, _ *handler.StartOperationContext, name string) (*handler.OperationStartResult[string], error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	if s.startToken != "" {
		return handler.NewAsyncResult[string](s.startToken), nil
	}
	return handler.NewSyncResult("Hello, " + name), nil
}

func (s *scriptedOperation) FetchResult(_ context.Context, opCtx *handler.FetchOperationResultContext) (string, error) {
	s.wait = opCtx.Wait
	if s.fetchErr != nil {
		return "", s.fetchErr
	}
	return "done", nil
}

func (s *scriptedOperation) FetchInfo(_ context.Context, opCtx *handler.FetchOperationInfoContext) (*nexus.OperationInfo, error) {
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	return &nexus.OperationInfo{Token: opCtx.OperationToken, State: nexus.OperationStateRunning}, nil
}

func (s *scriptedOperation) Cancel(context.Context, *handler.CancelOperationContext) error {
	return s.cancelErr
}

func newEngine(t *testing.T, op *scriptedOperation, middlewares ...handler.OperationMiddleware) *handler.Handler {
	t.Helper()
	def, err := nexus.NewServiceBuilder("IGreetingService").
		Operation("SayHello", (func(string) string)(nil)).
		Build()
	require.NoError(t, err)
	instance, err := handler.NewServiceHandlerBuilder(def).
		Operation(handler.ProvideHandler[string, string]("SayHello", op)).
		Build()
	require.NoError(t, err)
	h, err := handler.NewHandler([]*handler.ServiceHandlerInstance{instance}, serializer.JSON{}, middlewares...)
	require.NoError(t, err)
	return h
}

type eventRecorder struct {
	mu     sync.Mutex
	events []*events.OperationEvent
	err    error
}

func (r *eventRecorder) PublishOperation(_ context.Context, event *events.OperationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *eventRecorder) last(t *testing.T) *events.OperationEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

func startCtx() *handler.StartOperationContext {
	return &handler.StartOperationContext{
		OperationContext: handler.OperationContext{Service: "GreetingService", Operation: "SayHello"},
		RequestID:        "req-1",
	}
}

func fetchCtx(wait time.Duration) *handler.FetchOperationResultContext {
	return &handler.FetchOperationResultContext{
		OperationContext: handler.OperationContext{Service: "GreetingService", Operation: "SayHello"},
		OperationToken:   "tok-1",
		Wait:             wait,
	}
}

func TestEvents_Outcomes(t *testing.T) {
	ctx := context.Background()
	input := func() *handler.HandlerContent { return handler.NewHandlerContent([]byte(`"bob"`), nil) }

	tests := []struct {
		name          string
		op            *scriptedOperation
		call          func(h *handler.Handler) error
		wantMethod    string
		wantOutcome   string
		wantErrorType string
		wantToken     string
	}{
		{
			name: "sync start",
			op:   &scriptedOperation{},
			call: func(h *handler.Handler) error {
				_, err := h.StartOperation(ctx, startCtx(), input())
				return err
			},
			wantMethod:  events.MethodStartOperation,
			wantOutcome: events.OutcomeOK,
		},
		{
			name: "async start",
			op:   &scriptedOperation{startToken: "tok-9"},
			call: func(h *handler.Handler) error {
				_, err := h.StartOperation(ctx, startCtx(), input())
				return err
			},
			wantMethod:  events.MethodStartOperation,
			wantOutcome: events.OutcomeAsync,
			wantToken:   "tok-9",
		},
		{
			name: "bad request",
			op:   &scriptedOperation{startErr: handler.NewHandlerError(handler.HandlerErrorTypeBadRequest, "name is required")},
			call: func(h *handler.Handler) error {
				_, err := h.StartOperation(ctx, startCtx(), input())
				return err
			},
			wantMethod:    events.MethodStartOperation,
			wantOutcome:   events.OutcomeError,
			wantErrorType: "BAD_REQUEST",
		},
		{
			name: "plain error",
			op:   &scriptedOperation{startErr: errors.New("boom")},
			call: func(h *handler.Handler) error {
				_, err := h.StartOperation(ctx, startCtx(), input())
				return err
			},
			wantMethod:    events.MethodStartOperation,
			wantOutcome:   events.OutcomeError,
			wantErrorType: "INTERNAL",
		},
		{
			name: "still running",
			op:   &scriptedOperation{fetchErr: nexus.ErrOperationStillRunning},
			call: func(h *handler.Handler) error {
				_, err := h.FetchOperationResult(ctx, fetchCtx(0))
				return err
			},
			wantMethod:  events.MethodFetchOperationResult,
			wantOutcome: events.OutcomeStillRunning,
			wantToken:   "tok-1",
		},
		{
			name: "failed",
			op:   &scriptedOperation{fetchErr: nexus.NewFailedOperationError("nope", nil)},
			call: func(h *handler.Handler) error {
				_, err := h.FetchOperationResult(ctx, fetchCtx(0))
				return err
			},
			wantMethod:  events.MethodFetchOperationResult,
			wantOutcome: events.OutcomeFailed,
			wantToken:   "tok-1",
		},
		{
			name: "canceled",
			op:   &scriptedOperation{fetchErr: nexus.NewCanceledOperationError("stopped", nil)},
			call: func(h *handler.Handler) error {
				_, err := h.FetchOperationResult(ctx, fetchCtx(0))
				return err
			},
			wantMethod:  events.MethodFetchOperationResult,
			wantOutcome: events.OutcomeCanceled,
			wantToken:   "tok-1",
		},
		{
			name: "info",
			op:   &scriptedOperation{},
			call: func(h *handler.Handler) error {
				_, err := h.FetchOperationInfo(ctx, &handler.FetchOperationInfoContext{
					OperationContext: handler.OperationContext{Service: "GreetingService", Operation: "SayHello"},
					OperationToken:   "tok-2",
				})
				return err
			},
			wantMethod:  events.MethodFetchOperationInfo,
			wantOutcome: events.OutcomeOK,
			wantToken:   "tok-2",
		},
		{
			name: "cancel not found",
			op:   &scriptedOperation{cancelErr: handler.NewHandlerError(handler.HandlerErrorTypeNotFound, "unknown token")},
			call: func(h *handler.Handler) error {
				return h.CancelOperation(ctx, &handler.CancelOperationContext{
					OperationContext: handler.OperationContext{Service: "GreetingService", Operation: "SayHello"},
					OperationToken:   "tok-3",
				})
			},
			wantMethod:    events.MethodCancelOperation,
			wantOutcome:   events.OutcomeError,
			wantErrorType: "NOT_FOUND",
			wantToken:     "tok-3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &eventRecorder{}
			h := newEngine(t, tt.op, Events(recorder))
			_ = tt.call(h)

			event := recorder.last(t)
			assert.Equal(t, "GreetingService", event.Service)
			assert.Equal(t, "SayHello", event.Operation)
			assert.Equal(t, tt.wantMethod, event.Method)
			assert.Equal(t, tt.wantOutcome, event.Outcome)
			assert.Equal(t, tt.wantErrorType, event.ErrorType)
			assert.Equal(t, tt.wantToken, event.OperationToken)
			assert.NotEmpty(t, event.Timestamp)
			if tt.wantMethod == events.MethodStartOperation {
				assert.Equal(t, "req-1", event.RequestID)
			}
		})
	}
}

func TestEvents_PublishFailureDoesNotChangeResult(t *testing.T) {
	recorder := &eventRecorder{err: errors.New("broker down")}
	h := newEngine(t, &scriptedOperation{}, Events(recorder))

	result, err := h.StartOperation(context.Background(), startCtx(), handler.NewHandlerContent([]byte(`"bob"`), nil))
	require.NoError(t, err)
	data, err := result.SyncValue().ConsumeBytes()
	require.NoError(t, err)
	assert.Equal(t, `"Hello, bob"`, string(data))
	assert.Len(t, recorder.events, 1)
}

func TestEvents_CanceledCallContextStillPublishes(t *testing.T) {
	var published context.Context
	publisher := events.NewCallbackPublisher(func(ctx context.Context, _ *events.OperationEvent) error {
		published = ctx
		return nil
	})
	h := newEngine(t, &scriptedOperation{}, Events(publisher))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = h.StartOperation(ctx, startCtx(), handler.NewHandlerContent([]byte(`"bob"`), nil))
	require.NotNil(t, published)
	assert.NoError(t, published.Err())
}

func TestWaitCeiling(t *testing.T) {
	tests := []struct {
		name    string
		ceiling time.Duration
		wait    time.Duration
		want    time.Duration
	}{
		{"clamped", time.Second, time.Minute, time.Second},
		{"below ceiling", time.Second, 200 * time.Millisecond, 200 * time.Millisecond},
		{"zero wait", time.Second, 0, 0},
		{"disabled", 0, time.Minute, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &scriptedOperation{}
			h := newEngine(t, op, WaitCeiling(tt.ceiling))
			_, err := h.FetchOperationResult(context.Background(), fetchCtx(tt.wait))
			require.NoError(t, err)
			assert.Equal(t, tt.want, op.wait)
		})
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	op := &scriptedOperation{}
	h := newEngine(t, op, Logging())
	_, err := h.StartOperation(context.Background(), startCtx(), handler.NewHandlerContent([]byte(`"bob"`), nil))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "startOperation GreetingService.SayHello outcome=ok")
	assert.Contains(t, buf.String(), "level=INFO")

	buf.Reset()
	op.cancelErr = handler.NewHandlerError(handler.HandlerErrorTypeUnavailable, "down")
	err = h.CancelOperation(context.Background(), &handler.CancelOperationContext{
		OperationContext: handler.OperationContext{Service: "GreetingService", Operation: "SayHello"},
		OperationToken:   "tok",
	})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "type=UNAVAILABLE")
}

func TestChainOrder_OuterSeesClampedCall(t *testing.T) {
	recorder := &eventRecorder{}
	op := &scriptedOperation{fetchErr: nexus.ErrOperationStillRunning}
	h := newEngine(t, op, Logging(), Events(recorder), WaitCeiling(time.Second))

	result, err := h.FetchOperationResult(context.Background(), fetchCtx(time.Hour))
	require.NoError(t, err)
	assert.True(t, result.StillRunning())
	assert.Equal(t, time.Second, op.wait)
	assert.Equal(t, events.OutcomeStillRunning, recorder.last(t).Outcome)
}

// Package greeter is a sample Nexus service with a synchronous, an
// asynchronous and a void operation.
package greeter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/nexus-handler/pkg/db"
	"github.com/morezero/nexus-handler/pkg/handler"
	"github.com/morezero/nexus-handler/pkg/nexus"
)

const logPrefix = "greeter:service"

const (
	ContractName = "IGreetingService"

	OperationSayHello      = "SayHello"
	OperationSayHelloAsync = "SayHelloAsync"
	OperationPing          = "Ping"

	// MaxNameLength bounds the name accepted by SayHello. Longer names given
	// to SayHelloAsync are accepted and the operation fails on completion.
	MaxNameLength = 64

	// OperationLinkType is the type of the link returned by SayHelloAsync.
	OperationLinkType = "greeter.Operation"

	DefaultCompletionDelay = 2 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond
)

// Options configures a Service.
type Options struct {
	// CompletionDelay is how long an async greeting stays running.
	CompletionDelay time.Duration
	// PollInterval is how often a waiting fetch re-reads the store.
	PollInterval time.Duration
}

// Service implements the greeting operations on top of a Store.
type Service struct {
	store Store
	delay time.Duration
	poll  time.Duration
	now   func() time.Time
}

// New creates a Service. Zero options fall back to the defaults.
func New(store Store, opts Options) *Service {
	if opts.CompletionDelay < 0 {
		opts.CompletionDelay = 0
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Service{
		store: store,
		delay: opts.CompletionDelay,
		poll:  opts.PollInterval,
		now:   time.Now,
	}
}

// Definition declares the greeting contract.
func Definition() (*nexus.ServiceDefinition, error) {
	return nexus.NewServiceBuilder(ContractName).
		Operation(OperationSayHello, (func(string) string)(nil)).
		Operation(OperationSayHelloAsync, (func(string) (string, error))(nil)).
		Operation(OperationPing, (func())(nil)).
		Build()
}

// Instance binds the service's handlers to Definition.
func (s *Service) Instance() (*handler.ServiceHandlerInstance, error) {
	def, err := Definition()
	if err != nil {
		return nil, fmt.Errorf("%s - invalid definition: %w", logPrefix, err)
	}
	return handler.NewServiceHandlerBuilder(def).Operation(
		handler.ProvideHandler(OperationSayHello, handler.NewSyncOperation(s.sayHello)),
		handler.Provide(OperationSayHelloAsync, func() (handler.OperationHandler[string, string], error) {
			return &asyncGreeting{svc: s}, nil
		}),
		handler.ProvideHandler(OperationPing, handler.NewSyncOperation(s.ping)),
	).Build()
}

// Prune deletes completed operations older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.DeleteCompletedBefore(ctx, s.now().Add(-retention))
}

func (s *Service) sayHello(_ context.Context, _ *handler.StartOperationContext, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if len(name) > MaxNameLength {
		return "", handler.NewHandlerErrorf(handler.HandlerErrorTypeBadRequest,
			"name must be at most %d characters", MaxNameLength)
	}
	return greeting(name), nil
}

func (s *Service) ping(context.Context, *handler.StartOperationContext, nexus.NoValue) (nexus.NoValue, error) {
	return nexus.NoValue{}, nil
}

func validateName(name string) error {
	if name == "" {
		return handler.NewHandlerError(handler.HandlerErrorTypeBadRequest, "name must not be empty")
	}
	return nil
}

func storeUnavailable(err error) *handler.HandlerError {
	return handler.NewHandlerErrorf(handler.HandlerErrorTypeUnavailable, "operation store unavailable: %w", err)
}

func greeting(name string) string {
	return "Hello, " + name
}

// load reads a record and completes it if its completion time has passed.
func (s *Service) load(ctx context.Context, token string) (*db.OperationRecord, error) {
	if token == "" {
		return nil, handler.NewHandlerError(handler.HandlerErrorTypeBadRequest, "operation token must not be empty")
	}
	rec, err := s.store.GetOperation(ctx, token)
	if errors.Is(err, db.ErrOperationNotFound) {
		return nil, handler.NewHandlerErrorf(handler.HandlerErrorTypeNotFound, "operation %s not found", token)
	}
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if rec.State != nexus.OperationStateRunning || s.now().Before(rec.CompleteAfter) {
		return rec, nil
	}

	name := string(rec.Input)
	state, result, failure := nexus.OperationStateSucceeded, []byte(greeting(name)), ""
	if len(name) > MaxNameLength {
		state, result, failure = nexus.OperationStateFailed, nil, fmt.Sprintf("name must be at most %d characters", MaxNameLength)
	}
	done, err := s.store.CompleteOperation(ctx, token, state, result, failure)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	slog.Debug(fmt.Sprintf("%s - Operation %s completed as %s", logPrefix, token, done.State))
	return done, nil
}

type asyncGreeting struct {
	svc *Service
}

func (a *asyncGreeting) Start(ctx context.Context, opCtx *handler.StartOperationContext, name string) (*handler.OperationStartResult[string], error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	rec, err := a.svc.store.CreateOperation(ctx, db.CreateOperationParams{
		Token:         uuid.NewString(),
		Service:       opCtx.Service,
		Operation:     opCtx.Operation,
		RequestID:     opCtx.RequestID,
		Input:         []byte(name),
		CompleteAfter: a.svc.now().Add(a.svc.delay),
	})
	if err != nil {
		return nil, storeUnavailable(err)
	}
	slog.Info(fmt.Sprintf("%s - Started %s.%s token=%s requestId=%s",
		logPrefix, opCtx.Service, opCtx.Operation, rec.Token, opCtx.RequestID))

	opCtx.OutboundLinks = append(opCtx.OutboundLinks, nexus.Link{
		URL:  &url.URL{Scheme: "nexus", Host: opCtx.Service, Path: "/operations/" + rec.Token},
		Type: OperationLinkType,
	})
	return handler.NewAsyncResult[string](rec.Token), nil
}

func (a *asyncGreeting) FetchResult(ctx context.Context, opCtx *handler.FetchOperationResultContext) (string, error) {
	rec, err := a.svc.load(ctx, opCtx.OperationToken)
	if err != nil {
		return "", err
	}

	deadline := a.svc.now().Add(opCtx.Wait)
	for rec.State == nexus.OperationStateRunning {
		remaining := deadline.Sub(a.svc.now())
		if remaining <= 0 {
			return "", nexus.ErrOperationStillRunning
		}
		wait := min(a.svc.poll, remaining)
		if untilDone := rec.CompleteAfter.Sub(a.svc.now()); untilDone > 0 {
			wait = min(wait, untilDone)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		if rec, err = a.svc.load(ctx, opCtx.OperationToken); err != nil {
			return "", err
		}
	}

	switch rec.State {
	case nexus.OperationStateSucceeded:
		return string(rec.Result), nil
	case nexus.OperationStateCanceled:
		return "", nexus.NewCanceledOperationError(rec.Failure, nil)
	default:
		return "", nexus.NewFailedOperationError(rec.Failure, nil)
	}
}

func (a *asyncGreeting) FetchInfo(ctx context.Context, opCtx *handler.FetchOperationInfoContext) (*nexus.OperationInfo, error) {
	rec, err := a.svc.load(ctx, opCtx.OperationToken)
	if err != nil {
		return nil, err
	}
	return &nexus.OperationInfo{Token: rec.Token, State: rec.State}, nil
}

// Cancel marks a running operation canceled. Canceling a completed
// operation is a no-op.
func (a *asyncGreeting) Cancel(ctx context.Context, opCtx *handler.CancelOperationContext) error {
	rec, err := a.svc.load(ctx, opCtx.OperationToken)
	if err != nil {
		return err
	}
	if rec.State != nexus.OperationStateRunning {
		slog.Debug(fmt.Sprintf("%s - Cancel ignored for %s in state %s", logPrefix, rec.Token, rec.State))
		return nil
	}
	if _, err := a.svc.store.CompleteOperation(ctx, rec.Token, nexus.OperationStateCanceled, nil, "operation canceled"); err != nil {
		return storeUnavailable(err)
	}
	slog.Info(fmt.Sprintf("%s - Canceled operation %s", logPrefix, rec.Token))
	return nil
}

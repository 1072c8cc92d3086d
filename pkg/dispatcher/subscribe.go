package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	comms "github.com/nats-io/nats.go"
	"golang.org/x/sync/semaphore"

	"github.com/morezero/nexus-handler/pkg/commsutil"
)

const subscribeLogPrefix = "dispatcher:subscribe"

// Defaults for SubscribeOpts.
const (
	DefaultRequestTimeout = 25 * time.Second
	DefaultMaxInFlight    = 256
)

// SubscribeOpts configures Subscribe. Zero values use defaults.
type SubscribeOpts struct {
	// RequestTimeout bounds every request. Callers may shorten it through
	// ctx.deadlineMs or ctx.timeoutMs.
	RequestTimeout time.Duration
	// MaxInFlight bounds concurrently served requests. Further messages wait
	// in the subscription until a slot frees up.
	MaxInFlight int64
}

// Subscriber serves Nexus requests received on a COMMS subject.
type Subscriber struct {
	sub      *comms.Subscription
	inFlight sync.WaitGroup
}

// Subscribe serves requests on subject until ctx is done or Close is called.
// Each request is handled on its own goroutine so long fetch-result waits do
// not hold up the subscription.
func Subscribe(ctx context.Context, nc *comms.Conn, subject string, disp *Dispatcher, opts SubscribeOpts) (*Subscriber, error) {
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	maxInFlight := opts.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	sem := semaphore.NewWeighted(maxInFlight)

	s := &Subscriber{}
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var req NexusRequest
		if err := commsutil.DecodePayload(msg.Data, &req); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to decode request: %v", subscribeLogPrefix, err))
			respond(msg, errorResponse("", "INVALID_REQUEST", "Failed to decode request", false))
			return
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			respond(msg, errorResponse(req.ID, "UNAVAILABLE", "Server is shutting down", true))
			return
		}
		s.inFlight.Add(1)
		go func() {
			defer s.inFlight.Done()
			defer sem.Release(1)

			reqCtx, cancel := context.WithTimeout(ctx, requestDeadline(&req, requestTimeout))
			defer cancel()
			respond(msg, disp.Dispatch(reqCtx, &req))
		}()
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", subscribeLogPrefix, subject, err)
	}
	s.sub = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s (timeout=%s, maxInFlight=%d)", subscribeLogPrefix, subject, requestTimeout, maxInFlight))
	return s, nil
}

// Close unsubscribes and waits for in-flight requests until ctx is done.
func (s *Subscriber) Close(ctx context.Context) error {
	if err := s.sub.Unsubscribe(); err != nil {
		slog.Warn(fmt.Sprintf("%s - unsubscribe failed: %v", subscribeLogPrefix, err))
	}
	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s - in-flight requests still running: %w", subscribeLogPrefix, ctx.Err())
	}
}

// requestDeadline returns the request timeout, optionally shortened by the
// caller's deadline. Fetch-result requests get their wait on top so the
// bounded wait can complete.
func requestDeadline(req *NexusRequest, requestTimeout time.Duration) time.Duration {
	timeout := requestTimeout
	if req.Ctx != nil && (req.Ctx.DeadlineMs > 0 || req.Ctx.TimeoutMs > 0) {
		ms := req.Ctx.DeadlineMs
		if ms <= 0 {
			ms = req.Ctx.TimeoutMs
		}
		if d := time.Duration(ms) * time.Millisecond; d < timeout {
			timeout = d
		}
	}
	if req.Method == MethodFetchOperationResult && req.WaitMs > 0 {
		timeout += time.Duration(req.WaitMs) * time.Millisecond
	}
	return timeout
}

func respond(msg *comms.Msg, resp *NexusResponse) {
	if msg.Reply == "" {
		slog.Debug(fmt.Sprintf("%s - no reply subject for id=%s, dropping response", subscribeLogPrefix, resp.ID))
		return
	}
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", subscribeLogPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to respond to id=%s: %v", subscribeLogPrefix, resp.ID, err))
	}
}

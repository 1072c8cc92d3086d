package events

import "context"

// EventPublisher is the interface for publishing operation events.
type EventPublisher interface {
	PublishOperation(ctx context.Context, event *OperationEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// PublishOperation is a no-op.
func (p *NoOpPublisher) PublishOperation(_ context.Context, _ *OperationEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *OperationEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *OperationEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishOperation calls the callback.
func (p *CallbackPublisher) PublishOperation(ctx context.Context, event *OperationEvent) error {
	return p.callback(ctx, event)
}

package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/nexus-handler/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// BaseSubject overrides the event subject (e.g. from NEXUS_EVENT_SUBJECT).
	// Granular subjects are built beneath it.
	BaseSubject string
}

// CommsPublisher publishes operation events to COMMS subjects.
type CommsPublisher struct {
	nc          *comms.Conn
	baseSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	base := commsutil.SubjectOperationEvent
	if opts != nil && opts.BaseSubject != "" {
		base = opts.BaseSubject
	}
	return &CommsPublisher{nc: nc, baseSubject: base}
}

// PublishOperation publishes an OperationEvent to both the granular
// <base>.<service>.<operation> subject and the base subject.
func (p *CommsPublisher) PublishOperation(_ context.Context, event *OperationEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	granularSubject := commsutil.BuildOperationEventSubject(p.baseSubject, event.Service, event.Operation)
	if err := p.nc.Publish(granularSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, granularSubject, err))
		return err
	}

	if err := p.nc.Publish(p.baseSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.baseSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s event for %s.%s", commsPublisherLogPrefix, event.Outcome, event.Service, event.Operation))
	return nil
}

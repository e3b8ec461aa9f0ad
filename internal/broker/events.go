package broker

import (
	"context"

	"serial-service/internal/models"
)

// EventPublisher publishes order lifecycle events for downstream production
// tracking. Publishing is best-effort and entirely optional: a nil
// publisher (no broker configured) is a no-op, and a publish failure never
// fails the save that triggered it.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a publisher over a producer; producer may be nil.
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderRegistered publishes an OrderRegistered event keyed by order
// number.
func (ep *EventPublisher) PublishOrderRegistered(ctx context.Context, event *models.OrderRegisteredEvent) error {
	if ep == nil || ep.producer == nil {
		return nil
	}
	return ep.producer.PublishEvent(ctx, event.OrderNo, event)
}

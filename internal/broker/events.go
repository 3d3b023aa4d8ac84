package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"settlement-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing settlement domain events. Messages are
// keyed by service request id so that events for one request stay ordered.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func requestKey(serviceRequestID int64) string {
	return fmt.Sprintf("request-%d", serviceRequestID)
}

// PublishPaymentConfirmed publishes a PaymentConfirmed event
func (ep *EventPublisher) PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.ServiceRequestID), event)
}

// PublishPaymentFailed publishes a PaymentFailed event
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.ServiceRequestID), event)
}

// PublishPaymentRefunded publishes a PaymentRefunded event
func (ep *EventPublisher) PublishPaymentRefunded(ctx context.Context, event *models.PaymentRefundedEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.ServiceRequestID), event)
}

// PublishCommissionRecorded publishes a CommissionRecorded event
func (ep *EventPublisher) PublishCommissionRecorded(ctx context.Context, event *models.CommissionRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.ServiceRequestID), event)
}

// EventHandler routes consumed settlement events to registered callbacks.
type EventHandler struct {
	onPaymentConfirmed   func(context.Context, *models.PaymentConfirmedEvent) error
	onPaymentFailed      func(context.Context, *models.PaymentFailedEvent) error
	onPaymentRefunded    func(context.Context, *models.PaymentRefundedEvent) error
	onCommissionRecorded func(context.Context, *models.CommissionRecordedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPaymentConfirmed registers a handler for PaymentConfirmed events
func (eh *EventHandler) OnPaymentConfirmed(handler func(context.Context, *models.PaymentConfirmedEvent) error) {
	eh.onPaymentConfirmed = handler
}

// OnPaymentFailed registers a handler for PaymentFailed events
func (eh *EventHandler) OnPaymentFailed(handler func(context.Context, *models.PaymentFailedEvent) error) {
	eh.onPaymentFailed = handler
}

// OnPaymentRefunded registers a handler for PaymentRefunded events
func (eh *EventHandler) OnPaymentRefunded(handler func(context.Context, *models.PaymentRefundedEvent) error) {
	eh.onPaymentRefunded = handler
}

// OnCommissionRecorded registers a handler for CommissionRecorded events
func (eh *EventHandler) OnCommissionRecorded(handler func(context.Context, *models.CommissionRecordedEvent) error) {
	eh.onCommissionRecorded = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypePaymentConfirmed:
		if eh.onPaymentConfirmed != nil {
			var event models.PaymentConfirmedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentConfirmed event: %w", err)
			}
			return eh.onPaymentConfirmed(ctx, &event)
		}

	case models.EventTypePaymentFailed:
		if eh.onPaymentFailed != nil {
			var event models.PaymentFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentFailed event: %w", err)
			}
			return eh.onPaymentFailed(ctx, &event)
		}

	case models.EventTypePaymentRefunded:
		if eh.onPaymentRefunded != nil {
			var event models.PaymentRefundedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentRefunded event: %w", err)
			}
			return eh.onPaymentRefunded(ctx, &event)
		}

	case models.EventTypeCommissionRecorded:
		if eh.onCommissionRecorded != nil {
			var event models.CommissionRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CommissionRecorded event: %w", err)
			}
			return eh.onCommissionRecorded(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}

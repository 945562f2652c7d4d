package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"rental-service/internal/models"
	"rental-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func rentalKey(id int64) string      { return fmt.Sprintf("rental-%d", id) }
func transactionKey(id int64) string { return fmt.Sprintf("transaction-%d", id) }

// PublishRentalEvent publishes RENTAL_BOOKED, RENTAL_RETURNED, RENTAL_CANCELLED
// and RESERVATION_RELEASED events
func (ep *EventPublisher) PublishRentalEvent(ctx context.Context, event *models.RentalEvent) error {
	return ep.producer.PublishEvent(ctx, rentalKey(event.RentalID), event)
}

// PublishRentalOverdue publishes RentalOverdue event
func (ep *EventPublisher) PublishRentalOverdue(ctx context.Context, event *models.RentalOverdueEvent) error {
	return ep.producer.PublishEvent(ctx, rentalKey(event.RentalID), event)
}

// PublishPaymentRecorded publishes PaymentRecorded event
func (ep *EventPublisher) PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	if event.RentalID != nil {
		return ep.producer.PublishEvent(ctx, rentalKey(*event.RentalID), event)
	}
	var txID int64
	if event.TransactionID != nil {
		txID = *event.TransactionID
	}
	return ep.producer.PublishEvent(ctx, transactionKey(txID), event)
}

// PublishSaleRecorded publishes SaleRecorded event
func (ep *EventPublisher) PublishSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, transactionKey(event.TransactionID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onRentalEvent func(context.Context, *models.RentalEvent) error
	logger        *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnRentalEvent registers a handler for events that change a rental's calendar
func (eh *EventHandler) OnRentalEvent(handler func(context.Context, *models.RentalEvent) error) {
	eh.onRentalEvent = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeRentalBooked,
		models.EventTypeRentalReturned,
		models.EventTypeRentalCancelled,
		models.EventTypeReservationReleased:
		if eh.onRentalEvent != nil {
			var event models.RentalEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onRentalEvent(ctx, &event)
		}

	default:
		eh.logger.Debug("Ignoring event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}

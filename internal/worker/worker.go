package worker

import (
	"context"
	"fmt"
	"time"

	"rental-service/internal/broker"
	"rental-service/internal/models"
	"rental-service/internal/util"

	"go.uber.org/zap"
)

// EventLog remembers which events were already applied
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// CalendarInvalidator drops cached month views of a product
type CalendarInvalidator interface {
	InvalidateRange(ctx context.Context, productID int64, start, end time.Time)
}

// CalendarWorker keeps every instance's calendar cache coherent by replaying
// rental events that changed reservation marks
type CalendarWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	events       EventLog
	calendar     CalendarInvalidator
	logger       *zap.Logger
}

// NewCalendarWorker creates a new calendar worker
func NewCalendarWorker(consumer *broker.Consumer, events EventLog, calendar CalendarInvalidator) *CalendarWorker {
	w := &CalendarWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		events:       events,
		calendar:     calendar,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnRentalEvent(w.HandleRentalEvent)
	return w
}

// HandleRentalEvent invalidates the months touched by the event's rental.
// Each event is applied once.
func (w *CalendarWorker) HandleRentalEvent(ctx context.Context, event *models.RentalEvent) error {
	ctx, span := util.StartSpan(ctx, "CalendarWorker.HandleRentalEvent")
	defer span.End()

	processed, err := w.events.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Debug("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	w.calendar.InvalidateRange(ctx, event.ProductID, event.StartDate, event.EndDate)

	if err := w.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	util.ForContext(ctx).Debug("Calendar cache refreshed",
		zap.String("event_type", event.EventType),
		zap.Int64("product_id", event.ProductID),
		zap.Int64("rental_id", event.RentalID))
	return nil
}

// Start starts the worker
func (w *CalendarWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting calendar worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CalendarWorker) Stop() error {
	w.logger.Info("Stopping calendar worker")
	return w.consumer.Close()
}

package service

import (
	"context"
	"time"

	"rental-service/internal/calendar"
	"rental-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReservationLedger owns the per-day reservation marks of every product.
//
// BookRental does not call Reserve: it takes the dates from PlanMarks and
// store.CreateRentalBooking inserts the marks in the same transaction as the
// rental row, so a conflicting day rolls the whole booking back.
type ReservationLedger struct {
	store        Store
	availability *AvailabilityService
	logger       *zap.Logger
}

// NewReservationLedger creates a new reservation ledger
func NewReservationLedger(store Store, availability *AvailabilityService) *ReservationLedger {
	return &ReservationLedger{
		store:        store,
		availability: availability,
		logger:       util.GetLogger(),
	}
}

// PlanMarks lists the days a rental from start to end occupies, both ends
// included.
func (l *ReservationLedger) PlanMarks(start, end time.Time) []time.Time {
	return calendar.Range(start, end)
}

// Reserve stores one reserved mark per date for an existing rental, outside
// the booking transaction. A date already reserved by another rental fails the
// whole call with a ConflictError. Bookings write their marks through
// store.CreateRentalBooking instead.
func (l *ReservationLedger) Reserve(ctx context.Context, productID, rentalID int64, dates []time.Time) error {
	ctx, span := util.StartSpan(ctx, "ReservationLedger.Reserve",
		attribute.Int64("product_id", productID),
		attribute.Int64("rental_id", rentalID))
	defer span.End()

	if len(dates) == 0 {
		return nil
	}

	if err := l.store.InsertReservationMarks(ctx, productID, rentalID, dates); err != nil {
		util.RecordError(span, err)
		return err
	}

	first, last := bounds(dates)
	l.availability.InvalidateRange(ctx, productID, first, last)
	return nil
}

// Release flips every reserved mark of the rental to available. Marks stay in
// the ledger for history and releasing twice changes nothing.
func (l *ReservationLedger) Release(ctx context.Context, rentalID int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "ReservationLedger.Release",
		attribute.Int64("rental_id", rentalID))
	defer span.End()

	rental, err := l.store.GetRentalByID(ctx, rentalID)
	if err != nil {
		return 0, err
	}

	released, err := l.store.ReleaseReservations(ctx, rentalID)
	if err != nil {
		util.RecordError(span, err)
		return 0, err
	}

	if released > 0 {
		util.ReservationsReleasedTotal.Add(float64(released))
		l.availability.InvalidateRange(ctx, rental.ProductID, rental.StartDate, rental.EndDate)
	}

	l.logger.Info("Reservations released",
		zap.Int64("rental_id", rentalID),
		zap.Int64("released", released))
	return released, nil
}

func bounds(dates []time.Time) (time.Time, time.Time) {
	first, last := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last
}

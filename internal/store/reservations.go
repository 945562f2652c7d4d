package store

import (
	"context"
	"fmt"
	"time"

	"rental-service/internal/calendar"
	"rental-service/internal/models"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
)

const (
	tableCalendar   = "rental_calendar"
	colProductID    = "product_id"
	colRentalID     = "rental_id"
	colReservedDate = "reserved_date"
	colStatus       = "status"
)

var pg = goqu.Dialect("postgres")

// GetReservedDates returns the days in [from, to] on which the product holds a
// reserved mark, in ascending order.
func (s *Store) GetReservedDates(ctx context.Context, productID int64, from, to time.Time) ([]time.Time, error) {
	query, args, err := pg.From(tableCalendar).
		Select(colReservedDate).
		Where(
			goqu.C(colProductID).Eq(productID),
			goqu.C(colStatus).Eq(string(models.MarkStatusReserved)),
			goqu.C(colReservedDate).Between(goqu.Range(calendar.Day(from), calendar.Day(to))),
		).
		Order(goqu.C(colReservedDate).Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build reserved dates query: %w", err)
	}

	var dates []time.Time
	if err := s.db.SelectContext(ctx, &dates, query, args...); err != nil {
		return nil, unavailable("get reserved dates", err)
	}

	for i := range dates {
		dates[i] = calendar.Day(dates[i])
	}
	return dates, nil
}

// InsertReservationMarks stores one reserved mark per date for the rental
func (s *Store) InsertReservationMarks(ctx context.Context, productID, rentalID int64, dates []time.Time) error {
	return insertMarks(ctx, s.db, productID, rentalID, dates)
}

// ReleaseReservations flips every reserved mark of the rental to available and
// returns how many marks changed. Marks are kept for history.
func (s *Store) ReleaseReservations(ctx context.Context, rentalID int64) (int64, error) {
	return releaseMarks(ctx, s.db, rentalID)
}

func insertMarks(ctx context.Context, db sqlx.ExecerContext, productID, rentalID int64, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, goqu.Record{
			colProductID:    productID,
			colRentalID:     rentalID,
			colReservedDate: calendar.Day(d),
			colStatus:       string(models.MarkStatusReserved),
		})
	}

	query, args, err := pg.Insert(tableCalendar).Rows(rows...).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build reservation insert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := isUniqueViolation(err); ok {
			return &models.ConflictError{
				ProductID: productID,
				Start:     calendar.Day(dates[0]),
				End:       calendar.Day(dates[len(dates)-1]),
				Reason:    fmt.Sprintf("reserved by another rental (%s)", pqErr.Constraint),
			}
		}
		return unavailable("insert reservation marks", err)
	}
	return nil
}

func releaseMarks(ctx context.Context, db sqlx.ExecerContext, rentalID int64) (int64, error) {
	query, args, err := pg.Update(tableCalendar).
		Set(goqu.Record{colStatus: string(models.MarkStatusAvailable)}).
		Where(
			goqu.C(colRentalID).Eq(rentalID),
			goqu.C(colStatus).Eq(string(models.MarkStatusReserved)),
		).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build reservation release: %w", err)
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, unavailable("release reservation marks", err)
	}
	released, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("release reservation marks", err)
	}
	return released, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rental-service/internal/calendar"
	"rental-service/internal/models"
)

const insertRentalQuery = `
	INSERT INTO rentals (transaction_id, product_id, product_name, customer_name, customer_phone,
		customer_email, rental_start_date, rental_end_date, rental_days, daily_rate, total_amount,
		discount, discount_amount, paid_amount, remaining_amount, deposit_amount, status,
		agent_id, agent_name, notes, idempotency_key)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	RETURNING id, created_at`

// CreateRentalBooking writes the paired transaction, the rental and its
// calendar marks in a single database transaction. A reserved day already
// held by another rental aborts the whole booking with a ConflictError.
func (s *Store) CreateRentalBooking(ctx context.Context, booking *models.RentalBooking) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("begin booking", err)
	}
	defer tx.Rollback()

	if err := insertTransaction(ctx, tx, booking.Transaction); err != nil {
		return err
	}

	rental := booking.Rental
	rental.TransactionID = booking.Transaction.ID

	err = tx.GetContext(ctx, rental, insertRentalQuery,
		rental.TransactionID, rental.ProductID, rental.ProductName, rental.CustomerName,
		rental.CustomerPhone, rental.CustomerEmail, calendar.Day(rental.StartDate),
		calendar.Day(rental.EndDate), rental.RentalDays, rental.DailyRate, rental.TotalAmount,
		rental.Discount, rental.DiscountAmount, rental.PaidAmount, rental.RemainingAmount,
		rental.DepositAmount, rental.Status, rental.AgentID, rental.AgentName, rental.Notes,
		rental.IdempotencyKey)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return &models.ConflictError{
				ProductID: rental.ProductID,
				Start:     rental.StartDate,
				End:       rental.EndDate,
				Reason:    "duplicate idempotency key",
			}
		}
		return unavailable("insert rental", err)
	}

	if err := insertMarks(ctx, tx, rental.ProductID, rental.ID, booking.Dates); err != nil {
		return err
	}

	if booking.Payment != nil {
		booking.Payment.RentalID = &rental.ID
		if err := insertPayment(ctx, tx, booking.Payment); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit booking", err)
	}
	return nil
}

// GetRentalByID retrieves a rental by ID
func (s *Store) GetRentalByID(ctx context.Context, id int64) (*models.Rental, error) {
	var rental models.Rental
	err := s.db.GetContext(ctx, &rental, "SELECT * FROM rentals WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("rental", id)
	}
	if err != nil {
		return nil, unavailable("get rental", err)
	}
	return normalizeRental(&rental), nil
}

// GetRentalByIdempotencyKey returns nil when no rental was booked with the key
func (s *Store) GetRentalByIdempotencyKey(ctx context.Context, key string) (*models.Rental, error) {
	var rental models.Rental
	err := s.db.GetContext(ctx, &rental, "SELECT * FROM rentals WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get rental by idempotency key", err)
	}
	return normalizeRental(&rental), nil
}

// ListOpenRentalsEndingBefore returns active or partially paid rentals whose
// end date is strictly before day
func (s *Store) ListOpenRentalsEndingBefore(ctx context.Context, day time.Time) ([]models.Rental, error) {
	var rentals []models.Rental
	err := s.db.SelectContext(ctx, &rentals, `
		SELECT * FROM rentals
		WHERE status IN ($1, $2) AND rental_end_date < $3
		ORDER BY rental_end_date`,
		models.RentalStatusActive, models.RentalStatusPartial, calendar.Day(day))
	if err != nil {
		return nil, unavailable("list open rentals", err)
	}
	for i := range rentals {
		normalizeRental(&rentals[i])
	}
	return rentals, nil
}

// ListRentalsByPhone retrieves rentals booked under a customer phone
func (s *Store) ListRentalsByPhone(ctx context.Context, phone string) ([]models.Rental, error) {
	var rentals []models.Rental
	err := s.db.SelectContext(ctx, &rentals,
		"SELECT * FROM rentals WHERE customer_phone = $1 ORDER BY created_at DESC", phone)
	if err != nil {
		return nil, unavailable("list rentals by phone", err)
	}
	for i := range rentals {
		normalizeRental(&rentals[i])
	}
	return rentals, nil
}

// TransitionRental updates the rental status, mirrors it onto the paired
// transaction and optionally releases the calendar marks, all in one
// database transaction. It returns the number of marks released.
func (s *Store) TransitionRental(ctx context.Context, t models.RentalTransition) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, unavailable("begin transition", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE rentals SET status = $1, returned_at = COALESCE($2, returned_at) WHERE id = $3",
		t.Status, t.ReturnedAt, t.RentalID)
	if err != nil {
		return 0, unavailable("update rental status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, models.NewNotFound("rental", t.RentalID)
	}

	if t.TransactionTo != "" {
		_, err = tx.ExecContext(ctx,
			"UPDATE transactions SET status = $1 WHERE id = (SELECT transaction_id FROM rentals WHERE id = $2)",
			t.TransactionTo, t.RentalID)
		if err != nil {
			return 0, unavailable("update transaction status", err)
		}
	}

	var released int64
	if t.ReleaseDates {
		if released, err = releaseMarks(ctx, tx, t.RentalID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, unavailable("commit transition", err)
	}
	return released, nil
}

// ApplyRentalPayment stores the rental's new paid/remaining/status values,
// mirrors the amount onto the paired transaction and inserts the payment row.
func (s *Store) ApplyRentalPayment(ctx context.Context, rental *models.Rental, payment *models.Payment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("begin rental payment", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE rentals SET paid_amount = $1, remaining_amount = $2, status = $3 WHERE id = $4",
		rental.PaidAmount, rental.RemainingAmount, rental.Status, rental.ID)
	if err != nil {
		return unavailable("update rental payment", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.NewNotFound("rental", rental.ID)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE transactions SET
			paid_amount = paid_amount + $1,
			remaining_amount = GREATEST(total_amount - paid_amount - $1, 0),
			status = CASE
				WHEN status IN ('returned', 'cancelled') THEN status
				WHEN total_amount - paid_amount - $1 > 0 THEN 'partial'
				ELSE 'completed'
			END
		WHERE id = $2`,
		payment.Amount, rental.TransactionID)
	if err != nil {
		return unavailable("mirror rental payment", err)
	}

	if err := insertPayment(ctx, tx, payment); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit rental payment", err)
	}
	return nil
}

func normalizeRental(r *models.Rental) *models.Rental {
	r.StartDate = calendar.Day(r.StartDate)
	r.EndDate = calendar.Day(r.EndDate)
	return r
}

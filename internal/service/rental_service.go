package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rental-service/internal/calendar"
	"rental-service/internal/models"
	"rental-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// DefaultMaxRentalDays bounds a single booking when no limit is configured.
	DefaultMaxRentalDays = 365
	// MaxRentalDaysLimit keeps one booking's mark insert under PostgreSQL's
	// 65535 bind parameters (four per mark).
	MaxRentalDaysLimit = 10000

	defaultLockRetries    = 3
	defaultLockRetryDelay = 50 * time.Millisecond
)

// RentalConfig holds the business switches of the rental lifecycle
type RentalConfig struct {
	ReleaseDatesOnCancel bool
	LockTTL              time.Duration
	// MaxRentalDays caps rental_days; zero means DefaultMaxRentalDays.
	MaxRentalDays  int
	LockRetries    int
	LockRetryDelay time.Duration
}

func (c RentalConfig) withDefaults() RentalConfig {
	if c.MaxRentalDays <= 0 {
		c.MaxRentalDays = DefaultMaxRentalDays
	}
	if c.MaxRentalDays > MaxRentalDaysLimit {
		c.MaxRentalDays = MaxRentalDaysLimit
	}
	if c.LockRetries <= 0 {
		c.LockRetries = defaultLockRetries
	}
	if c.LockRetryDelay <= 0 {
		c.LockRetryDelay = defaultLockRetryDelay
	}
	return c
}

// RentalService books rentals and drives their lifecycle
type RentalService struct {
	store        Store
	availability *AvailabilityService
	ledger       *ReservationLedger
	customers    *CustomerService
	payments     *PaymentService
	locker       BookingLocker
	publisher    Publisher
	cfg          RentalConfig
	now          func() time.Time
	logger       *zap.Logger
}

// NewRentalService creates a new rental service. locker and publisher may be nil.
func NewRentalService(
	store Store,
	availability *AvailabilityService,
	ledger *ReservationLedger,
	customers *CustomerService,
	payments *PaymentService,
	locker BookingLocker,
	publisher Publisher,
	cfg RentalConfig,
) *RentalService {
	return &RentalService{
		store:        store,
		availability: availability,
		ledger:       ledger,
		customers:    customers,
		payments:     payments,
		locker:       locker,
		publisher:    publisher,
		cfg:          cfg.withDefaults(),
		now:          time.Now,
		logger:       util.GetLogger(),
	}
}

// BookRentalRequest represents a request to rent a product. The range is
// given by StartDate plus either RentalDays or EndDate; when both are set
// they must agree.
type BookRentalRequest struct {
	ProductID      int64
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  *string
	StartDate      time.Time
	EndDate        *time.Time
	RentalDays     int
	Discount       decimal.Decimal
	PaidAmount     *decimal.Decimal
	DepositAmount  decimal.Decimal
	PaymentMethod  models.PaymentMethod
	AgentID        string
	AgentName      string
	Notes          *string
	IdempotencyKey string
}

func (r *BookRentalRequest) normalize(maxDays int) error {
	if r.ProductID <= 0 {
		return models.NewValidation("product_id", "is required")
	}
	if r.StartDate.IsZero() {
		return models.NewValidation("start_date", "is required")
	}
	r.StartDate = calendar.Day(r.StartDate)

	if r.EndDate != nil {
		days := calendar.DaysBetween(r.StartDate, *r.EndDate)
		if r.RentalDays != 0 && r.RentalDays != days {
			return models.NewValidation("rental_days", "does not match start_date and end_date")
		}
		r.RentalDays = days
	}
	if r.RentalDays < 1 {
		return models.NewValidation("rental_days", "must be at least 1")
	}
	if r.RentalDays > maxDays {
		return models.NewValidation("rental_days", fmt.Sprintf("must be at most %d", maxDays))
	}
	end := calendar.AddDays(r.StartDate, r.RentalDays)
	r.EndDate = &end

	if r.DepositAmount.IsNegative() {
		return models.NewValidation("deposit_amount", "must not be negative")
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = models.PaymentMethodCash
	}
	if !r.PaymentMethod.Valid() {
		return models.NewValidation("payment_method", "must be one of cash, card, transfer")
	}
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
	return nil
}

// BookRental checks the range, prices the rental and writes the transaction,
// the rental and its reservation marks as one unit.
func (s *RentalService) BookRental(ctx context.Context, req BookRentalRequest) (*models.Rental, error) {
	ctx, span := util.StartSpan(ctx, "RentalService.BookRental",
		attribute.Int64("product_id", req.ProductID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.BookingLatency.Observe(time.Since(start).Seconds())
	}()

	if err := req.normalize(s.cfg.MaxRentalDays); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.GetRentalByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate booking request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("rental_id", existing.ID))
			return existing, nil
		}
	}

	product, err := s.store.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsAvailableForRental {
		return nil, models.NewValidation("product_id", "product is not offered for rental")
	}

	release, err := s.lockProduct(ctx, req)
	if err != nil {
		return nil, err
	}
	defer release()

	ok, err := s.availability.CheckRange(ctx, req.ProductID, req.StartDate, *req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	if !ok {
		util.BookingConflictsTotal.WithLabelValues("check").Inc()
		return nil, &models.ConflictError{ProductID: req.ProductID, Start: req.StartDate, End: *req.EndDate}
	}

	pricing, err := ComputePricing(product.RentalPricePerDay, req.RentalDays, req.Discount, req.PaidAmount)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.FindOrCreate(ctx, req.CustomerName, req.CustomerPhone, req.CustomerEmail)
	if err != nil {
		return nil, err
	}

	booking := s.newBooking(req, product, customer, pricing)
	if err := s.store.CreateRentalBooking(ctx, booking); err != nil {
		util.RecordError(span, err)
		if errors.Is(err, models.ErrConflict) {
			if existing := s.lostIdempotencyRace(ctx, req.IdempotencyKey); existing != nil {
				return existing, nil
			}
			util.BookingConflictsTotal.WithLabelValues("store").Inc()
		}
		return nil, fmt.Errorf("failed to book rental: %w", err)
	}

	rental := booking.Rental
	s.availability.InvalidateRange(ctx, rental.ProductID, rental.StartDate, rental.EndDate)

	util.RentalsBookedTotal.Inc()
	s.logger.Info("Rental booked",
		zap.Int64("rental_id", rental.ID),
		zap.Int64("product_id", rental.ProductID),
		zap.Time("start", rental.StartDate),
		zap.Time("end", rental.EndDate),
		zap.String("status", string(rental.Status)))

	s.publishRental(ctx, models.EventTypeRentalBooked, rental, 0)
	return rental, nil
}

func (s *RentalService) newBooking(req BookRentalRequest, product *models.Product, customer *models.Customer, pricing Pricing) *models.RentalBooking {
	rentalStatus := models.RentalStatusActive
	txnStatus := models.TransactionStatusCompleted
	if !pricing.Settled() {
		rentalStatus = models.RentalStatusPartial
		txnStatus = models.TransactionStatusPartial
	}

	name := displayName(req.CustomerName, customer)

	var key *string
	if req.IdempotencyKey != "" {
		key = &req.IdempotencyKey
	}

	booking := &models.RentalBooking{
		Transaction: &models.Transaction{
			Type:            models.TransactionTypeRental,
			ProductID:       product.ID,
			ProductName:     product.Name,
			Quantity:        1,
			UnitPrice:       product.RentalPricePerDay,
			TotalAmount:     pricing.Total,
			Discount:        req.Discount,
			DiscountAmount:  pricing.DiscountAmount,
			PaidAmount:      pricing.Paid,
			RemainingAmount: pricing.Remaining,
			CustomerName:    name,
			CustomerPhone:   customer.Phone,
			CustomerEmail:   req.CustomerEmail,
			Status:          txnStatus,
			AgentID:         req.AgentID,
			AgentName:       req.AgentName,
			Notes:           req.Notes,
		},
		Rental: &models.Rental{
			ProductID:       product.ID,
			ProductName:     product.Name,
			CustomerName:    name,
			CustomerPhone:   customer.Phone,
			CustomerEmail:   req.CustomerEmail,
			StartDate:       req.StartDate,
			EndDate:         *req.EndDate,
			RentalDays:      req.RentalDays,
			DailyRate:       product.RentalPricePerDay,
			TotalAmount:     pricing.Total,
			Discount:        req.Discount,
			DiscountAmount:  pricing.DiscountAmount,
			PaidAmount:      pricing.Paid,
			RemainingAmount: pricing.Remaining,
			DepositAmount:   req.DepositAmount,
			Status:          rentalStatus,
			AgentID:         req.AgentID,
			AgentName:       req.AgentName,
			Notes:           req.Notes,
			IdempotencyKey:  key,
		},
		Dates: s.ledger.PlanMarks(req.StartDate, *req.EndDate),
	}

	if pricing.Paid.IsPositive() {
		booking.Payment = &models.Payment{
			CustomerID:  customer.ID,
			Amount:      pricing.Paid,
			Method:      req.PaymentMethod,
			PaymentDate: s.now(),
			AgentID:     req.AgentID,
			AgentName:   req.AgentName,
		}
	}
	return booking
}

// lockProduct takes the per-product booking lock when a locker is configured.
// A lock held elsewhere is retried a few times before the booking fails with
// a BusyError; a failing lock backend is logged and the booking continues
// under the store's unique index.
func (s *RentalService) lockProduct(ctx context.Context, req BookRentalRequest) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	var token string
	for attempt := 0; ; attempt++ {
		var err error
		token, err = s.locker.AcquireBookingLock(ctx, req.ProductID, s.cfg.LockTTL)
		if err != nil {
			s.logger.Warn("Booking lock unavailable, continuing without it",
				zap.Int64("product_id", req.ProductID),
				zap.Error(err))
			return noop, nil
		}
		if token != "" {
			break
		}
		if attempt >= s.cfg.LockRetries {
			util.BookingConflictsTotal.WithLabelValues("lock").Inc()
			return nil, &models.BusyError{ProductID: req.ProductID}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.LockRetryDelay):
		}
	}

	return func() {
		if err := s.locker.ReleaseBookingLock(context.Background(), req.ProductID, token); err != nil {
			s.logger.Warn("Failed to release booking lock",
				zap.Int64("product_id", req.ProductID),
				zap.Error(err))
		}
	}, nil
}

func (s *RentalService) lostIdempotencyRace(ctx context.Context, key string) *models.Rental {
	if key == "" {
		return nil
	}
	existing, err := s.store.GetRentalByIdempotencyKey(ctx, key)
	if err != nil {
		return nil
	}
	return existing
}

// UpdateStatus moves a rental to returned or cancelled. Returning releases
// the reserved dates and stamps returnedAt (now when nil); cancelling
// releases them only when configured to. Repeating the current terminal
// status is a no-op.
func (s *RentalService) UpdateStatus(ctx context.Context, rentalID int64, status models.RentalStatus, returnedAt *time.Time) (*models.Rental, error) {
	ctx, span := util.StartSpan(ctx, "RentalService.UpdateStatus",
		attribute.Int64("rental_id", rentalID),
		attribute.String("status", string(status)))
	defer span.End()

	if !status.IsTerminal() {
		return nil, models.NewValidation("status", "must be returned or cancelled")
	}

	rental, err := s.store.GetRentalByID(ctx, rentalID)
	if err != nil {
		return nil, err
	}

	if rental.Status == status {
		s.logger.Info("Rental already in requested status",
			zap.Int64("rental_id", rentalID),
			zap.String("status", string(status)))
		return rental, nil
	}
	if rental.Status.IsTerminal() {
		return nil, models.NewValidation("status", fmt.Sprintf("rental is already %s", rental.Status))
	}

	transition := models.RentalTransition{
		RentalID: rentalID,
		Status:   status,
	}
	eventType := models.EventTypeRentalCancelled

	switch status {
	case models.RentalStatusReturned:
		at := s.now()
		if returnedAt != nil {
			at = *returnedAt
		}
		transition.ReturnedAt = &at
		transition.ReleaseDates = true
		transition.TransactionTo = models.TransactionStatusReturned
		eventType = models.EventTypeRentalReturned
	case models.RentalStatusCancelled:
		transition.ReleaseDates = s.cfg.ReleaseDatesOnCancel
		transition.TransactionTo = models.TransactionStatusCancelled
	}

	released, err := s.store.TransitionRental(ctx, transition)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to update rental status: %w", err)
	}

	rental.Status = status
	if transition.ReturnedAt != nil {
		rental.ReturnedAt = transition.ReturnedAt
	}

	if released > 0 {
		util.ReservationsReleasedTotal.Add(float64(released))
		s.availability.InvalidateRange(ctx, rental.ProductID, rental.StartDate, rental.EndDate)
	}
	util.RentalTransitionsTotal.WithLabelValues(string(status)).Inc()

	s.logger.Info("Rental status updated",
		zap.Int64("rental_id", rentalID),
		zap.String("status", string(status)),
		zap.Int64("released", released))

	s.publishRental(ctx, eventType, rental, released)
	return rental, nil
}

// ReleaseDates frees the reserved dates of a closed rental. It is how a
// cancelled rental's slot is handed back when cancellation keeps it.
func (s *RentalService) ReleaseDates(ctx context.Context, rentalID int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "RentalService.ReleaseDates",
		attribute.Int64("rental_id", rentalID))
	defer span.End()

	rental, err := s.store.GetRentalByID(ctx, rentalID)
	if err != nil {
		return 0, err
	}
	if rental.Status.IsOpen() {
		return 0, models.NewValidation("rental_id", "rental is still open, return or cancel it first")
	}

	released, err := s.ledger.Release(ctx, rentalID)
	if err != nil {
		return 0, fmt.Errorf("failed to release dates: %w", err)
	}

	if released > 0 {
		s.publishRental(ctx, models.EventTypeReservationReleased, rental, released)
	}
	return released, nil
}

// RecordPayment adds an installment to the rental
func (s *RentalService) RecordPayment(ctx context.Context, rentalID int64, req PaymentRequest) (*models.Rental, error) {
	return s.payments.RecordRentalPayment(ctx, rentalID, req)
}

// GetRental retrieves a rental by ID
func (s *RentalService) GetRental(ctx context.Context, rentalID int64) (*models.Rental, error) {
	ctx, span := util.StartSpan(ctx, "RentalService.GetRental")
	defer span.End()

	return s.store.GetRentalByID(ctx, rentalID)
}

// DisplayStatus is the status shown to staff: an open rental whose end date
// has passed reads as overdue. The stored status is never changed.
func DisplayStatus(rental *models.Rental, now time.Time) models.RentalStatus {
	if rental.Status.IsOpen() && calendar.Day(now).After(calendar.Day(rental.EndDate)) {
		return models.RentalStatusOverdue
	}
	return rental.Status
}

// Now returns the service clock
func (s *RentalService) Now() time.Time {
	return s.now()
}

// ListOverdue returns the open rentals whose end date is before now's day
func (s *RentalService) ListOverdue(ctx context.Context, now time.Time) ([]models.Rental, error) {
	ctx, span := util.StartSpan(ctx, "RentalService.ListOverdue")
	defer span.End()

	rentals, err := s.store.ListOpenRentalsEndingBefore(ctx, calendar.Day(now))
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue rentals: %w", err)
	}
	return nonNil(rentals), nil
}

// ScanOverdue refreshes the overdue gauge and announces each overdue rental.
// It returns how many rentals are overdue.
func (s *RentalService) ScanOverdue(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "RentalService.ScanOverdue")
	defer span.End()

	now := s.now()
	rentals, err := s.ListOverdue(ctx, now)
	if err != nil {
		util.RecordError(span, err)
		return 0, err
	}

	util.RentalsOverdue.Set(float64(len(rentals)))

	if s.publisher != nil {
		for i := range rentals {
			r := &rentals[i]
			event := &models.RentalOverdueEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypeRentalOverdue,
					Timestamp: now,
				},
				RentalID:      r.ID,
				ProductID:     r.ProductID,
				CustomerPhone: r.CustomerPhone,
				EndDate:       r.EndDate,
				DaysLate:      calendar.DaysBetween(r.EndDate, now),
			}
			if err := s.publisher.PublishRentalOverdue(ctx, event); err != nil {
				s.logger.Error("Failed to publish RentalOverdue event",
					zap.Int64("rental_id", r.ID),
					zap.Error(err))
			}
		}
	}

	s.logger.Info("Overdue scan finished", zap.Int("overdue", len(rentals)))
	return len(rentals), nil
}

func (s *RentalService) publishRental(ctx context.Context, eventType string, rental *models.Rental, released int64) {
	if s.publisher == nil {
		return
	}

	event := &models.RentalEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: s.now(),
		},
		RentalID:      rental.ID,
		TransactionID: rental.TransactionID,
		ProductID:     rental.ProductID,
		StartDate:     rental.StartDate,
		EndDate:       rental.EndDate,
		Status:        rental.Status,
		TotalAmount:   rental.TotalAmount,
		Released:      released,
	}

	if err := s.publisher.PublishRentalEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish rental event",
			zap.String("event_type", eventType),
			zap.Int64("rental_id", rental.ID),
			zap.Error(err))
	}
}

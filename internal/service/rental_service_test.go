package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rental-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 5, 14, 30, 0, 0, time.UTC)

type harness struct {
	store        *fakeStore
	cache        *fakeCache
	publisher    *fakePublisher
	availability *AvailabilityService
	ledger       *ReservationLedger
	customers    *CustomerService
	payments     *PaymentService
	sales        *SaleService
	rentals      *RentalService
	product      *models.Product
}

func newHarness(t *testing.T, cfg RentalConfig) *harness {
	t.Helper()

	h := &harness{
		store:     newFakeStore(),
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
	}
	h.product = h.store.addProduct(models.Product{
		Name:                 "Camera",
		SalePrice:            decimal.NewFromInt(200),
		RentalPricePerDay:    decimal.NewFromInt(50),
		Stock:                5,
		IsAvailableForRental: true,
	})

	h.availability = NewAvailabilityService(h.store, h.cache, time.Minute)
	h.ledger = NewReservationLedger(h.store, h.availability)
	h.customers = NewCustomerService(h.store)
	h.payments = NewPaymentService(h.store, h.customers, h.publisher)
	h.sales = NewSaleService(h.store, h.customers, h.publisher)
	h.rentals = NewRentalService(h.store, h.availability, h.ledger, h.customers, h.payments,
		h.cache, h.publisher, cfg)

	clock := func() time.Time { return fixedNow }
	h.payments.now = clock
	h.sales.now = clock
	h.rentals.now = clock
	return h
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func (h *harness) book(start, end string) (*models.Rental, error) {
	endDate := date(end)
	return h.rentals.BookRental(context.Background(), BookRentalRequest{
		ProductID:     h.product.ID,
		CustomerName:  "Ana",
		CustomerPhone: "+62 812-555",
		StartDate:     date(start),
		EndDate:       &endDate,
	})
}

func TestBookRental_NonOverlappingRangesSucceed(t *testing.T) {
	h := newHarness(t, RentalConfig{})

	first, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)
	second, err := h.book("2025-01-20", "2025-01-22")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 3, h.store.reservedCount(first.ID))
	assert.Equal(t, 3, h.store.reservedCount(second.ID))
}

func TestBookRental_SameRangeTwiceConflicts(t *testing.T) {
	h := newHarness(t, RentalConfig{})

	_, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)

	_, err = h.book("2025-01-10", "2025-01-12")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = h.book("2025-01-11", "2025-01-15")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestBookRental_DayBoundary(t *testing.T) {
	h := newHarness(t, RentalConfig{})

	rental, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)
	assert.Equal(t, 2, rental.RentalDays)
	assert.Equal(t, date("2025-01-12"), rental.EndDate)

	dates, err := h.store.GetReservedDates(context.Background(), h.product.ID, date("2025-01-01"), date("2025-01-31"))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date("2025-01-10"), date("2025-01-11"), date("2025-01-12")}, dates)

	_, err = h.book("2025-01-12", "2025-01-13")
	assert.ErrorIs(t, err, models.ErrConflict, "the end day is still blocked")

	_, err = h.book("2025-01-13", "2025-01-14")
	assert.NoError(t, err)
}

func TestBookRental_Pricing(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	paid := decimal.NewFromInt(35)

	rental, err := h.rentals.BookRental(context.Background(), BookRentalRequest{
		ProductID:     h.product.ID,
		CustomerName:  "Ana",
		CustomerPhone: "555-0101",
		StartDate:     date("2025-02-01"),
		RentalDays:    3,
		Discount:      decimal.NewFromInt(10),
		PaidAmount:    &paid,
	})
	require.NoError(t, err)

	assert.Equal(t, date("2025-02-04"), rental.EndDate)
	assert.True(t, decimal.NewFromInt(15).Equal(rental.DiscountAmount))
	assert.True(t, decimal.NewFromInt(135).Equal(rental.TotalAmount))
	assert.True(t, decimal.NewFromInt(100).Equal(rental.RemainingAmount))
	assert.Equal(t, models.RentalStatusPartial, rental.Status)
	assert.Equal(t, "5550101", rental.CustomerPhone)

	txn, err := h.store.GetTransactionByID(context.Background(), rental.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeRental, txn.Type)
	assert.Equal(t, models.TransactionStatusPartial, txn.Status)
	assert.True(t, rental.TotalAmount.Equal(txn.TotalAmount))

	require.Len(t, h.store.payments, 1)
	assert.True(t, paid.Equal(h.store.payments[0].Amount))
	assert.Equal(t, models.PaymentMethodCash, h.store.payments[0].Method)
}

func TestBookRental_Validation(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()
	mismatched := date("2025-01-15")
	over := decimal.NewFromInt(1000)

	tests := []struct {
		name string
		req  BookRentalRequest
	}{
		{"zero days", BookRentalRequest{ProductID: h.product.ID, CustomerName: "Ana", CustomerPhone: "1", StartDate: date("2025-01-10")}},
		{"end before start", BookRentalRequest{ProductID: h.product.ID, CustomerName: "Ana", CustomerPhone: "1", StartDate: date("2025-01-10"), EndDate: &[]time.Time{date("2025-01-09")}[0]}},
		{"days disagree with end", BookRentalRequest{ProductID: h.product.ID, CustomerName: "Ana", CustomerPhone: "1", StartDate: date("2025-01-10"), EndDate: &mismatched, RentalDays: 2}},
		{"paid above total", BookRentalRequest{ProductID: h.product.ID, CustomerName: "Ana", CustomerPhone: "1", StartDate: date("2025-01-10"), RentalDays: 2, PaidAmount: &over}},
		{"missing phone", BookRentalRequest{ProductID: h.product.ID, CustomerName: "Ana", StartDate: date("2025-01-10"), RentalDays: 2}},
		{"bad method", BookRentalRequest{ProductID: h.product.ID, CustomerName: "Ana", CustomerPhone: "1", StartDate: date("2025-01-10"), RentalDays: 2, PaymentMethod: "cheque"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.rentals.BookRental(ctx, tt.req)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}

	assert.Empty(t, h.store.rentals)
}

func TestBookRental_ProductChecks(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()

	_, err := h.rentals.BookRental(ctx, BookRentalRequest{
		ProductID: 999, CustomerName: "Ana", CustomerPhone: "1", StartDate: date("2025-01-10"), RentalDays: 1,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	saleOnly := h.store.addProduct(models.Product{Name: "Bag", IsAvailableForRental: false})
	_, err = h.rentals.BookRental(ctx, BookRentalRequest{
		ProductID: saleOnly.ID, CustomerName: "Ana", CustomerPhone: "1", StartDate: date("2025-01-10"), RentalDays: 1,
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestBookRental_IdempotencyKey(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	req := BookRentalRequest{
		ProductID:      h.product.ID,
		CustomerName:   "Ana",
		CustomerPhone:  "555",
		StartDate:      date("2025-03-01"),
		RentalDays:     2,
		IdempotencyKey: "booking-1",
	}

	first, err := h.rentals.BookRental(context.Background(), req)
	require.NoError(t, err)
	second, err := h.rentals.BookRental(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, h.store.rentals, 1)
}

func TestBookRental_StoreUnavailableFailsClosed(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	h.store.failReads = true

	_, err := h.book("2025-01-10", "2025-01-12")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Empty(t, h.store.rentals)
}

func TestBookRental_BookingWriteFails(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	h.store.failBookings = true

	_, err := h.book("2025-01-10", "2025-01-12")
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Empty(t, h.store.marks)
	assert.Empty(t, h.publisher.rentals)
}

func TestBookRental_Lock(t *testing.T) {
	h := newHarness(t, RentalConfig{LockTTL: time.Second, LockRetryDelay: time.Millisecond})

	h.cache.locks[h.product.ID] = "someone-else"
	_, err := h.book("2025-01-10", "2025-01-12")
	assert.ErrorIs(t, err, models.ErrBusy)
	assert.NotErrorIs(t, err, models.ErrConflict, "a held lock says nothing about the dates")
	assert.Equal(t, defaultLockRetries+1, h.cache.attempts)
	assert.Empty(t, h.store.rentals)

	delete(h.cache.locks, h.product.ID)
	h.cache.failLocks = true
	_, err = h.book("2025-01-10", "2025-01-12")
	assert.NoError(t, err, "a failing lock backend does not block bookings")

	h.cache.failLocks = false
	_, err = h.book("2025-01-20", "2025-01-21")
	require.NoError(t, err)
	assert.Empty(t, h.cache.locks, "lock is released after booking")
}

func TestBookRental_LockContentionRetries(t *testing.T) {
	h := newHarness(t, RentalConfig{LockTTL: time.Second, LockRetryDelay: time.Millisecond})

	_, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)

	h.cache.busyAttempts = 2
	h.cache.attempts = 0
	second, err := h.book("2025-01-20", "2025-01-22")
	require.NoError(t, err, "non-overlapping ranges both succeed while another booking holds the lock briefly")
	assert.Equal(t, 3, h.cache.attempts)
	assert.Equal(t, 3, h.store.reservedCount(second.ID))
}

func TestBookRental_LockWaitHonoursContext(t *testing.T) {
	h := newHarness(t, RentalConfig{LockTTL: time.Second, LockRetries: 5, LockRetryDelay: time.Hour})
	h.cache.locks[h.product.ID] = "someone-else"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	endDate := date("2025-01-12")
	_, err := h.rentals.BookRental(ctx, BookRentalRequest{
		ProductID:     h.product.ID,
		CustomerName:  "Ana",
		CustomerPhone: "1",
		StartDate:     date("2025-01-10"),
		EndDate:       &endDate,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBookRental_MaxRentalDays(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()
	farEnd := date("9999-12-31")

	tests := []struct {
		name string
		req  BookRentalRequest
	}{
		{"end date centuries away", BookRentalRequest{ProductID: h.product.ID, CustomerName: "Ana", CustomerPhone: "1", StartDate: date("1700-01-01"), EndDate: &farEnd}},
		{"rental days beyond default", BookRentalRequest{ProductID: h.product.ID, CustomerName: "Ana", CustomerPhone: "1", StartDate: date("2025-01-10"), RentalDays: DefaultMaxRentalDays + 1}},
		{"rental days beyond insert limit", BookRentalRequest{ProductID: h.product.ID, CustomerName: "Ana", CustomerPhone: "1", StartDate: date("2025-01-10"), RentalDays: 40000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.rentals.BookRental(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrValidation)
			var invalid *models.ValidationError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "rental_days", invalid.Field)
		})
	}
	assert.Empty(t, h.store.rentals)
	assert.Empty(t, h.store.marks)

	rental, err := h.rentals.BookRental(ctx, BookRentalRequest{
		ProductID: h.product.ID, CustomerName: "Ana", CustomerPhone: "1",
		StartDate: date("2025-01-01"), RentalDays: DefaultMaxRentalDays,
	})
	require.NoError(t, err)
	assert.Equal(t, date("2026-01-01"), rental.EndDate)
}

func TestRentalConfig_Defaults(t *testing.T) {
	cfg := RentalConfig{MaxRentalDays: 50000}.withDefaults()
	assert.Equal(t, MaxRentalDaysLimit, cfg.MaxRentalDays)
	assert.Equal(t, defaultLockRetries, cfg.LockRetries)
	assert.Equal(t, defaultLockRetryDelay, cfg.LockRetryDelay)

	cfg = RentalConfig{MaxRentalDays: 30}.withDefaults()
	assert.Equal(t, 30, cfg.MaxRentalDays)
}

func TestBookRental_PublishFailureDoesNotFailBooking(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	h.publisher.fail = true

	rental, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)
	assert.NotZero(t, rental.ID)
}

func TestUpdateStatus_ReturnReleasesDates(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()

	rental, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)

	updated, err := h.rentals.UpdateStatus(ctx, rental.ID, models.RentalStatusReturned, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RentalStatusReturned, updated.Status)
	require.NotNil(t, updated.ReturnedAt)
	assert.Equal(t, fixedNow, *updated.ReturnedAt)

	assert.Equal(t, 0, h.store.reservedCount(rental.ID))
	assert.True(t, h.availability.IsRangeAvailable(ctx, h.product.ID, date("2025-01-10"), date("2025-01-12")))

	txn, err := h.store.GetTransactionByID(ctx, rental.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusReturned, txn.Status)
}

func TestUpdateStatus_ReturnTwiceIsNoOp(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()

	rental, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)

	returnedAt := date("2025-01-12").Add(17 * time.Hour)
	_, err = h.rentals.UpdateStatus(ctx, rental.ID, models.RentalStatusReturned, &returnedAt)
	require.NoError(t, err)

	again, err := h.rentals.UpdateStatus(ctx, rental.ID, models.RentalStatusReturned, nil)
	require.NoError(t, err)
	assert.Equal(t, returnedAt, *again.ReturnedAt)

	assert.Equal(t, []string{models.EventTypeRentalBooked, models.EventTypeRentalReturned},
		h.publisher.rentalEventTypes())
}

func TestUpdateStatus_CancelKeepsDatesByDefault(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()

	rental, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)

	_, err = h.rentals.UpdateStatus(ctx, rental.ID, models.RentalStatusCancelled, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, h.store.reservedCount(rental.ID))
	assert.False(t, h.availability.IsRangeAvailable(ctx, h.product.ID, date("2025-01-11"), date("2025-01-11")))

	_, err = h.book("2025-01-10", "2025-01-12")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestUpdateStatus_CancelReleasesWhenConfigured(t *testing.T) {
	h := newHarness(t, RentalConfig{ReleaseDatesOnCancel: true})
	ctx := context.Background()

	rental, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)

	_, err = h.rentals.UpdateStatus(ctx, rental.ID, models.RentalStatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, h.store.reservedCount(rental.ID))

	_, err = h.book("2025-01-10", "2025-01-12")
	assert.NoError(t, err)
}

func TestUpdateStatus_Rules(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()

	rental, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)

	for _, status := range []models.RentalStatus{models.RentalStatusOverdue, models.RentalStatusActive, models.RentalStatusPartial, "lost"} {
		_, err := h.rentals.UpdateStatus(ctx, rental.ID, status, nil)
		assert.ErrorIs(t, err, models.ErrValidation, string(status))
	}

	_, err = h.rentals.UpdateStatus(ctx, rental.ID, models.RentalStatusReturned, nil)
	require.NoError(t, err)

	_, err = h.rentals.UpdateStatus(ctx, rental.ID, models.RentalStatusCancelled, nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = h.rentals.UpdateStatus(ctx, 999, models.RentalStatusReturned, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReleaseDates(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()

	rental, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)

	_, err = h.rentals.ReleaseDates(ctx, rental.ID)
	assert.ErrorIs(t, err, models.ErrValidation, "open rentals keep their dates")

	_, err = h.rentals.UpdateStatus(ctx, rental.ID, models.RentalStatusCancelled, nil)
	require.NoError(t, err)

	released, err := h.rentals.ReleaseDates(ctx, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), released)

	released, err = h.rentals.ReleaseDates(ctx, rental.ID)
	require.NoError(t, err)
	assert.Zero(t, released)

	assert.Contains(t, h.publisher.rentalEventTypes(), models.EventTypeReservationReleased)
}

func TestRecordPayment_RoundTrip(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()
	zero := decimal.Zero

	rental, err := h.rentals.BookRental(ctx, BookRentalRequest{
		ProductID:     h.product.ID,
		CustomerName:  "Ana",
		CustomerPhone: "555",
		StartDate:     date("2025-01-10"),
		RentalDays:    2,
		PaidAmount:    &zero,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RentalStatusPartial, rental.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(rental.RemainingAmount))

	for _, amount := range []int64{30, 30} {
		rental, err = h.rentals.RecordPayment(ctx, rental.ID, PaymentRequest{Amount: decimal.NewFromInt(amount)})
		require.NoError(t, err)
		assert.Equal(t, models.RentalStatusPartial, rental.Status)
	}
	assert.True(t, decimal.NewFromInt(40).Equal(rental.RemainingAmount))

	rental, err = h.rentals.RecordPayment(ctx, rental.ID, PaymentRequest{Amount: decimal.NewFromInt(50), Method: models.PaymentMethodCard})
	require.NoError(t, err)
	assert.Equal(t, models.RentalStatusActive, rental.Status)
	assert.True(t, rental.RemainingAmount.IsZero(), "remaining never goes negative")
	assert.True(t, decimal.NewFromInt(110).Equal(rental.PaidAmount))

	txn, err := h.store.GetTransactionByID(ctx, rental.TransactionID)
	require.NoError(t, err)
	assert.True(t, txn.RemainingAmount.IsZero())

	assert.Len(t, h.publisher.payments, 3)
	assert.Len(t, h.store.payments, 3)
}

func TestRecordPayment_KeepsTerminalStatus(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()
	zero := decimal.Zero

	rental, err := h.rentals.BookRental(ctx, BookRentalRequest{
		ProductID: h.product.ID, CustomerName: "Ana", CustomerPhone: "555",
		StartDate: date("2025-01-10"), RentalDays: 2, PaidAmount: &zero,
	})
	require.NoError(t, err)
	_, err = h.rentals.UpdateStatus(ctx, rental.ID, models.RentalStatusReturned, nil)
	require.NoError(t, err)

	rental, err = h.rentals.RecordPayment(ctx, rental.ID, PaymentRequest{Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.Equal(t, models.RentalStatusReturned, rental.Status)
	assert.True(t, rental.RemainingAmount.IsZero())
}

func TestRecordPayment_Validation(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()

	rental, err := h.book("2025-01-10", "2025-01-12")
	require.NoError(t, err)

	_, err = h.rentals.RecordPayment(ctx, rental.ID, PaymentRequest{Amount: decimal.Zero})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = h.rentals.RecordPayment(ctx, rental.ID, PaymentRequest{Amount: decimal.NewFromInt(-5)})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = h.rentals.RecordPayment(ctx, rental.ID, PaymentRequest{Amount: decimal.NewFromInt(5), Method: "cheque"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = h.rentals.RecordPayment(ctx, 999, PaymentRequest{Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDisplayStatus(t *testing.T) {
	now := date("2025-01-13").Add(9 * time.Hour)

	tests := []struct {
		name   string
		status models.RentalStatus
		end    string
		want   models.RentalStatus
	}{
		{"ended yesterday", models.RentalStatusActive, "2025-01-12", models.RentalStatusOverdue},
		{"partial ended yesterday", models.RentalStatusPartial, "2025-01-12", models.RentalStatusOverdue},
		{"ends today", models.RentalStatusActive, "2025-01-13", models.RentalStatusActive},
		{"ends tomorrow", models.RentalStatusPartial, "2025-01-14", models.RentalStatusPartial},
		{"returned late", models.RentalStatusReturned, "2025-01-01", models.RentalStatusReturned},
		{"cancelled", models.RentalStatusCancelled, "2025-01-01", models.RentalStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rental := &models.Rental{Status: tt.status, EndDate: date(tt.end)}
			assert.Equal(t, tt.want, DisplayStatus(rental, now))
			assert.Equal(t, tt.status, rental.Status, "stored status is untouched")
		})
	}
}

func TestScanOverdue(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	ctx := context.Background()

	late, err := h.book("2024-12-20", "2024-12-22")
	require.NoError(t, err)
	_, err = h.book("2025-01-03", "2025-01-05")
	require.NoError(t, err)
	returned, err := h.book("2024-12-01", "2024-12-02")
	require.NoError(t, err)
	_, err = h.rentals.UpdateStatus(ctx, returned.ID, models.RentalStatusReturned, nil)
	require.NoError(t, err)

	count, err := h.rentals.ScanOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, h.publisher.overdue, 1)
	assert.Equal(t, late.ID, h.publisher.overdue[0].RentalID)
	assert.Equal(t, 14, h.publisher.overdue[0].DaysLate)

	stored, err := h.store.GetRentalByID(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentalStatusActive, stored.Status, "overdue is never persisted")
}

func TestScanOverdue_StoreError(t *testing.T) {
	h := newHarness(t, RentalConfig{})
	h.store.failReads = true

	_, err := h.rentals.ScanOverdue(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrStoreUnavailable))
}

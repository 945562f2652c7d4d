package service

import (
	"context"
	"time"

	"rental-service/internal/models"
)

// Store is the persistence surface the services depend on. *store.Store
// implements it against PostgreSQL.
type Store interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)

	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error

	GetReservedDates(ctx context.Context, productID int64, from, to time.Time) ([]time.Time, error)
	InsertReservationMarks(ctx context.Context, productID, rentalID int64, dates []time.Time) error
	ReleaseReservations(ctx context.Context, rentalID int64) (int64, error)

	CreateRentalBooking(ctx context.Context, booking *models.RentalBooking) error
	GetRentalByID(ctx context.Context, id int64) (*models.Rental, error)
	GetRentalByIdempotencyKey(ctx context.Context, key string) (*models.Rental, error)
	ListOpenRentalsEndingBefore(ctx context.Context, day time.Time) ([]models.Rental, error)
	ListRentalsByPhone(ctx context.Context, phone string) ([]models.Rental, error)
	TransitionRental(ctx context.Context, t models.RentalTransition) (int64, error)
	ApplyRentalPayment(ctx context.Context, rental *models.Rental, payment *models.Payment) error

	CreateSale(ctx context.Context, txn *models.Transaction, payment *models.Payment) error
	GetTransactionByID(ctx context.Context, id int64) (*models.Transaction, error)
	ListTransactionsByPhone(ctx context.Context, phone string) ([]models.Transaction, error)
	ApplyTransactionPayment(ctx context.Context, txn *models.Transaction, payment *models.Payment) error

	ListPaymentsByCustomer(ctx context.Context, customerID int64) ([]models.Payment, error)
}

// CalendarCache holds rendered month views keyed by product and month.
type CalendarCache interface {
	GetCalendar(ctx context.Context, productID int64, month string) ([]byte, error)
	SetCalendar(ctx context.Context, productID int64, month string, data []byte, ttl time.Duration) error
	InvalidateCalendar(ctx context.Context, productID int64, months []string) error
}

// BookingLocker serializes bookings of the same product across instances.
type BookingLocker interface {
	AcquireBookingLock(ctx context.Context, productID int64, ttl time.Duration) (string, error)
	ReleaseBookingLock(ctx context.Context, productID int64, token string) error
}

// Publisher emits domain events.
type Publisher interface {
	PublishRentalEvent(ctx context.Context, event *models.RentalEvent) error
	PublishRentalOverdue(ctx context.Context, event *models.RentalOverdueEvent) error
	PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error
	PublishSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error
}

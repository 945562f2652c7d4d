package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeRentalBooked        = "RENTAL_BOOKED"
	EventTypeRentalReturned      = "RENTAL_RETURNED"
	EventTypeRentalCancelled     = "RENTAL_CANCELLED"
	EventTypeRentalOverdue       = "RENTAL_OVERDUE"
	EventTypeReservationReleased = "RESERVATION_RELEASED"
	EventTypePaymentRecorded     = "PAYMENT_RECORDED"
	EventTypeSaleRecorded        = "SALE_RECORDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RentalEvent is published for every rental lifecycle step that touches the calendar
type RentalEvent struct {
	BaseEvent
	RentalID      int64           `json:"rental_id"`
	TransactionID int64           `json:"transaction_id"`
	ProductID     int64           `json:"product_id"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	Status        RentalStatus    `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Released      int64           `json:"released,omitempty"`
}

// RentalOverdueEvent published by the overdue scan; the rental row is not modified
type RentalOverdueEvent struct {
	BaseEvent
	RentalID      int64     `json:"rental_id"`
	ProductID     int64     `json:"product_id"`
	CustomerPhone string    `json:"customer_phone"`
	EndDate       time.Time `json:"end_date"`
	DaysLate      int       `json:"days_late"`
}

// PaymentRecordedEvent published when an installment is recorded
type PaymentRecordedEvent struct {
	BaseEvent
	PaymentID       int64           `json:"payment_id"`
	RentalID        *int64          `json:"rental_id,omitempty"`
	TransactionID   *int64          `json:"transaction_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Method          PaymentMethod   `json:"method"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}

// SaleRecordedEvent published when a sale transaction is stored
type SaleRecordedEvent struct {
	BaseEvent
	TransactionID int64           `json:"transaction_id"`
	ProductID     int64           `json:"product_id"`
	Quantity      int             `json:"quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

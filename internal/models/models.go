package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item that can be sold or rented
type Product struct {
	ID                   int64           `db:"id" json:"id"`
	Name                 string          `db:"name" json:"name"`
	Category             string          `db:"category" json:"category"`
	Barcode              *string         `db:"barcode" json:"barcode,omitempty"`
	SalePrice            decimal.Decimal `db:"sale_price" json:"sale_price"`
	RentalPricePerDay    decimal.Decimal `db:"rental_price_per_day" json:"rental_price_per_day"`
	Stock                int             `db:"stock" json:"stock"`
	IsAvailableForRental bool            `db:"is_available_for_rental" json:"is_available_for_rental"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// Customer is keyed by phone. Its fields are copied onto transactions and
// rentals at creation, so later edits do not rewrite history.
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Address   *string   `db:"address" json:"address,omitempty"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction records a sale or a rental event
type Transaction struct {
	ID              int64             `db:"id" json:"id"`
	Type            TransactionType   `db:"type" json:"type"`
	ProductID       int64             `db:"product_id" json:"product_id"`
	ProductName     string            `db:"product_name" json:"product_name"`
	Quantity        int               `db:"quantity" json:"quantity"`
	UnitPrice       decimal.Decimal   `db:"unit_price" json:"unit_price"`
	TotalAmount     decimal.Decimal   `db:"total_amount" json:"total_amount"`
	Discount        decimal.Decimal   `db:"discount" json:"discount"`
	DiscountAmount  decimal.Decimal   `db:"discount_amount" json:"discount_amount"`
	PaidAmount      decimal.Decimal   `db:"paid_amount" json:"paid_amount"`
	RemainingAmount decimal.Decimal   `db:"remaining_amount" json:"remaining_amount"`
	CustomerName    string            `db:"customer_name" json:"customer_name"`
	CustomerPhone   string            `db:"customer_phone" json:"customer_phone"`
	CustomerEmail   *string           `db:"customer_email" json:"customer_email,omitempty"`
	Status          TransactionStatus `db:"status" json:"status"`
	AgentID         string            `db:"agent_id" json:"agent_id"`
	AgentName       string            `db:"agent_name" json:"agent_name"`
	Notes           *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
}

// Rental is the rental-specific half of a rental transaction
type Rental struct {
	ID              int64           `db:"id" json:"id"`
	TransactionID   int64           `db:"transaction_id" json:"transaction_id"`
	ProductID       int64           `db:"product_id" json:"product_id"`
	ProductName     string          `db:"product_name" json:"product_name"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	CustomerPhone   string          `db:"customer_phone" json:"customer_phone"`
	CustomerEmail   *string         `db:"customer_email" json:"customer_email,omitempty"`
	StartDate       time.Time       `db:"rental_start_date" json:"rental_start_date"`
	EndDate         time.Time       `db:"rental_end_date" json:"rental_end_date"`
	RentalDays      int             `db:"rental_days" json:"rental_days"`
	DailyRate       decimal.Decimal `db:"daily_rate" json:"daily_rate"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Discount        decimal.Decimal `db:"discount" json:"discount"`
	DiscountAmount  decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	PaidAmount      decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	RemainingAmount decimal.Decimal `db:"remaining_amount" json:"remaining_amount"`
	DepositAmount   decimal.Decimal `db:"deposit_amount" json:"deposit_amount"`
	Status          RentalStatus    `db:"status" json:"status"`
	AgentID         string          `db:"agent_id" json:"agent_id"`
	AgentName       string          `db:"agent_name" json:"agent_name"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	IdempotencyKey  *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	ReturnedAt      *time.Time      `db:"returned_at" json:"returned_at,omitempty"`
}

// ReservationMark marks one product as booked by one rental on one calendar day
type ReservationMark struct {
	ID           int64      `db:"id" json:"id"`
	ProductID    int64      `db:"product_id" json:"product_id"`
	RentalID     int64      `db:"rental_id" json:"rental_id"`
	ReservedDate time.Time  `db:"reserved_date" json:"reserved_date"`
	Status       MarkStatus `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Payment is an installment against a transaction or a rental
type Payment struct {
	ID            int64           `db:"id" json:"id"`
	TransactionID *int64          `db:"transaction_id" json:"transaction_id,omitempty"`
	RentalID      *int64          `db:"rental_id" json:"rental_id,omitempty"`
	CustomerID    int64           `db:"customer_id" json:"customer_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Method        PaymentMethod   `db:"payment_method" json:"payment_method"`
	PaymentDate   time.Time       `db:"payment_date" json:"payment_date"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	AgentID       string          `db:"agent_id" json:"agent_id"`
	AgentName     string          `db:"agent_name" json:"agent_name"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// ProductAvailability is the month view of a product's calendar
type ProductAvailability struct {
	ProductID      int64       `json:"product_id"`
	Month          string      `json:"month"`
	AvailableDates []time.Time `json:"available_dates"`
	ReservedDates  []time.Time `json:"reserved_dates"`
	IsAvailable    bool        `json:"is_available"`
}

// CustomerHistory groups everything recorded against one customer
type CustomerHistory struct {
	Customer     *Customer     `json:"customer"`
	Transactions []Transaction `json:"transactions"`
	Rentals      []Rental      `json:"rentals"`
	Payments     []Payment     `json:"payments"`
}

// RentalStatus values. Overdue is never stored; see service.DisplayStatus.
type RentalStatus string

const (
	RentalStatusActive    RentalStatus = "active"
	RentalStatusPartial   RentalStatus = "partial"
	RentalStatusReturned  RentalStatus = "returned"
	RentalStatusCancelled RentalStatus = "cancelled"
	RentalStatusOverdue   RentalStatus = "overdue"
)

// IsOpen reports whether the rental still holds the product.
func (s RentalStatus) IsOpen() bool {
	return s == RentalStatusActive || s == RentalStatusPartial
}

// IsTerminal reports whether no further transition is allowed.
func (s RentalStatus) IsTerminal() bool {
	return s == RentalStatusReturned || s == RentalStatusCancelled
}

type MarkStatus string

const (
	MarkStatusReserved  MarkStatus = "reserved"
	MarkStatusAvailable MarkStatus = "available"
)

type TransactionType string

const (
	TransactionTypeSale   TransactionType = "sale"
	TransactionTypeRental TransactionType = "rental"
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusPartial   TransactionStatus = "partial"
	TransactionStatusReturned  TransactionStatus = "returned"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

// Valid reports whether m is one of the accepted payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer:
		return true
	}
	return false
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// RentalBooking is the unit written atomically when a rental is booked:
// the paired transaction, the rental, one calendar mark per day and the
// upfront payment when something was paid at the counter.
type RentalBooking struct {
	Transaction *Transaction
	Rental      *Rental
	Dates       []time.Time
	Payment     *Payment
}

// RentalTransition is a status change applied to a rental and its transaction.
type RentalTransition struct {
	RentalID      int64
	Status        RentalStatus
	ReturnedAt    *time.Time
	ReleaseDates  bool
	TransactionTo TransactionStatus
}

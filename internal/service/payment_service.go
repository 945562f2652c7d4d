package service

import (
	"context"
	"fmt"
	"time"

	"rental-service/internal/models"
	"rental-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentService records installments against rentals and transactions
type PaymentService struct {
	store     Store
	customers *CustomerService
	publisher Publisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service. publisher may be nil.
func NewPaymentService(store Store, customers *CustomerService, publisher Publisher) *PaymentService {
	return &PaymentService{
		store:     store,
		customers: customers,
		publisher: publisher,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// PaymentRequest represents one installment
type PaymentRequest struct {
	Amount      decimal.Decimal      `json:"amount"`
	Method      models.PaymentMethod `json:"payment_method"`
	PaymentDate *time.Time           `json:"payment_date,omitempty"`
	Notes       *string              `json:"notes,omitempty"`
	AgentID     string               `json:"agent_id"`
	AgentName   string               `json:"agent_name"`
}

func (r *PaymentRequest) validate() error {
	if !r.Amount.IsPositive() {
		return models.NewValidation("amount", "must be greater than zero")
	}
	if r.Method == "" {
		r.Method = models.PaymentMethodCash
	}
	if !r.Method.Valid() {
		return models.NewValidation("payment_method", "must be one of cash, card, transfer")
	}
	return nil
}

func (ps *PaymentService) newPayment(req *PaymentRequest, customerID int64) *models.Payment {
	date := ps.now()
	if req.PaymentDate != nil {
		date = *req.PaymentDate
	}
	return &models.Payment{
		CustomerID:  customerID,
		Amount:      req.Amount,
		Method:      req.Method,
		PaymentDate: date,
		Notes:       req.Notes,
		AgentID:     req.AgentID,
		AgentName:   req.AgentName,
	}
}

// RecordRentalPayment adds an installment to a rental. Open rentals become
// partial while money is still owed and active once settled; returned and
// cancelled rentals keep their status.
func (ps *PaymentService) RecordRentalPayment(ctx context.Context, rentalID int64, req PaymentRequest) (*models.Rental, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.RecordRentalPayment",
		attribute.Int64("rental_id", rentalID))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	rental, err := ps.store.GetRentalByID(ctx, rentalID)
	if err != nil {
		return nil, err
	}

	customer, err := ps.customers.FindOrCreate(ctx, rental.CustomerName, rental.CustomerPhone, rental.CustomerEmail)
	if err != nil {
		return nil, err
	}

	rental.PaidAmount = rental.PaidAmount.Add(req.Amount)
	rental.RemainingAmount = remaining(rental.TotalAmount, rental.PaidAmount)
	if rental.Status.IsOpen() {
		if rental.RemainingAmount.IsPositive() {
			rental.Status = models.RentalStatusPartial
		} else {
			rental.Status = models.RentalStatusActive
		}
	}

	payment := ps.newPayment(&req, customer.ID)
	payment.RentalID = &rental.ID

	if err := ps.store.ApplyRentalPayment(ctx, rental, payment); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to record rental payment: %w", err)
	}

	util.PaymentsRecordedTotal.WithLabelValues("rental", string(payment.Method)).Inc()
	ps.logger.Info("Rental payment recorded",
		zap.Int64("rental_id", rental.ID),
		zap.String("amount", payment.Amount.String()),
		zap.String("remaining", rental.RemainingAmount.String()),
		zap.String("status", string(rental.Status)))

	ps.publish(ctx, payment, rental.RemainingAmount)
	return rental, nil
}

// RecordTransactionPayment adds an installment to a sale transaction. Rental
// transactions are paid through their rental so both rows stay in step.
func (ps *PaymentService) RecordTransactionPayment(ctx context.Context, transactionID int64, req PaymentRequest) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.RecordTransactionPayment",
		attribute.Int64("transaction_id", transactionID))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	txn, err := ps.store.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Type == models.TransactionTypeRental {
		return nil, models.NewValidation("transaction_id", "rental transactions are paid through the rental")
	}
	if txn.Status == models.TransactionStatusCancelled || txn.Status == models.TransactionStatusReturned {
		return nil, models.NewValidation("transaction_id", fmt.Sprintf("transaction is %s", txn.Status))
	}

	customer, err := ps.customers.FindOrCreate(ctx, txn.CustomerName, txn.CustomerPhone, txn.CustomerEmail)
	if err != nil {
		return nil, err
	}

	txn.PaidAmount = txn.PaidAmount.Add(req.Amount)
	txn.RemainingAmount = remaining(txn.TotalAmount, txn.PaidAmount)
	if txn.RemainingAmount.IsPositive() {
		txn.Status = models.TransactionStatusPartial
	} else {
		txn.Status = models.TransactionStatusCompleted
	}

	payment := ps.newPayment(&req, customer.ID)
	payment.TransactionID = &txn.ID

	if err := ps.store.ApplyTransactionPayment(ctx, txn, payment); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to record transaction payment: %w", err)
	}

	util.PaymentsRecordedTotal.WithLabelValues("transaction", string(payment.Method)).Inc()
	ps.logger.Info("Transaction payment recorded",
		zap.Int64("transaction_id", txn.ID),
		zap.String("amount", payment.Amount.String()),
		zap.String("status", string(txn.Status)))

	ps.publish(ctx, payment, txn.RemainingAmount)
	return txn, nil
}

func (ps *PaymentService) publish(ctx context.Context, payment *models.Payment, left decimal.Decimal) {
	if ps.publisher == nil {
		return
	}

	event := &models.PaymentRecordedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentRecorded,
			Timestamp: ps.now(),
		},
		PaymentID:       payment.ID,
		RentalID:        payment.RentalID,
		TransactionID:   payment.TransactionID,
		Amount:          payment.Amount,
		Method:          payment.Method,
		RemainingAmount: left,
	}

	if err := ps.publisher.PublishPaymentRecorded(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentRecorded event", zap.Error(err))
	}
}

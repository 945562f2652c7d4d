package service

import (
	"context"
	"fmt"
	"time"

	"rental-service/internal/models"
	"rental-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleService records product sales
type SaleService struct {
	store     Store
	customers *CustomerService
	publisher Publisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewSaleService creates a new sale service. publisher may be nil.
func NewSaleService(store Store, customers *CustomerService, publisher Publisher) *SaleService {
	return &SaleService{
		store:     store,
		customers: customers,
		publisher: publisher,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// SaleRequest represents a request to sell a product
type SaleRequest struct {
	ProductID     int64                `json:"product_id"`
	Quantity      int                  `json:"quantity"`
	CustomerName  string               `json:"customer_name"`
	CustomerPhone string               `json:"customer_phone"`
	CustomerEmail *string              `json:"customer_email,omitempty"`
	Discount      decimal.Decimal      `json:"discount"`
	PaidAmount    *decimal.Decimal     `json:"paid_amount,omitempty"`
	PaymentMethod models.PaymentMethod `json:"payment_method,omitempty"`
	AgentID       string               `json:"agent_id"`
	AgentName     string               `json:"agent_name"`
	Notes         *string              `json:"notes,omitempty"`
}

// RecordSale stores a sale transaction and decrements stock with it
func (s *SaleService) RecordSale(ctx context.Context, req SaleRequest) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.RecordSale")
	defer span.End()

	if req.ProductID <= 0 {
		return nil, models.NewValidation("product_id", "is required")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return nil, models.NewValidation("quantity", "must be at least 1")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentMethodCash
	}
	if !req.PaymentMethod.Valid() {
		return nil, models.NewValidation("payment_method", "must be one of cash, card, transfer")
	}

	product, err := s.store.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.Stock < req.Quantity {
		return nil, models.NewValidation("quantity", fmt.Sprintf("only %d in stock", product.Stock))
	}

	pricing, err := ComputePricing(product.SalePrice, req.Quantity, req.Discount, req.PaidAmount)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.FindOrCreate(ctx, req.CustomerName, req.CustomerPhone, req.CustomerEmail)
	if err != nil {
		return nil, err
	}

	status := models.TransactionStatusCompleted
	if !pricing.Settled() {
		status = models.TransactionStatusPartial
	}

	txn := &models.Transaction{
		Type:            models.TransactionTypeSale,
		ProductID:       product.ID,
		ProductName:     product.Name,
		Quantity:        req.Quantity,
		UnitPrice:       product.SalePrice,
		TotalAmount:     pricing.Total,
		Discount:        req.Discount,
		DiscountAmount:  pricing.DiscountAmount,
		PaidAmount:      pricing.Paid,
		RemainingAmount: pricing.Remaining,
		CustomerName:    displayName(req.CustomerName, customer),
		CustomerPhone:   customer.Phone,
		CustomerEmail:   req.CustomerEmail,
		Status:          status,
		AgentID:         req.AgentID,
		AgentName:       req.AgentName,
		Notes:           req.Notes,
	}

	var payment *models.Payment
	if pricing.Paid.IsPositive() {
		payment = &models.Payment{
			CustomerID:  customer.ID,
			Amount:      pricing.Paid,
			Method:      req.PaymentMethod,
			PaymentDate: s.now(),
			AgentID:     req.AgentID,
			AgentName:   req.AgentName,
		}
	}

	if err := s.store.CreateSale(ctx, txn, payment); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to record sale: %w", err)
	}

	util.SalesRecordedTotal.Inc()
	s.logger.Info("Sale recorded",
		zap.Int64("transaction_id", txn.ID),
		zap.Int64("product_id", txn.ProductID),
		zap.Int("quantity", txn.Quantity))

	if s.publisher != nil {
		event := &models.SaleRecordedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSaleRecorded,
				Timestamp: s.now(),
			},
			TransactionID: txn.ID,
			ProductID:     txn.ProductID,
			Quantity:      txn.Quantity,
			TotalAmount:   txn.TotalAmount,
		}
		if err := s.publisher.PublishSaleRecorded(ctx, event); err != nil {
			s.logger.Error("Failed to publish SaleRecorded event", zap.Error(err))
		}
	}

	return txn, nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	"rental-service/internal/models"
	"rental-service/internal/util"

	"go.uber.org/zap"
)

// CustomerService finds customers by phone and assembles their history
type CustomerService struct {
	store  Store
	logger *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(store Store) *CustomerService {
	return &CustomerService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// NormalizePhone keeps the digits of a phone number and a leading '+'.
// "+62 812-3456" and "+628123456" name the same customer.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "+" {
		return ""
	}
	return out
}

// FindOrCreate returns the customer with the given phone, creating it from
// name and email when none exists yet.
func (s *CustomerService) FindOrCreate(ctx context.Context, name, phone string, email *string) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.FindOrCreate")
	defer span.End()

	normalized := NormalizePhone(phone)
	if normalized == "" {
		return nil, models.NewValidation("customer_phone", "is required")
	}

	existing, err := s.store.GetCustomerByPhone(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.NewValidation("customer_name", "is required")
	}

	customer := &models.Customer{
		Name:  name,
		Phone: normalized,
		Email: email,
	}
	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	s.logger.Info("Customer created",
		zap.Int64("customer_id", customer.ID),
		zap.String("phone", normalized))
	return customer, nil
}

// History returns everything recorded against a customer
func (s *CustomerService) History(ctx context.Context, customerID int64) (*models.CustomerHistory, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.History")
	defer span.End()

	customer, err := s.store.GetCustomerByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	txns, err := s.store.ListTransactionsByPhone(ctx, customer.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	rentals, err := s.store.ListRentalsByPhone(ctx, customer.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to list rentals: %w", err)
	}

	payments, err := s.store.ListPaymentsByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	return &models.CustomerHistory{
		Customer:     customer,
		Transactions: nonNil(txns),
		Rentals:      nonNil(rentals),
		Payments:     nonNil(payments),
	}, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// displayName prefers the name typed at the counter and falls back to the
// stored customer name.
func displayName(name string, customer *models.Customer) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return customer.Name
}

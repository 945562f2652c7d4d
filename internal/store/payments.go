package store

import (
	"context"

	"rental-service/internal/models"

	"github.com/jmoiron/sqlx"
)

func insertPayment(ctx context.Context, q sqlx.QueryerContext, payment *models.Payment) error {
	query := `
		INSERT INTO payments (transaction_id, rental_id, customer_id, amount, payment_method,
			payment_date, notes, agent_id, agent_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := sqlx.GetContext(ctx, q, payment, query,
		payment.TransactionID, payment.RentalID, payment.CustomerID, payment.Amount,
		payment.Method, payment.PaymentDate, payment.Notes, payment.AgentID, payment.AgentName)
	if err != nil {
		return unavailable("insert payment", err)
	}
	return nil
}

// ListPaymentsByCustomer retrieves every installment paid by a customer
func (s *Store) ListPaymentsByCustomer(ctx context.Context, customerID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE customer_id = $1 ORDER BY payment_date DESC", customerID)
	if err != nil {
		return nil, unavailable("list payments", err)
	}
	return payments, nil
}

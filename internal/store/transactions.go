package store

import (
	"context"
	"database/sql"
	"errors"

	"rental-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const insertTransactionQuery = `
	INSERT INTO transactions (type, product_id, product_name, quantity, unit_price, total_amount,
		discount, discount_amount, paid_amount, remaining_amount, customer_name, customer_phone,
		customer_email, status, agent_id, agent_name, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	RETURNING id, created_at`

func insertTransaction(ctx context.Context, q sqlx.QueryerContext, txn *models.Transaction) error {
	err := sqlx.GetContext(ctx, q, txn, insertTransactionQuery,
		txn.Type, txn.ProductID, txn.ProductName, txn.Quantity, txn.UnitPrice, txn.TotalAmount,
		txn.Discount, txn.DiscountAmount, txn.PaidAmount, txn.RemainingAmount, txn.CustomerName,
		txn.CustomerPhone, txn.CustomerEmail, txn.Status, txn.AgentID, txn.AgentName, txn.Notes)
	if err != nil {
		return unavailable("insert transaction", err)
	}
	return nil
}

// CreateSale decrements stock and records the sale, with its upfront payment
// when one is given, in one database transaction. Stock never goes below zero.
func (s *Store) CreateSale(ctx context.Context, txn *models.Transaction, payment *models.Payment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("begin sale", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		txn.Quantity, txn.ProductID)
	if err != nil {
		return unavailable("decrement stock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("decrement stock", err)
	}
	if n == 0 {
		return models.NewValidation("quantity", "insufficient stock")
	}

	if err := insertTransaction(ctx, tx, txn); err != nil {
		return err
	}

	if payment != nil {
		payment.TransactionID = &txn.ID
		if err := insertPayment(ctx, tx, payment); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit sale", err)
	}
	return nil
}

// GetTransactionByID retrieves a transaction by ID
func (s *Store) GetTransactionByID(ctx context.Context, id int64) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.GetContext(ctx, &txn, "SELECT * FROM transactions WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("transaction", id)
	}
	if err != nil {
		return nil, unavailable("get transaction", err)
	}
	return &txn, nil
}

// ListTransactionsByPhone retrieves transactions recorded under a customer phone
func (s *Store) ListTransactionsByPhone(ctx context.Context, phone string) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.db.SelectContext(ctx, &txns,
		"SELECT * FROM transactions WHERE customer_phone = $1 ORDER BY created_at DESC", phone)
	if err != nil {
		return nil, unavailable("list transactions by phone", err)
	}
	return txns, nil
}

// ApplyTransactionPayment stores the transaction's new amounts and status and
// inserts the payment row.
func (s *Store) ApplyTransactionPayment(ctx context.Context, txn *models.Transaction, payment *models.Payment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction payment", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE transactions SET paid_amount = $1, remaining_amount = $2, status = $3 WHERE id = $4",
		txn.PaidAmount, txn.RemainingAmount, txn.Status, txn.ID)
	if err != nil {
		return unavailable("update transaction payment", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.NewNotFound("transaction", txn.ID)
	}

	if err := insertPayment(ctx, tx, payment); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit transaction payment", err)
	}
	return nil
}

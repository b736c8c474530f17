package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/propertyhub/backoffice/internal/models"
)

// PaymentRepository persists payment side-channel records
type PaymentRepository struct {
	db sqlx.ExtContext
}

// NewPaymentRepository creates a repository over a pool or a transaction
func NewPaymentRepository(db sqlx.ExtContext) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePayment inserts a payment record
func (r *PaymentRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	query := `
		INSERT INTO payments (id, amount, method, transaction_id, proof_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.Amount, p.Method, p.TransactionID, p.ProofRef, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// UpdatePaymentStatus changes the status of a payment; other fields are immutable
func (r *PaymentRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by ID
func (r *PaymentRepository) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	query := `SELECT id, amount, method, transaction_id, proof_ref, status, created_at, updated_at
		FROM payments WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, &p, query, id); err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

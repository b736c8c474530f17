package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/propertyhub/backoffice/internal/models"
)

// BookingAuditRepository writes the booking audit trail
type BookingAuditRepository struct {
	db sqlx.ExtContext
}

// NewBookingAuditRepository creates a repository over a pool or a transaction
func NewBookingAuditRepository(db sqlx.ExtContext) *BookingAuditRepository {
	return &BookingAuditRepository{db: db}
}

// LogAudit inserts an audit entry. It runs inside the transaction of the change it records.
func (r *BookingAuditRepository) LogAudit(ctx context.Context, audit *models.BookingAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}
	if audit.Details == nil {
		audit.Details = models.JSONB{}
	}

	query := `
		INSERT INTO booking_audit_logs (
			id, entity_type, entity_id, action, actor_id,
			ip_address, user_agent, details, created_at
		) VALUES (
			:id, :entity_type, :entity_id, :action, :actor_id,
			:ip_address, :user_agent, :details, :created_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, audit); err != nil {
		return fmt.Errorf("failed to log booking audit: %w", err)
	}
	return nil
}

// ListAudits returns the audit trail of one entity in chronological order
func (r *BookingAuditRepository) ListAudits(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.BookingAudit, error) {
	var audits []models.BookingAudit
	query := `
		SELECT id, entity_type, entity_id, action, actor_id, ip_address, user_agent, details, created_at
		FROM booking_audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, r.db, &audits, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("failed to list booking audits: %w", err)
	}
	return audits, nil
}

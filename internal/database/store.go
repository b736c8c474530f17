package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/propertyhub/backoffice/internal/models"
)

// Tx is the unit of work used by admission and lifecycle operations.
// Everything written through it commits or rolls back together.
type Tx interface {
	GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
	LockProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
	LockFeaturedSlots(ctx context.Context) error
	CountFeatured(ctx context.Context) (int, error)
	CountFeaturedInCategory(ctx context.Context, categoryID, excludeID uuid.UUID) (int, error)
	SetFeatured(ctx context.Context, id uuid.UUID, featured bool) error

	ActiveBookingsForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Booking, error)
	HasActiveReservation(ctx context.Context, userID, propertyID uuid.UUID) (bool, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	LockBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateBooking(ctx context.Context, b *models.Booking) error
	DeleteBooking(ctx context.Context, id uuid.UUID) error

	CreatePayment(ctx context.Context, p *models.Payment) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error

	LogAudit(ctx context.Context, audit *models.BookingAudit) error
}

// Store is the read side of the booking engine plus the transaction entry point
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
	ActiveBookingsForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListBookingsForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Booking, error)
	ListCancelledPaidBookings(ctx context.Context) ([]*models.Booking, error)
	FindOverlappingBookings(ctx context.Context) ([]models.ReservationViolation, error)
	FindDuplicateReservations(ctx context.Context) ([]models.ReservationViolation, error)
	ListAudits(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.BookingAudit, error)
	GetUserEmail(ctx context.Context, id uuid.UUID) (string, error)
	Ping(ctx context.Context) error
}

type repositories struct {
	*PropertyRepository
	*BookingRepository
	*PaymentRepository
	*BookingAuditRepository
	*UserRepository
}

func newRepositories(db sqlx.ExtContext) repositories {
	return repositories{
		PropertyRepository:     NewPropertyRepository(db),
		BookingRepository:      NewBookingRepository(db),
		PaymentRepository:      NewPaymentRepository(db),
		BookingAuditRepository: NewBookingAuditRepository(db),
		UserRepository:         NewUserRepository(db),
	}
}

// PostgresStore implements Store over a sqlx pool
type PostgresStore struct {
	repositories
	db *sqlx.DB
}

// NewPostgresStore creates a store over an open pool
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{repositories: newRepositories(db), db: db}
}

// WithTx runs fn in a transaction, committing only when fn returns nil
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{repositories: newRepositories(tx)}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type pgTx struct {
	repositories
}

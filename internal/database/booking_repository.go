package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/propertyhub/backoffice/internal/models"
)

const bookingColumns = `
	id, property_id, requester_kind, user_id,
	client_name, client_phone, client_address, client_email, client_nid_document,
	adults, children, check_in_date, check_out_date,
	status, payment_status, payment_method, payment_id,
	appointment_requested_date, appointment_date, agent_name, agent_phone,
	total_amount, created_at, updated_at`

const activeStatuses = `('pending', 'confirmed')`

type bookingRow struct {
	ID                       uuid.UUID      `db:"id"`
	PropertyID               uuid.UUID      `db:"property_id"`
	RequesterKind            string         `db:"requester_kind"`
	UserID                   *uuid.UUID     `db:"user_id"`
	ClientName               sql.NullString `db:"client_name"`
	ClientPhone              sql.NullString `db:"client_phone"`
	ClientAddress            sql.NullString `db:"client_address"`
	ClientEmail              sql.NullString `db:"client_email"`
	ClientNIDDocument        sql.NullString `db:"client_nid_document"`
	Adults                   int            `db:"adults"`
	Children                 int            `db:"children"`
	CheckInDate              *time.Time     `db:"check_in_date"`
	CheckOutDate             *time.Time     `db:"check_out_date"`
	Status                   string         `db:"status"`
	PaymentStatus            string         `db:"payment_status"`
	PaymentMethod            string         `db:"payment_method"`
	PaymentID                *uuid.UUID     `db:"payment_id"`
	AppointmentRequestedDate *time.Time     `db:"appointment_requested_date"`
	AppointmentDate          *time.Time     `db:"appointment_date"`
	AgentName                *string        `db:"agent_name"`
	AgentPhone               *string        `db:"agent_phone"`
	TotalAmount              float64        `db:"total_amount"`
	CreatedAt                time.Time      `db:"created_at"`
	UpdatedAt                time.Time      `db:"updated_at"`
}

func (r bookingRow) toModel() (*models.Booking, error) {
	b := &models.Booking{
		ID:                       r.ID,
		PropertyID:               r.PropertyID,
		CheckInDate:              truncatePtr(r.CheckInDate),
		CheckOutDate:             truncatePtr(r.CheckOutDate),
		Status:                   models.BookingStatus(r.Status),
		PaymentStatus:            models.PaymentStatus(r.PaymentStatus),
		PaymentMethod:            models.PaymentMethod(r.PaymentMethod),
		PaymentID:                r.PaymentID,
		AppointmentRequestedDate: truncatePtr(r.AppointmentRequestedDate),
		AppointmentDate:          truncatePtr(r.AppointmentDate),
		AgentName:                r.AgentName,
		AgentPhone:               r.AgentPhone,
		TotalAmount:              r.TotalAmount,
		CreatedAt:                r.CreatedAt,
		UpdatedAt:                r.UpdatedAt,
	}

	switch models.RequesterKind(r.RequesterKind) {
	case models.RequesterRegistered:
		if r.UserID == nil {
			return nil, fmt.Errorf("booking %s: registered requester without user_id", r.ID)
		}
		b.Requester = models.Registered(*r.UserID)
	case models.RequesterGuest:
		b.Requester = models.Guest(models.ClientRecord{
			Name:           r.ClientName.String,
			Phone:          r.ClientPhone.String,
			Address:        r.ClientAddress.String,
			Email:          r.ClientEmail.String,
			NIDDocumentRef: r.ClientNIDDocument.String,
			Adults:         r.Adults,
			Children:       r.Children,
		})
	default:
		return nil, fmt.Errorf("booking %s: unknown requester kind %q", r.ID, r.RequesterKind)
	}
	return b, nil
}

func truncatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := models.TruncateDay(*t)
	return &d
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db sqlx.ExtContext
}

// NewBookingRepository creates a repository over a pool or a transaction
func NewBookingRepository(db sqlx.ExtContext) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateBooking inserts a booking
func (r *BookingRepository) CreateBooking(ctx context.Context, b *models.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	var userID *uuid.UUID
	if id, ok := b.Requester.UserID(); ok {
		userID = &id
	}
	client, isGuest := b.Requester.Client()
	clientName := sql.NullString{}
	if isGuest {
		clientName = sql.NullString{String: client.Name, Valid: true}
	}

	query := `
		INSERT INTO bookings (
			id, property_id, requester_kind, user_id,
			client_name, client_phone, client_address, client_email, client_nid_document,
			adults, children, check_in_date, check_out_date,
			status, payment_status, payment_method, payment_id,
			appointment_requested_date, total_amount
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		b.ID, b.PropertyID, string(b.Requester.Kind()), userID,
		clientName, nullString(client.Phone), nullString(client.Address),
		nullString(client.Email), nullString(client.NIDDocumentRef),
		client.Adults, client.Children, b.CheckInDate, b.CheckOutDate,
		b.Status, b.PaymentStatus, b.PaymentMethod, b.PaymentID,
		b.AppointmentRequestedDate, b.TotalAmount,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetBooking retrieves a booking by ID. Returns nil, nil when missing.
func (r *BookingRepository) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.getBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// LockBooking retrieves a booking and locks its row for the transaction
func (r *BookingRepository) LockBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.getBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *BookingRepository) getBooking(ctx context.Context, query string, id uuid.UUID) (*models.Booking, error) {
	var row bookingRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return row.toModel()
}

// ActiveBookingsForProperty lists pending and confirmed bookings of a property
func (r *BookingRepository) ActiveBookingsForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE property_id = $1 AND status IN ` + activeStatuses + `
		ORDER BY check_in_date NULLS FIRST, created_at`
	return r.selectBookings(ctx, query, propertyID)
}

// ListBookingsForProperty lists every booking of a property, newest first
func (r *BookingRepository) ListBookingsForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE property_id = $1 ORDER BY created_at DESC`
	return r.selectBookings(ctx, query, propertyID)
}

// ListCancelledPaidBookings lists cancelled bookings that still hold a payment
func (r *BookingRepository) ListCancelledPaidBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE status = 'cancelled' AND payment_status = 'paid'
		ORDER BY updated_at`
	return r.selectBookings(ctx, query)
}

func (r *BookingRepository) selectBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	var rows []bookingRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	bookings := make([]*models.Booking, 0, len(rows))
	for _, row := range rows {
		b, err := row.toModel()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

// HasActiveReservation reports whether the user holds an active booking on the property
func (r *BookingRepository) HasActiveReservation(ctx context.Context, userID, propertyID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
		SELECT 1 FROM bookings
		WHERE user_id = $1 AND property_id = $2 AND status IN ` + activeStatuses + `
	)`
	if err := sqlx.GetContext(ctx, r.db, &exists, query, userID, propertyID); err != nil {
		return false, fmt.Errorf("failed to check active reservation: %w", err)
	}
	return exists, nil
}

// UpdateBooking writes the mutable lifecycle fields of a booking
func (r *BookingRepository) UpdateBooking(ctx context.Context, b *models.Booking) error {
	query := `
		UPDATE bookings SET
			status = $2,
			payment_status = $3,
			appointment_date = $4,
			agent_name = $5,
			agent_phone = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		b.ID, b.Status, b.PaymentStatus, b.AppointmentDate, b.AgentName, b.AgentPhone,
	).Scan(&b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return nil
}

// DeleteBooking hard-deletes a booking
func (r *BookingRepository) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return nil
}

// FindOverlappingBookings returns pairs of active flexible bookings whose stays overlap
func (r *BookingRepository) FindOverlappingBookings(ctx context.Context) ([]models.ReservationViolation, error) {
	query := `
		SELECT a.property_id, a.id AS booking_id, b.id AS other_booking_id, 'overlap' AS rule
		FROM bookings a
		JOIN bookings b
		  ON a.property_id = b.property_id AND a.id < b.id
		WHERE a.status IN ` + activeStatuses + ` AND b.status IN ` + activeStatuses + `
		  AND a.check_in_date IS NOT NULL AND b.check_in_date IS NOT NULL
		  AND a.check_in_date < b.check_out_date AND a.check_out_date > b.check_in_date
		ORDER BY a.property_id`

	var violations []models.ReservationViolation
	if err := sqlx.SelectContext(ctx, r.db, &violations, query); err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	return violations, nil
}

// FindDuplicateReservations returns pairs of active whole-unit bookings on the same property
func (r *BookingRepository) FindDuplicateReservations(ctx context.Context) ([]models.ReservationViolation, error) {
	query := `
		SELECT a.property_id, a.id AS booking_id, b.id AS other_booking_id, 'duplicate' AS rule
		FROM bookings a
		JOIN bookings b
		  ON a.property_id = b.property_id AND a.id < b.id
		WHERE a.status IN ` + activeStatuses + ` AND b.status IN ` + activeStatuses + `
		  AND a.check_in_date IS NULL AND b.check_in_date IS NULL
		ORDER BY a.property_id`

	var violations []models.ReservationViolation
	if err := sqlx.SelectContext(ctx, r.db, &violations, query); err != nil {
		return nil, fmt.Errorf("failed to find duplicate reservations: %w", err)
	}
	return violations, nil
}

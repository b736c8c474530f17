package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propertyhub/backoffice/internal/database"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/sirupsen/logrus"
)

// StatusUpdate is an operator-driven status transition
type StatusUpdate struct {
	Status          models.BookingStatus
	AppointmentDate *time.Time
	AgentName       *string
	AgentPhone      *string
	Actor           AuditActor
}

// LifecycleService drives bookings through their status and payment transitions
type LifecycleService struct {
	store    database.Store
	notifier *BookingNotifier
	logger   *logrus.Logger
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(store database.Store, notifier *BookingNotifier, logger *logrus.Logger) *LifecycleService {
	return &LifecycleService{store: store, notifier: notifier, logger: logger}
}

// GetBooking returns a booking by id
func (s *LifecycleService) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, *models.Rejection, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if b == nil {
		return nil, bookingNotFound(id), nil
	}
	return b, nil, nil
}

// GetBookingsForProperty lists every booking of a property, newest first
func (s *LifecycleService) GetBookingsForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Booking, *models.Rejection, error) {
	property, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get property: %w", err)
	}
	if property == nil {
		return nil, models.NewRejection(models.RejectNotFound, "property not found").With("property_id", propertyID), nil
	}

	bookings, err := s.store.ListBookingsForProperty(ctx, propertyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil, nil
}

// GetBookingHistory returns the audit trail of a booking
func (s *LifecycleService) GetBookingHistory(ctx context.Context, id uuid.UUID) ([]models.BookingAudit, error) {
	audits, err := s.store.ListAudits(ctx, "booking", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking history: %w", err)
	}
	return audits, nil
}

// UpdateBookingStatus applies a status transition. A change of status sends
// one notification after commit; re-entrant transitions only update the
// appointment and agent fields.
func (s *LifecycleService) UpdateBookingStatus(ctx context.Context, id uuid.UUID, upd StatusUpdate) (*models.Booking, *models.Rejection, error) {
	if !upd.Status.Valid() {
		return nil, models.NewRejection(models.RejectValidation, "unknown status %q", upd.Status), nil
	}

	var (
		booking  *models.Booking
		property *models.Property
		previous models.BookingStatus
	)

	err := s.store.WithTx(ctx, func(tx database.Tx) error {
		b, err := tx.LockBooking(ctx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return bookingNotFound(id)
		}
		previous = b.Status

		if !models.CanTransition(b.Status, upd.Status) {
			return models.NewRejection(models.RejectInvalidTransition, "cannot move booking from %s to %s", b.Status, upd.Status).
				With("from", b.Status).
				With("to", upd.Status)
		}

		p, err := tx.GetProperty(ctx, b.PropertyID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("booking %s references missing property %s", b.ID, b.PropertyID)
		}
		property = p

		// appointment and agent details belong to a confirmation
		if upd.Status == models.BookingStatusConfirmed {
			if upd.AppointmentDate != nil {
				d := models.TruncateDay(*upd.AppointmentDate)
				b.AppointmentDate = &d
			}
			if upd.AgentName != nil {
				b.AgentName = upd.AgentName
			}
			if upd.AgentPhone != nil {
				b.AgentPhone = upd.AgentPhone
			}
		}

		if upd.Status == models.BookingStatusConfirmed && !p.IsFlexible() && b.AppointmentDate == nil {
			return models.NewRejection(models.RejectValidation, "appointment_date is required to confirm this booking").
				With("field", "appointment_date")
		}

		b.Status = upd.Status
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}

		audit := models.NewBookingAudit(b.ID, models.AuditBookingStatusChanged).
			SetDetail("from", previous).
			SetDetail("to", b.Status)
		if b.AppointmentDate != nil {
			audit.SetDetail("appointment_date", b.AppointmentDate.Format(models.DateLayout))
		}
		if b.AgentName != nil {
			audit.SetDetail("agent_name", *b.AgentName)
		}
		if err := tx.LogAudit(ctx, upd.Actor.stamp(audit)); err != nil {
			return err
		}

		booking = b
		return nil
	})

	if err != nil {
		if rej, ok := models.AsRejection(err); ok {
			return nil, rej, nil
		}
		if database.IsConcurrencyConflict(err) {
			return nil, models.NewRejection(models.RejectConcurrencyConflict, "booking changed concurrently; retry the request"), nil
		}
		return nil, nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"from":       previous,
		"to":         booking.Status,
	}).Info("Booking status updated")

	if previous != booking.Status {
		s.notifier.StatusChanged(ctx, property, booking, previous)
	}
	return booking, nil, nil
}

// UpdatePaymentStatus records a payment status change on the booking and its
// payment record. Booking status is not touched.
func (s *LifecycleService) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus, actor AuditActor) (*models.Booking, *models.Rejection, error) {
	if !status.Valid() {
		return nil, models.NewRejection(models.RejectValidation, "unknown payment_status %q", status), nil
	}

	var booking *models.Booking
	err := s.store.WithTx(ctx, func(tx database.Tx) error {
		b, err := tx.LockBooking(ctx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return bookingNotFound(id)
		}
		if !models.CanTransitionPayment(b.PaymentStatus, status) {
			return models.NewRejection(models.RejectInvalidTransition, "cannot move payment from %s to %s", b.PaymentStatus, status).
				With("from", b.PaymentStatus).
				With("to", status)
		}

		booking = b
		if b.PaymentStatus == status {
			return nil
		}

		previous := b.PaymentStatus
		b.PaymentStatus = status
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if b.PaymentID != nil {
			if err := tx.UpdatePaymentStatus(ctx, *b.PaymentID, status); err != nil {
				return err
			}
		}

		audit := models.NewBookingAudit(b.ID, models.AuditPaymentStatusChanged).
			SetDetail("from", previous).
			SetDetail("to", status)
		return tx.LogAudit(ctx, actor.stamp(audit))
	})

	if err != nil {
		if rej, ok := models.AsRejection(err); ok {
			return nil, rej, nil
		}
		return nil, nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"payment_status": booking.PaymentStatus,
	}).Info("Booking payment status updated")
	return booking, nil, nil
}

// DeleteBooking hard-deletes a booking. The payment record is kept for accounting
// and the audit trail keeps a snapshot of the deleted booking.
func (s *LifecycleService) DeleteBooking(ctx context.Context, id uuid.UUID, actor AuditActor) (*models.Rejection, error) {
	err := s.store.WithTx(ctx, func(tx database.Tx) error {
		b, err := tx.LockBooking(ctx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return bookingNotFound(id)
		}

		if err := tx.DeleteBooking(ctx, id); err != nil {
			return err
		}

		audit := models.NewBookingAudit(id, models.AuditBookingDeleted).
			SetDetail("property_id", b.PropertyID).
			SetDetail("status", b.Status).
			SetDetail("payment_status", b.PaymentStatus).
			SetDetail("total_amount", b.TotalAmount)
		if b.PaymentID != nil {
			audit.SetDetail("payment_id", *b.PaymentID)
		}
		return tx.LogAudit(ctx, actor.stamp(audit))
	})

	if err != nil {
		if rej, ok := models.AsRejection(err); ok {
			return rej, nil
		}
		return nil, fmt.Errorf("failed to delete booking: %w", err)
	}

	s.logger.WithField("booking_id", id).Info("Booking deleted")
	return nil, nil
}

func bookingNotFound(id uuid.UUID) *models.Rejection {
	return models.NewRejection(models.RejectNotFound, "booking not found").With("booking_id", id)
}

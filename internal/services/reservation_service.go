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

// CreateBookingInput is a validated-at-the-edge booking request
type CreateBookingInput struct {
	PropertyID               uuid.UUID
	Requester                models.Requester
	CheckIn                  *time.Time
	CheckOut                 *time.Time
	AppointmentRequestedDate *time.Time
	PaymentMethod            models.PaymentMethod
	PaymentProof             *PaymentProof
	Actor                    AuditActor
}

// ReservationService admits new bookings
type ReservationService struct {
	store    database.Store
	payments PaymentGateway
	notifier *BookingNotifier
	logger   *logrus.Logger
}

// NewReservationService creates a new reservation service
func NewReservationService(
	store database.Store,
	payments PaymentGateway,
	notifier *BookingNotifier,
	logger *logrus.Logger,
) *ReservationService {
	return &ReservationService{
		store:    store,
		payments: payments,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateBooking runs the admission checks and persists a pending booking.
// The property row lock serializes concurrent requests for the same property;
// the payment record and the booking commit together or not at all.
func (s *ReservationService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, *models.Rejection, error) {
	stay, rej := validateCreateInput(in)
	if rej != nil {
		return nil, rej, nil
	}

	var (
		booking  *models.Booking
		property *models.Property
	)

	err := s.store.WithTx(ctx, func(tx database.Tx) error {
		p, err := tx.LockProperty(ctx, in.PropertyID)
		if err != nil {
			return err
		}
		if p == nil {
			return models.NewRejection(models.RejectNotFound, "property not found").With("property_id", in.PropertyID)
		}
		property = p

		reserved := stay
		if !p.IsFlexible() {
			reserved = nil
		} else if reserved == nil {
			return models.NewRejection(models.RejectValidation, "check_in_date and check_out_date are required for flexible rentals")
		}

		if userID, ok := in.Requester.UserID(); ok && !p.IsFlexible() {
			exists, err := tx.HasActiveReservation(ctx, userID, p.ID)
			if err != nil {
				return err
			}
			if exists {
				return models.NewRejection(models.RejectDuplicate, "you already have an active reservation for this property").
					With("property_id", p.ID)
			}
		}

		active, err := tx.ActiveBookingsForProperty(ctx, p.ID)
		if err != nil {
			return err
		}
		if rej := CheckAvailability(p, reserved, active); rej != nil {
			return rej
		}

		amount := ComputeAmount(p, reserved)

		paymentStatus, paymentID, err := s.dispatchPayment(ctx, tx, in, amount)
		if err != nil {
			return err
		}

		b := &models.Booking{
			ID:            uuid.New(),
			PropertyID:    p.ID,
			Requester:     in.Requester,
			Status:        models.BookingStatusPending,
			PaymentStatus: paymentStatus,
			PaymentMethod: in.PaymentMethod,
			PaymentID:     paymentID,
			TotalAmount:   amount,
		}
		if reserved != nil {
			checkIn, checkOut := reserved.Start, reserved.End
			b.CheckInDate, b.CheckOutDate = &checkIn, &checkOut
		} else if in.AppointmentRequestedDate != nil {
			d := models.TruncateDay(*in.AppointmentRequestedDate)
			b.AppointmentRequestedDate = &d
		}

		if err := tx.CreateBooking(ctx, b); err != nil {
			return err
		}

		audit := models.NewBookingAudit(b.ID, models.AuditBookingCreated).
			SetDetail("property_id", p.ID).
			SetDetail("requester_kind", in.Requester.Kind()).
			SetDetail("payment_method", in.PaymentMethod).
			SetDetail("payment_status", paymentStatus).
			SetDetail("total_amount", amount)
		if err := tx.LogAudit(ctx, in.Actor.stamp(audit)); err != nil {
			return err
		}

		booking = b
		return nil
	})

	if err != nil {
		fields := logrus.Fields{"property_id": in.PropertyID, "payment_method": in.PaymentMethod}
		if rej, ok := models.AsRejection(err); ok {
			s.logger.WithFields(fields).WithField("code", rej.Code).Info("Booking rejected")
			return nil, rej, nil
		}
		if database.IsConcurrencyConflict(err) {
			s.logger.WithFields(fields).WithError(err).Warn("Booking lost a concurrent admission race")
			return nil, models.NewRejection(models.RejectConcurrencyConflict,
				"another booking for this property was committed concurrently; retry the request"), nil
		}
		return nil, nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"property_id":    booking.PropertyID,
		"payment_status": booking.PaymentStatus,
		"total_amount":   booking.TotalAmount,
	}).Info("Booking created")

	s.notifier.BookingCreated(ctx, property, booking)
	return booking, nil, nil
}

func validateCreateInput(in CreateBookingInput) (*models.DateRange, *models.Rejection) {
	if err := in.Requester.Validate(); err != nil {
		return nil, models.NewRejection(models.RejectValidation, "%s", err.Error()).With("field", "requester")
	}
	if in.PropertyID == uuid.Nil {
		return nil, models.NewRejection(models.RejectValidation, "property_id is required")
	}
	if !in.PaymentMethod.Valid() {
		return nil, models.NewRejection(models.RejectValidation, "unknown payment_method %q", in.PaymentMethod)
	}
	if (in.CheckIn == nil) != (in.CheckOut == nil) {
		return nil, models.NewRejection(models.RejectValidation, "check_in_date and check_out_date must be provided together")
	}
	if in.CheckIn == nil {
		return nil, nil
	}
	stay, err := models.NewDateRange(*in.CheckIn, *in.CheckOut)
	if err != nil {
		return nil, models.NewRejection(models.RejectValidation, "%s", err.Error())
	}
	return &stay, nil
}

// dispatchPayment runs the payment step inside the booking transaction
func (s *ReservationService) dispatchPayment(ctx context.Context, tx database.Tx, in CreateBookingInput, amount float64) (models.PaymentStatus, *uuid.UUID, error) {
	switch in.PaymentMethod {
	case models.PaymentMethodCash:
		return models.PaymentStatusUnpaid, nil, nil

	case models.PaymentMethodManual:
		result, err := s.payments.ManualPayment(ctx, in.PaymentProof, amount)
		if err != nil {
			return "", nil, err
		}
		if !result.Success || result.Payment == nil {
			return "", nil, models.NewRejection(models.RejectPaymentFailed, "manual payment was not accepted").
				With("reason", result.Error)
		}
		if err := tx.CreatePayment(ctx, result.Payment); err != nil {
			return "", nil, err
		}
		id := result.Payment.ID
		return models.PaymentStatusPending, &id, nil

	default:
		return "", nil, models.NewRejection(models.RejectPaymentFailed, "payment method %s is not supported yet", in.PaymentMethod).
			With("reason", "unsupported_method")
	}
}

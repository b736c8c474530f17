package services

import (
	"context"
	"fmt"

	"github.com/propertyhub/backoffice/internal/database"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/sirupsen/logrus"
)

// ReconciliationService reports state that needs an operator: refunds owed on
// cancelled bookings and any reservation invariant broken in stored data
type ReconciliationService struct {
	store  database.Store
	logger *logrus.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(store database.Store, logger *logrus.Logger) *ReconciliationService {
	return &ReconciliationService{store: store, logger: logger}
}

// PendingRefunds lists cancelled bookings whose payment is still marked paid.
// Cancellation never refunds automatically; an operator moves these to refunded.
func (s *ReconciliationService) PendingRefunds(ctx context.Context) ([]*models.Booking, error) {
	bookings, err := s.store.ListCancelledPaidBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending refunds: %w", err)
	}
	return bookings, nil
}

// ReservationViolations lists active booking pairs breaking the no-overlap or
// single-active-reservation rules
func (s *ReconciliationService) ReservationViolations(ctx context.Context) ([]models.ReservationViolation, error) {
	overlaps, err := s.store.FindOverlappingBookings(ctx)
	if err != nil {
		return nil, err
	}
	duplicates, err := s.store.FindDuplicateReservations(ctx)
	if err != nil {
		return nil, err
	}
	return append(overlaps, duplicates...), nil
}

// ReportPendingRefunds logs every pending refund and returns how many there are
func (s *ReconciliationService) ReportPendingRefunds(ctx context.Context) (int, error) {
	bookings, err := s.PendingRefunds(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range bookings {
		s.logger.WithFields(logrus.Fields{
			"booking_id":   b.ID,
			"property_id":  b.PropertyID,
			"total_amount": b.TotalAmount,
			"cancelled_at": b.UpdatedAt,
		}).Warn("Cancelled booking awaiting refund")
	}
	return len(bookings), nil
}

// ReportReservationViolations logs every violation and returns how many there are
func (s *ReconciliationService) ReportReservationViolations(ctx context.Context) (int, error) {
	violations, err := s.ReservationViolations(ctx)
	if err != nil {
		return 0, err
	}
	for _, v := range violations {
		s.logger.WithFields(logrus.Fields{
			"property_id":      v.PropertyID,
			"booking_id":       v.BookingID,
			"other_booking_id": v.OtherBookingID,
			"rule":             v.Rule,
		}).Error("Reservation invariant violated")
	}
	return len(violations), nil
}

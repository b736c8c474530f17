package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propertyhub/backoffice/internal/database"
	"github.com/propertyhub/backoffice/internal/models"
)

// Unavailability reasons reported in rejection details
const (
	ReasonNoWindow      = "not_bookable_by_date"
	ReasonOutsideWindow = "outside_window"
	ReasonBlockedDate   = "blocked_date"
	ReasonOverlap       = "overlap"
	ReasonUnitReserved  = "unit_reserved"
)

// CheckAvailability intersects the availability window, the blocked dates and
// the active bookings of a property. It returns nil when the request is free.
// stay must be non-nil for flexible listings and is ignored otherwise.
func CheckAvailability(property *models.Property, stay *models.DateRange, active []*models.Booking) *models.Rejection {
	if !property.IsFlexible() {
		for _, b := range active {
			if b.IsActive() {
				return models.NewRejection(models.RejectUnitUnavailable, "property is already reserved").
					With("reason", ReasonUnitReserved).
					With("booking_id", b.ID)
			}
		}
		return nil
	}

	if stay == nil {
		return models.NewRejection(models.RejectValidation, "check_in_date and check_out_date are required for flexible rentals")
	}

	window := property.AvailabilityWindow
	if window == nil {
		return models.NewRejection(models.RejectRangeUnavailable, "property is not bookable by date").
			With("reason", ReasonNoWindow)
	}
	if !stay.Within(*window) {
		return models.NewRejection(models.RejectRangeUnavailable, "requested dates fall outside the availability window").
			With("reason", ReasonOutsideWindow).
			With("available_from", window.CheckIn.Format(models.DateLayout)).
			With("available_until", window.CheckOut.Format(models.DateLayout))
	}

	for _, d := range stay.Days() {
		if property.IsBlocked(d) {
			return models.NewRejection(models.RejectRangeUnavailable, "requested dates include a blocked date").
				With("reason", ReasonBlockedDate).
				With("date", d.Format(models.DateLayout))
		}
	}

	for _, b := range active {
		if !b.IsActive() {
			continue
		}
		if existing, ok := b.DateRange(); ok && existing.Overlaps(*stay) {
			return models.NewRejection(models.RejectRangeUnavailable, "property is already booked for these dates").
				With("reason", ReasonOverlap).
				With("booking_id", b.ID).
				With("check_in_date", existing.Start.Format(models.DateLayout)).
				With("check_out_date", existing.End.Format(models.DateLayout))
		}
	}

	return nil
}

// AvailabilityService answers read-only availability questions for the search layer
type AvailabilityService struct {
	store database.Store
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(store database.Store) *AvailabilityService {
	return &AvailabilityService{store: store}
}

// IsPropertyBookable reports whether a property could take a booking for the given
// dates. Dates are ignored for whole-unit listings. A flexible listing queried without
// dates is bookable when it has an availability window. The returned rejection says
// why a property is not bookable.
func (s *AvailabilityService) IsPropertyBookable(ctx context.Context, propertyID uuid.UUID, start, end *time.Time) (bool, *models.Rejection, error) {
	property, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to load property: %w", err)
	}
	if property == nil {
		return false, models.NewRejection(models.RejectNotFound, "property not found"), nil
	}

	var stay *models.DateRange
	if property.IsFlexible() {
		if (start == nil) != (end == nil) {
			return false, models.NewRejection(models.RejectValidation, "start and end must be provided together"), nil
		}
		if start == nil {
			if property.AvailabilityWindow == nil {
				return false, models.NewRejection(models.RejectRangeUnavailable, "property is not bookable by date").
					With("reason", ReasonNoWindow), nil
			}
			return true, nil, nil
		}
		r, err := models.NewDateRange(*start, *end)
		if err != nil {
			return false, models.NewRejection(models.RejectValidation, "%s", err.Error()), nil
		}
		stay = &r
	}

	active, err := s.store.ActiveBookingsForProperty(ctx, propertyID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to load bookings: %w", err)
	}

	if rej := CheckAvailability(property, stay, active); rej != nil {
		return false, rej, nil
	}
	return true, nil, nil
}

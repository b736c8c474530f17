package models

import (
	"time"

	"github.com/google/uuid"
)

// ListingType represents whether a property is offered for rent or for sale
type ListingType string

const (
	ListingTypeRent ListingType = "RENT"
	ListingTypeSell ListingType = "SELL"
)

// RentDurationType represents the rental period a RENT listing is priced for
type RentDurationType string

const (
	RentDurationMonthly   RentDurationType = "MONTHLY"
	RentDurationYearly    RentDurationType = "YEARLY"
	RentDurationSixMonths RentDurationType = "SIX_MONTHS"
	RentDurationDaily     RentDurationType = "DAILY"
	RentDurationWeekly    RentDurationType = "WEEKLY"
	RentDurationHourly    RentDurationType = "HOURLY"
	RentDurationFlexible  RentDurationType = "FLEXIBLE"
)

// AvailabilityWindow is the overall span during which a property accepts bookings
type AvailabilityWindow struct {
	CheckIn  time.Time `json:"check_in_date"`
	CheckOut time.Time `json:"check_out_date"`
}

// Property represents a listing owned by a host
type Property struct {
	ID                 uuid.UUID           `json:"id"`
	HostID             *uuid.UUID          `json:"host_id,omitempty"`
	CategoryID         *uuid.UUID          `json:"category_id,omitempty"`
	Title              string              `json:"title"`
	ListingType        ListingType         `json:"listing_type"`
	RentDurationType   *RentDurationType   `json:"rent_duration_type,omitempty"`
	Price              float64             `json:"price"`
	PriceUnit          string              `json:"price_unit"`
	AvailabilityWindow *AvailabilityWindow `json:"availability_window,omitempty"`
	BlockedDates       []time.Time         `json:"blocked_dates"`
	IsFeatured         bool                `json:"is_featured"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// IsFlexible reports whether the property is reserved and priced per night
func (p *Property) IsFlexible() bool {
	return p.ListingType == ListingTypeRent &&
		p.RentDurationType != nil &&
		*p.RentDurationType == RentDurationFlexible
}

// IsBlocked reports whether the given day is on the owner's blocked list
func (p *Property) IsBlocked(day time.Time) bool {
	day = TruncateDay(day)
	for _, blocked := range p.BlockedDates {
		if TruncateDay(blocked).Equal(day) {
			return true
		}
	}
	return false
}

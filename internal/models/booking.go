package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus represents the payment status of a booking; it evolves independently of BookingStatus
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentMethod is how the requester intends to pay
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "Cash_Payment"
	PaymentMethodManual       PaymentMethod = "manualPayment"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodManual, PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// bookingTransitions lists every allowed status change. Same-status entries
// are acknowledgements: confirmed→confirmed reassigns the agent.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusCancelled: {BookingStatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another
func CanTransition(from, to BookingStatus) bool {
	for _, allowed := range bookingTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusUnpaid:   {PaymentStatusUnpaid, PaymentStatusPending, PaymentStatusPaid},
	PaymentStatusPending:  {PaymentStatusPending, PaymentStatusPaid, PaymentStatusUnpaid},
	PaymentStatusPaid:     {PaymentStatusPaid, PaymentStatusRefunded},
	PaymentStatusRefunded: {PaymentStatusRefunded},
}

// CanTransitionPayment reports whether a payment status change is allowed
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Booking represents a reservation of a property
type Booking struct {
	ID                       uuid.UUID     `json:"id"`
	PropertyID               uuid.UUID     `json:"property_id"`
	Requester                Requester     `json:"requester"`
	CheckInDate              *time.Time    `json:"check_in_date,omitempty"`
	CheckOutDate             *time.Time    `json:"check_out_date,omitempty"`
	Status                   BookingStatus `json:"status"`
	PaymentStatus            PaymentStatus `json:"payment_status"`
	PaymentMethod            PaymentMethod `json:"payment_method"`
	PaymentID                *uuid.UUID    `json:"payment_id,omitempty"`
	AppointmentRequestedDate *time.Time    `json:"appointment_requested_date,omitempty"`
	AppointmentDate          *time.Time    `json:"appointment_date,omitempty"`
	AgentName                *string       `json:"agent_name,omitempty"`
	AgentPhone               *string       `json:"agent_phone,omitempty"`
	TotalAmount              float64       `json:"total_amount"`
	CreatedAt                time.Time     `json:"created_at"`
	UpdatedAt                time.Time     `json:"updated_at"`
}

// IsActive reports whether the booking still holds the property
func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

// DateRange returns the reserved nights for flexible bookings
func (b *Booking) DateRange() (DateRange, bool) {
	if b.CheckInDate == nil || b.CheckOutDate == nil {
		return DateRange{}, false
	}
	return DateRange{Start: TruncateDay(*b.CheckInDate), End: TruncateDay(*b.CheckOutDate)}, true
}

// NeedsRefund checks if a cancelled booking still has money held
func (b *Booking) NeedsRefund() bool {
	return b.Status == BookingStatusCancelled && b.PaymentStatus == PaymentStatusPaid
}

// ReservationViolation describes a pair of active bookings breaking a reservation invariant
type ReservationViolation struct {
	PropertyID     uuid.UUID `json:"property_id" db:"property_id"`
	BookingID      uuid.UUID `json:"booking_id" db:"booking_id"`
	OtherBookingID uuid.UUID `json:"other_booking_id" db:"other_booking_id"`
	Rule           string    `json:"rule" db:"rule"`
}

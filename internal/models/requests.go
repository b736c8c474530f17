package models

import (
	"errors"
	"fmt"
	"time"
)

// CreateBookingRequest is the API payload for creating a booking. It binds
// from JSON or from a multipart form when documents are uploaded.
type CreateBookingRequest struct {
	PropertyID               string  `json:"property_id" form:"property_id" binding:"required,uuid"`
	CheckInDate              *string `json:"check_in_date,omitempty" form:"check_in_date"`
	CheckOutDate             *string `json:"check_out_date,omitempty" form:"check_out_date"`
	AppointmentRequestedDate *string `json:"appointment_requested_date,omitempty" form:"appointment_requested_date"`
	PaymentMethod            string  `json:"payment_method" form:"payment_method" binding:"required"`
	TransactionID            *string `json:"transaction_id,omitempty" form:"transaction_id"`

	// Guest requester fields, ignored when the caller is authenticated
	ClientName    string `json:"client_name,omitempty" form:"client_name"`
	ClientPhone   string `json:"client_phone,omitempty" form:"client_phone"`
	ClientAddress string `json:"client_address,omitempty" form:"client_address"`
	ClientEmail   string `json:"client_email,omitempty" form:"client_email" binding:"omitempty,email"`
	Adults        int    `json:"adults,omitempty" form:"adults" binding:"min=0"`
	Children      int    `json:"children,omitempty" form:"children" binding:"min=0"`
}

// Dates parses the optional stay and appointment dates
func (r *CreateBookingRequest) Dates() (checkIn, checkOut, appointment *time.Time, err error) {
	parse := func(field string, v *string) (*time.Time, error) {
		if v == nil || *v == "" {
			return nil, nil
		}
		t, err := ParseDate(*v)
		if err != nil {
			return nil, fmt.Errorf("%s must be formatted as YYYY-MM-DD", field)
		}
		return &t, nil
	}
	if checkIn, err = parse("check_in_date", r.CheckInDate); err != nil {
		return
	}
	if checkOut, err = parse("check_out_date", r.CheckOutDate); err != nil {
		return
	}
	appointment, err = parse("appointment_requested_date", r.AppointmentRequestedDate)
	return
}

// Validate validates the create booking request
func (r *CreateBookingRequest) Validate() error {
	if !PaymentMethod(r.PaymentMethod).Valid() {
		return fmt.Errorf("unknown payment_method %q", r.PaymentMethod)
	}
	if (r.CheckInDate == nil) != (r.CheckOutDate == nil) {
		return errors.New("check_in_date and check_out_date must be provided together")
	}
	return nil
}

// ClientRecord builds the guest record from the form fields
func (r *CreateBookingRequest) ClientRecord() ClientRecord {
	return ClientRecord{
		Name:     r.ClientName,
		Phone:    r.ClientPhone,
		Address:  r.ClientAddress,
		Email:    r.ClientEmail,
		Adults:   r.Adults,
		Children: r.Children,
	}
}

// UpdateBookingStatusRequest is the operator payload for a status transition
type UpdateBookingStatusRequest struct {
	Status          string  `json:"status" binding:"required"`
	AppointmentDate *string `json:"appointment_date,omitempty"`
	AgentName       *string `json:"agent_name,omitempty"`
	AgentPhone      *string `json:"agent_phone,omitempty"`
}

// Validate validates the status update request
func (r *UpdateBookingStatusRequest) Validate() error {
	if !BookingStatus(r.Status).Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	_, err := r.ParsedAppointmentDate()
	return err
}

// ParsedAppointmentDate returns the appointment date, or nil when none was sent
func (r *UpdateBookingStatusRequest) ParsedAppointmentDate() (*time.Time, error) {
	if r.AppointmentDate == nil || *r.AppointmentDate == "" {
		return nil, nil
	}
	d, err := ParseDate(*r.AppointmentDate)
	if err != nil {
		return nil, errors.New("appointment_date must be formatted as YYYY-MM-DD")
	}
	return &d, nil
}

// UpdatePaymentStatusRequest is the operator payload for a payment status change
type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// SetFeaturedRequest toggles the featured flag of a property
type SetFeaturedRequest struct {
	Featured *bool `json:"featured" binding:"required"`
}

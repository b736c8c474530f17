package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// BookingAuditAction identifies what happened to a booking
type BookingAuditAction string

const (
	AuditBookingCreated       BookingAuditAction = "booking_created"
	AuditBookingStatusChanged BookingAuditAction = "booking_status_changed"
	AuditPaymentStatusChanged BookingAuditAction = "payment_status_changed"
	AuditBookingDeleted       BookingAuditAction = "booking_deleted"
	AuditPropertyFeaturedOn   BookingAuditAction = "property_featured"
	AuditPropertyFeaturedOff  BookingAuditAction = "property_unfeatured"
)

// BookingAudit is an immutable audit log entry for booking and listing events
type BookingAudit struct {
	ID         uuid.UUID          `json:"id" db:"id"`
	EntityType string             `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID          `json:"entity_id" db:"entity_id"`
	Action     BookingAuditAction `json:"action" db:"action"`
	ActorID    *uuid.UUID         `json:"actor_id,omitempty" db:"actor_id"`
	IPAddress  *string            `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string            `json:"user_agent,omitempty" db:"user_agent"`
	Details    JSONB              `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time          `json:"created_at" db:"created_at"`
}

// NewBookingAudit creates an audit entry for a booking
func NewBookingAudit(bookingID uuid.UUID, action BookingAuditAction) *BookingAudit {
	return &BookingAudit{
		ID:         uuid.New(),
		EntityType: "booking",
		EntityID:   bookingID,
		Action:     action,
		Details:    JSONB{},
		CreatedAt:  time.Now(),
	}
}

// NewPropertyAudit creates an audit entry for a property
func NewPropertyAudit(propertyID uuid.UUID, action BookingAuditAction) *BookingAudit {
	a := NewBookingAudit(propertyID, action)
	a.EntityType = "property"
	return a
}

// SetActor records who triggered the event
func (a *BookingAudit) SetActor(actorID *uuid.UUID, ip, userAgent string) *BookingAudit {
	a.ActorID = actorID
	if ip != "" {
		a.IPAddress = &ip
	}
	if userAgent != "" {
		a.UserAgent = &userAgent
	}
	return a
}

// SetDetail adds a detail key
func (a *BookingAudit) SetDetail(key string, value interface{}) *BookingAudit {
	if a.Details == nil {
		a.Details = JSONB{}
	}
	a.Details[key] = value
	return a
}

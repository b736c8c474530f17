package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment is the record produced by the payment side channel for a booking.
// Only Status changes after creation.
type Payment struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	Amount        float64       `json:"amount" db:"amount"`
	Method        PaymentMethod `json:"method" db:"method"`
	TransactionID *string       `json:"transaction_id,omitempty" db:"transaction_id"`
	ProofRef      *string       `json:"proof_ref,omitempty" db:"proof_ref"`
	Status        PaymentStatus `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

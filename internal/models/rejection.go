package models

import (
	"errors"
	"fmt"
)

// RejectionCode names the admission or lifecycle rule that refused a request
type RejectionCode string

const (
	RejectValidation          RejectionCode = "VALIDATION_ERROR"
	RejectDuplicate           RejectionCode = "DUPLICATE_RESERVATION"
	RejectRangeUnavailable    RejectionCode = "RANGE_UNAVAILABLE"
	RejectUnitUnavailable     RejectionCode = "UNIT_UNAVAILABLE"
	RejectPaymentFailed       RejectionCode = "PAYMENT_FAILED"
	RejectGlobalLimit         RejectionCode = "GLOBAL_LIMIT_EXCEEDED"
	RejectCategoryLimit       RejectionCode = "CATEGORY_LIMIT_EXCEEDED"
	RejectNotFound            RejectionCode = "NOT_FOUND"
	RejectConcurrencyConflict RejectionCode = "CONCURRENCY_CONFLICT"
	RejectInvalidTransition   RejectionCode = "INVALID_TRANSITION"
)

// Rejection is an expected negative outcome of a well-formed request.
// It satisfies error so a unit of work can be rolled back with it.
type Rejection struct {
	Code    RejectionCode          `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewRejection creates a rejection with a formatted message
func NewRejection(code RejectionCode, format string, args ...interface{}) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}

// With attaches a detail field and returns the same rejection
func (r *Rejection) With(key string, value interface{}) *Rejection {
	if r.Details == nil {
		r.Details = make(map[string]interface{})
	}
	r.Details[key] = value
	return r
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

// AsRejection unwraps a rejection carried through an error chain
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

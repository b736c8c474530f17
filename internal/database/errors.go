package database

import (
	"errors"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation      = "23505"
	pqExclusionViolation   = "23P01"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// constraints guarding reservation invariants; a unique violation on any other
// index is a real fault
var reservationConstraints = map[string]bool{
	"bookings_no_overlap":                  true,
	"bookings_one_active_unit_reservation": true,
}

// IsConcurrencyConflict reports whether err means a concurrent writer won the
// race for the same reservation and the admission check should be retried
func IsConcurrencyConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch string(pqErr.Code) {
	case pqExclusionViolation, pqSerializationFailure, pqDeadlockDetected:
		return true
	case pqUniqueViolation:
		return reservationConstraints[pqErr.Constraint]
	}
	return false
}

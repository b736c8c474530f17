package models

import (
	"errors"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// ErrEmptyRange is returned when a range does not end after it starts
var ErrEmptyRange = errors.New("check_out_date must be after check_in_date")

// DateRange is a half-open range of calendar days [Start, End)
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TruncateDay drops the time of day, keeping the calendar date in UTC
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC date
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// NewDateRange builds a day-granular range and rejects zero-length or inverted input
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: TruncateDay(start), End: TruncateDay(end)}
	if !r.End.After(r.Start) {
		return DateRange{}, ErrEmptyRange
	}
	return r, nil
}

// Overlaps uses half-open semantics, so a checkout on another range's check-in day does not collide
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

// Contains reports whether day falls in [Start, End)
func (r DateRange) Contains(day time.Time) bool {
	day = TruncateDay(day)
	return !day.Before(r.Start) && day.Before(r.End)
}

// Within reports whether the range sits inside the availability window
func (r DateRange) Within(w AvailabilityWindow) bool {
	return !r.Start.Before(TruncateDay(w.CheckIn)) && !r.End.After(TruncateDay(w.CheckOut))
}

// Days lists every calendar day in [Start, End)
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

package services

import (
	"math"

	"github.com/propertyhub/backoffice/internal/models"
)

// ComputeAmount prices a prospective booking. Whole-unit and sale listings pay the
// flat price; flexible rentals pay per night, rounding partial nights up, with a
// minimum of one night.
func ComputeAmount(property *models.Property, stay *models.DateRange) float64 {
	if !property.IsFlexible() {
		return property.Price
	}

	nights := 1.0
	if stay != nil {
		nights = math.Max(1, math.Ceil(stay.End.Sub(stay.Start).Hours()/24))
	}
	return math.Round(property.Price*nights*100) / 100
}

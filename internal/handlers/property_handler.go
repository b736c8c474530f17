package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/propertyhub/backoffice/internal/services"
	"github.com/sirupsen/logrus"
)

// PropertyHandler handles property-scoped booking endpoints
type PropertyHandler struct {
	lifecycle    *services.LifecycleService
	featured     *services.FeaturedService
	availability *services.AvailabilityService
	logger       *logrus.Logger
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(
	lifecycle *services.LifecycleService,
	featured *services.FeaturedService,
	availability *services.AvailabilityService,
	logger *logrus.Logger,
) *PropertyHandler {
	return &PropertyHandler{
		lifecycle:    lifecycle,
		featured:     featured,
		availability: availability,
		logger:       logger,
	}
}

// GetPropertyBookings handles GET /api/v1/properties/:id/bookings
func (h *PropertyHandler) GetPropertyBookings(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	bookings, rej, err := h.lifecycle.GetBookingsForProperty(c.Request.Context(), id)
	if err != nil {
		respondInternal(c, h.logger, err, "Failed to retrieve bookings")
		return
	}
	if rej != nil {
		respondRejection(c, rej)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"property_id": id,
		"bookings":    bookings,
		"total":       len(bookings),
	})
}

// SetFeatured handles PUT /api/v1/properties/:id/featured
func (h *PropertyHandler) SetFeatured(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.SetFeaturedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body: "+err.Error())
		return
	}

	property, rej, err := h.featured.SetFeatured(c.Request.Context(), id, *req.Featured, auditActor(c))
	if err != nil {
		respondInternal(c, h.logger, err, "Failed to update featured flag")
		return
	}
	if rej != nil {
		respondRejection(c, rej)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"property_id": property.ID,
		"is_featured": property.IsFeatured,
	})
}

// GetAvailability handles GET /api/v1/properties/:id/availability?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *PropertyHandler) GetAvailability(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	start, ok := parseDateQuery(c, "start")
	if !ok {
		return
	}
	end, ok := parseDateQuery(c, "end")
	if !ok {
		return
	}
	if (start == nil) != (end == nil) {
		respondValidation(c, "start and end must be provided together")
		return
	}

	bookable, rej, err := h.availability.IsPropertyBookable(c.Request.Context(), id, start, end)
	if err != nil {
		respondInternal(c, h.logger, err, "Failed to check availability")
		return
	}
	if rej != nil && rej.Code == models.RejectNotFound {
		respondRejection(c, rej)
		return
	}

	resp := gin.H{
		"property_id": id,
		"bookable":    bookable,
	}
	if rej != nil {
		resp["reason"] = rej
	}
	c.JSON(http.StatusOK, resp)
}

func parseDateQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		respondValidation(c, name+" must be formatted as YYYY-MM-DD")
		return nil, false
	}
	return &d, true
}

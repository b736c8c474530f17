package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/propertyhub/backoffice/internal/middleware"
	"github.com/propertyhub/backoffice/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// RegisterRoutes mounts the /api/v1 surface. Booking creation is open to
// guests; lifecycle and listing operations need an admin or agent token and
// the featured flag is admin only. A nil limiter leaves booking creation
// unthrottled.
func RegisterRoutes(router *gin.Engine, bookings *BookingHandler, properties *PropertyHandler, jwtService *jwt.Service, limiter *middleware.RateLimiter, logger *logrus.Logger) {
	auth := middleware.AuthMiddleware(jwtService, logger)
	staff := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAgent)
	admin := middleware.RequireRole(middleware.RoleAdmin)

	v1 := router.Group("/api/v1")

	v1.POST("/bookings", middleware.RateLimit(limiter, logger), middleware.OptionalAuth(jwtService, logger), bookings.CreateBooking)
	v1.GET("/properties/:id/availability", properties.GetAvailability)

	managed := v1.Group("", auth, staff)
	{
		managed.GET("/bookings/:id", bookings.GetBooking)
		managed.GET("/bookings/:id/history", bookings.GetBookingHistory)
		managed.PATCH("/bookings/:id/status", bookings.UpdateBookingStatus)
		managed.PATCH("/bookings/:id/payment-status", bookings.UpdatePaymentStatus)
		managed.DELETE("/bookings/:id", bookings.DeleteBooking)
		managed.GET("/properties/:id/bookings", properties.GetPropertyBookings)
	}

	adminOnly := v1.Group("", auth, admin)
	{
		adminOnly.PUT("/properties/:id/featured", properties.SetFeatured)
		adminOnly.GET("/admin/refunds", bookings.ListPendingRefunds)
	}
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/propertyhub/backoffice/internal/middleware"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/propertyhub/backoffice/internal/services"
	"github.com/propertyhub/backoffice/pkg/storage"
	"github.com/propertyhub/backoffice/pkg/validator"
	"github.com/sirupsen/logrus"
)

var phones = validator.NewPhoneValidator()

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	reservations   *services.ReservationService
	lifecycle      *services.LifecycleService
	reconciliation *services.ReconciliationService
	documents      storage.DocumentStore
	logger         *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(
	reservations *services.ReservationService,
	lifecycle *services.LifecycleService,
	reconciliation *services.ReconciliationService,
	documents storage.DocumentStore,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		reservations:   reservations,
		lifecycle:      lifecycle,
		reconciliation: reconciliation,
		documents:      documents,
		logger:         logger,
	}
}

// CreateBooking handles POST /api/v1/bookings
// Accepts JSON, or multipart/form-data carrying payment_proof and nid_document files.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBind(&req); err != nil {
		respondValidation(c, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondValidation(c, err.Error())
		return
	}

	checkIn, checkOut, appointment, err := req.Dates()
	if err != nil {
		respondValidation(c, err.Error())
		return
	}

	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		respondValidation(c, "invalid property_id format")
		return
	}

	var requester models.Requester
	if user, ok := middleware.GetUserContext(c); ok {
		requester = models.Registered(user.UserID)
	} else {
		client := req.ClientRecord()
		if !client.Complete() {
			respondValidation(c, "client name, phone and address are required")
			return
		}
		if client.Phone != "" {
			phone, err := phones.Validate(client.Phone)
			if err != nil {
				respondValidation(c, "client_phone: "+err.Error())
				return
			}
			client.Phone = phone
		}
		ref, err := h.storeUpload(c, "nid_document", storage.KindNIDDocument)
		if err != nil {
			h.respondUploadError(c, err)
			return
		}
		client.NIDDocumentRef = ref
		requester = models.Guest(client)
	}

	in := services.CreateBookingInput{
		PropertyID:               propertyID,
		Requester:                requester,
		CheckIn:                  checkIn,
		CheckOut:                 checkOut,
		AppointmentRequestedDate: appointment,
		PaymentMethod:            models.PaymentMethod(req.PaymentMethod),
		Actor:                    auditActor(c),
	}

	if in.PaymentMethod == models.PaymentMethodManual {
		ref, err := h.storeUpload(c, "payment_proof", storage.KindPaymentProof)
		if err != nil {
			h.respondUploadError(c, err)
			return
		}
		if ref != "" {
			in.PaymentProof = &services.PaymentProof{Ref: ref, TransactionID: req.TransactionID}
		}
	}

	booking, rej, err := h.reservations.CreateBooking(c.Request.Context(), in)
	if err != nil {
		respondInternal(c, h.logger, err, "Failed to create booking")
		return
	}
	if rej != nil {
		respondRejection(c, rej)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking created successfully",
		"booking": booking,
	})
}

// storeUpload saves an optional multipart file and returns its reference
func (h *BookingHandler) storeUpload(c *gin.Context, field, kind string) (string, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return "", nil
	}
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", field, err)
	}

	f, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", field, err)
	}
	defer f.Close()

	ref, err := h.documents.Store(context.WithoutCancel(c.Request.Context()), kind, header.Filename, f)
	if err != nil {
		return "", err
	}
	h.logger.WithFields(logrus.Fields{"kind": kind, "ref": ref, "size": header.Size}).Debug("Document stored")
	return ref, nil
}

func (h *BookingHandler) respondUploadError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   string(models.RejectValidation),
			Message: err.Error(),
		})
		return
	}
	respondInternal(c, h.logger, err, "Failed to store uploaded document")
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, rej, err := h.lifecycle.GetBooking(c.Request.Context(), id)
	if err != nil {
		respondInternal(c, h.logger, err, "Failed to retrieve booking")
		return
	}
	if rej != nil {
		respondRejection(c, rej)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// GetBookingHistory handles GET /api/v1/bookings/:id/history
func (h *BookingHandler) GetBookingHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	history, err := h.lifecycle.GetBookingHistory(c.Request.Context(), id)
	if err != nil {
		respondInternal(c, h.logger, err, "Failed to retrieve booking history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id": id,
		"history":    history,
		"total":      len(history),
	})
}

// UpdateBookingStatus handles PATCH /api/v1/bookings/:id/status
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondValidation(c, err.Error())
		return
	}
	appointment, err := req.ParsedAppointmentDate()
	if err != nil {
		respondValidation(c, err.Error())
		return
	}

	upd := services.StatusUpdate{
		Status:          models.BookingStatus(req.Status),
		AppointmentDate: appointment,
		AgentName:       req.AgentName,
		AgentPhone:      req.AgentPhone,
		Actor:           auditActor(c),
	}

	booking, rej, err := h.lifecycle.UpdateBookingStatus(c.Request.Context(), id, upd)
	if err != nil {
		respondInternal(c, h.logger, err, "Failed to update booking status")
		return
	}
	if rej != nil {
		respondRejection(c, rej)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking status updated",
		"booking": booking,
	})
}

// UpdatePaymentStatus handles PATCH /api/v1/bookings/:id/payment-status
func (h *BookingHandler) UpdatePaymentStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body: "+err.Error())
		return
	}

	booking, rej, err := h.lifecycle.UpdatePaymentStatus(c.Request.Context(), id, models.PaymentStatus(req.PaymentStatus), auditActor(c))
	if err != nil {
		respondInternal(c, h.logger, err, "Failed to update payment status")
		return
	}
	if rej != nil {
		respondRejection(c, rej)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment status updated",
		"booking": booking,
	})
}

// DeleteBooking handles DELETE /api/v1/bookings/:id
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	rej, err := h.lifecycle.DeleteBooking(c.Request.Context(), id, auditActor(c))
	if err != nil {
		respondInternal(c, h.logger, err, "Failed to delete booking")
		return
	}
	if rej != nil {
		respondRejection(c, rej)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Booking deleted",
		"booking_id": id,
	})
}

// ListPendingRefunds handles GET /api/v1/admin/refunds
func (h *BookingHandler) ListPendingRefunds(c *gin.Context) {
	bookings, err := h.reconciliation.PendingRefunds(c.Request.Context())
	if err != nil {
		respondInternal(c, h.logger, err, "Failed to list pending refunds")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"total":    len(bookings),
	})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/propertyhub/backoffice/internal/middleware"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/propertyhub/backoffice/internal/services"
	"github.com/propertyhub/backoffice/internal/utils"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

var rejectionStatus = map[models.RejectionCode]int{
	models.RejectValidation:          http.StatusBadRequest,
	models.RejectNotFound:            http.StatusNotFound,
	models.RejectDuplicate:           http.StatusConflict,
	models.RejectRangeUnavailable:    http.StatusConflict,
	models.RejectUnitUnavailable:     http.StatusConflict,
	models.RejectConcurrencyConflict: http.StatusConflict,
	models.RejectInvalidTransition:   http.StatusConflict,
	models.RejectGlobalLimit:         http.StatusConflict,
	models.RejectCategoryLimit:       http.StatusConflict,
	models.RejectPaymentFailed:       http.StatusPaymentRequired,
}

// StatusForRejection maps a rejection code to its HTTP status
func StatusForRejection(code models.RejectionCode) int {
	if status, ok := rejectionStatus[code]; ok {
		return status
	}
	return http.StatusBadRequest
}

func respondRejection(c *gin.Context, rej *models.Rejection) {
	c.JSON(StatusForRejection(rej.Code), ErrorResponse{
		Error:   string(rej.Code),
		Message: rej.Message,
		Details: rej.Details,
	})
}

func respondValidation(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   string(models.RejectValidation),
		Message: message,
	})
}

// respondInternal logs the fault and hides it from the caller
func respondInternal(c *gin.Context, logger *logrus.Logger, err error, message string) {
	_ = c.Error(err)
	logger.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).WithError(err).Error(message)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: message,
	})
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondValidation(c, "invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// auditActor collects the caller identity recorded on audit rows
func auditActor(c *gin.Context) services.AuditActor {
	actor := services.AuditActor{
		IPAddress: utils.ClientIP(c),
		UserAgent: utils.UserAgent(c),
	}
	if user, ok := middleware.GetUserContext(c); ok {
		id := user.UserID
		actor.UserID = &id
	}
	return actor
}

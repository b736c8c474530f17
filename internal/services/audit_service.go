package services

import (
	"github.com/google/uuid"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/propertyhub/backoffice/internal/utils"
)

// AuditActor identifies who triggered a booking change
type AuditActor struct {
	UserID    *uuid.UUID // nil for guests and system jobs
	IPAddress string
	UserAgent string
}

// SystemActor is used by scheduled jobs and the maintenance CLI
var SystemActor = AuditActor{UserAgent: "system"}

func (a AuditActor) stamp(audit *models.BookingAudit) *models.BookingAudit {
	audit.SetActor(a.UserID, a.IPAddress, a.UserAgent)
	if a.UserAgent != "" && a.UserAgent != SystemActor.UserAgent {
		audit.SetDetail("device_info", utils.ParseUserAgent(a.UserAgent))
	}
	return audit
}

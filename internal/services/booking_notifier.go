package services

import (
	"context"
	"sync"
	"time"

	"github.com/propertyhub/backoffice/internal/database"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/propertyhub/backoffice/pkg/notify"
	"github.com/sirupsen/logrus"
)

// BookingNotifier makes exactly one best-effort dispatch per booking event.
// Failures are logged and never reach the caller.
type BookingNotifier struct {
	notifier notify.Notifier
	store    database.Store
	currency string
	timeout  time.Duration
	async    bool
	wg       sync.WaitGroup
	logger   *logrus.Logger
}

// NotifierConfig holds notification dispatch settings
type NotifierConfig struct {
	Currency string
	Timeout  time.Duration
	Async    bool // dispatch in the background; call Wait before shutdown
}

// NewBookingNotifier creates a new booking notifier
func NewBookingNotifier(notifier notify.Notifier, store database.Store, cfg NotifierConfig, logger *logrus.Logger) *BookingNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &BookingNotifier{
		notifier: notifier,
		store:    store,
		currency: cfg.Currency,
		timeout:  cfg.Timeout,
		async:    cfg.Async,
		logger:   logger,
	}
}

// BookingCreated announces a new booking
func (n *BookingNotifier) BookingCreated(ctx context.Context, property *models.Property, b *models.Booking) {
	n.dispatch(ctx, n.templateData(notify.EventBookingCreated, property, b, ""))
}

// StatusChanged announces a status transition
func (n *BookingNotifier) StatusChanged(ctx context.Context, property *models.Property, b *models.Booking, previous models.BookingStatus) {
	n.dispatch(ctx, n.templateData(notify.EventBookingStatusChanged, property, b, previous))
}

// Wait blocks until background dispatches finish
func (n *BookingNotifier) Wait() {
	n.wg.Wait()
}

type pendingNotification struct {
	requester models.Requester
	data      notify.TemplateData
}

func (n *BookingNotifier) templateData(event string, property *models.Property, b *models.Booking, previous models.BookingStatus) pendingNotification {
	data := notify.TemplateData{
		Event:          event,
		BookingID:      b.ID.String(),
		PropertyID:     b.PropertyID.String(),
		Status:         string(b.Status),
		PreviousStatus: string(previous),
		PaymentStatus:  string(b.PaymentStatus),
		TotalAmount:    b.TotalAmount,
		Currency:       n.currency,
	}
	if property != nil {
		data.PropertyTitle = property.Title
	}
	if stay, ok := b.DateRange(); ok {
		data.CheckInDate = stay.Start.Format(models.DateLayout)
		data.CheckOutDate = stay.End.Format(models.DateLayout)
	}
	if b.AppointmentDate != nil {
		data.AppointmentDate = b.AppointmentDate.Format(models.DateLayout)
	}
	if b.AgentName != nil {
		data.AgentName = *b.AgentName
	}
	if b.AgentPhone != nil {
		data.AgentPhone = *b.AgentPhone
	}
	return pendingNotification{requester: b.Requester, data: data}
}

func (n *BookingNotifier) dispatch(ctx context.Context, p pendingNotification) {
	// the request may be finished by the time a background send runs
	ctx = context.WithoutCancel(ctx)

	if !n.async {
		n.send(ctx, p)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.send(ctx, p)
	}()
}

func (n *BookingNotifier) send(ctx context.Context, p pendingNotification) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	fields := logrus.Fields{
		"booking_id": p.data.BookingID,
		"event":      p.data.Event,
		"status":     p.data.Status,
	}

	recipient := n.recipient(ctx, p.requester, fields)
	if err := n.notifier.Notify(ctx, recipient, p.data); err != nil {
		n.logger.WithFields(fields).WithError(err).Warn("Booking notification failed")
		return
	}
	n.logger.WithFields(fields).Debug("Booking notification sent")
}

func (n *BookingNotifier) recipient(ctx context.Context, r models.Requester, fields logrus.Fields) string {
	if client, ok := r.Client(); ok {
		return client.Email
	}
	userID, _ := r.UserID()
	email, err := n.store.GetUserEmail(ctx, userID)
	if err != nil {
		n.logger.WithFields(fields).WithError(err).Warn("Failed to resolve notification recipient")
		return ""
	}
	return email
}

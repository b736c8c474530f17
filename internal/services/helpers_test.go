package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propertyhub/backoffice/internal/database/memstore"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/propertyhub/backoffice/pkg/notify"
	"github.com/sirupsen/logrus/hooks/test"
)

type notifyCall struct {
	to   string
	data notify.TemplateData
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (n *recordingNotifier) Notify(ctx context.Context, to string, data notify.TemplateData) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{to: to, data: data})
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *recordingNotifier) last() notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[len(n.calls)-1]
}

type fakeGateway struct {
	mu     sync.Mutex
	reject string
	err    error
	calls  int
}

func (g *fakeGateway) ManualPayment(ctx context.Context, proof *PaymentProof, amount float64) (ManualPaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return ManualPaymentResult{}, g.err
	}
	if g.reject != "" {
		return ManualPaymentResult{Error: g.reject}, nil
	}
	ref := proof.Ref
	return ManualPaymentResult{
		Success: true,
		Payment: &models.Payment{
			ID:       uuid.New(),
			Amount:   amount,
			Method:   models.PaymentMethodManual,
			ProofRef: &ref,
			Status:   models.PaymentStatusPending,
		},
	}, nil
}

type fixture struct {
	store        *memstore.Store
	notifier     *recordingNotifier
	gateway      *fakeGateway
	reservations *ReservationService
	lifecycle    *LifecycleService
	featured     *FeaturedService
	availability *AvailabilityService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()

	store := memstore.New()
	rec := &recordingNotifier{}
	gateway := &fakeGateway{}
	notifier := NewBookingNotifier(rec, store, NotifierConfig{Currency: "USD", Timeout: time.Second}, logger)

	return &fixture{
		store:        store,
		notifier:     rec,
		gateway:      gateway,
		reservations: NewReservationService(store, gateway, notifier, logger),
		lifecycle:    NewLifecycleService(store, notifier, logger),
		featured:     NewFeaturedService(store, DefaultFeaturedLimits(), logger),
		availability: NewAvailabilityService(store),
	}
}

func date(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}

func flexibleProperty(price float64) models.Property {
	flexible := models.RentDurationFlexible
	return models.Property{
		ID:               uuid.New(),
		Title:            "Lake Cabin",
		ListingType:      models.ListingTypeRent,
		RentDurationType: &flexible,
		Price:            price,
		PriceUnit:        "USD/night",
		AvailabilityWindow: &models.AvailabilityWindow{
			CheckIn:  date("2025-01-01"),
			CheckOut: date("2025-12-31"),
		},
	}
}

func unitProperty(price float64) models.Property {
	monthly := models.RentDurationMonthly
	return models.Property{
		ID:               uuid.New(),
		Title:            "City Flat",
		ListingType:      models.ListingTypeRent,
		RentDurationType: &monthly,
		Price:            price,
		PriceUnit:        "USD/month",
	}
}

func activeStay(propertyID uuid.UUID, checkIn, checkOut string) models.Booking {
	return models.Booking{
		ID:            uuid.New(),
		PropertyID:    propertyID,
		Requester:     models.Registered(uuid.New()),
		CheckInDate:   datePtr(checkIn),
		CheckOutDate:  datePtr(checkOut),
		Status:        models.BookingStatusConfirmed,
		PaymentStatus: models.PaymentStatusUnpaid,
		PaymentMethod: models.PaymentMethodCash,
	}
}

func guest() models.Requester {
	return models.Guest(models.ClientRecord{
		Name:    "Ana Silva",
		Phone:   "+15550100",
		Address: "1 Main St",
		Email:   "ana@example.com",
		Adults:  2,
	})
}

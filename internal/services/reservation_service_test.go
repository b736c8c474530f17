package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBookingCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := unitProperty(900)
	f.store.AddProperty(p)

	userID := uuid.New()
	f.store.AddUser(userID, "owner@example.com")

	booking, rej, err := f.reservations.CreateBooking(ctx, CreateBookingInput{
		PropertyID:               p.ID,
		Requester:                models.Registered(userID),
		AppointmentRequestedDate: datePtr("2025-02-01"),
		PaymentMethod:            models.PaymentMethodCash,
		Actor:                    AuditActor{UserID: &userID, IPAddress: "203.0.113.9", UserAgent: "Mozilla/5.0"},
	})
	require.NoError(t, err)
	require.Nil(t, rej)
	require.NotNil(t, booking)

	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, booking.PaymentStatus)
	assert.Nil(t, booking.PaymentID)
	assert.Nil(t, booking.CheckInDate)
	assert.Equal(t, 900.0, booking.TotalAmount)
	require.NotNil(t, booking.AppointmentRequestedDate)
	assert.Equal(t, date("2025-02-01"), *booking.AppointmentRequestedDate)
	assert.Equal(t, 0, f.gateway.calls)

	require.Equal(t, 1, f.notifier.count())
	call := f.notifier.last()
	assert.Equal(t, "owner@example.com", call.to)
	assert.Equal(t, "booking_created", call.data.Event)
	assert.Equal(t, "City Flat", call.data.PropertyTitle)

	audits, err := f.store.ListAudits(ctx, "booking", booking.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, models.AuditBookingCreated, audits[0].Action)
	require.NotNil(t, audits[0].IPAddress)
	assert.Equal(t, "203.0.113.9", *audits[0].IPAddress)
}

func TestCreateBookingFlexibleGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := flexibleProperty(100)
	f.store.AddProperty(p)

	booking, rej, err := f.reservations.CreateBooking(ctx, CreateBookingInput{
		PropertyID:    p.ID,
		Requester:     guest(),
		CheckIn:       datePtr("2025-06-01"),
		CheckOut:      datePtr("2025-06-04"),
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)
	require.Nil(t, rej)
	require.NotNil(t, booking)

	assert.Equal(t, 300.0, booking.TotalAmount)
	assert.Equal(t, date("2025-06-01"), *booking.CheckInDate)
	assert.Equal(t, date("2025-06-04"), *booking.CheckOutDate)
	assert.Equal(t, models.RequesterGuest, booking.Requester.Kind())

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "ana@example.com", f.notifier.last().to)
	assert.Equal(t, "2025-06-01", f.notifier.last().data.CheckInDate)
}

func TestCreateBookingHalfOpenBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := flexibleProperty(100)
	f.store.AddProperty(p)

	create := func(checkIn, checkOut string) (*models.Booking, *models.Rejection) {
		b, rej, err := f.reservations.CreateBooking(ctx, CreateBookingInput{
			PropertyID:    p.ID,
			Requester:     models.Registered(uuid.New()),
			CheckIn:       datePtr(checkIn),
			CheckOut:      datePtr(checkOut),
			PaymentMethod: models.PaymentMethodCash,
		})
		require.NoError(t, err)
		return b, rej
	}

	first, rej := create("2025-03-01", "2025-03-05")
	require.Nil(t, rej)
	require.NotNil(t, first)

	second, rej := create("2025-03-05", "2025-03-08")
	require.Nil(t, rej)
	require.NotNil(t, second)

	_, rej = create("2025-03-07", "2025-03-09")
	require.NotNil(t, rej)
	assert.Equal(t, models.RejectRangeUnavailable, rej.Code)

	assert.Equal(t, 2, f.store.BookingCount())
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flexible := flexibleProperty(100)
	f.store.AddProperty(flexible)

	tests := []struct {
		name string
		in   CreateBookingInput
	}{
		{"no requester", CreateBookingInput{PropertyID: flexible.ID, PaymentMethod: models.PaymentMethodCash}},
		{"incomplete client", CreateBookingInput{
			PropertyID:    flexible.ID,
			Requester:     models.Guest(models.ClientRecord{Name: "Ana", Phone: "+1555"}),
			PaymentMethod: models.PaymentMethodCash,
		}},
		{"unknown payment method", CreateBookingInput{
			PropertyID:    flexible.ID,
			Requester:     models.Registered(uuid.New()),
			PaymentMethod: "bitcoin",
		}},
		{"zero length stay", CreateBookingInput{
			PropertyID:    flexible.ID,
			Requester:     models.Registered(uuid.New()),
			CheckIn:       datePtr("2025-06-01"),
			CheckOut:      datePtr("2025-06-01"),
			PaymentMethod: models.PaymentMethodCash,
		}},
		{"inverted stay", CreateBookingInput{
			PropertyID:    flexible.ID,
			Requester:     models.Registered(uuid.New()),
			CheckIn:       datePtr("2025-06-05"),
			CheckOut:      datePtr("2025-06-01"),
			PaymentMethod: models.PaymentMethodCash,
		}},
		{"flexible without dates", CreateBookingInput{
			PropertyID:    flexible.ID,
			Requester:     models.Registered(uuid.New()),
			PaymentMethod: models.PaymentMethodCash,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booking, rej, err := f.reservations.CreateBooking(ctx, tt.in)
			require.NoError(t, err)
			assert.Nil(t, booking)
			require.NotNil(t, rej)
			assert.Equal(t, models.RejectValidation, rej.Code)
		})
	}

	assert.Equal(t, 0, f.store.BookingCount())
	assert.Equal(t, 0, f.notifier.count())
}

func TestCreateBookingPropertyNotFound(t *testing.T) {
	f := newFixture(t)

	booking, rej, err := f.reservations.CreateBooking(context.Background(), CreateBookingInput{
		PropertyID:    uuid.New(),
		Requester:     models.Registered(uuid.New()),
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Nil(t, booking)
	require.NotNil(t, rej)
	assert.Equal(t, models.RejectNotFound, rej.Code)
}

func TestCreateBookingDuplicateAndUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := unitProperty(900)
	f.store.AddProperty(p)
	userID := uuid.New()

	in := CreateBookingInput{PropertyID: p.ID, Requester: models.Registered(userID), PaymentMethod: models.PaymentMethodCash}

	first, rej, err := f.reservations.CreateBooking(ctx, in)
	require.NoError(t, err)
	require.Nil(t, rej)

	_, rej, err = f.reservations.CreateBooking(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, models.RejectDuplicate, rej.Code)

	_, rej, err = f.reservations.CreateBooking(ctx, CreateBookingInput{
		PropertyID: p.ID, Requester: guest(), PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, models.RejectUnitUnavailable, rej.Code)

	// a cancelled reservation frees the unit for the same user
	_, rej, err = f.lifecycle.UpdateBookingStatus(ctx, first.ID, StatusUpdate{Status: models.BookingStatusCancelled})
	require.NoError(t, err)
	require.Nil(t, rej)

	again, rej, err := f.reservations.CreateBooking(ctx, in)
	require.NoError(t, err)
	require.Nil(t, rej)
	assert.NotEqual(t, first.ID, again.ID)
}

func TestCreateBookingManualPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := flexibleProperty(150)
	f.store.AddProperty(p)

	booking, rej, err := f.reservations.CreateBooking(ctx, CreateBookingInput{
		PropertyID:    p.ID,
		Requester:     guest(),
		CheckIn:       datePtr("2025-07-01"),
		CheckOut:      datePtr("2025-07-03"),
		PaymentMethod: models.PaymentMethodManual,
		PaymentProof:  &PaymentProof{Ref: "payment-proof/receipt.png"},
	})
	require.NoError(t, err)
	require.Nil(t, rej)

	assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
	require.NotNil(t, booking.PaymentID)
	payment, ok := f.store.Payment(*booking.PaymentID)
	require.True(t, ok)
	assert.Equal(t, 300.0, payment.Amount)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
}

func TestCreateBookingPaymentFailureLeavesNoRows(t *testing.T) {
	ctx := context.Background()

	t.Run("Manual Payment Rejected", func(t *testing.T) {
		f := newFixture(t)
		p := unitProperty(900)
		f.store.AddProperty(p)
		f.gateway.reject = "payment proof is invalid or missing"

		bookingsBefore, paymentsBefore := f.store.BookingCount(), f.store.PaymentCount()

		booking, rej, err := f.reservations.CreateBooking(ctx, CreateBookingInput{
			PropertyID:    p.ID,
			Requester:     models.Registered(uuid.New()),
			PaymentMethod: models.PaymentMethodManual,
			PaymentProof:  &PaymentProof{Ref: "payment-proof/missing.png"},
		})
		require.NoError(t, err)
		assert.Nil(t, booking)
		require.NotNil(t, rej)
		assert.Equal(t, models.RejectPaymentFailed, rej.Code)
		assert.Equal(t, "payment proof is invalid or missing", rej.Details["reason"])

		assert.Equal(t, bookingsBefore, f.store.BookingCount())
		assert.Equal(t, paymentsBefore, f.store.PaymentCount())
		assert.Equal(t, 0, f.notifier.count())
	})

	t.Run("Unsupported Method", func(t *testing.T) {
		f := newFixture(t)
		p := unitProperty(900)
		f.store.AddProperty(p)

		_, rej, err := f.reservations.CreateBooking(ctx, CreateBookingInput{
			PropertyID:    p.ID,
			Requester:     models.Registered(uuid.New()),
			PaymentMethod: models.PaymentMethodPayPal,
		})
		require.NoError(t, err)
		require.NotNil(t, rej)
		assert.Equal(t, models.RejectPaymentFailed, rej.Code)
		assert.Equal(t, 0, f.store.BookingCount())
		assert.Equal(t, 0, f.store.PaymentCount())
	})

	t.Run("Booking Insert Fails After Payment", func(t *testing.T) {
		f := newFixture(t)
		p := unitProperty(900)
		f.store.AddProperty(p)
		f.store.FailOn("CreateBooking", errors.New("disk full"))

		booking, rej, err := f.reservations.CreateBooking(ctx, CreateBookingInput{
			PropertyID:    p.ID,
			Requester:     models.Registered(uuid.New()),
			PaymentMethod: models.PaymentMethodManual,
			PaymentProof:  &PaymentProof{Ref: "payment-proof/receipt.png"},
		})
		require.Error(t, err)
		assert.Nil(t, rej)
		assert.Nil(t, booking)
		assert.Equal(t, 1, f.gateway.calls)
		assert.Equal(t, 0, f.store.BookingCount())
		assert.Equal(t, 0, f.store.PaymentCount())
	})

	t.Run("Gateway Fault", func(t *testing.T) {
		f := newFixture(t)
		p := unitProperty(900)
		f.store.AddProperty(p)
		f.gateway.err = errors.New("storage unreachable")

		_, rej, err := f.reservations.CreateBooking(ctx, CreateBookingInput{
			PropertyID:    p.ID,
			Requester:     models.Registered(uuid.New()),
			PaymentMethod: models.PaymentMethodManual,
			PaymentProof:  &PaymentProof{Ref: "payment-proof/receipt.png"},
		})
		require.Error(t, err)
		assert.Nil(t, rej)
		assert.Equal(t, 0, f.store.BookingCount())
	})
}

func TestCreateBookingNotificationFailureKeepsBooking(t *testing.T) {
	f := newFixture(t)
	p := unitProperty(900)
	f.store.AddProperty(p)
	f.notifier.err = errors.New("redis down")

	booking, rej, err := f.reservations.CreateBooking(context.Background(), CreateBookingInput{
		PropertyID: p.ID, Requester: guest(), PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)
	require.Nil(t, rej)
	require.NotNil(t, booking)
	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, 1, f.store.BookingCount())
}

func TestCreateBookingConstraintConflict(t *testing.T) {
	f := newFixture(t)
	p := flexibleProperty(100)
	f.store.AddProperty(p)
	f.store.FailOn("CreateBooking", &pq.Error{Code: "23P01", Constraint: "bookings_no_overlap"})

	booking, rej, err := f.reservations.CreateBooking(context.Background(), CreateBookingInput{
		PropertyID:    p.ID,
		Requester:     guest(),
		CheckIn:       datePtr("2025-06-01"),
		CheckOut:      datePtr("2025-06-02"),
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Nil(t, booking)
	require.NotNil(t, rej)
	assert.Equal(t, models.RejectConcurrencyConflict, rej.Code)
}

func TestCreateBookingRace(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, f *fixture, inputs []CreateBookingInput) ([]*models.Booking, []*models.Rejection) {
		t.Helper()
		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			bookings   []*models.Booking
			rejections []*models.Rejection
		)
		for _, in := range inputs {
			wg.Add(1)
			go func(in CreateBookingInput) {
				defer wg.Done()
				b, rej, err := f.reservations.CreateBooking(ctx, in)
				assert.NoError(t, err)
				mu.Lock()
				defer mu.Unlock()
				if b != nil {
					bookings = append(bookings, b)
				}
				if rej != nil {
					rejections = append(rejections, rej)
				}
			}(in)
		}
		wg.Wait()
		return bookings, rejections
	}

	t.Run("Whole Unit", func(t *testing.T) {
		f := newFixture(t)
		p := unitProperty(900)
		f.store.AddProperty(p)

		var inputs []CreateBookingInput
		for i := 0; i < 10; i++ {
			inputs = append(inputs, CreateBookingInput{
				PropertyID: p.ID, Requester: models.Registered(uuid.New()), PaymentMethod: models.PaymentMethodCash,
			})
		}

		bookings, rejections := run(t, f, inputs)
		assert.Len(t, bookings, 1)
		assert.Len(t, rejections, 9)
		for _, rej := range rejections {
			assert.Equal(t, models.RejectUnitUnavailable, rej.Code)
		}
		assert.Equal(t, 1, f.store.BookingCount())
	})

	t.Run("Same User Twice", func(t *testing.T) {
		f := newFixture(t)
		p := unitProperty(900)
		f.store.AddProperty(p)
		in := CreateBookingInput{PropertyID: p.ID, Requester: models.Registered(uuid.New()), PaymentMethod: models.PaymentMethodCash}

		bookings, rejections := run(t, f, []CreateBookingInput{in, in})
		require.Len(t, bookings, 1)
		require.Len(t, rejections, 1)
		assert.Equal(t, models.RejectDuplicate, rejections[0].Code)
	})

	t.Run("Overlapping Stays", func(t *testing.T) {
		f := newFixture(t)
		p := flexibleProperty(100)
		f.store.AddProperty(p)

		var inputs []CreateBookingInput
		for i := 0; i < 8; i++ {
			inputs = append(inputs, CreateBookingInput{
				PropertyID:    p.ID,
				Requester:     guest(),
				CheckIn:       datePtr("2025-08-01"),
				CheckOut:      datePtr("2025-08-05"),
				PaymentMethod: models.PaymentMethodCash,
			})
		}

		bookings, rejections := run(t, f, inputs)
		assert.Len(t, bookings, 1)
		assert.Len(t, rejections, 7)

		violations, err := NewReconciliationService(f.store, nil).ReservationViolations(ctx)
		require.NoError(t, err)
		assert.Empty(t, violations)
	})
}

// Package memstore is an in-memory database.Store for tests and local demos.
// Transactions are serialized and applied only on commit, and the schema's
// reservation constraints are enforced on insert.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/propertyhub/backoffice/internal/database"
	"github.com/propertyhub/backoffice/internal/models"
)

// Store implements database.Store in memory
type Store struct {
	txMu sync.Mutex // held for the whole of a transaction
	mu   sync.RWMutex
	data *state

	faults map[string]error
}

type state struct {
	properties map[uuid.UUID]models.Property
	bookings   map[uuid.UUID]models.Booking
	payments   map[uuid.UUID]models.Payment
	audits     []models.BookingAudit
	emails     map[uuid.UUID]string
}

func newState() *state {
	return &state{
		properties: make(map[uuid.UUID]models.Property),
		bookings:   make(map[uuid.UUID]models.Booking),
		payments:   make(map[uuid.UUID]models.Payment),
		emails:     make(map[uuid.UUID]string),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.properties {
		v.BlockedDates = append([]time.Time(nil), v.BlockedDates...)
		c.properties[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	c.audits = append(c.audits, s.audits...)
	return c
}

// New creates an empty store
func New() *Store {
	return &Store{data: newState(), faults: make(map[string]error)}
}

var _ database.Store = (*Store)(nil)

// AddProperty seeds a property
func (s *Store) AddProperty(p models.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.data.properties[p.ID] = p
}

// AddBooking seeds a booking without running admission checks
func (s *Store) AddBooking(b models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.data.bookings[b.ID] = b
}

// AddUser seeds a user email for notifications
func (s *Store) AddUser(id uuid.UUID, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.emails[id] = email
}

// FailOn makes the named Tx method return err until cleared with a nil err
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

// BookingCount returns the number of committed bookings
func (s *Store) BookingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.bookings)
}

// PaymentCount returns the number of committed payments
func (s *Store) PaymentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.payments)
}

// Payment returns a committed payment
func (s *Store) Payment(id uuid.UUID) (models.Payment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.payments[id]
	return p, ok
}

// WithTx runs fn against a private copy of the data and publishes it on success
func (s *Store) WithTx(ctx context.Context, fn func(tx database.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	s.mu.RLock()
	work := s.data.clone()
	faults := make(map[string]error, len(s.faults))
	for k, v := range s.faults {
		faults[k] = v
	}
	s.mu.RUnlock()

	if err := fn(&tx{data: work, faults: faults}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) read() *tx {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &tx{data: s.data.clone()}
}

// GetProperty returns a committed property or nil
func (s *Store) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	return s.read().GetProperty(ctx, id)
}

// ActiveBookingsForProperty lists committed active bookings
func (s *Store) ActiveBookingsForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Booking, error) {
	return s.read().ActiveBookingsForProperty(ctx, propertyID)
}

// GetBooking returns a committed booking or nil
func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return s.read().LockBooking(ctx, id)
}

// ListBookingsForProperty lists every committed booking of a property, newest first
func (s *Store) ListBookingsForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Booking, error) {
	t := s.read()
	var out []*models.Booking
	for _, b := range t.data.bookings {
		if b.PropertyID == propertyID {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListCancelledPaidBookings lists cancelled bookings still marked paid
func (s *Store) ListCancelledPaidBookings(ctx context.Context) ([]*models.Booking, error) {
	t := s.read()
	var out []*models.Booking
	for _, b := range t.data.bookings {
		if b.NeedsRefund() {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// FindOverlappingBookings scans for active flexible bookings that overlap
func (s *Store) FindOverlappingBookings(ctx context.Context) ([]models.ReservationViolation, error) {
	return s.findPairs("overlap", func(a, b models.Booking) bool {
		ra, okA := a.DateRange()
		rb, okB := b.DateRange()
		return okA && okB && ra.Overlaps(rb)
	}), nil
}

// FindDuplicateReservations scans for properties holding more than one active whole-unit booking
func (s *Store) FindDuplicateReservations(ctx context.Context) ([]models.ReservationViolation, error) {
	return s.findPairs("duplicate", func(a, b models.Booking) bool {
		_, okA := a.DateRange()
		_, okB := b.DateRange()
		return !okA && !okB
	}), nil
}

func (s *Store) findPairs(rule string, match func(a, b models.Booking) bool) []models.ReservationViolation {
	t := s.read()
	var active []models.Booking
	for _, b := range t.data.bookings {
		if b.IsActive() {
			active = append(active, b)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID.String() < active[j].ID.String() })

	var out []models.ReservationViolation
	for i := range active {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			if a.PropertyID == b.PropertyID && match(a, b) {
				out = append(out, models.ReservationViolation{
					PropertyID: a.PropertyID, BookingID: a.ID, OtherBookingID: b.ID, Rule: rule,
				})
			}
		}
	}
	return out
}

// ListAudits returns the committed audit trail of an entity
func (s *Store) ListAudits(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.BookingAudit, error) {
	t := s.read()
	var out []models.BookingAudit
	for _, a := range t.data.audits {
		if a.EntityType == entityType && a.EntityID == entityID {
			out = append(out, a)
		}
	}
	return out, nil
}

// GetUserEmail returns the seeded email of a user
func (s *Store) GetUserEmail(ctx context.Context, id uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.emails[id], nil
}

type tx struct {
	data   *state
	faults map[string]error
}

func (t *tx) fault(method string) error {
	return t.faults[method]
}

func (t *tx) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	p, ok := t.data.properties[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *tx) LockProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	if err := t.fault("LockProperty"); err != nil {
		return nil, err
	}
	return t.GetProperty(ctx, id)
}

func (t *tx) LockFeaturedSlots(ctx context.Context) error {
	return t.fault("LockFeaturedSlots")
}

func (t *tx) CountFeatured(ctx context.Context) (int, error) {
	n := 0
	for _, p := range t.data.properties {
		if p.IsFeatured {
			n++
		}
	}
	return n, nil
}

func (t *tx) CountFeaturedInCategory(ctx context.Context, categoryID, excludeID uuid.UUID) (int, error) {
	n := 0
	for _, p := range t.data.properties {
		if p.IsFeatured && p.ID != excludeID && p.CategoryID != nil && *p.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (t *tx) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) error {
	if err := t.fault("SetFeatured"); err != nil {
		return err
	}
	p, ok := t.data.properties[id]
	if !ok {
		return fmt.Errorf("failed to update featured flag: property %s not found", id)
	}
	p.IsFeatured = featured
	p.UpdatedAt = time.Now()
	t.data.properties[id] = p
	return nil
}

func (t *tx) ActiveBookingsForProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Booking, error) {
	var out []*models.Booking
	for _, b := range t.data.bookings {
		if b.PropertyID == propertyID && b.IsActive() {
			b := b
			out = append(out, &b)
		}
	}
	return out, nil
}

func (t *tx) HasActiveReservation(ctx context.Context, userID, propertyID uuid.UUID) (bool, error) {
	for _, b := range t.data.bookings {
		if id, ok := b.Requester.UserID(); ok && id == userID && b.PropertyID == propertyID && b.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) CreateBooking(ctx context.Context, b *models.Booking) error {
	if err := t.fault("CreateBooking"); err != nil {
		return err
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if err := t.checkConstraints(*b); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	t.data.bookings[b.ID] = *b
	return nil
}

// checkConstraints mirrors bookings_no_overlap and bookings_one_active_unit_reservation
func (t *tx) checkConstraints(nb models.Booking) error {
	if !nb.IsActive() {
		return nil
	}
	newRange, flexible := nb.DateRange()
	for _, b := range t.data.bookings {
		if b.ID == nb.ID || b.PropertyID != nb.PropertyID || !b.IsActive() {
			continue
		}
		r, ok := b.DateRange()
		switch {
		case flexible && ok && r.Overlaps(newRange):
			return &pq.Error{Code: "23P01", Constraint: "bookings_no_overlap", Message: "conflicting key value violates exclusion constraint"}
		case !flexible && !ok:
			return &pq.Error{Code: "23505", Constraint: "bookings_one_active_unit_reservation", Message: "duplicate key value violates unique constraint"}
		}
	}
	return nil
}

func (t *tx) LockBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, ok := t.data.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (t *tx) UpdateBooking(ctx context.Context, b *models.Booking) error {
	if err := t.fault("UpdateBooking"); err != nil {
		return err
	}
	if _, ok := t.data.bookings[b.ID]; !ok {
		return fmt.Errorf("failed to update booking: %s not found", b.ID)
	}
	if err := t.checkConstraints(*b); err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	b.UpdatedAt = time.Now()
	t.data.bookings[b.ID] = *b
	return nil
}

func (t *tx) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	if err := t.fault("DeleteBooking"); err != nil {
		return err
	}
	delete(t.data.bookings, id)
	return nil
}

func (t *tx) CreatePayment(ctx context.Context, p *models.Payment) error {
	if err := t.fault("CreatePayment"); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	t.data.payments[p.ID] = *p
	return nil
}

func (t *tx) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	p, ok := t.data.payments[id]
	if !ok {
		return nil
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	t.data.payments[id] = p
	return nil
}

func (t *tx) LogAudit(ctx context.Context, audit *models.BookingAudit) error {
	if err := t.fault("LogAudit"); err != nil {
		return err
	}
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	t.data.audits = append(t.data.audits, *audit)
	return nil
}

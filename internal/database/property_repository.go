package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/propertyhub/backoffice/internal/models"
)

// featuredSlotsLockKey is the advisory lock serializing featured toggles
const featuredSlotsLockKey int64 = 0x66656174

const propertyColumns = `
	id, host_id, category_id, title, listing_type, rent_duration_type,
	price, price_unit, available_from, available_until, is_featured,
	created_at, updated_at`

type propertyRow struct {
	ID               uuid.UUID      `db:"id"`
	HostID           *uuid.UUID     `db:"host_id"`
	CategoryID       *uuid.UUID     `db:"category_id"`
	Title            string         `db:"title"`
	ListingType      string         `db:"listing_type"`
	RentDurationType sql.NullString `db:"rent_duration_type"`
	Price            float64        `db:"price"`
	PriceUnit        string         `db:"price_unit"`
	AvailableFrom    sql.NullTime   `db:"available_from"`
	AvailableUntil   sql.NullTime   `db:"available_until"`
	IsFeatured       bool           `db:"is_featured"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r propertyRow) toModel() *models.Property {
	p := &models.Property{
		ID:          r.ID,
		HostID:      r.HostID,
		CategoryID:  r.CategoryID,
		Title:       r.Title,
		ListingType: models.ListingType(r.ListingType),
		Price:       r.Price,
		PriceUnit:   r.PriceUnit,
		IsFeatured:  r.IsFeatured,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.RentDurationType.Valid {
		d := models.RentDurationType(r.RentDurationType.String)
		p.RentDurationType = &d
	}
	if r.AvailableFrom.Valid && r.AvailableUntil.Valid {
		p.AvailabilityWindow = &models.AvailabilityWindow{
			CheckIn:  models.TruncateDay(r.AvailableFrom.Time),
			CheckOut: models.TruncateDay(r.AvailableUntil.Time),
		}
	}
	return p
}

// PropertyRepository reads listings and writes the featured flag
type PropertyRepository struct {
	db sqlx.ExtContext
}

// NewPropertyRepository creates a repository over a pool or a transaction
func NewPropertyRepository(db sqlx.ExtContext) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// GetProperty loads a property with its blocked dates. Returns nil, nil when missing.
func (r *PropertyRepository) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	return r.getProperty(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id)
}

// LockProperty loads a property and holds its row lock until the transaction ends,
// serializing admission checks for that property
func (r *PropertyRepository) LockProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	return r.getProperty(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1 FOR UPDATE`, id)
}

func (r *PropertyRepository) getProperty(ctx context.Context, query string, id uuid.UUID) (*models.Property, error) {
	var row propertyRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	property := row.toModel()

	var blocked []time.Time
	err := sqlx.SelectContext(ctx, r.db, &blocked,
		`SELECT blocked_date FROM property_blocked_dates WHERE property_id = $1 ORDER BY blocked_date`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get blocked dates: %w", err)
	}
	for _, d := range blocked {
		property.BlockedDates = append(property.BlockedDates, models.TruncateDay(d))
	}

	return property, nil
}

// LockFeaturedSlots takes the transaction-scoped advisory lock guarding featured counts
func (r *PropertyRepository) LockFeaturedSlots(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, featuredSlotsLockKey); err != nil {
		return fmt.Errorf("failed to lock featured slots: %w", err)
	}
	return nil
}

// CountFeatured counts featured properties across all categories
func (r *PropertyRepository) CountFeatured(ctx context.Context) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM properties WHERE is_featured`); err != nil {
		return 0, fmt.Errorf("failed to count featured properties: %w", err)
	}
	return count, nil
}

// CountFeaturedInCategory counts featured properties in a category, excluding one property
func (r *PropertyRepository) CountFeaturedInCategory(ctx context.Context, categoryID, excludeID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM properties WHERE is_featured AND category_id = $1 AND id <> $2`
	if err := sqlx.GetContext(ctx, r.db, &count, query, categoryID, excludeID); err != nil {
		return 0, fmt.Errorf("failed to count featured properties in category: %w", err)
	}
	return count, nil
}

// SetFeatured writes the featured flag
func (r *PropertyRepository) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE properties SET is_featured = $2, updated_at = NOW() WHERE id = $1`, id, featured)
	if err != nil {
		return fmt.Errorf("failed to update featured flag: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update featured flag: property %s not found", id)
	}
	return nil
}

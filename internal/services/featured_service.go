package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/propertyhub/backoffice/internal/database"
	"github.com/propertyhub/backoffice/internal/models"
	"github.com/sirupsen/logrus"
)

// FeaturedLimits caps how many properties may be featured
type FeaturedLimits struct {
	Global      int
	PerCategory int
}

// DefaultFeaturedLimits returns the standard caps
func DefaultFeaturedLimits() FeaturedLimits {
	return FeaturedLimits{Global: 9, PerCategory: 3}
}

// FeaturedService admits featured-flag changes against the global and category caps
type FeaturedService struct {
	store  database.Store
	limits FeaturedLimits
	logger *logrus.Logger
}

// NewFeaturedService creates a new featured service
func NewFeaturedService(store database.Store, limits FeaturedLimits, logger *logrus.Logger) *FeaturedService {
	return &FeaturedService{store: store, limits: limits, logger: logger}
}

// SetFeatured turns the featured flag on or off. Both directions are idempotent.
// Turning it on holds the featured-slot lock so concurrent requests count serially.
func (s *FeaturedService) SetFeatured(ctx context.Context, propertyID uuid.UUID, desired bool, actor AuditActor) (*models.Property, *models.Rejection, error) {
	var property *models.Property

	err := s.store.WithTx(ctx, func(tx database.Tx) error {
		if desired {
			if err := tx.LockFeaturedSlots(ctx); err != nil {
				return err
			}
		}

		p, err := tx.LockProperty(ctx, propertyID)
		if err != nil {
			return err
		}
		if p == nil {
			return models.NewRejection(models.RejectNotFound, "property not found").With("property_id", propertyID)
		}
		property = p

		if p.IsFeatured == desired {
			return nil
		}

		if desired {
			global, err := tx.CountFeatured(ctx)
			if err != nil {
				return err
			}
			if global >= s.limits.Global {
				return models.NewRejection(models.RejectGlobalLimit, "at most %d properties can be featured", s.limits.Global).
					With("limit", s.limits.Global).
					With("featured", global)
			}

			if p.CategoryID != nil {
				inCategory, err := tx.CountFeaturedInCategory(ctx, *p.CategoryID, p.ID)
				if err != nil {
					return err
				}
				if inCategory >= s.limits.PerCategory {
					return models.NewRejection(models.RejectCategoryLimit, "at most %d properties per category can be featured", s.limits.PerCategory).
						With("limit", s.limits.PerCategory).
						With("featured", inCategory).
						With("category_id", *p.CategoryID)
				}
			}
		}

		if err := tx.SetFeatured(ctx, p.ID, desired); err != nil {
			return err
		}
		p.IsFeatured = desired

		action := models.AuditPropertyFeaturedOff
		if desired {
			action = models.AuditPropertyFeaturedOn
		}
		return tx.LogAudit(ctx, actor.stamp(models.NewPropertyAudit(p.ID, action)))
	})

	if err != nil {
		if rej, ok := models.AsRejection(err); ok {
			return nil, rej, nil
		}
		if database.IsConcurrencyConflict(err) {
			return nil, models.NewRejection(models.RejectConcurrencyConflict, "featured slots changed concurrently; retry the request"), nil
		}
		return nil, nil, fmt.Errorf("failed to set featured flag: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"property_id": property.ID,
		"featured":    property.IsFeatured,
	}).Info("Property featured flag set")
	return property, nil, nil
}

package persistence

import (
	"context"
	"errors"

	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/aquaflow/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAutoPayRepository implements billing.AutoPayRepository using GORM
type GormAutoPayRepository struct {
	db *gorm.DB
}

// NewGormAutoPayRepository creates a new GormAutoPayRepository
func NewGormAutoPayRepository(db *gorm.DB) *GormAutoPayRepository {
	return &GormAutoPayRepository{db: db}
}

// FindByCustomer finds the auto-pay enrollment for a customer
func (r *GormAutoPayRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*billing.AutoPayEnrollment, error) {
	var model models.AutoPayModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates an enrollment. Updates use the version column for
// optimistic locking so two concurrent charge outcomes cannot both apply.
func (r *GormAutoPayRepository) Save(ctx context.Context, enrollment *billing.AutoPayEnrollment) error {
	model := models.AutoPayModelFromDomain(enrollment)

	if enrollment.Version <= 1 {
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", enrollment.ID, enrollment.Version-1).
		Select("status", "consecutive_failures", "last_attempt_at", "disabled_at", "version", "updated_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure GormAutoPayRepository implements billing.AutoPayRepository
var _ billing.AutoPayRepository = (*GormAutoPayRepository)(nil)

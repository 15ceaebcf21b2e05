package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a commission repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveCustomRate(ctx context.Context, sellerID uuid.UUID, forUnsold bool, at time.Time) (*models.CustomCommission, error) {
	var row models.CustomCommission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND for_unsold = ? AND active", sellerID, forUnsold).
		Where("valid_from IS NULL OR valid_from <= ?", at).
		Where("valid_until IS NULL OR valid_until > ?", at).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindCategoryRate(ctx context.Context, category string, zone enums.CommissionZone, forUnsold bool) (*models.CategoryCommission, error) {
	var row models.CategoryCommission
	err := r.db.WithContext(ctx).
		Where("category = ? AND zone = ? AND for_unsold = ? AND active", category, zone, forUnsold).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpsertCategoryRate(ctx context.Context, row *models.CategoryCommission) error {
	return r.db.WithContext(ctx).
		Where("category = ? AND zone = ? AND for_unsold = ?", row.Category, row.Zone, row.ForUnsold).
		Assign(map[string]any{
			"rate_percent": row.RatePercent,
			"active":       row.Active,
		}).
		FirstOrCreate(row).Error
}

func (r *repository) ListCategoryRates(ctx context.Context) ([]models.CategoryCommission, error) {
	var rows []models.CategoryCommission
	err := r.db.WithContext(ctx).
		Order("category ASC").
		Order("zone ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreateCustomRate(ctx context.Context, row *models.CustomCommission) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) DeactivateCustomRates(ctx context.Context, sellerID uuid.UUID, forUnsold bool) error {
	return r.db.WithContext(ctx).
		Model(&models.CustomCommission{}).
		Where("user_id = ? AND for_unsold = ? AND active", sellerID, forUnsold).
		Update("active", false).Error
}

func (r *repository) ListCustomRates(ctx context.Context, sellerID uuid.UUID) ([]models.CustomCommission, error) {
	var rows []models.CustomCommission
	err := r.db.WithContext(ctx).
		Where("user_id = ?", sellerID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

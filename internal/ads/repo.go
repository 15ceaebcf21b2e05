package ads

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

// Repository defines persistence operations for the ads table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ad, error)
	// MarkSoldIf flips the ad to sold only while it is still in the
	// expected status; the caller checks the returned count.
	MarkSoldIf(ctx context.Context, id uuid.UUID, expected enums.AdStatus) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an ads repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	var ad models.Ad
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&ad).Error
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

func (r *repository) MarkSoldIf(ctx context.Context, id uuid.UUID, expected enums.AdStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Ad{}).
		Where("id = ? AND status = ?", id, expected).
		Update("status", enums.AdStatusSold)
	return res.RowsAffected, res.Error
}

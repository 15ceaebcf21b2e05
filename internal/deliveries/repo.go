package deliveries

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
)

// Repository defines persistence operations for the deliveries table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// CreateIfAbsent inserts the delivery row unless the order already has
	// one; it reports whether a row was inserted. A webhook retry must not
	// create a second delivery.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, delivery *models.Delivery) (bool, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	UpdateByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, updates map[string]any) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateIfAbsent(ctx context.Context, tx *gorm.DB, delivery *models.Delivery) (bool, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).
		Create(delivery)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repositoryImpl) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repositoryImpl) UpdateByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, updates map[string]any) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	res := db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("order_id = ?", orderID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

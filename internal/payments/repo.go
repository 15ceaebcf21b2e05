package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
)

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *repositoryImpl) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", intentID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) FindByChargeID(ctx context.Context, chargeID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("stripe_charge_id = ?", chargeID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) UpdateByOrderID(ctx context.Context, orderID uuid.UUID, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repositoryImpl) UpdateByIntentID(ctx context.Context, intentID string, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("stripe_payment_intent_id = ?", intentID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repositoryImpl) UpdateByChargeID(ctx context.Context, chargeID string, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("stripe_charge_id = ?", chargeID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repositoryImpl) MarkPaidAt(ctx context.Context, intentID string, paidAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("stripe_payment_intent_id = ? AND paid_at IS NULL", intentID).
		UpdateColumn("paid_at", paidAt).Error
}

func (r *repositoryImpl) MarkTransferredIfUnset(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, at time.Time) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	res := db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND transferred_to_seller = ?", orderID, false).
		Updates(map[string]any{
			"transferred_to_seller": true,
			"transferred_at":        at,
		})
	return res.RowsAffected, res.Error
}

func (r *repositoryImpl) FindUnverifiedTransfersBefore(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("transferred_to_seller = ? AND transfer_verified_at IS NULL AND transferred_at < ?", true, cutoff).
		Order("transferred_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

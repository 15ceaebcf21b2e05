package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
)

// Repository defines persistence operations for the payments table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	FindByChargeID(ctx context.Context, chargeID string) (*models.Payment, error)
	UpdateByOrderID(ctx context.Context, orderID uuid.UUID, updates map[string]any) (int64, error)
	UpdateByIntentID(ctx context.Context, intentID string, updates map[string]any) (int64, error)
	UpdateByChargeID(ctx context.Context, chargeID string, updates map[string]any) (int64, error)
	// MarkPaidAt sets paid_at only if it is still null; status writes are
	// last-write-wins, paid_at is first-write-wins.
	MarkPaidAt(ctx context.Context, intentID string, paidAt time.Time) error
	// MarkTransferredIfUnset flips the local transfer bookkeeping exactly
	// once inside the caller's transaction.
	MarkTransferredIfUnset(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, at time.Time) (int64, error)
	// FindUnverifiedTransfersBefore returns payments whose local transfer
	// flag is set but Stripe never confirmed the transfer.
	FindUnverifiedTransfersBefore(ctx context.Context, cutoff time.Time) ([]models.Payment, error)
}

package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

// FeeInput carries everything a calculator may consider when pricing a sale.
type FeeInput struct {
	SellerID  uuid.UUID
	Category  string
	Zone      enums.CommissionZone
	ForUnsold bool
	Subtotal  decimal.Decimal
	At        time.Time
}

// FeeCalculator computes the platform fee for an accepted offer. The fee is
// computed exactly once, at acceptance, and snapshotted onto the order.
type FeeCalculator interface {
	Fee(ctx context.Context, input FeeInput) (decimal.Decimal, error)
}

// Repository defines persistence operations for commission rate tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveCustomRate(ctx context.Context, sellerID uuid.UUID, forUnsold bool, at time.Time) (*models.CustomCommission, error)
	FindCategoryRate(ctx context.Context, category string, zone enums.CommissionZone, forUnsold bool) (*models.CategoryCommission, error)
	UpsertCategoryRate(ctx context.Context, row *models.CategoryCommission) error
	ListCategoryRates(ctx context.Context) ([]models.CategoryCommission, error)
	CreateCustomRate(ctx context.Context, row *models.CustomCommission) error
	DeactivateCustomRates(ctx context.Context, sellerID uuid.UUID, forUnsold bool) error
	ListCustomRates(ctx context.Context, sellerID uuid.UUID) ([]models.CustomCommission, error)
}

package commission

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

// SetCategoryRateInput captures the admin request to set a category rate.
type SetCategoryRateInput struct {
	Category    string
	Zone        enums.CommissionZone
	ForUnsold   bool
	RatePercent decimal.Decimal
	Active      bool
}

// SetCustomRateInput captures the admin request to override a seller's rate.
type SetCustomRateInput struct {
	SellerID    uuid.UUID
	ForUnsold   bool
	RatePercent decimal.Decimal
	ValidFrom   *time.Time
	ValidUntil  *time.Time
}

// CategoryRateView is the admin-facing shape of a category rate row.
type CategoryRateView struct {
	ID          uuid.UUID            `json:"id"`
	Category    string               `json:"category"`
	Zone        enums.CommissionZone `json:"zone"`
	ForUnsold   bool                 `json:"for_unsold"`
	RatePercent decimal.Decimal      `json:"rate_percent"`
	Active      bool                 `json:"active"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// CustomRateView is the admin-facing shape of a custom rate row.
type CustomRateView struct {
	ID          uuid.UUID       `json:"id"`
	SellerID    uuid.UUID       `json:"seller_id"`
	ForUnsold   bool            `json:"for_unsold"`
	RatePercent decimal.Decimal `json:"rate_percent"`
	Active      bool            `json:"active"`
	ValidFrom   *time.Time      `json:"valid_from,omitempty"`
	ValidUntil  *time.Time      `json:"valid_until,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

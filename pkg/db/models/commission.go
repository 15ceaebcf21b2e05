package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

// CategoryCommission is an admin-managed commission rate keyed by
// listing category, seller zone and whether the listing moves unsold
// stock.
type CategoryCommission struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Category    string               `gorm:"column:category;type:text;not null;uniqueIndex:ux_category_commissions_scope"`
	Zone        enums.CommissionZone `gorm:"column:zone;type:commission_zone;not null;uniqueIndex:ux_category_commissions_scope"`
	ForUnsold   bool                 `gorm:"column:for_unsold;not null;default:false;uniqueIndex:ux_category_commissions_scope"`
	RatePercent decimal.Decimal      `gorm:"column:rate_percent;type:numeric(5,2);not null"`
	Active      bool                 `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// CustomCommission overrides the category rate for a single seller.
type CustomCommission struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	ForUnsold   bool            `gorm:"column:for_unsold;not null;default:false"`
	RatePercent decimal.Decimal `gorm:"column:rate_percent;type:numeric(5,2);not null"`
	Active      bool            `gorm:"column:active;not null;default:true"`
	ValidFrom   *time.Time      `gorm:"column:valid_from"`
	ValidUntil  *time.Time      `gorm:"column:valid_until"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

// Ad is a surplus-stock listing that buyers negotiate against.
type Ad struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Title       string          `gorm:"column:title;type:text;not null"`
	Description *string         `gorm:"column:description;type:text"`
	Category    string          `gorm:"column:category;type:text;not null;index"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Currency    enums.Currency  `gorm:"column:currency;type:text;not null;default:'EUR'"`
	Quantity    int             `gorm:"column:quantity;not null"`
	ForUnsold   bool            `gorm:"column:for_unsold;not null;default:false"`
	Unit        *string         `gorm:"column:unit;type:text"`
	Location    *string         `gorm:"column:location;type:text"`
	Status      enums.AdStatus  `gorm:"column:status;type:ad_status;not null;default:'active'"`
	ExpiresAt   *time.Time      `gorm:"column:expires_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

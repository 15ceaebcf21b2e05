package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

// Offer is a buyer's bid on an ad. At most one pending offer may exist
// per (ad, buyer) pair, enforced by a partial unique index.
type Offer struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AdID           uuid.UUID         `gorm:"column:ad_id;type:uuid;not null;index"`
	BuyerID        uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID       uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	PriceOffered   decimal.Decimal   `gorm:"column:price_offered;type:numeric(12,2);not null"`
	Quantity       int               `gorm:"column:quantity;not null"`
	Message        *string           `gorm:"column:message;type:text"`
	SellerResponse *string           `gorm:"column:seller_response;type:text"`
	Status         enums.OfferStatus `gorm:"column:status;type:offer_status;not null;default:'pending'"`
	ExpiresAt      *time.Time        `gorm:"column:expires_at"`
	AcceptedAt     *time.Time        `gorm:"column:accepted_at"`
	RejectedAt     *time.Time        `gorm:"column:rejected_at"`
	CancelledAt    *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alifmarket/marketplace-backend/pkg/enums"
	"github.com/alifmarket/marketplace-backend/pkg/types"
)

// Order is created from an accepted offer. Amounts and addresses are
// snapshots taken at acceptance; later edits to the ad or user profiles
// never rewrite an order.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     string            `gorm:"column:order_number;type:text;not null;uniqueIndex"`
	OfferID         uuid.UUID         `gorm:"column:offer_id;type:uuid;not null;uniqueIndex"`
	AdID            uuid.UUID         `gorm:"column:ad_id;type:uuid;not null;index"`
	BuyerID         uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID        uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	Quantity        int               `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal   `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	PlatformFee     decimal.Decimal   `gorm:"column:platform_fee;type:numeric(12,2);not null"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Currency        enums.Currency    `gorm:"column:currency;type:text;not null;default:'EUR'"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending_payment'"`
	ShippingAddress types.Address     `gorm:"column:shipping_address;type:jsonb;not null"`
	BillingAddress  types.Address     `gorm:"column:billing_address;type:jsonb;not null"`
	PaidAt          *time.Time        `gorm:"column:paid_at"`
	CancelledAt     *time.Time        `gorm:"column:cancelled_at"`
	RefundedAt      *time.Time        `gorm:"column:refunded_at"`
	CompletedAt     *time.Time        `gorm:"column:completed_at"`
	Payment         *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Delivery        *Delivery         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

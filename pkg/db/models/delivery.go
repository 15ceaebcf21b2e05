package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

// Delivery tracks fulfilment of an order. ConfirmedAt records the
// buyer's confirmation of receipt.
type Delivery struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status         enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'pending'"`
	Carrier        *string              `gorm:"column:carrier;type:text"`
	TrackingNumber *string              `gorm:"column:tracking_number;type:text"`
	ShippedAt      *time.Time           `gorm:"column:shipped_at"`
	DeliveredAt    *time.Time           `gorm:"column:delivered_at"`
	ConfirmedAt    *time.Time           `gorm:"column:confirmed_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

// Payment tracks the Stripe payment intent for an order. The
// TransferredToSeller flag is local bookkeeping written when the charge
// succeeds; StripeTransferID and TransferVerifiedAt are only written
// once Stripe confirms the transfer via webhook.
type Payment struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	StripePaymentIntentID *string             `gorm:"column:stripe_payment_intent_id;type:text;uniqueIndex"`
	Amount                decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	ApplicationFee        decimal.Decimal     `gorm:"column:application_fee;type:numeric(12,2);not null"`
	Currency              enums.Currency      `gorm:"column:currency;type:text;not null;default:'EUR'"`
	Status                enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	FailureReason         *string             `gorm:"column:failure_reason;type:text"`
	PaidAt                *time.Time          `gorm:"column:paid_at"`
	StripeChargeID        *string             `gorm:"column:stripe_charge_id;type:text;index"`
	TransferredToSeller   bool                `gorm:"column:transferred_to_seller;not null;default:false"`
	TransferredAt         *time.Time          `gorm:"column:transferred_at"`
	StripeTransferID      *string             `gorm:"column:stripe_transfer_id;type:text"`
	TransferVerifiedAt    *time.Time          `gorm:"column:transfer_verified_at"`
	RefundedAt            *time.Time          `gorm:"column:refunded_at"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

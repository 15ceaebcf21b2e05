package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/alifmarket/marketplace-backend/pkg/enums"
	"github.com/alifmarket/marketplace-backend/pkg/types"
)

// User represents the canonical identity entity. Any user may list ads
// (sell) or place offers (buy); payout capability depends on Stripe
// onboarding.
type User struct {
	ID                       uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email                    string               `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash             string               `gorm:"column:password_hash;not null"`
	CompanyName              string               `gorm:"column:company_name;not null"`
	ContactName              *string              `gorm:"column:contact_name"`
	Phone                    *string              `gorm:"column:phone"`
	VATNumber                *string              `gorm:"column:vat_number"`
	Role                     enums.Role           `gorm:"column:role;type:user_role;not null;default:'user'"`
	CommissionZone           enums.CommissionZone `gorm:"column:commission_zone;type:commission_zone;not null;default:'eu'"`
	BillingAddress           *types.Address       `gorm:"column:billing_address;type:jsonb"`
	ShippingAddress          *types.Address       `gorm:"column:shipping_address;type:jsonb"`
	StripeCustomerID         *string              `gorm:"column:stripe_customer_id"`
	StripeAccountID          *string              `gorm:"column:stripe_account_id"`
	StripeOnboardingComplete bool                 `gorm:"column:stripe_onboarding_complete;not null;default:false"`
	StripePayoutsEnabled     bool                 `gorm:"column:stripe_payouts_enabled;not null;default:false"`
	IsActive                 bool                 `gorm:"column:is_active;not null;default:true"`
	LastLoginAt              *time.Time           `gorm:"column:last_login_at"`
	CreatedAt                time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

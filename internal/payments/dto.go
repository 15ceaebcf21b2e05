package payments

import (
	"github.com/google/uuid"

	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

// CreateIntentInput identifies the order the buyer wants to pay.
type CreateIntentInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   string
}

// IntentResult carries what the frontend needs to confirm the payment.
type IntentResult struct {
	PaymentIntentID string         `json:"payment_intent_id"`
	ClientSecret    string         `json:"client_secret"`
	Amount          int64          `json:"amount"`
	ApplicationFee  int64          `json:"application_fee"`
	Currency        enums.Currency `json:"currency"`
	Reused          bool           `json:"reused"`
}

// ConnectAccountInput identifies the seller to onboard.
type ConnectAccountInput struct {
	UserID    uuid.UUID
	ActorRole string
}

// ConnectAccountResult returns the Stripe account plus the hosted
// onboarding link the seller must complete.
type ConnectAccountResult struct {
	AccountID     string `json:"account_id"`
	OnboardingURL string `json:"onboarding_url"`
}

// PaymentIntentCreatedEvent is written to the outbox when an intent is
// first persisted.
type PaymentIntentCreatedEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	PaymentID       uuid.UUID `json:"payment_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Amount          string    `json:"amount"`
	ApplicationFee  string    `json:"application_fee"`
}

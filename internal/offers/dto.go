package offers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
)

// CreateOfferInput carries a buyer's bid against an ad.
type CreateOfferInput struct {
	BuyerID      uuid.UUID
	ActorRole    string
	AdID         uuid.UUID
	PriceOffered decimal.Decimal
	Quantity     int
	Message      *string
	ExpiresAt    *time.Time
}

// DecisionInput carries a seller's accept/reject or a buyer's cancel.
type DecisionInput struct {
	OfferID        uuid.UUID
	ActorUserID    uuid.UUID
	ActorRole      string
	SellerResponse *string
}

// AcceptResult returns the transitioned offer alongside the order the
// acceptance produced.
type AcceptResult struct {
	Offer *models.Offer `json:"offer"`
	Order *models.Order `json:"order"`
}

// ListOffersInput configures the offer listing for one user.
type ListOffersInput struct {
	UserID uuid.UUID
	Side   OfferSide
	Status *enums.OfferStatus
	Limit  int
	Cursor string
}

// ListResult wraps a page of offers and the next cursor.
type ListResult struct {
	Items  []models.Offer `json:"items"`
	Cursor string         `json:"cursor"`
}

// OfferCreatedEvent is written to the outbox on creation.
type OfferCreatedEvent struct {
	OfferID      uuid.UUID `json:"offer_id"`
	AdID         uuid.UUID `json:"ad_id"`
	BuyerID      uuid.UUID `json:"buyer_id"`
	SellerID     uuid.UUID `json:"seller_id"`
	PriceOffered string    `json:"price_offered"`
	Quantity     int       `json:"quantity"`
}

// OfferDecisionEvent records an accept, reject, cancel or expiry.
type OfferDecisionEvent struct {
	OfferID  uuid.UUID         `json:"offer_id"`
	AdID     uuid.UUID         `json:"ad_id"`
	BuyerID  uuid.UUID         `json:"buyer_id"`
	SellerID uuid.UUID         `json:"seller_id"`
	Status   enums.OfferStatus `json:"status"`
	OrderID  *uuid.UUID        `json:"order_id,omitempty"`
}

package orders

import (
	"github.com/google/uuid"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	"github.com/alifmarket/marketplace-backend/pkg/outbox"
)

// CreateFromOfferInput carries everything the order factory needs. The
// offer must already hold accepted status inside the caller's transaction.
type CreateFromOfferInput struct {
	Offer *models.Offer
	Ad    *models.Ad
	Actor *outbox.ActorRef
}

// ListOrdersInput configures the order listing for one user.
type ListOrdersInput struct {
	UserID uuid.UUID
	Side   OrderSide
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// ListResult wraps a page of orders and the next cursor.
type ListResult struct {
	Items  []models.Order `json:"items"`
	Cursor string         `json:"cursor"`
}

// UpdateStatusInput carries a seller-driven fulfilment transition.
type UpdateStatusInput struct {
	OrderID        uuid.UUID
	ActorUserID    uuid.UUID
	ActorRole      string
	Target         enums.OrderStatus
	Carrier        *string
	TrackingNumber *string
}

// OrderCreatedEvent is written to the outbox when the factory runs.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	OfferID     uuid.UUID         `json:"offer_id"`
	BuyerID     uuid.UUID         `json:"buyer_id"`
	SellerID    uuid.UUID         `json:"seller_id"`
	Subtotal    string            `json:"subtotal"`
	PlatformFee string            `json:"platform_fee"`
	Total       string            `json:"total"`
	Currency    enums.Currency    `json:"currency"`
	Status      enums.OrderStatus `json:"status"`
}

// OrderStateChangedEvent records a single transition.
type OrderStateChangedEvent struct {
	OrderID  uuid.UUID         `json:"order_id"`
	BuyerID  uuid.UUID         `json:"buyer_id"`
	SellerID uuid.UUID         `json:"seller_id"`
	From     enums.OrderStatus `json:"from"`
	To       enums.OrderStatus `json:"to"`
}

// OrderExpiredEvent is emitted when the cron worker cancels an unpaid order.
type OrderExpiredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
}

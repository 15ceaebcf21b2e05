package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	"github.com/alifmarket/marketplace-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Order, error)
	// FindDetail loads the order with its payment and delivery rows.
	FindDetail(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params listOrdersParams) ([]models.Order, *pagination.Cursor, error)
	// UpdateStatusIf transitions the order only while it still holds the
	// expected status; the returned count is the conflict signal.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error)
	FindPendingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type listOrdersParams struct {
	UserID uuid.UUID
	Side   OrderSide
	Status *enums.OrderStatus
	Limit  int
	Cursor *pagination.Cursor
}

// OrderSide selects which side of the transaction a listing covers.
type OrderSide string

const (
	OrderSideAny    OrderSide = ""
	OrderSideBuyer  OrderSide = "buyer"
	OrderSideSeller OrderSide = "seller"
)

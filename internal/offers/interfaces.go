package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	"github.com/alifmarket/marketplace-backend/pkg/pagination"
)

// Repository defines persistence operations for the offers table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, offer *models.Offer) (*models.Offer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	// HasPending is a cheap pre-check; the partial unique index on
	// (ad_id, buyer_id) is the actual race guard.
	HasPending(ctx context.Context, adID, buyerID uuid.UUID) (bool, error)
	List(ctx context.Context, params listOffersParams) ([]models.Offer, *pagination.Cursor, error)
	// UpdateStatusIf transitions the offer only while it still holds the
	// expected status; zero rows affected signals a lost race.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.OfferStatus, updates map[string]any) (int64, error)
	FindExpiredPending(ctx context.Context, now time.Time) ([]models.Offer, error)
	// FindAcceptedWithoutOrder returns accepted offers older than the
	// cutoff that never produced an order row. Acceptance and order
	// creation commit together, so anything here is an inconsistency.
	FindAcceptedWithoutOrder(ctx context.Context, cutoff time.Time) ([]models.Offer, error)
}

type listOffersParams struct {
	UserID uuid.UUID
	Side   OfferSide
	Status *enums.OfferStatus
	Limit  int
	Cursor *pagination.Cursor
}

// OfferSide selects sent (as buyer) or received (as seller) offers.
type OfferSide string

const (
	OfferSideSent     OfferSide = "sent"
	OfferSideReceived OfferSide = "received"
)

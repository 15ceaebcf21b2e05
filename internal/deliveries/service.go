package deliveries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/internal/notifications"
	"github.com/alifmarket/marketplace-backend/internal/orders"
	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// transferMarker flips the local payout bookkeeping on the payment row.
type transferMarker interface {
	MarkTransferredIfUnset(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, at time.Time) (int64, error)
}

// ConfirmInput carries a buyer's receipt confirmation.
type ConfirmInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   string
}

// DeliveryConfirmedEvent is written to the outbox exactly once per order.
type DeliveryConfirmedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// Service owns buyer-side delivery confirmation and settlement.
type Service interface {
	// ConfirmDelivery completes the order: buyer-only, requires delivered
	// status, flips the order to completed and releases seller funds
	// bookkeeping in one transaction.
	ConfirmDelivery(ctx context.Context, input ConfirmInput) (*models.Order, error)
}

type service struct {
	repo      Repository
	orders    orders.Repository
	transfers transferMarker
	tx        txRunner
	outbox    outboxPublisher
	notifier  notifications.Notifier
	logg      *logger.Logger
}

// NewService wires the delivery service dependencies.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	transfers transferMarker,
	tx txRunner,
	outboxPub outboxPublisher,
	notifier notifications.Notifier,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if transfers == nil {
		return nil, fmt.Errorf("transfer marker required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		orders:    ordersRepo,
		transfers: transfers,
		tx:        tx,
		outbox:    outboxPub,
		notifier:  notifier,
		logg:      logg,
	}, nil
}

func (s *service) ConfirmDelivery(ctx context.Context, input ConfirmInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var confirmed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.BuyerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can confirm delivery")
		}
		if order.Status == enums.OrderStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already confirmed")
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been delivered yet")
		}

		now := time.Now().UTC()
		affected, err := ordersRepo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusDelivered, enums.OrderStatusCompleted, map[string]any{
			"completed_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already confirmed")
		}

		updates := map[string]any{
			"status":       enums.DeliveryStatusDelivered,
			"confirmed_at": now,
		}
		if _, err := s.repo.UpdateByOrderID(ctx, tx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery")
		}

		released, err := s.transfers.MarkTransferredIfUnset(ctx, tx, order.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transfer")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDeliveryConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: DeliveryConfirmedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				BuyerID:     order.BuyerID,
				SellerID:    order.SellerID,
				ConfirmedAt: now,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return err
		}

		// fund-release is announced only when this confirmation actually
		// flipped the bookkeeping flag
		if released > 0 {
			s.notifier.Notify(ctx, tx, notifications.NotifyInput{
				UserID:  order.SellerID,
				Type:    enums.NotificationTypePayment,
				Title:   "Funds released",
				Message: fmt.Sprintf("Your payout for order %s is being released.", order.OrderNumber),
			})
		}
		s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			UserID:  order.SellerID,
			Type:    enums.NotificationTypeDelivery,
			Title:   "Delivery confirmed",
			Message: fmt.Sprintf("The buyer confirmed receipt of order %s.", order.OrderNumber),
		})

		order.Status = enums.OrderStatusCompleted
		order.CompletedAt = &now
		confirmed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/internal/commission"
	"github.com/alifmarket/marketplace-backend/internal/notifications"
	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/outbox"
	"github.com/alifmarket/marketplace-backend/pkg/pagination"
	"github.com/alifmarket/marketplace-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// deliveryWriter updates the delivery row tied to an order inside the
// caller's transaction.
type deliveryWriter interface {
	UpdateByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, updates map[string]any) (int64, error)
}

// Service owns order creation and the order status lifecycle.
type Service interface {
	// CreateFromOffer builds the order snapshot for an accepted offer. It
	// runs inside the acceptance transaction so offer and order commit or
	// roll back as a unit.
	CreateFromOffer(ctx context.Context, tx *gorm.DB, input CreateFromOfferInput) (*models.Order, error)
	Get(ctx context.Context, userID uuid.UUID, role enums.Role, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, input ListOrdersInput) (*ListResult, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	// ExpireUnpaid cancels orders stuck in pending_payment since before
	// the cutoff and returns how many were cancelled.
	ExpireUnpaid(ctx context.Context, cutoff time.Time) (int, error)
}

type service struct {
	repo       Repository
	users      userReader
	fees       commission.FeeCalculator
	tx         txRunner
	outbox     outboxPublisher
	deliveries deliveryWriter
	notifier   notifications.Notifier
	logg       *logger.Logger
}

// NewService wires the order service dependencies.
func NewService(
	repo Repository,
	users userReader,
	fees commission.FeeCalculator,
	tx txRunner,
	outboxPub outboxPublisher,
	deliveries deliveryWriter,
	notifier notifications.Notifier,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users reader required")
	}
	if fees == nil {
		return nil, fmt.Errorf("fee calculator required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deliveries == nil {
		return nil, fmt.Errorf("delivery writer required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		users:      users,
		fees:       fees,
		tx:         tx,
		outbox:     outboxPub,
		deliveries: deliveries,
		notifier:   notifier,
		logg:       logg,
	}, nil
}

func (s *service) CreateFromOffer(ctx context.Context, tx *gorm.DB, input CreateFromOfferInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.Offer == nil || input.Ad == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "offer and ad required")
	}
	offer := input.Offer

	buyer, err := s.users.FindByID(ctx, offer.BuyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	seller, err := s.users.FindByID(ctx, offer.SellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}

	shipping, billing, err := snapshotAddresses(buyer)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	subtotal := offer.PriceOffered.Mul(decimal.NewFromInt(int64(offer.Quantity))).Round(2)
	fee, err := s.fees.Fee(ctx, commission.FeeInput{
		SellerID:  offer.SellerID,
		Category:  input.Ad.Category,
		Zone:      seller.CommissionZone,
		ForUnsold: input.Ad.ForUnsold,
		Subtotal:  subtotal,
		At:        now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute platform fee")
	}
	fee = fee.Round(2)

	number, err := GenerateOrderNumber(now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}

	order := &models.Order{
		OrderNumber:     number,
		OfferID:         offer.ID,
		AdID:            offer.AdID,
		BuyerID:         offer.BuyerID,
		SellerID:        offer.SellerID,
		Quantity:        offer.Quantity,
		UnitPrice:       offer.PriceOffered,
		Subtotal:        subtotal,
		PlatformFee:     fee,
		Total:           subtotal.Add(fee),
		Currency:        input.Ad.Currency,
		Status:          enums.OrderStatusPendingPayment,
		ShippingAddress: shipping,
		BillingAddress:  billing,
	}

	repo := s.repo.WithTx(tx)
	created, err := repo.Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   created.ID,
		Version:       1,
		Actor:         input.Actor,
		Data: OrderCreatedEvent{
			OrderID:     created.ID,
			OrderNumber: created.OrderNumber,
			OfferID:     created.OfferID,
			BuyerID:     created.BuyerID,
			SellerID:    created.SellerID,
			Subtotal:    created.Subtotal.StringFixed(2),
			PlatformFee: created.PlatformFee.StringFixed(2),
			Total:       created.Total.StringFixed(2),
			Currency:    created.Currency,
			Status:      created.Status,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, tx, notifications.NotifyInput{
		UserID:  created.BuyerID,
		Type:    enums.NotificationTypeOrder,
		Title:   "Offer accepted",
		Message: fmt.Sprintf("Your offer was accepted. Order %s is awaiting payment.", created.OrderNumber),
	})
	s.notifier.Notify(ctx, tx, notifications.NotifyInput{
		UserID:  created.SellerID,
		Type:    enums.NotificationTypeOrder,
		Title:   "Order created",
		Message: fmt.Sprintf("Order %s was created from your accepted offer.", created.OrderNumber),
	})

	return created, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, role enums.Role, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != userID && order.SellerID != userID && role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, input ListOrdersInput) (*ListResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	params := listOrdersParams{
		UserID: input.UserID,
		Side:   input.Side,
		Status: input.Status,
		Limit:  input.Limit,
	}
	if input.Cursor != "" {
		cursor, err := pagination.ParseCursor(input.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		params.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	result := &ListResult{Items: rows}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !sellerTargets[input.Target] {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported status update")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.SellerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to seller")
		}
		if !CanTransition(order.Status, input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed in current state")
		}

		affected, err := repo.UpdateStatusIf(ctx, order.ID, order.Status, input.Target, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed concurrently")
		}

		if err := s.applyDeliveryUpdate(ctx, tx, order.ID, input); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: OrderStateChangedEvent{
				OrderID:  order.ID,
				BuyerID:  order.BuyerID,
				SellerID: order.SellerID,
				From:     order.Status,
				To:       input.Target,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			UserID:  order.BuyerID,
			Type:    enums.NotificationTypeDelivery,
			Title:   "Order update",
			Message: fmt.Sprintf("Order %s is now %s.", order.OrderNumber, input.Target),
		})

		order.Status = input.Target
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) applyDeliveryUpdate(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, input UpdateStatusInput) error {
	now := time.Now().UTC()
	updates := map[string]any{}
	switch input.Target {
	case enums.OrderStatusProcessing:
		updates["status"] = enums.DeliveryStatusPreparing
	case enums.OrderStatusShipped:
		updates["status"] = enums.DeliveryStatusShipped
		updates["shipped_at"] = now
		if input.Carrier != nil {
			updates["carrier"] = *input.Carrier
		}
		if input.TrackingNumber != nil {
			updates["tracking_number"] = *input.TrackingNumber
		}
	case enums.OrderStatusDelivered:
		updates["status"] = enums.DeliveryStatusDelivered
		updates["delivered_at"] = now
	default:
		return nil
	}

	affected, err := s.deliveries.UpdateByOrderID(ctx, tx, orderID, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery record missing for order")
	}
	return nil
}

func (s *service) ExpireUnpaid(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.repo.FindPendingPaymentBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale orders")
	}

	expired := 0
	for _, order := range stale {
		order := order
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			now := time.Now().UTC()
			affected, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPendingPayment, enums.OrderStatusCancelled, map[string]any{
				"cancelled_at": now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
			}
			if affected == 0 {
				// paid or cancelled since the scan, nothing to do
				return nil
			}

			event := outbox.DomainEvent{
				EventType:     enums.EventOrderExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: OrderExpiredEvent{
					OrderID:     order.ID,
					OrderNumber: order.OrderNumber,
					BuyerID:     order.BuyerID,
					SellerID:    order.SellerID,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}

			s.notifier.Notify(ctx, tx, notifications.NotifyInput{
				UserID:  order.BuyerID,
				Type:    enums.NotificationTypeOrder,
				Title:   "Order cancelled",
				Message: fmt.Sprintf("Order %s was cancelled because payment was not received in time.", order.OrderNumber),
			})
			expired++
			return nil
		})
		if err != nil {
			logCtx := s.logg.WithField(ctx, "order_id", order.ID.String())
			s.logg.Error(logCtx, "order.expire_failed", err)
		}
	}
	return expired, nil
}

func snapshotAddresses(buyer *models.User) (types.Address, types.Address, error) {
	var shipping, billing types.Address
	if buyer.BillingAddress != nil {
		billing = *buyer.BillingAddress
	}
	if buyer.ShippingAddress != nil {
		shipping = *buyer.ShippingAddress
	} else {
		shipping = billing
	}
	if shipping.IsZero() || billing.IsZero() {
		return types.Address{}, types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "buyer has no address on file")
	}
	return shipping, billing, nil
}

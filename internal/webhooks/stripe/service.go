package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/internal/notifications"
	"github.com/alifmarket/marketplace-backend/internal/orders"
	"github.com/alifmarket/marketplace-backend/internal/payments"
	"github.com/alifmarket/marketplace-backend/internal/users"
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
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type deliveryCreator interface {
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, delivery *models.Delivery) (bool, error)
}

// ServiceParams collects the reconciliation dependencies.
type ServiceParams struct {
	PaymentsRepo      payments.Repository
	OrdersRepo        orders.Repository
	UsersRepo         users.Repository
	Deliveries        deliveryCreator
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Notifier          notifications.Notifier
	Logger            *logger.Logger
}

// Service reconciles asynchronous Stripe events with local payment,
// order and delivery state. Handlers are idempotent: a redelivered event
// is a no-op by construction.
type Service struct {
	paymentsRepo payments.Repository
	ordersRepo   orders.Repository
	usersRepo    users.Repository
	deliveries   deliveryCreator
	txRunner     txRunner
	outbox       outboxPublisher
	notifier     notifications.Notifier
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.PaymentsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.UsersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	if params.Deliveries == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "deliveries repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		paymentsRepo: params.PaymentsRepo,
		ordersRepo:   params.OrdersRepo,
		usersRepo:    params.UsersRepo,
		deliveries:   params.Deliveries,
		txRunner:     params.TransactionRunner,
		outbox:       params.Outbox,
		notifier:     params.Notifier,
		logg:         params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		return s.handlePaymentSucceeded(ctx, &intent)
	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		return s.handlePaymentFailed(ctx, &intent)
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge")
		}
		return s.handleChargeRefunded(ctx, &charge)
	case stripe.EventTypeAccountUpdated:
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode account")
		}
		return s.handleAccountUpdated(ctx, &acct)
	case stripe.EventTypeTransferCreated:
		// source_transaction stays a plain id unless expanded
		var transfer struct {
			ID                string `json:"id"`
			SourceTransaction string `json:"source_transaction"`
		}
		if err := json.Unmarshal(event.Data.Raw, &transfer); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode transfer")
		}
		return s.handleTransferCreated(ctx, transfer.ID, transfer.SourceTransaction)
	default:
		// unknown events are acknowledged, not errored, so Stripe stops
		// retrying them
		return nil
	}
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error {
	if intent == nil || intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.paymentsRepo.WithTx(tx)
		payment, err := repo.FindByIntentID(ctx, intent.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logCtx := s.logg.WithField(ctx, "intent_id", intent.ID)
				s.logg.Warn(logCtx, "webhook.unknown_intent")
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":         enums.PaymentStatusSucceeded,
			"failure_reason": nil,
		}
		if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
			updates["stripe_charge_id"] = intent.LatestCharge.ID
		}
		if _, err := repo.UpdateByIntentID(ctx, intent.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		// paid_at is first-write-wins: replays and out-of-order events
		// never move it
		if err := repo.MarkPaidAt(ctx, intent.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark paid at")
		}

		ordersRepo := s.ordersRepo.WithTx(tx)
		order, err := ordersRepo.FindByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		affected, err := ordersRepo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPendingPayment, enums.OrderStatusPaymentReceived, map[string]any{
			"paid_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}

		if _, err := s.deliveries.CreateIfAbsent(ctx, tx, &models.Delivery{
			OrderID: order.ID,
			Status:  enums.DeliveryStatusPending,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentSucceeded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data: paymentEventPayload(payment.ID, order.ID, intent.ID, string(enums.PaymentStatusSucceeded)),
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return err
		}

		if affected > 0 {
			s.notifier.Notify(ctx, tx, notifications.NotifyInput{
				UserID:  order.SellerID,
				Type:    enums.NotificationTypePayment,
				Title:   "Payment received",
				Message: fmt.Sprintf("Order %s was paid. Please prepare the shipment.", order.OrderNumber),
			})
			s.notifier.Notify(ctx, tx, notifications.NotifyInput{
				UserID:  order.BuyerID,
				Type:    enums.NotificationTypePayment,
				Title:   "Payment confirmed",
				Message: fmt.Sprintf("Your payment for order %s was confirmed.", order.OrderNumber),
			})
		}
		return nil
	})
}

func (s *Service) handlePaymentFailed(ctx context.Context, intent *stripe.PaymentIntent) error {
	if intent == nil || intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.paymentsRepo.WithTx(tx)
		payment, err := repo.FindByIntentID(ctx, intent.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logCtx := s.logg.WithField(ctx, "intent_id", intent.ID)
				s.logg.Warn(logCtx, "webhook.unknown_intent")
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		updates := map[string]any{"status": enums.PaymentStatusFailed}
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			updates["failure_reason"] = intent.LastPaymentError.Msg
		}
		if _, err := repo.UpdateByIntentID(ctx, intent.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data:          paymentEventPayload(payment.ID, payment.OrderID, intent.ID, string(enums.PaymentStatusFailed)),
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		order, err := s.ordersRepo.WithTx(tx).FindByID(ctx, payment.OrderID)
		if err == nil {
			s.notifier.Notify(ctx, tx, notifications.NotifyInput{
				UserID:  order.BuyerID,
				Type:    enums.NotificationTypePayment,
				Title:   "Payment failed",
				Message: fmt.Sprintf("The payment for order %s failed. Please try again.", order.OrderNumber),
			})
		}
		return nil
	})
}

func (s *Service) handleChargeRefunded(ctx context.Context, charge *stripe.Charge) error {
	if charge == nil || charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "charge has no payment intent")
	}
	intentID := charge.PaymentIntent.ID

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.paymentsRepo.WithTx(tx)
		payment, err := repo.FindByIntentID(ctx, intentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logCtx := s.logg.WithField(ctx, "intent_id", intentID)
				s.logg.Warn(logCtx, "webhook.unknown_intent")
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		now := time.Now().UTC()
		if _, err := repo.UpdateByIntentID(ctx, intentID, map[string]any{
			"status":      enums.PaymentStatusRefunded,
			"refunded_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}

		ordersRepo := s.ordersRepo.WithTx(tx)
		order, err := ordersRepo.FindByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if orders.CanTransition(order.Status, enums.OrderStatusRefunded) {
			if _, err := ordersRepo.UpdateStatusIf(ctx, order.ID, order.Status, enums.OrderStatusRefunded, map[string]any{
				"refunded_at": now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentRefunded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data:          paymentEventPayload(payment.ID, order.ID, intentID, string(enums.PaymentStatusRefunded)),
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return err
		}

		s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			UserID:  order.BuyerID,
			Type:    enums.NotificationTypePayment,
			Title:   "Payment refunded",
			Message: fmt.Sprintf("Your payment for order %s was refunded.", order.OrderNumber),
		})
		return nil
	})
}

func (s *Service) handleAccountUpdated(ctx context.Context, acct *stripe.Account) error {
	if acct == nil || acct.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id missing")
	}

	user, err := s.usersRepo.FindByStripeAccountID(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logCtx := s.logg.WithField(ctx, "account_id", acct.ID)
			s.logg.Warn(logCtx, "webhook.unknown_account")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	payoutsTurnedOn := acct.PayoutsEnabled && !user.StripePayoutsEnabled

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.usersRepo.WithTx(tx)
		if err := repo.Update(ctx, user.ID, map[string]any{
			"stripe_payouts_enabled":     acct.PayoutsEnabled,
			"stripe_onboarding_complete": acct.DetailsSubmitted,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventSellerAccountUpdated,
			AggregateType: enums.AggregateNotification,
			AggregateID:   user.ID,
			Version:       1,
			Data: map[string]any{
				"user_id":             user.ID,
				"payouts_enabled":     acct.PayoutsEnabled,
				"onboarding_complete": acct.DetailsSubmitted,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		if payoutsTurnedOn {
			s.notifier.Notify(ctx, tx, notifications.NotifyInput{
				UserID:  user.ID,
				Type:    enums.NotificationTypeSystem,
				Title:   "Payouts enabled",
				Message: "Your payout account is ready. You can now receive funds from sales.",
			})
		}
		return nil
	})
}

func (s *Service) handleTransferCreated(ctx context.Context, transferID, chargeID string) error {
	if transferID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer id missing")
	}
	if chargeID == "" {
		// transfers unrelated to destination charges carry no source
		// transaction; nothing to reconcile
		return nil
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.paymentsRepo.WithTx(tx)
		now := time.Now().UTC()
		affected, err := repo.UpdateByChargeID(ctx, chargeID, map[string]any{
			"stripe_transfer_id":   transferID,
			"transfer_verified_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify transfer")
		}
		if affected == 0 {
			logCtx := s.logg.WithField(ctx, "transfer_id", transferID)
			s.logg.Warn(logCtx, "webhook.unknown_transfer_charge")
			return nil
		}

		payment, err := repo.FindByChargeID(ctx, chargeID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventTransferVerified,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data: map[string]any{
				"payment_id":  payment.ID,
				"order_id":    payment.OrderID,
				"transfer_id": transferID,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func paymentEventPayload(paymentID, orderID uuid.UUID, intentID, status string) map[string]any {
	return map[string]any{
		"payment_id": paymentID,
		"order_id":   orderID,
		"intent_id":  intentID,
		"status":     status,
	}
}

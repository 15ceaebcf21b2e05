package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/internal/orders"
	"github.com/alifmarket/marketplace-backend/pkg/config"
	dbpkg "github.com/alifmarket/marketplace-backend/pkg/db"
	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/outbox"
)

const paymentsOrderUnique = "payments_order_id_key"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// Service coordinates payment intents and seller payout onboarding.
type Service interface {
	// CreateOrReuseIntent is idempotent per order: a live intent already
	// attached to the order is returned instead of creating a second one.
	CreateOrReuseIntent(ctx context.Context, input CreateIntentInput) (*IntentResult, error)
	CreateConnectAccount(ctx context.Context, input ConnectAccountInput) (*ConnectAccountResult, error)
}

type service struct {
	repo   Repository
	orders orders.Repository
	users  userStore
	stripe StripePaymentClient
	cfg    config.StripeConfig
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService wires the payment service dependencies.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	users userStore,
	stripeClient StripePaymentClient,
	cfg config.StripeConfig,
	tx txRunner,
	outboxPub outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users store required")
	}
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   repo,
		orders: ordersRepo,
		users:  users,
		stripe: stripeClient,
		cfg:    cfg,
		tx:     tx,
		outbox: outboxPub,
		logg:   logg,
	}, nil
}

func (s *service) CreateOrReuseIntent(ctx context.Context, input CreateIntentInput) (*IntentResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != input.ActorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
	}

	seller, err := s.users.FindByID(ctx, order.SellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	if seller.StripeAccountID == nil || *seller.StripeAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "seller payout account is not configured")
	}

	if existing, err := s.repo.FindByOrderID(ctx, order.ID); err == nil {
		return s.reuseIntent(ctx, order, existing)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	amount := order.Total.Shift(2).IntPart()
	fee := order.PlatformFee.Shift(2).IntPart()

	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(amount),
		Currency:             stripe.String(order.Currency.Lower()),
		ApplicationFeeAmount: stripe.Int64(fee),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(*seller.StripeAccountID),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("order_number", order.OrderNumber)

	intent, err := s.stripe.CreateIntent(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	payment := &models.Payment{
		OrderID:               order.ID,
		StripePaymentIntentID: &intent.ID,
		Amount:                order.Total,
		ApplicationFee:        order.PlatformFee,
		Currency:              order.Currency,
		Status:                enums.PaymentStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.Create(ctx, payment)
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentIntentCreated,
			AggregateType: enums.AggregatePayment,
			AggregateID:   row.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: PaymentIntentCreatedEvent{
				OrderID:         order.ID,
				PaymentID:       row.ID,
				PaymentIntentID: intent.ID,
				Amount:          order.Total.StringFixed(2),
				ApplicationFee:  order.PlatformFee.StringFixed(2),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		// lost the race against a concurrent request for the same order;
		// the winner's intent is the one to hand back
		if dbpkg.IsUniqueViolation(err, paymentsOrderUnique) {
			existing, findErr := s.repo.FindByOrderID(ctx, order.ID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "reload payment")
			}
			return s.reuseIntent(ctx, order, existing)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
	}

	return &IntentResult{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          amount,
		ApplicationFee:  fee,
		Currency:        order.Currency,
	}, nil
}

func (s *service) reuseIntent(ctx context.Context, order *models.Order, payment *models.Payment) (*IntentResult, error) {
	if payment.StripePaymentIntentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment record has no intent attached")
	}
	switch payment.Status {
	case enums.PaymentStatusPending, enums.PaymentStatusProcessing, enums.PaymentStatusFailed:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is already settled")
	}

	intent, err := s.stripe.GetIntent(ctx, *payment.StripePaymentIntentID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payment intent")
	}

	return &IntentResult{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          order.Total.Shift(2).IntPart(),
		ApplicationFee:  order.PlatformFee.Shift(2).IntPart(),
		Currency:        order.Currency,
		Reused:          true,
	}, nil
}

func (s *service) CreateConnectAccount(ctx context.Context, input ConnectAccountInput) (*ConnectAccountResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	user, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	accountID := ""
	if user.StripeAccountID != nil {
		accountID = strings.TrimSpace(*user.StripeAccountID)
	}
	if accountID == "" {
		params := &stripe.AccountParams{
			Type:  stripe.String(string(stripe.AccountTypeExpress)),
			Email: stripe.String(user.Email),
			Capabilities: &stripe.AccountCapabilitiesParams{
				Transfers: &stripe.AccountCapabilitiesTransfersParams{
					Requested: stripe.Bool(true),
				},
				CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{
					Requested: stripe.Bool(true),
				},
			},
		}
		created, err := s.stripe.CreateAccount(ctx, params)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create connect account")
		}
		accountID = created.ID

		if err := s.users.Update(ctx, user.ID, map[string]any{"stripe_account_id": accountID}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save connect account")
		}
	}

	link, err := s.stripe.CreateAccountLink(ctx, &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(s.cfg.RefreshURL),
		ReturnURL:  stripe.String(s.cfg.ReturnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create onboarding link")
	}

	return &ConnectAccountResult{
		AccountID:     accountID,
		OnboardingURL: link.URL,
	}, nil
}

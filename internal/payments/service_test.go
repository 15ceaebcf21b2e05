package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/internal/orders"
	"github.com/alifmarket/marketplace-backend/pkg/config"
	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/outbox"
)

type stubPaymentsRepo struct {
	payment   *models.Payment
	created   []*models.Payment
	createErr error
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPaymentsRepo) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	s.created = append(s.created, payment)
	return payment, nil
}

func (s *stubPaymentsRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if s.payment == nil || s.payment.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.payment
	return &clone, nil
}

func (s *stubPaymentsRepo) FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	panic("not implemented")
}

func (s *stubPaymentsRepo) FindByChargeID(ctx context.Context, chargeID string) (*models.Payment, error) {
	panic("not implemented")
}

func (s *stubPaymentsRepo) UpdateByOrderID(ctx context.Context, orderID uuid.UUID, updates map[string]any) (int64, error) {
	panic("not implemented")
}

func (s *stubPaymentsRepo) UpdateByIntentID(ctx context.Context, intentID string, updates map[string]any) (int64, error) {
	panic("not implemented")
}

func (s *stubPaymentsRepo) UpdateByChargeID(ctx context.Context, chargeID string, updates map[string]any) (int64, error) {
	panic("not implemented")
}

func (s *stubPaymentsRepo) MarkPaidAt(ctx context.Context, intentID string, paidAt time.Time) error {
	panic("not implemented")
}

func (s *stubPaymentsRepo) MarkTransferredIfUnset(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, at time.Time) (int64, error) {
	panic("not implemented")
}

func (s *stubPaymentsRepo) FindUnverifiedTransfersBefore(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	panic("not implemented")
}

// stubOrderRepo embeds the interface so only the methods the payment
// service touches need real bodies.
type stubOrderRepo struct {
	orders.Repository
	order *models.Order
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.order
	return &clone, nil
}

type stubUserStore struct {
	users   map[uuid.UUID]*models.User
	updates map[string]any
}

func (s *stubUserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserStore) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.updates = updates
	return nil
}

type stubStripeClient struct {
	intentParams  *stripe.PaymentIntentParams
	fetchedIntent string
	accounts      int
	linkParams    *stripe.AccountLinkParams
}

func (s *stubStripeClient) CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.intentParams = params
	return &stripe.PaymentIntent{ID: "pi_test_1", ClientSecret: "pi_test_1_secret"}, nil
}

func (s *stubStripeClient) GetIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.fetchedIntent = id
	return &stripe.PaymentIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (s *stubStripeClient) CreateAccount(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error) {
	s.accounts++
	return &stripe.Account{ID: "acct_test_1"}, nil
}

func (s *stubStripeClient) CreateAccountLink(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error) {
	s.linkParams = params
	return &stripe.AccountLink{URL: "https://connect.stripe.com/setup/s/test"}, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected app error, got %v", err)
	}
	if appErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, appErr.Code())
	}
}

func strPtr(s string) *string { return &s }

func testOrder(buyerID, sellerID uuid.UUID) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-20260828-0001",
		BuyerID:     buyerID,
		SellerID:    sellerID,
		PlatformFee: decimal.NewFromInt(10),
		Total:       decimal.RequireFromString("210.00"),
		Currency:    enums.CurrencyEUR,
		Status:      enums.OrderStatusPendingPayment,
	}
}

func newIntentService(t *testing.T, repo *stubPaymentsRepo, order *models.Order, seller *models.User, client *stubStripeClient, out *stubOutbox) Service {
	t.Helper()
	users := &stubUserStore{users: map[uuid.UUID]*models.User{}}
	if seller != nil {
		users.users[seller.ID] = seller
	}
	svc, err := NewService(repo, &stubOrderRepo{order: order}, users, client, config.StripeConfig{}, stubTxRunner{}, out, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func TestService_CreateIntent(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	order := testOrder(buyerID, sellerID)
	seller := &models.User{ID: sellerID, StripeAccountID: strPtr("acct_seller")}

	repo := &stubPaymentsRepo{}
	client := &stubStripeClient{}
	out := &stubOutbox{}
	svc := newIntentService(t, repo, order, seller, client, out)

	result, err := svc.CreateOrReuseIntent(context.Background(), CreateIntentInput{OrderID: order.ID, ActorUserID: buyerID, ActorRole: "user"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if result.PaymentIntentID != "pi_test_1" || result.ClientSecret == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Reused {
		t.Fatalf("fresh intent reported as reused")
	}
	if result.Amount != 21000 || result.ApplicationFee != 1000 {
		t.Fatalf("expected cent amounts 21000/1000, got %d/%d", result.Amount, result.ApplicationFee)
	}

	params := client.intentParams
	if params == nil {
		t.Fatalf("stripe never called")
	}
	if *params.Amount != 21000 || *params.ApplicationFeeAmount != 1000 {
		t.Fatalf("stripe params carry wrong amounts: %d/%d", *params.Amount, *params.ApplicationFeeAmount)
	}
	if *params.TransferData.Destination != "acct_seller" {
		t.Fatalf("transfer destination not set to seller account")
	}
	if params.Metadata["order_id"] != order.ID.String() || params.Metadata["order_number"] != order.OrderNumber {
		t.Fatalf("order metadata missing: %v", params.Metadata)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected one payment row, got %d", len(repo.created))
	}
	row := repo.created[0]
	if row.Status != enums.PaymentStatusPending || *row.StripePaymentIntentID != "pi_test_1" {
		t.Fatalf("payment row not pending with intent attached: %+v", row)
	}
	if len(out.events) != 1 || out.events[0].EventType != enums.EventPaymentIntentCreated {
		t.Fatalf("expected payment_intent_created event")
	}
}

func TestService_CreateIntentBuyerOnly(t *testing.T) {
	order := testOrder(uuid.New(), uuid.New())
	svc := newIntentService(t, &stubPaymentsRepo{}, order, nil, &stubStripeClient{}, &stubOutbox{})

	_, err := svc.CreateOrReuseIntent(context.Background(), CreateIntentInput{OrderID: order.ID, ActorUserID: order.SellerID})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestService_CreateIntentOrderNotPendingPayment(t *testing.T) {
	order := testOrder(uuid.New(), uuid.New())
	order.Status = enums.OrderStatusShipped
	svc := newIntentService(t, &stubPaymentsRepo{}, order, nil, &stubStripeClient{}, &stubOutbox{})

	_, err := svc.CreateOrReuseIntent(context.Background(), CreateIntentInput{OrderID: order.ID, ActorUserID: order.BuyerID})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestService_CreateIntentSellerNotOnboarded(t *testing.T) {
	order := testOrder(uuid.New(), uuid.New())
	seller := &models.User{ID: order.SellerID}
	svc := newIntentService(t, &stubPaymentsRepo{}, order, seller, &stubStripeClient{}, &stubOutbox{})

	_, err := svc.CreateOrReuseIntent(context.Background(), CreateIntentInput{OrderID: order.ID, ActorUserID: order.BuyerID})
	assertCode(t, err, pkgerrors.CodeDependency)
}

func TestService_CreateIntentReusesPendingPayment(t *testing.T) {
	order := testOrder(uuid.New(), uuid.New())
	seller := &models.User{ID: order.SellerID, StripeAccountID: strPtr("acct_seller")}
	repo := &stubPaymentsRepo{payment: &models.Payment{
		ID:                    uuid.New(),
		OrderID:               order.ID,
		StripePaymentIntentID: strPtr("pi_existing"),
		Status:                enums.PaymentStatusPending,
	}}
	client := &stubStripeClient{}
	svc := newIntentService(t, repo, order, seller, client, &stubOutbox{})

	result, err := svc.CreateOrReuseIntent(context.Background(), CreateIntentInput{OrderID: order.ID, ActorUserID: order.BuyerID})
	if err != nil {
		t.Fatalf("reuse intent: %v", err)
	}
	if !result.Reused || result.PaymentIntentID != "pi_existing" {
		t.Fatalf("expected existing intent handed back, got %+v", result)
	}
	if client.fetchedIntent != "pi_existing" {
		t.Fatalf("expected intent refreshed from stripe")
	}
	if client.intentParams != nil {
		t.Fatalf("second intent created for the same order")
	}
}

func TestService_CreateIntentSettledPayment(t *testing.T) {
	order := testOrder(uuid.New(), uuid.New())
	seller := &models.User{ID: order.SellerID, StripeAccountID: strPtr("acct_seller")}
	repo := &stubPaymentsRepo{payment: &models.Payment{
		ID:                    uuid.New(),
		OrderID:               order.ID,
		StripePaymentIntentID: strPtr("pi_done"),
		Status:                enums.PaymentStatusSucceeded,
	}}
	svc := newIntentService(t, repo, order, seller, &stubStripeClient{}, &stubOutbox{})

	_, err := svc.CreateOrReuseIntent(context.Background(), CreateIntentInput{OrderID: order.ID, ActorUserID: order.BuyerID})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestService_CreateConnectAccount(t *testing.T) {
	userID := uuid.New()
	users := &stubUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Email: "seller@example.com"},
	}}
	client := &stubStripeClient{}
	cfg := config.StripeConfig{RefreshURL: "https://app.alif.test/connect/refresh", ReturnURL: "https://app.alif.test/connect/return"}
	svc, err := NewService(&stubPaymentsRepo{}, &stubOrderRepo{}, users, client, cfg, stubTxRunner{}, &stubOutbox{}, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	result, err := svc.CreateConnectAccount(context.Background(), ConnectAccountInput{UserID: userID})
	if err != nil {
		t.Fatalf("create connect account: %v", err)
	}

	if result.AccountID != "acct_test_1" || result.OnboardingURL == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if users.updates["stripe_account_id"] != "acct_test_1" {
		t.Fatalf("account id not saved on the user: %v", users.updates)
	}
	if *client.linkParams.RefreshURL != cfg.RefreshURL || *client.linkParams.ReturnURL != cfg.ReturnURL {
		t.Fatalf("onboarding link urls not taken from config")
	}
}

func TestService_CreateConnectAccountExisting(t *testing.T) {
	userID := uuid.New()
	users := &stubUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Email: "seller@example.com", StripeAccountID: strPtr("acct_existing")},
	}}
	client := &stubStripeClient{}
	svc, err := NewService(&stubPaymentsRepo{}, &stubOrderRepo{}, users, client, config.StripeConfig{}, stubTxRunner{}, &stubOutbox{}, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	result, err := svc.CreateConnectAccount(context.Background(), ConnectAccountInput{UserID: userID})
	if err != nil {
		t.Fatalf("create connect account: %v", err)
	}

	if result.AccountID != "acct_existing" {
		t.Fatalf("expected existing account reused, got %s", result.AccountID)
	}
	if client.accounts != 0 {
		t.Fatalf("new account created despite existing one")
	}
	if *client.linkParams.Account != "acct_existing" {
		t.Fatalf("onboarding link not bound to existing account")
	}
}

package orders

import (
	"context"
	"errors"
	"testing"
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

type stubOrdersRepo struct {
	order        *models.Order
	created      []*models.Order
	updateStatus func(id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error)
	stale        []models.Order
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.created = append(s.created, order)
	return order, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.order
	return &clone, nil
}

func (s *stubOrdersRepo) FindByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) FindDetail(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, id)
}

func (s *stubOrdersRepo) List(ctx context.Context, params listOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error) {
	if s.updateStatus != nil {
		return s.updateStatus(id, from, to, updates)
	}
	return 1, nil
}

func (s *stubOrdersRepo) FindPendingPaymentBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return s.stale, nil
}

type stubUserReader struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUserReader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubFees struct {
	fee decimal.Decimal
	got commission.FeeInput
}

func (s *stubFees) Fee(ctx context.Context, input commission.FeeInput) (decimal.Decimal, error) {
	s.got = input
	return s.fee, nil
}

type stubDeliveryWriter struct {
	updates  map[string]any
	affected int64
}

func (s *stubDeliveryWriter) UpdateByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, updates map[string]any) (int64, error) {
	s.updates = updates
	return s.affected, nil
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

type stubNotifier struct {
	sent []notifications.NotifyInput
}

func (s *stubNotifier) Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) {
	s.sent = append(s.sent, input)
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

func testAddress() *types.Address {
	return &types.Address{Street: "Industrieweg 4", City: "Rotterdam", PostalCode: "3044", Country: "NL"}
}

func TestService_CreateFromOffer(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	buyer := &models.User{ID: buyerID, BillingAddress: testAddress()}
	seller := &models.User{ID: sellerID, CommissionZone: enums.CommissionZoneEU}
	offer := &models.Offer{
		ID:           uuid.New(),
		AdID:         uuid.New(),
		BuyerID:      buyerID,
		SellerID:     sellerID,
		PriceOffered: decimal.NewFromInt(100),
		Quantity:     2,
		Status:       enums.OfferStatusAccepted,
	}
	ad := &models.Ad{ID: offer.AdID, UserID: sellerID, Category: "electronics", Currency: enums.CurrencyEUR, ForUnsold: true}

	repo := &stubOrdersRepo{}
	fees := &stubFees{fee: decimal.NewFromInt(10)}
	out := &stubOutbox{}
	notif := &stubNotifier{}
	svc, err := NewService(repo, &stubUserReader{users: map[uuid.UUID]*models.User{buyerID: buyer, sellerID: seller}}, fees, stubTxRunner{}, out, &stubDeliveryWriter{affected: 1}, notif, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	order, err := svc.CreateFromOffer(context.Background(), &gorm.DB{}, CreateFromOfferInput{Offer: offer, Ad: ad})
	if err != nil {
		t.Fatalf("create from offer: %v", err)
	}

	if order.Subtotal.String() != "200" {
		t.Fatalf("expected subtotal 200, got %s", order.Subtotal)
	}
	if order.PlatformFee.String() != "10" {
		t.Fatalf("expected fee 10, got %s", order.PlatformFee)
	}
	if order.Total.String() != "210" {
		t.Fatalf("expected total 210, got %s", order.Total)
	}
	if order.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("expected pending_payment, got %s", order.Status)
	}
	if order.OrderNumber == "" {
		t.Fatalf("expected order number assigned")
	}
	// no shipping address, billing is the fallback
	if order.ShippingAddress != *buyer.BillingAddress {
		t.Fatalf("expected shipping snapshot from billing address")
	}
	if fees.got.Zone != enums.CommissionZoneEU || fees.got.Category != "electronics" || !fees.got.ForUnsold {
		t.Fatalf("fee input not derived from seller and ad: %+v", fees.got)
	}
	if len(out.events) != 1 || out.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected order_created event")
	}
	if len(notif.sent) != 2 {
		t.Fatalf("expected buyer and seller notified, got %d", len(notif.sent))
	}
}

func TestService_CreateFromOfferNoAddress(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	offer := &models.Offer{ID: uuid.New(), AdID: uuid.New(), BuyerID: buyerID, SellerID: sellerID, PriceOffered: decimal.NewFromInt(10), Quantity: 1}
	ad := &models.Ad{ID: offer.AdID}
	users := map[uuid.UUID]*models.User{
		buyerID:  {ID: buyerID},
		sellerID: {ID: sellerID},
	}
	svc, err := NewService(&stubOrdersRepo{}, &stubUserReader{users: users}, &stubFees{}, stubTxRunner{}, &stubOutbox{}, &stubDeliveryWriter{affected: 1}, &stubNotifier{}, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	_, err = svc.CreateFromOffer(context.Background(), &gorm.DB{}, CreateFromOfferInput{Offer: offer, Ad: ad})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestService_UpdateStatusSellerFulfilment(t *testing.T) {
	sellerID := uuid.New()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-20260101-ABCDEF",
		BuyerID:     uuid.New(),
		SellerID:    sellerID,
		Status:      enums.OrderStatusPaymentReceived,
	}
	repo := &stubOrdersRepo{order: order}
	deliveryWriter := &stubDeliveryWriter{affected: 1}
	out := &stubOutbox{}
	svc, err := NewService(repo, &stubUserReader{}, &stubFees{}, stubTxRunner{}, out, deliveryWriter, &stubNotifier{}, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:     order.ID,
		ActorUserID: sellerID,
		Target:      enums.OrderStatusProcessing,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}
	if deliveryWriter.updates["status"] != enums.DeliveryStatusPreparing {
		t.Fatalf("expected delivery moved to preparing")
	}
	if len(out.events) != 1 || out.events[0].EventType != enums.EventOrderStateChanged {
		t.Fatalf("expected order_state_changed event")
	}
}

func TestService_UpdateStatusShippedRecordsTracking(t *testing.T) {
	sellerID := uuid.New()
	order := &models.Order{ID: uuid.New(), BuyerID: uuid.New(), SellerID: sellerID, Status: enums.OrderStatusProcessing}
	deliveryWriter := &stubDeliveryWriter{affected: 1}
	svc, err := NewService(&stubOrdersRepo{order: order}, &stubUserReader{}, &stubFees{}, stubTxRunner{}, &stubOutbox{}, deliveryWriter, &stubNotifier{}, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	carrier := "DHL"
	tracking := "JD0123456789"
	if _, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:        order.ID,
		ActorUserID:    sellerID,
		Target:         enums.OrderStatusShipped,
		Carrier:        &carrier,
		TrackingNumber: &tracking,
	}); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if deliveryWriter.updates["carrier"] != carrier || deliveryWriter.updates["tracking_number"] != tracking {
		t.Fatalf("expected tracking details recorded, got %+v", deliveryWriter.updates)
	}
}

func TestService_UpdateStatusRejectsInvalidTransition(t *testing.T) {
	sellerID := uuid.New()
	order := &models.Order{ID: uuid.New(), BuyerID: uuid.New(), SellerID: sellerID, Status: enums.OrderStatusPendingPayment}
	svc, err := NewService(&stubOrdersRepo{order: order}, &stubUserReader{}, &stubFees{}, stubTxRunner{}, &stubOutbox{}, &stubDeliveryWriter{affected: 1}, &stubNotifier{}, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:     order.ID,
		ActorUserID: sellerID,
		Target:      enums.OrderStatusShipped,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestService_UpdateStatusRejectsBuyerTargets(t *testing.T) {
	sellerID := uuid.New()
	order := &models.Order{ID: uuid.New(), BuyerID: uuid.New(), SellerID: sellerID, Status: enums.OrderStatusDelivered}
	svc, err := NewService(&stubOrdersRepo{order: order}, &stubUserReader{}, &stubFees{}, stubTxRunner{}, &stubOutbox{}, &stubDeliveryWriter{affected: 1}, &stubNotifier{}, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	// completed belongs to the buyer's confirm-delivery flow
	_, err = svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:     order.ID,
		ActorUserID: sellerID,
		Target:      enums.OrderStatusCompleted,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestService_UpdateStatusNotSeller(t *testing.T) {
	order := &models.Order{ID: uuid.New(), BuyerID: uuid.New(), SellerID: uuid.New(), Status: enums.OrderStatusPaymentReceived}
	svc, err := NewService(&stubOrdersRepo{order: order}, &stubUserReader{}, &stubFees{}, stubTxRunner{}, &stubOutbox{}, &stubDeliveryWriter{affected: 1}, &stubNotifier{}, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:     order.ID,
		ActorUserID: uuid.New(),
		Target:      enums.OrderStatusProcessing,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestService_ExpireUnpaid(t *testing.T) {
	stale := []models.Order{
		{ID: uuid.New(), OrderNumber: "ORD-1", BuyerID: uuid.New(), SellerID: uuid.New(), Status: enums.OrderStatusPendingPayment},
		{ID: uuid.New(), OrderNumber: "ORD-2", BuyerID: uuid.New(), SellerID: uuid.New(), Status: enums.OrderStatusPendingPayment},
	}
	repo := &stubOrdersRepo{stale: stale}
	out := &stubOutbox{}
	notif := &stubNotifier{}
	svc, err := NewService(repo, &stubUserReader{}, &stubFees{}, stubTxRunner{}, out, &stubDeliveryWriter{affected: 1}, notif, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	count, err := svc.ExpireUnpaid(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("expire unpaid: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 cancelled, got %d", count)
	}
	if len(out.events) != 2 || out.events[0].EventType != enums.EventOrderExpired {
		t.Fatalf("expected order_expired events")
	}
	if len(notif.sent) != 2 {
		t.Fatalf("expected buyers notified")
	}
}

func TestService_ExpireUnpaidSkipsLostRace(t *testing.T) {
	stale := []models.Order{{ID: uuid.New(), Status: enums.OrderStatusPendingPayment}}
	repo := &stubOrdersRepo{
		stale: stale,
		updateStatus: func(id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error) {
			return 0, nil
		},
	}
	svc, err := NewService(repo, &stubUserReader{}, &stubFees{}, stubTxRunner{}, &stubOutbox{}, &stubDeliveryWriter{affected: 1}, &stubNotifier{}, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	count, err := svc.ExpireUnpaid(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("expire unpaid: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 cancelled, got %d", count)
	}
}

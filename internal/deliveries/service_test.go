package deliveries

import (
	"context"
	"errors"
	"testing"
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

type stubDeliveriesRepo struct {
	updates  map[string]any
	affected int64
}

func (s *stubDeliveriesRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubDeliveriesRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, delivery *models.Delivery) (bool, error) {
	panic("not implemented")
}

func (s *stubDeliveriesRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	panic("not implemented")
}

func (s *stubDeliveriesRepo) UpdateByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, updates map[string]any) (int64, error) {
	s.updates = updates
	return s.affected, nil
}

type stubOrderRepo struct {
	orders.Repository
	order        *models.Order
	updateStatus func(from, to enums.OrderStatus, updates map[string]any) (int64, error)
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.order
	return &clone, nil
}

func (s *stubOrderRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error) {
	if s.updateStatus != nil {
		return s.updateStatus(from, to, updates)
	}
	return 1, nil
}

type stubTransferMarker struct {
	marked     int
	alreadySet bool
}

func (s *stubTransferMarker) MarkTransferredIfUnset(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, at time.Time) (int64, error) {
	s.marked++
	if s.alreadySet {
		return 0, nil
	}
	return 1, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	deduped []outbox.DomainEvent
}

func (s *stubOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.deduped = append(s.deduped, event)
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

func deliveredOrder(buyerID uuid.UUID) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-20260828-0001",
		BuyerID:     buyerID,
		SellerID:    uuid.New(),
		Status:      enums.OrderStatusDelivered,
	}
}

func newConfirmService(t *testing.T, repo *stubDeliveriesRepo, ordersRepo *stubOrderRepo, transfers *stubTransferMarker, out *stubOutbox, notif *stubNotifier) Service {
	t.Helper()
	svc, err := NewService(repo, ordersRepo, transfers, stubTxRunner{}, out, notif, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func TestService_ConfirmDelivery(t *testing.T) {
	buyerID := uuid.New()
	order := deliveredOrder(buyerID)
	repo := &stubDeliveriesRepo{affected: 1}
	transfers := &stubTransferMarker{}
	out := &stubOutbox{}
	notif := &stubNotifier{}
	svc := newConfirmService(t, repo, &stubOrderRepo{order: order}, transfers, out, notif)

	confirmed, err := svc.ConfirmDelivery(context.Background(), ConfirmInput{OrderID: order.ID, ActorUserID: buyerID, ActorRole: "user"})
	if err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}

	if confirmed.Status != enums.OrderStatusCompleted || confirmed.CompletedAt == nil {
		t.Fatalf("order not completed: %+v", confirmed)
	}
	if repo.updates["status"] != enums.DeliveryStatusDelivered || repo.updates["confirmed_at"] == nil {
		t.Fatalf("delivery row not confirmed: %v", repo.updates)
	}
	if transfers.marked != 1 {
		t.Fatalf("settlement bookkeeping not flipped")
	}
	if len(out.deduped) != 1 || out.deduped[0].EventType != enums.EventDeliveryConfirmed {
		t.Fatalf("expected deduplicated delivery_confirmed event")
	}
	if len(notif.sent) != 2 {
		t.Fatalf("expected fund-release and confirmation notifications, got %d", len(notif.sent))
	}
	if notif.sent[0].Title != "Funds released" || notif.sent[0].UserID != order.SellerID {
		t.Fatalf("seller not told funds were released: %+v", notif.sent[0])
	}
	if notif.sent[1].Title != "Delivery confirmed" || notif.sent[1].UserID != order.SellerID {
		t.Fatalf("seller not notified of confirmation: %+v", notif.sent[1])
	}
}

func TestService_ConfirmDeliveryTransferAlreadyMarked(t *testing.T) {
	buyerID := uuid.New()
	order := deliveredOrder(buyerID)
	transfers := &stubTransferMarker{alreadySet: true}
	notif := &stubNotifier{}
	svc := newConfirmService(t, &stubDeliveriesRepo{affected: 1}, &stubOrderRepo{order: order}, transfers, &stubOutbox{}, notif)

	confirmed, err := svc.ConfirmDelivery(context.Background(), ConfirmInput{OrderID: order.ID, ActorUserID: buyerID, ActorRole: "user"})
	if err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}
	if confirmed.Status != enums.OrderStatusCompleted {
		t.Fatalf("order not completed: %+v", confirmed)
	}
	if len(notif.sent) != 1 || notif.sent[0].Title != "Delivery confirmed" {
		t.Fatalf("expected only the confirmation notification, got %+v", notif.sent)
	}
}

func TestService_ConfirmDeliveryBuyerOnly(t *testing.T) {
	order := deliveredOrder(uuid.New())
	svc := newConfirmService(t, &stubDeliveriesRepo{affected: 1}, &stubOrderRepo{order: order}, &stubTransferMarker{}, &stubOutbox{}, &stubNotifier{})

	_, err := svc.ConfirmDelivery(context.Background(), ConfirmInput{OrderID: order.ID, ActorUserID: order.SellerID})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestService_ConfirmDeliveryAlreadyConfirmed(t *testing.T) {
	buyerID := uuid.New()
	order := deliveredOrder(buyerID)
	order.Status = enums.OrderStatusCompleted
	svc := newConfirmService(t, &stubDeliveriesRepo{affected: 1}, &stubOrderRepo{order: order}, &stubTransferMarker{}, &stubOutbox{}, &stubNotifier{})

	_, err := svc.ConfirmDelivery(context.Background(), ConfirmInput{OrderID: order.ID, ActorUserID: buyerID})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestService_ConfirmDeliveryNotDelivered(t *testing.T) {
	buyerID := uuid.New()
	order := deliveredOrder(buyerID)
	order.Status = enums.OrderStatusShipped
	svc := newConfirmService(t, &stubDeliveriesRepo{affected: 1}, &stubOrderRepo{order: order}, &stubTransferMarker{}, &stubOutbox{}, &stubNotifier{})

	_, err := svc.ConfirmDelivery(context.Background(), ConfirmInput{OrderID: order.ID, ActorUserID: buyerID})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestService_ConfirmDeliveryLostRace(t *testing.T) {
	buyerID := uuid.New()
	order := deliveredOrder(buyerID)
	ordersRepo := &stubOrderRepo{order: order}
	ordersRepo.updateStatus = func(from, to enums.OrderStatus, updates map[string]any) (int64, error) {
		return 0, nil
	}
	out := &stubOutbox{}
	notif := &stubNotifier{}
	svc := newConfirmService(t, &stubDeliveriesRepo{affected: 1}, ordersRepo, &stubTransferMarker{}, out, notif)

	_, err := svc.ConfirmDelivery(context.Background(), ConfirmInput{OrderID: order.ID, ActorUserID: buyerID})
	assertCode(t, err, pkgerrors.CodeConflict)
	if len(out.deduped) != 0 || len(notif.sent) != 0 {
		t.Fatalf("lost race still produced side effects")
	}
}

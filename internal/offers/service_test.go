package offers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/internal/ads"
	"github.com/alifmarket/marketplace-backend/internal/notifications"
	"github.com/alifmarket/marketplace-backend/internal/orders"
	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/outbox"
	"github.com/alifmarket/marketplace-backend/pkg/pagination"
)

type stubOfferRepo struct {
	offer         *models.Offer
	created       []*models.Offer
	hasPending    bool
	updateStatus  func(id uuid.UUID, from, to enums.OfferStatus, updates map[string]any) (int64, error)
	expired       []models.Offer
	updatedStatus enums.OfferStatus
}

func (s *stubOfferRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOfferRepo) Create(ctx context.Context, offer *models.Offer) (*models.Offer, error) {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	s.created = append(s.created, offer)
	return offer, nil
}

func (s *stubOfferRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	if s.offer == nil || s.offer.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.offer
	return &clone, nil
}

func (s *stubOfferRepo) HasPending(ctx context.Context, adID, buyerID uuid.UUID) (bool, error) {
	return s.hasPending, nil
}

func (s *stubOfferRepo) List(ctx context.Context, params listOffersParams) ([]models.Offer, *pagination.Cursor, error) {
	panic("not implemented")
}

func (s *stubOfferRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.OfferStatus, updates map[string]any) (int64, error) {
	if s.updateStatus != nil {
		return s.updateStatus(id, from, to, updates)
	}
	s.updatedStatus = to
	return 1, nil
}

func (s *stubOfferRepo) FindExpiredPending(ctx context.Context, now time.Time) ([]models.Offer, error) {
	return s.expired, nil
}

func (s *stubOfferRepo) FindAcceptedWithoutOrder(ctx context.Context, cutoff time.Time) ([]models.Offer, error) {
	panic("not implemented")
}

type stubAdsRepo struct {
	ad      *models.Ad
	soldErr error
	sold    int64
	marked  bool
}

func (s *stubAdsRepo) WithTx(tx *gorm.DB) ads.Repository { return s }

func (s *stubAdsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	if s.ad == nil || s.ad.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.ad
	return &clone, nil
}

func (s *stubAdsRepo) MarkSoldIf(ctx context.Context, id uuid.UUID, expected enums.AdStatus) (int64, error) {
	if s.soldErr != nil {
		return 0, s.soldErr
	}
	if s.sold > 0 {
		s.marked = true
	}
	return s.sold, nil
}

type stubFactory struct {
	order *models.Order
	err   error
	calls int
}

func (s *stubFactory) CreateFromOffer(ctx context.Context, tx *gorm.DB, input orders.CreateFromOfferInput) (*models.Order, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.order != nil {
		return s.order, nil
	}
	return &models.Order{ID: uuid.New(), OfferID: input.Offer.ID}, nil
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

func newOfferService(t *testing.T, repo *stubOfferRepo, adsRepo *stubAdsRepo, factory *stubFactory, out *stubOutbox, notif *stubNotifier) Service {
	t.Helper()
	svc, err := NewService(repo, adsRepo, factory, stubTxRunner{}, out, notif, testLogger())
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func TestService_CreateOffer(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	ad := &models.Ad{ID: uuid.New(), UserID: sellerID, Status: enums.AdStatusActive, Quantity: 10}
	repo := &stubOfferRepo{}
	out := &stubOutbox{}
	notif := &stubNotifier{}
	svc := newOfferService(t, repo, &stubAdsRepo{ad: ad}, &stubFactory{}, out, notif)

	offer, err := svc.Create(context.Background(), CreateOfferInput{
		BuyerID:      buyerID,
		ActorRole:    "user",
		AdID:         ad.ID,
		PriceOffered: decimal.NewFromInt(100),
		Quantity:     2,
	})
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if offer.Status != enums.OfferStatusPending {
		t.Fatalf("expected pending status, got %s", offer.Status)
	}
	if offer.SellerID != sellerID {
		t.Fatalf("expected seller snapshot from ad")
	}
	if len(out.events) != 1 || out.events[0].EventType != enums.EventOfferCreated {
		t.Fatalf("expected offer_created event, got %+v", out.events)
	}
	if len(notif.sent) != 1 || notif.sent[0].UserID != sellerID {
		t.Fatalf("expected seller notification")
	}
}

func TestService_CreateOfferOnOwnAd(t *testing.T) {
	sellerID := uuid.New()
	ad := &models.Ad{ID: uuid.New(), UserID: sellerID, Status: enums.AdStatusActive, Quantity: 5}
	svc := newOfferService(t, &stubOfferRepo{}, &stubAdsRepo{ad: ad}, &stubFactory{}, &stubOutbox{}, &stubNotifier{})

	_, err := svc.Create(context.Background(), CreateOfferInput{
		BuyerID:      sellerID,
		AdID:         ad.ID,
		PriceOffered: decimal.NewFromInt(50),
		Quantity:     1,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestService_CreateOfferInactiveAd(t *testing.T) {
	ad := &models.Ad{ID: uuid.New(), UserID: uuid.New(), Status: enums.AdStatusSold, Quantity: 5}
	svc := newOfferService(t, &stubOfferRepo{}, &stubAdsRepo{ad: ad}, &stubFactory{}, &stubOutbox{}, &stubNotifier{})

	_, err := svc.Create(context.Background(), CreateOfferInput{
		BuyerID:      uuid.New(),
		AdID:         ad.ID,
		PriceOffered: decimal.NewFromInt(50),
		Quantity:     1,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestService_CreateOfferDuplicatePending(t *testing.T) {
	ad := &models.Ad{ID: uuid.New(), UserID: uuid.New(), Status: enums.AdStatusActive, Quantity: 5}
	svc := newOfferService(t, &stubOfferRepo{hasPending: true}, &stubAdsRepo{ad: ad}, &stubFactory{}, &stubOutbox{}, &stubNotifier{})

	_, err := svc.Create(context.Background(), CreateOfferInput{
		BuyerID:      uuid.New(),
		AdID:         ad.ID,
		PriceOffered: decimal.NewFromInt(50),
		Quantity:     1,
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestService_AcceptOffer(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	ad := &models.Ad{ID: uuid.New(), UserID: sellerID, Status: enums.AdStatusActive, Quantity: 5}
	offer := &models.Offer{
		ID:           uuid.New(),
		AdID:         ad.ID,
		BuyerID:      buyerID,
		SellerID:     sellerID,
		PriceOffered: decimal.NewFromInt(100),
		Quantity:     2,
		Status:       enums.OfferStatusPending,
	}
	repo := &stubOfferRepo{offer: offer}
	adsRepo := &stubAdsRepo{ad: ad, sold: 1}
	factory := &stubFactory{}
	out := &stubOutbox{}
	svc := newOfferService(t, repo, adsRepo, factory, out, &stubNotifier{})

	response := "deal"
	result, err := svc.Accept(context.Background(), DecisionInput{
		OfferID:        offer.ID,
		ActorUserID:    sellerID,
		ActorRole:      "user",
		SellerResponse: &response,
	})
	if err != nil {
		t.Fatalf("accept offer: %v", err)
	}
	if result.Offer.Status != enums.OfferStatusAccepted {
		t.Fatalf("expected accepted status, got %s", result.Offer.Status)
	}
	if result.Order == nil {
		t.Fatalf("expected order created with acceptance")
	}
	if !adsRepo.marked {
		t.Fatalf("expected ad marked sold")
	}
	if factory.calls != 1 {
		t.Fatalf("expected factory invoked once, got %d", factory.calls)
	}
	if len(out.events) != 1 || out.events[0].EventType != enums.EventOfferAccepted {
		t.Fatalf("expected offer_accepted event")
	}
}

func TestService_AcceptOfferNotSeller(t *testing.T) {
	offer := &models.Offer{ID: uuid.New(), AdID: uuid.New(), BuyerID: uuid.New(), SellerID: uuid.New(), Status: enums.OfferStatusPending}
	svc := newOfferService(t, &stubOfferRepo{offer: offer}, &stubAdsRepo{}, &stubFactory{}, &stubOutbox{}, &stubNotifier{})

	_, err := svc.Accept(context.Background(), DecisionInput{OfferID: offer.ID, ActorUserID: uuid.New()})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestService_AcceptOfferLostRace(t *testing.T) {
	sellerID := uuid.New()
	ad := &models.Ad{ID: uuid.New(), UserID: sellerID, Status: enums.AdStatusActive}
	offer := &models.Offer{ID: uuid.New(), AdID: ad.ID, BuyerID: uuid.New(), SellerID: sellerID, Status: enums.OfferStatusPending}
	repo := &stubOfferRepo{
		offer: offer,
		updateStatus: func(id uuid.UUID, from, to enums.OfferStatus, updates map[string]any) (int64, error) {
			return 0, nil
		},
	}
	svc := newOfferService(t, repo, &stubAdsRepo{ad: ad, sold: 1}, &stubFactory{}, &stubOutbox{}, &stubNotifier{})

	_, err := svc.Accept(context.Background(), DecisionInput{OfferID: offer.ID, ActorUserID: sellerID})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestService_AcceptOfferAdAlreadySold(t *testing.T) {
	sellerID := uuid.New()
	ad := &models.Ad{ID: uuid.New(), UserID: sellerID, Status: enums.AdStatusActive}
	offer := &models.Offer{ID: uuid.New(), AdID: ad.ID, BuyerID: uuid.New(), SellerID: sellerID, Status: enums.OfferStatusPending}
	svc := newOfferService(t, &stubOfferRepo{offer: offer}, &stubAdsRepo{ad: ad, sold: 0}, &stubFactory{}, &stubOutbox{}, &stubNotifier{})

	_, err := svc.Accept(context.Background(), DecisionInput{OfferID: offer.ID, ActorUserID: sellerID})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestService_RejectOfferNotifiesBuyer(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	offer := &models.Offer{ID: uuid.New(), AdID: uuid.New(), BuyerID: buyerID, SellerID: sellerID, Status: enums.OfferStatusPending}
	out := &stubOutbox{}
	notif := &stubNotifier{}
	svc := newOfferService(t, &stubOfferRepo{offer: offer}, &stubAdsRepo{}, &stubFactory{}, out, notif)

	rejected, err := svc.Reject(context.Background(), DecisionInput{OfferID: offer.ID, ActorUserID: sellerID})
	if err != nil {
		t.Fatalf("reject offer: %v", err)
	}
	if rejected.Status != enums.OfferStatusRejected {
		t.Fatalf("expected rejected status")
	}
	if len(notif.sent) != 1 || notif.sent[0].UserID != buyerID {
		t.Fatalf("expected buyer notification")
	}
	if len(out.events) != 1 || out.events[0].EventType != enums.EventOfferRejected {
		t.Fatalf("expected offer_rejected event")
	}
}

func TestService_CancelOfferBuyerOnly(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	offer := &models.Offer{ID: uuid.New(), AdID: uuid.New(), BuyerID: buyerID, SellerID: sellerID, Status: enums.OfferStatusPending}
	svc := newOfferService(t, &stubOfferRepo{offer: offer}, &stubAdsRepo{}, &stubFactory{}, &stubOutbox{}, &stubNotifier{})

	if _, err := svc.Cancel(context.Background(), DecisionInput{OfferID: offer.ID, ActorUserID: sellerID}); err == nil {
		t.Fatalf("expected seller cancel rejected")
	}

	cancelled, err := svc.Cancel(context.Background(), DecisionInput{OfferID: offer.ID, ActorUserID: buyerID})
	if err != nil {
		t.Fatalf("cancel offer: %v", err)
	}
	if cancelled.Status != enums.OfferStatusCancelled {
		t.Fatalf("expected cancelled status")
	}
}

func TestService_ExpirePending(t *testing.T) {
	stale := []models.Offer{
		{ID: uuid.New(), AdID: uuid.New(), BuyerID: uuid.New(), SellerID: uuid.New(), Status: enums.OfferStatusPending},
		{ID: uuid.New(), AdID: uuid.New(), BuyerID: uuid.New(), SellerID: uuid.New(), Status: enums.OfferStatusPending},
	}
	repo := &stubOfferRepo{expired: stale}
	out := &stubOutbox{}
	svc := newOfferService(t, repo, &stubAdsRepo{}, &stubFactory{}, out, &stubNotifier{})

	count, err := svc.ExpirePending(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("expire pending: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 expired, got %d", count)
	}
	if len(out.events) != 2 {
		t.Fatalf("expected 2 expiry events, got %d", len(out.events))
	}
}

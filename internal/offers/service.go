package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/internal/ads"
	"github.com/alifmarket/marketplace-backend/internal/notifications"
	"github.com/alifmarket/marketplace-backend/internal/orders"
	dbpkg "github.com/alifmarket/marketplace-backend/pkg/db"
	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/outbox"
	"github.com/alifmarket/marketplace-backend/pkg/pagination"
)

const pendingOfferIndex = "ux_offers_pending_per_ad_buyer"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderFactory builds the order for an accepted offer inside the
// acceptance transaction.
type orderFactory interface {
	CreateFromOffer(ctx context.Context, tx *gorm.DB, input orders.CreateFromOfferInput) (*models.Order, error)
}

// Service owns the offer negotiation lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateOfferInput) (*models.Offer, error)
	Get(ctx context.Context, userID uuid.UUID, role enums.Role, offerID uuid.UUID) (*models.Offer, error)
	List(ctx context.Context, input ListOffersInput) (*ListResult, error)
	Accept(ctx context.Context, input DecisionInput) (*AcceptResult, error)
	Reject(ctx context.Context, input DecisionInput) (*models.Offer, error)
	Cancel(ctx context.Context, input DecisionInput) (*models.Offer, error)
	// ExpirePending flips pending offers past their expiry and returns
	// how many were expired.
	ExpirePending(ctx context.Context, now time.Time) (int, error)
}

type service struct {
	repo     Repository
	ads      ads.Repository
	factory  orderFactory
	tx       txRunner
	outbox   outboxPublisher
	notifier notifications.Notifier
	logg     *logger.Logger
}

// NewService wires the offer service dependencies.
func NewService(
	repo Repository,
	adsRepo ads.Repository,
	factory orderFactory,
	tx txRunner,
	outboxPub outboxPublisher,
	notifier notifications.Notifier,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	if adsRepo == nil {
		return nil, fmt.Errorf("ads repository required")
	}
	if factory == nil {
		return nil, fmt.Errorf("order factory required")
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
		repo:     repo,
		ads:      adsRepo,
		factory:  factory,
		tx:       tx,
		outbox:   outboxPub,
		notifier: notifier,
		logg:     logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOfferInput) (*models.Offer, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.AdID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ad id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if !input.PriceOffered.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	ad, err := s.ads.FindByID(ctx, input.AdID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ad not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ad")
	}
	if ad.Status != enums.AdStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ad is not active")
	}
	if ad.UserID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot make an offer on your own ad")
	}
	if input.Quantity > ad.Quantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds available stock")
	}

	pending, err := s.repo.HasPending(ctx, ad.ID, input.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending offers")
	}
	if pending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a pending offer already exists for this ad")
	}

	offer := &models.Offer{
		AdID:         ad.ID,
		BuyerID:      input.BuyerID,
		SellerID:     ad.UserID,
		PriceOffered: input.PriceOffered.Round(2),
		Quantity:     input.Quantity,
		Message:      input.Message,
		Status:       enums.OfferStatusPending,
		ExpiresAt:    input.ExpiresAt,
	}

	var created *models.Offer
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.Create(ctx, offer)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, pendingOfferIndex) {
				return pkgerrors.New(pkgerrors.CodeConflict, "a pending offer already exists for this ad")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOfferCreated,
			AggregateType: enums.AggregateOffer,
			AggregateID:   row.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: input.ActorRole},
			Data: OfferCreatedEvent{
				OfferID:      row.ID,
				AdID:         row.AdID,
				BuyerID:      row.BuyerID,
				SellerID:     row.SellerID,
				PriceOffered: row.PriceOffered.StringFixed(2),
				Quantity:     row.Quantity,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			UserID:  row.SellerID,
			Type:    enums.NotificationTypeOffer,
			Title:   "New offer received",
			Message: fmt.Sprintf("You received an offer of %s for %d units.", row.PriceOffered.StringFixed(2), row.Quantity),
		})
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, role enums.Role, offerID uuid.UUID) (*models.Offer, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if offerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}

	offer, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	if offer.BuyerID != userID && offer.SellerID != userID && role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "offer does not belong to user")
	}
	return offer, nil
}

func (s *service) List(ctx context.Context, input ListOffersInput) (*ListResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	params := listOffersParams{
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}

	result := &ListResult{Items: rows}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) Accept(ctx context.Context, input DecisionInput) (*AcceptResult, error) {
	if err := validateDecision(input); err != nil {
		return nil, err
	}

	var result *AcceptResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, err := loadOffer(ctx, repo, input.OfferID)
		if err != nil {
			return err
		}
		if offer.SellerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can accept an offer")
		}

		ad, err := s.ads.WithTx(tx).FindByID(ctx, offer.AdID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ad not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ad")
		}

		now := time.Now().UTC()
		updates := map[string]any{"accepted_at": now}
		if input.SellerResponse != nil {
			updates["seller_response"] = *input.SellerResponse
		}
		affected, err := repo.UpdateStatusIf(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusAccepted, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept offer")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "offer already processed")
		}

		sold, err := s.ads.WithTx(tx).MarkSoldIf(ctx, ad.ID, enums.AdStatusActive)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark ad sold")
		}
		if sold == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "ad is no longer available")
		}

		offer.Status = enums.OfferStatusAccepted
		offer.AcceptedAt = &now
		offer.SellerResponse = input.SellerResponse

		order, err := s.factory.CreateFromOffer(ctx, tx, orders.CreateFromOfferInput{
			Offer: offer,
			Ad:    ad,
			Actor: &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
		})
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOfferAccepted,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offer.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: OfferDecisionEvent{
				OfferID:  offer.ID,
				AdID:     offer.AdID,
				BuyerID:  offer.BuyerID,
				SellerID: offer.SellerID,
				Status:   enums.OfferStatusAccepted,
				OrderID:  &order.ID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		result = &AcceptResult{Offer: offer, Order: order}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Reject(ctx context.Context, input DecisionInput) (*models.Offer, error) {
	if err := validateDecision(input); err != nil {
		return nil, err
	}

	var rejected *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, err := loadOffer(ctx, repo, input.OfferID)
		if err != nil {
			return err
		}
		if offer.SellerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can reject an offer")
		}

		now := time.Now().UTC()
		updates := map[string]any{"rejected_at": now}
		if input.SellerResponse != nil {
			updates["seller_response"] = *input.SellerResponse
		}
		affected, err := repo.UpdateStatusIf(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusRejected, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject offer")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "offer already processed")
		}

		offer.Status = enums.OfferStatusRejected
		offer.RejectedAt = &now
		offer.SellerResponse = input.SellerResponse

		event := outbox.DomainEvent{
			EventType:     enums.EventOfferRejected,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offer.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: OfferDecisionEvent{
				OfferID:  offer.ID,
				AdID:     offer.AdID,
				BuyerID:  offer.BuyerID,
				SellerID: offer.SellerID,
				Status:   enums.OfferStatusRejected,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			UserID:  offer.BuyerID,
			Type:    enums.NotificationTypeOffer,
			Title:   "Offer declined",
			Message: "The seller declined your offer.",
		})
		rejected = offer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

func (s *service) Cancel(ctx context.Context, input DecisionInput) (*models.Offer, error) {
	if err := validateDecision(input); err != nil {
		return nil, err
	}

	var cancelled *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, err := loadOffer(ctx, repo, input.OfferID)
		if err != nil {
			return err
		}
		if offer.BuyerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can cancel an offer")
		}

		now := time.Now().UTC()
		affected, err := repo.UpdateStatusIf(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusCancelled, map[string]any{
			"cancelled_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel offer")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "offer can no longer be cancelled")
		}

		offer.Status = enums.OfferStatusCancelled
		offer.CancelledAt = &now

		event := outbox.DomainEvent{
			EventType:     enums.EventOfferCancelled,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offer.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: OfferDecisionEvent{
				OfferID:  offer.ID,
				AdID:     offer.AdID,
				BuyerID:  offer.BuyerID,
				SellerID: offer.SellerID,
				Status:   enums.OfferStatusCancelled,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			UserID:  offer.SellerID,
			Type:    enums.NotificationTypeOffer,
			Title:   "Offer withdrawn",
			Message: "The buyer withdrew their offer.",
		})
		cancelled = offer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *service) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.repo.FindExpiredPending(ctx, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired offers")
	}

	expired := 0
	for _, offer := range stale {
		offer := offer
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			affected, err := repo.UpdateStatusIf(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusExpired, nil)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire offer")
			}
			if affected == 0 {
				return nil
			}

			event := outbox.DomainEvent{
				EventType:     enums.EventOfferExpired,
				AggregateType: enums.AggregateOffer,
				AggregateID:   offer.ID,
				Version:       1,
				Data: OfferDecisionEvent{
					OfferID:  offer.ID,
					AdID:     offer.AdID,
					BuyerID:  offer.BuyerID,
					SellerID: offer.SellerID,
					Status:   enums.OfferStatusExpired,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}

			s.notifier.Notify(ctx, tx, notifications.NotifyInput{
				UserID:  offer.BuyerID,
				Type:    enums.NotificationTypeOffer,
				Title:   "Offer expired",
				Message: "Your offer expired before the seller responded.",
			})
			expired++
			return nil
		})
		if err != nil {
			logCtx := s.logg.WithField(ctx, "offer_id", offer.ID.String())
			s.logg.Error(logCtx, "offer.expire_failed", err)
		}
	}
	return expired, nil
}

func validateDecision(input DecisionInput) error {
	if input.OfferID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

func loadOffer(ctx context.Context, repo Repository, id uuid.UUID) (*models.Offer, error) {
	offer, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return offer, nil
}

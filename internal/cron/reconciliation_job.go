package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/metrics"
)

// acceptance and order creation share a transaction, so detections give
// in-flight work a short grace period before alerting
const orphanGracePeriod = 15 * time.Minute

const (
	inconsistencyOfferWithoutOrder  = "offer_without_order"
	inconsistencyUnverifiedTransfer = "unverified_transfer"
)

type orphanOfferReader interface {
	FindAcceptedWithoutOrder(ctx context.Context, cutoff time.Time) ([]models.Offer, error)
}

type unverifiedTransferReader interface {
	FindUnverifiedTransfersBefore(ctx context.Context, cutoff time.Time) ([]models.Payment, error)
}

// ReconciliationJobParams configure the inconsistency sweep.
type ReconciliationJobParams struct {
	Logger       *logger.Logger
	Offers       orphanOfferReader
	Payments     unverifiedTransferReader
	Metrics      *metrics.ReconciliationMetrics
	VerifyWindow time.Duration
}

// reconciliationJob surfaces cross-entity inconsistencies as metrics and
// logs. It never repairs state.
type reconciliationJob struct {
	logg         *logger.Logger
	offers       orphanOfferReader
	payments     unverifiedTransferReader
	metrics      *metrics.ReconciliationMetrics
	verifyWindow time.Duration
	now          func() time.Time
}

// NewReconciliationJob builds the inconsistency sweep job.
func NewReconciliationJob(params ReconciliationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offers reader required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments reader required")
	}
	if params.Metrics == nil {
		return nil, fmt.Errorf("metrics required")
	}
	if params.VerifyWindow <= 0 {
		return nil, fmt.Errorf("transfer verify window must be positive")
	}
	return &reconciliationJob{
		logg:         params.Logger,
		offers:       params.Offers,
		payments:     params.Payments,
		metrics:      params.Metrics,
		verifyWindow: params.VerifyWindow,
		now:          time.Now,
	}, nil
}

func (j *reconciliationJob) Name() string { return "reconciliation-sweep" }

func (j *reconciliationJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.sweepOrphanOffers(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.sweepUnverifiedTransfers(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *reconciliationJob) sweepOrphanOffers(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-orphanGracePeriod)
	orphans, err := j.offers.FindAcceptedWithoutOrder(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query accepted offers without order: %w", err)
	}
	j.metrics.SetInconsistencies(inconsistencyOfferWithoutOrder, float64(len(orphans)))
	for _, offer := range orphans {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"offer_id":  offer.ID.String(),
			"seller_id": offer.SellerID.String(),
		})
		j.logg.Warn(logCtx, "accepted offer has no order")
	}
	return nil
}

func (j *reconciliationJob) sweepUnverifiedTransfers(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.verifyWindow)
	stale, err := j.payments.FindUnverifiedTransfersBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query unverified transfers: %w", err)
	}
	j.metrics.SetInconsistencies(inconsistencyUnverifiedTransfer, float64(len(stale)))
	for _, payment := range stale {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"payment_id": payment.ID.String(),
			"order_id":   payment.OrderID.String(),
		})
		j.logg.Warn(logCtx, "transfer marked locally but never verified by stripe")
	}
	return nil
}

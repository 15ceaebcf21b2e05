package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/alifmarket/marketplace-backend/pkg/logger"
)

type pendingOfferExpirer interface {
	ExpirePending(ctx context.Context, now time.Time) (int, error)
}

// OfferExpiryJobParams configure the offer expiry job.
type OfferExpiryJobParams struct {
	Logger *logger.Logger
	Offers pendingOfferExpirer
}

type offerExpiryJob struct {
	logg   *logger.Logger
	offers pendingOfferExpirer
	now    func() time.Time
}

// NewOfferExpiryJob builds the job that expires pending offers past
// their expires_at.
func NewOfferExpiryJob(params OfferExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offers service required")
	}
	return &offerExpiryJob{
		logg:   params.Logger,
		offers: params.Offers,
		now:    time.Now,
	}, nil
}

func (j *offerExpiryJob) Name() string { return "offer-expiry" }

func (j *offerExpiryJob) Run(ctx context.Context) error {
	count, err := j.offers.ExpirePending(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("expire pending offers: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "count", count)
	j.logg.Info(logCtx, "pending offer expiry complete")
	return nil
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/metrics"
)

type unpaidOrderExpirer interface {
	ExpireUnpaid(ctx context.Context, cutoff time.Time) (int, error)
}

// OrderExpiryJobParams configure the unpaid order expiry job.
type OrderExpiryJobParams struct {
	Logger      *logger.Logger
	Orders      unpaidOrderExpirer
	Metrics     *metrics.ReconciliationMetrics
	UnpaidAfter time.Duration
}

type orderExpiryJob struct {
	logg        *logger.Logger
	orders      unpaidOrderExpirer
	metrics     *metrics.ReconciliationMetrics
	unpaidAfter time.Duration
	now         func() time.Time
}

// NewOrderExpiryJob builds the job that cancels orders stuck in
// pending_payment past the configured deadline.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.UnpaidAfter <= 0 {
		return nil, fmt.Errorf("unpaid expiry window must be positive")
	}
	return &orderExpiryJob{
		logg:        params.Logger,
		orders:      params.Orders,
		metrics:     params.Metrics,
		unpaidAfter: params.UnpaidAfter,
		now:         time.Now,
	}, nil
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.unpaidAfter)
	count, err := j.orders.ExpireUnpaid(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire unpaid orders: %w", err)
	}
	if j.metrics != nil {
		j.metrics.AddExpiredOrders(count)
	}
	logCtx := j.logg.WithField(ctx, "count", count)
	j.logg.Info(logCtx, "unpaid order expiry complete")
	return nil
}

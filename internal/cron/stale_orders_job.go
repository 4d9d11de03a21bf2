package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/payflow-backend/internal/ledger"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

const (
	defaultStaleOrderWindow = 30 * time.Minute
	staleOrderBatchSize     = 500
)

type staleOrderCanceller interface {
	CancelStaleOrders(ctx context.Context, filter ledger.StaleOrderFilter) (int, error)
}

// StaleOrdersJobParams configure the stale pending order cleanup.
type StaleOrdersJobParams struct {
	Logger    *logger.Logger
	Orders    staleOrderCanceller
	Window    time.Duration
	BatchSize int
}

// NewStaleOrdersJob cancels orders that stayed pending past the window
// together with their unpaid items.
func NewStaleOrdersJob(params StaleOrdersJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultStaleOrderWindow
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = staleOrderBatchSize
	}
	return &staleOrdersJob{
		logg:   params.Logger,
		orders: params.Orders,
		window: window,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type staleOrdersJob struct {
	logg   *logger.Logger
	orders staleOrderCanceller
	window time.Duration
	batch  int
	now    func() time.Time
}

func (j *staleOrdersJob) Name() string { return "stale-orders" }

func (j *staleOrdersJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	cancelled, err := j.orders.CancelStaleOrders(ctx, ledger.StaleOrderFilter{
		Cutoff: cutoff,
		Limit:  j.batch,
	})
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"cancelled": cancelled,
	})
	if err != nil {
		return fmt.Errorf("stale orders: %w", err)
	}
	j.logg.Info(logCtx, "stale order cleanup complete")
	return nil
}

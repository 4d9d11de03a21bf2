package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/payflow-backend/internal/ledger"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

type fakeStaleCanceller struct {
	filters   []ledger.StaleOrderFilter
	cancelled int
	err       error
}

func (f *fakeStaleCanceller) CancelStaleOrders(_ context.Context, filter ledger.StaleOrderFilter) (int, error) {
	f.filters = append(f.filters, filter)
	return f.cancelled, f.err
}

func TestStaleOrdersJobUsesWindowCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orders := &fakeStaleCanceller{cancelled: 3}
	jobIface, err := NewStaleOrdersJob(StaleOrdersJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Orders: orders,
	})
	if err != nil {
		t.Fatalf("NewStaleOrdersJob: %v", err)
	}
	job := jobIface.(*staleOrdersJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(orders.filters) != 1 {
		t.Fatalf("expected one call, got %d", len(orders.filters))
	}
	filter := orders.filters[0]
	if want := now.Add(-30 * time.Minute); !filter.Cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, filter.Cutoff)
	}
	if filter.BuyerID != nil || filter.ProductID != nil {
		t.Fatalf("expected unscoped filter, got %+v", filter)
	}
	if filter.Limit != staleOrderBatchSize {
		t.Fatalf("expected limit %d, got %d", staleOrderBatchSize, filter.Limit)
	}
}

func TestStaleOrdersJobPropagatesErrors(t *testing.T) {
	job, err := NewStaleOrdersJob(StaleOrdersJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Orders: &fakeStaleCanceller{err: errors.New("boom")},
		Window: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewStaleOrdersJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/disbursements"
	"github.com/angelmondragon/payflow-backend/internal/ledger"
	"github.com/angelmondragon/payflow-backend/internal/ledger/ledgertest"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

type stubDisburser struct {
	calls      []uuid.UUID
	initiateFn func(itemID uuid.UUID) error
}

func (s *stubDisburser) Initiate(_ context.Context, itemID uuid.UUID) (*disbursements.Result, error) {
	s.calls = append(s.calls, itemID)
	if s.initiateFn != nil {
		if err := s.initiateFn(itemID); err != nil {
			return nil, err
		}
	}
	return &disbursements.Result{OrderItemID: itemID}, nil
}

func newSweeper(t *testing.T, gdb *gorm.DB, d Disburser) (*sweeper, *[]time.Duration) {
	t.Helper()
	sw, err := New(ledger.NewRepository(gdb), d, nil, Config{BatchSize: 10, Pacing: 2 * time.Second, RetryWindow: 7 * 24 * time.Hour})
	require.NoError(t, err)
	impl := sw.(*sweeper)
	var slept []time.Duration
	impl.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return impl, &slept
}

func deliveredItem(t *testing.T, gdb *gorm.DB, status enums.DisbursementStatus) models.OrderItem {
	t.Helper()
	item := ledgertest.Item(enums.FulfillmentStatusDelivered)
	item.DisbursementStatus = status
	order := ledgertest.SeedOrder(t, gdb, enums.CollectionStatusCompleted, item)
	return order.Items[0]
}

func TestSweepDispatchesUnpaidDeliveredItems(t *testing.T) {
	gdb := ledgertest.Open(t)
	first := deliveredItem(t, gdb, enums.DisbursementStatusNone)
	second := deliveredItem(t, gdb, enums.DisbursementStatusPending)
	deliveredItem(t, gdb, enums.DisbursementStatusCompleted)
	deliveredItem(t, gdb, enums.DisbursementStatusFailed)
	ledgertest.SeedOrder(t, gdb, enums.CollectionStatusCompleted, ledgertest.Item(enums.FulfillmentStatusShipped))

	d := &stubDisburser{initiateFn: func(id uuid.UUID) error {
		if id == second.ID {
			return disbursements.ErrAlreadyProcessed
		}
		return nil
	}}
	sw, slept := newSweeper(t, gdb, d)

	report, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 1, report.Initiated)
	assert.Equal(t, 1, report.Skipped)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, d.calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept, "pacing between dispatches only")
}

func TestSweepReportsFailures(t *testing.T) {
	gdb := ledgertest.Open(t)
	deliveredItem(t, gdb, enums.DisbursementStatusNone)

	d := &stubDisburser{initiateFn: func(uuid.UUID) error { return errors.New("gateway down") }}
	sw, _ := newSweeper(t, gdb, d)

	report, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, OutcomeFailed, report.Entries[0].Outcome)
}

func seedFailedAttempt(t *testing.T, gdb *gorm.DB, age time.Duration, status enums.PayoutStatus) models.OrderItem {
	t.Helper()
	item := deliveredItem(t, gdb, enums.DisbursementStatusFailed)
	attempt := &models.Disbursement{
		OrderItemID:              item.ID,
		OrderID:                  item.OrderID,
		SellerID:                 item.SellerID,
		OriginatorConversationID: "PAYOUT-" + uuid.NewString(),
		Status:                   status,
	}
	require.NoError(t, gdb.Create(attempt).Error)
	require.NoError(t, gdb.Model(&models.Disbursement{}).Where("id = ?", attempt.ID).
		Update("created_at", time.Now().UTC().Add(-age)).Error)
	return item
}

func TestRetryRespectsWindow(t *testing.T) {
	gdb := ledgertest.Open(t)
	old := seedFailedAttempt(t, gdb, 8*24*time.Hour, enums.PayoutStatusFailed)
	recent := seedFailedAttempt(t, gdb, time.Hour, enums.PayoutStatusTimeout)
	other := seedFailedAttempt(t, gdb, 2*time.Hour, enums.PayoutStatusFailed)

	d := &stubDisburser{}
	sw, slept := newSweeper(t, gdb, d)

	report, err := sw.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 1, report.TooOld)
	assert.Equal(t, 2, report.Initiated)
	assert.Equal(t, []uuid.UUID{other.ID, recent.ID}, d.calls, "oldest first")
	assert.Len(t, *slept, 1)

	require.Equal(t, old.ID, report.Entries[0].OrderItemID)
	assert.Equal(t, "too old to retry", report.Entries[0].Message)
}

func TestRetryIsNotStarvedByExpiredItems(t *testing.T) {
	gdb := ledgertest.Open(t)
	for i := 0; i < 3; i++ {
		seedFailedAttempt(t, gdb, time.Duration(10+i)*24*time.Hour, enums.PayoutStatusFailed)
	}
	recent := seedFailedAttempt(t, gdb, time.Hour, enums.PayoutStatusFailed)

	d := &stubDisburser{}
	sw, _ := newSweeper(t, gdb, d)
	sw.cfg.BatchSize = 2

	for pass := 0; pass < 2; pass++ {
		report, err := sw.Retry(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, report.TooOld, "expired items are reported in their own batch")
		assert.Equal(t, 1, report.Initiated)
	}
	assert.Equal(t, []uuid.UUID{recent.ID, recent.ID}, d.calls)
}

func TestRetryStopsWhenCancelled(t *testing.T) {
	gdb := ledgertest.Open(t)
	seedFailedAttempt(t, gdb, time.Hour, enums.PayoutStatusFailed)
	seedFailedAttempt(t, gdb, 2*time.Hour, enums.PayoutStatusFailed)

	d := &stubDisburser{}
	sw, _ := newSweeper(t, gdb, d)
	sw.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	report, err := sw.Retry(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Initiated)
	assert.Len(t, d.calls, 1)
}

package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/internal/disbursements"
	"github.com/angelmondragon/payflow-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

// Outcome is what happened to one item during a pass.
type Outcome string

const (
	OutcomeInitiated Outcome = "initiated"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeTooOld    Outcome = "too_old"
)

// Entry is the per-item line of a Report.
type Entry struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
	Outcome     Outcome   `json:"outcome"`
	Message     string    `json:"message,omitempty"`
}

// Report summarizes one sweep or retry pass.
type Report struct {
	Pass       string    `json:"pass"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Candidates int       `json:"candidates"`
	Initiated  int       `json:"initiated"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	TooOld     int       `json:"too_old"`
	Entries    []Entry   `json:"entries"`
}

func (r *Report) add(e Entry) {
	r.Entries = append(r.Entries, e)
	switch e.Outcome {
	case OutcomeInitiated:
		r.Initiated++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	case OutcomeTooOld:
		r.TooOld++
	}
}

// Disburser starts a seller payout for a delivered item.
type Disburser interface {
	Initiate(ctx context.Context, orderItemID uuid.UUID) (*disbursements.Result, error)
}

// Sweeper finds payouts that never started or did not finish and dispatches them again.
type Sweeper interface {
	Sweep(ctx context.Context) (*Report, error)
	Retry(ctx context.Context) (*Report, error)
}

// Config bounds a pass.
type Config struct {
	BatchSize   int
	Pacing      time.Duration
	RetryWindow time.Duration
}

type sweeper struct {
	repo      ledger.Repository
	disburser Disburser
	logg      *logger.Logger
	cfg       Config
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// New builds a sweeper over the ledger.
func New(repo ledger.Repository, disburser Disburser, logg *logger.Logger, cfg Config) (Sweeper, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if disburser == nil {
		return nil, fmt.Errorf("disburser required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryWindow <= 0 {
		cfg.RetryWindow = 7 * 24 * time.Hour
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &sweeper{
		repo:      repo,
		disburser: disburser,
		logg:      logg,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepContext,
	}, nil
}

func (s *sweeper) Sweep(ctx context.Context) (*Report, error) {
	report := &Report{Pass: "sweep", StartedAt: s.now()}
	items, err := s.repo.ListSweepCandidates(ctx, s.cfg.BatchSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sweep candidates")
	}
	report.Candidates = len(items)

	for i, item := range items {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.Pacing); err != nil {
				return s.finish(ctx, report), err
			}
		}
		report.add(s.dispatch(ctx, item.ID))
	}
	return s.finish(ctx, report), nil
}

// Retry re-dispatches failed payouts whose first attempt is inside the retry
// window. Items past the window are only reported, in a separately bounded
// batch, so they never crowd out retryable ones.
func (s *sweeper) Retry(ctx context.Context) (*Report, error) {
	report := &Report{Pass: "retry", StartedAt: s.now()}
	cutoff := s.now().Add(-s.cfg.RetryWindow)

	expired, err := s.repo.ListRetryCandidates(ctx, ledger.RetryFilter{Before: cutoff, Limit: s.cfg.BatchSize})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired retries")
	}
	attempts, err := s.repo.ListRetryCandidates(ctx, ledger.RetryFilter{Since: cutoff, Limit: s.cfg.BatchSize})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list retry candidates")
	}
	report.Candidates = len(expired) + len(attempts)

	for _, attempt := range expired {
		report.add(Entry{OrderItemID: attempt.OrderItemID, Outcome: OutcomeTooOld, Message: "too old to retry"})
	}
	for i, attempt := range attempts {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.Pacing); err != nil {
				return s.finish(ctx, report), err
			}
		}
		report.add(s.dispatch(ctx, attempt.OrderItemID))
	}
	return s.finish(ctx, report), nil
}

func (s *sweeper) dispatch(ctx context.Context, itemID uuid.UUID) Entry {
	_, err := s.disburser.Initiate(ctx, itemID)
	switch {
	case err == nil:
		return Entry{OrderItemID: itemID, Outcome: OutcomeInitiated}
	case errors.Is(err, disbursements.ErrAlreadyProcessed),
		errors.Is(err, disbursements.ErrNotYetPaid),
		errors.Is(err, disbursements.ErrNotDelivered):
		return Entry{OrderItemID: itemID, Outcome: OutcomeSkipped, Message: err.Error()}
	default:
		s.logg.Error(s.logg.WithOrderItemID(ctx, itemID.String()), "sweeper payout failed", err)
		return Entry{OrderItemID: itemID, Outcome: OutcomeFailed, Message: err.Error()}
	}
}

func (s *sweeper) finish(ctx context.Context, report *Report) *Report {
	report.FinishedAt = s.now()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"pass":       report.Pass,
		"candidates": report.Candidates,
		"initiated":  report.Initiated,
		"skipped":    report.Skipped,
		"failed":     report.Failed,
		"too_old":    report.TooOld,
	}), "disbursement pass finished")
	return report
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

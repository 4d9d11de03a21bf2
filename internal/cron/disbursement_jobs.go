package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/payflow-backend/internal/sweeper"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

// DisbursementJobParams configure the sweep and retry jobs.
type DisbursementJobParams struct {
	Logger  *logger.Logger
	Sweeper sweeper.Sweeper
}

type sweepPass func(ctx context.Context) (*sweeper.Report, error)

type disbursementJob struct {
	name string
	logg *logger.Logger
	pass sweepPass
}

// NewDisbursementSweepJob dispatches payouts for delivered or confirmed items
// that never started one.
func NewDisbursementSweepJob(params DisbursementJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &disbursementJob{name: "disbursement-sweep", logg: params.Logger, pass: params.Sweeper.Sweep}, nil
}

// NewDisbursementRetryJob re-dispatches failed and timed-out payouts still
// inside the retry window.
func NewDisbursementRetryJob(params DisbursementJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &disbursementJob{name: "disbursement-retry", logg: params.Logger, pass: params.Sweeper.Retry}, nil
}

func (p DisbursementJobParams) validate() error {
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if p.Sweeper == nil {
		return fmt.Errorf("sweeper required")
	}
	return nil
}

func (j *disbursementJob) Name() string { return j.name }

func (j *disbursementJob) Run(ctx context.Context) error {
	report, err := j.pass(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": report.Candidates,
		"initiated":  report.Initiated,
		"skipped":    report.Skipped,
		"failed":     report.Failed,
		"too_old":    report.TooOld,
	}), "disbursement job finished")
	return nil
}

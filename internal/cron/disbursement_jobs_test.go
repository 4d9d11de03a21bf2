package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/payflow-backend/internal/sweeper"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

type fakeSweeper struct {
	sweeps  int
	retries int
	err     error
}

func (f *fakeSweeper) Sweep(context.Context) (*sweeper.Report, error) {
	f.sweeps++
	if f.err != nil {
		return nil, f.err
	}
	return &sweeper.Report{Pass: "sweep", Candidates: 2, Initiated: 2}, nil
}

func (f *fakeSweeper) Retry(context.Context) (*sweeper.Report, error) {
	f.retries++
	if f.err != nil {
		return nil, f.err
	}
	return &sweeper.Report{Pass: "retry", Candidates: 1, TooOld: 1}, nil
}

func TestDisbursementJobsDispatchToSweeper(t *testing.T) {
	sw := &fakeSweeper{}
	params := DisbursementJobParams{Logger: logger.New(logger.Options{ServiceName: "test"}), Sweeper: sw}

	sweep, err := NewDisbursementSweepJob(params)
	if err != nil {
		t.Fatalf("sweep job: %v", err)
	}
	retry, err := NewDisbursementRetryJob(params)
	if err != nil {
		t.Fatalf("retry job: %v", err)
	}
	if sweep.Name() != "disbursement-sweep" || retry.Name() != "disbursement-retry" {
		t.Fatalf("unexpected names %q %q", sweep.Name(), retry.Name())
	}

	if err := sweep.Run(context.Background()); err != nil {
		t.Fatalf("sweep run: %v", err)
	}
	if err := retry.Run(context.Background()); err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if sw.sweeps != 1 || sw.retries != 1 {
		t.Fatalf("expected one sweep and one retry, got %d/%d", sw.sweeps, sw.retries)
	}
}

func TestDisbursementJobPropagatesErrors(t *testing.T) {
	sw := &fakeSweeper{err: errors.New("db down")}
	job, err := NewDisbursementSweepJob(DisbursementJobParams{Logger: logger.New(logger.Options{ServiceName: "test"}), Sweeper: sw})
	if err != nil {
		t.Fatalf("sweep job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestDisbursementJobRequiresSweeper(t *testing.T) {
	if _, err := NewDisbursementRetryJob(DisbursementJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})}); err == nil {
		t.Fatal("expected error without sweeper")
	}
}

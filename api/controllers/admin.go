package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/payflow-backend/api/responses"
	"github.com/angelmondragon/payflow-backend/api/validators"
	"github.com/angelmondragon/payflow-backend/internal/disbursements"
	"github.com/angelmondragon/payflow-backend/internal/sweeper"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

// AdminSweep runs a sweep pass inline and returns its report.
func AdminSweep(svc sweeper.Sweeper, logg *logger.Logger) http.HandlerFunc {
	return runPass(svc, logg, "sweep", func(ctx context.Context) (*sweeper.Report, error) {
		return svc.Sweep(ctx)
	})
}

// AdminRetry retries failed payouts inside the retry window and returns the report.
func AdminRetry(svc sweeper.Sweeper, logg *logger.Logger) http.HandlerFunc {
	return runPass(svc, logg, "retry", func(ctx context.Context) (*sweeper.Report, error) {
		return svc.Retry(ctx)
	})
}

func runPass(svc sweeper.Sweeper, logg *logger.Logger, pass string, run func(context.Context) (*sweeper.Report, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sweeper unavailable"))
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "pass", pass)
			logg.Info(ctx, "admin.disbursement_pass.requested")
		}
		report, err := run(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// AdminDisburse starts a payout for a single delivered item.
func AdminDisburse(svc disbursements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disbursements service unavailable"))
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderItemID(ctx, itemID.String())
		}
		result, err := svc.Initiate(ctx, itemID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, result)
	}
}

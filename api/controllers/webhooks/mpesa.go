package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/mpesa"
)

// callback bodies are small; anything bigger is not from the gateway
const maxCallbackBytes = 64 << 10

const (
	kindSTK        = "stk"
	kindB2CResult  = "b2c-result"
	kindB2CTimeout = "b2c-timeout"
)

// CollectionCallbackHandler applies push payment results to the ledger.
type CollectionCallbackHandler interface {
	HandleCallback(ctx context.Context, cb mpesa.STKCallback) error
}

// DisbursementCallbackHandler applies payout results and timeouts to the ledger.
type DisbursementCallbackHandler interface {
	HandleResult(ctx context.Context, res mpesa.B2CResult) error
	HandleTimeout(ctx context.Context, res mpesa.B2CResult) error
}

type replayGuard interface {
	CheckAndMark(ctx context.Context, kind, correlationID string) (bool, error)
	Forget(ctx context.Context, kind, correlationID string) error
}

// MpesaSTK receives push payment results. The gateway always gets an Accepted
// ack; failures are logged and left for the ledger's own idempotency on redelivery.
func MpesaSTK(svc CollectionCallbackHandler, guard replayGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer writeAck(w)
		ctx := r.Context()

		var envelope mpesa.STKCallbackEnvelope
		if !decodeCallback(ctx, r, logg, kindSTK, &envelope) {
			return
		}
		if err := envelope.Validate(); err != nil {
			logWarn(ctx, logg, kindSTK, "webhook.malformed", err)
			return
		}

		cb := envelope.Body.STKCallback
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				logger.FieldCheckoutRequestID: cb.CheckoutRequestID,
				"result_code":                 int(cb.ResultCode),
			})
		}
		process(ctx, guard, logg, kindSTK, cb.CheckoutRequestID, func(ctx context.Context) error {
			return svc.HandleCallback(ctx, cb)
		})
	}
}

// MpesaB2CResult receives final payout results.
func MpesaB2CResult(svc DisbursementCallbackHandler, guard replayGuard, logg *logger.Logger) http.HandlerFunc {
	return b2cHandler(kindB2CResult, guard, logg, func(ctx context.Context, res mpesa.B2CResult) error {
		return svc.HandleResult(ctx, res)
	})
}

// MpesaB2CTimeout receives queue timeout notices for payouts.
func MpesaB2CTimeout(svc DisbursementCallbackHandler, guard replayGuard, logg *logger.Logger) http.HandlerFunc {
	return b2cHandler(kindB2CTimeout, guard, logg, func(ctx context.Context, res mpesa.B2CResult) error {
		return svc.HandleTimeout(ctx, res)
	})
}

func b2cHandler(kind string, guard replayGuard, logg *logger.Logger, handle func(context.Context, mpesa.B2CResult) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer writeAck(w)
		ctx := r.Context()

		var envelope mpesa.B2CResultEnvelope
		if !decodeCallback(ctx, r, logg, kind, &envelope) {
			return
		}
		if err := envelope.Validate(); err != nil {
			logWarn(ctx, logg, kind, "webhook.malformed", err)
			return
		}

		res := envelope.Result
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				logger.FieldOriginatorID: res.OriginatorConversationID,
				"result_code":            int(res.ResultCode),
			})
		}
		process(ctx, guard, logg, kind, res.OriginatorConversationID, func(ctx context.Context) error {
			return handle(ctx, res)
		})
	}
}

func process(ctx context.Context, guard replayGuard, logg *logger.Logger, kind, correlationID string, handle func(context.Context) error) {
	marked := false
	if guard != nil {
		seen, err := guard.CheckAndMark(ctx, kind, correlationID)
		switch {
		case err != nil:
			// the ledger still rejects duplicates without the guard
			logWarn(ctx, logg, kind, "webhook.replay_guard_unavailable", err)
		case seen:
			if logg != nil {
				logg.Info(logg.WithField(ctx, "kind", kind), "webhook.replay_ignored")
			}
			return
		default:
			marked = true
		}
	}

	if err := handle(ctx); err != nil {
		if logg != nil {
			logg.Error(logg.WithField(ctx, "kind", kind), "webhook.handle_failed", err)
		}
		if marked {
			if forgetErr := guard.Forget(ctx, kind, correlationID); forgetErr != nil {
				logWarn(ctx, logg, kind, "webhook.replay_forget_failed", forgetErr)
			}
		}
		return
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "kind", kind), "webhook.processed")
	}
}

func decodeCallback(ctx context.Context, r *http.Request, logg *logger.Logger, kind string, dest any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		logWarn(ctx, logg, kind, "webhook.read_failed", err)
		return false
	}
	if err := json.Unmarshal(body, dest); err != nil {
		logWarn(ctx, logg, kind, "webhook.malformed", err)
		return false
	}
	return true
}

func logWarn(ctx context.Context, logg *logger.Logger, kind, msg string, err error) {
	if logg == nil {
		return
	}
	ctx = logg.WithFields(ctx, map[string]any{"kind": kind, "error": err.Error()})
	logg.Warn(ctx, msg)
}

func writeAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(mpesa.Accepted)
}

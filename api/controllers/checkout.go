package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/api/responses"
	"github.com/angelmondragon/payflow-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/payflow-backend/internal/checkout"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

// Checkout places an order for the calling buyer and pushes the payment prompt to their phone.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := actorIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		in := checkoutsvc.Input{
			BuyerID:          buyerID,
			Phone:            payload.Phone,
			DeliveryMethod:   enums.DeliveryMethod(payload.DeliveryMethod),
			DeliveryMetadata: payload.DeliveryMetadata,
			Items:            make([]checkoutsvc.LineInput, 0, len(payload.Items)),
		}
		for _, item := range payload.Items {
			in.Items = append(in.Items, checkoutsvc.LineInput{
				SellerID:  item.SellerID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "line_count", len(in.Items))
		}

		result, err := svc.PlaceOrder(ctx, in)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Payment == nil {
			// order exists but the buyer must retry payment
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

type checkoutRequest struct {
	Phone            string                `json:"phone" validate:"required,msisdn"`
	DeliveryMethod   string                `json:"delivery_method" validate:"omitempty,oneof=pickup courier seller_delivery"`
	DeliveryMetadata json.RawMessage       `json:"delivery_metadata,omitempty"`
	Items            []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

type checkoutItemRequest struct {
	SellerID  uuid.UUID       `json:"seller_id" validate:"required"`
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

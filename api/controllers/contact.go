package controllers

import (
	"net/http"

	"github.com/angelmondragon/payflow-backend/api/responses"
	"github.com/angelmondragon/payflow-backend/api/validators"
	"github.com/angelmondragon/payflow-backend/internal/contacts"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

type updateContactRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=120"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	PayoutPhone *string `json:"payout_phone,omitempty"`
}

// UpdateMyContact sets the caller's display name, email and payout phone.
func UpdateMyContact(dir contacts.Directory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dir == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contact directory unavailable"))
			return
		}
		userID, err := actorIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateContactRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.DisplayName == nil && payload.Email == nil && payload.PayoutPhone == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update"))
			return
		}
		if payload.DisplayName != nil {
			name := validators.SanitizeString(*payload.DisplayName, 120)
			payload.DisplayName = &name
		}

		contact, err := dir.Upsert(r.Context(), contacts.UpsertInput{
			UserID:      userID,
			DisplayName: payload.DisplayName,
			Email:       payload.Email,
			PayoutPhone: payload.PayoutPhone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contact)
	}
}

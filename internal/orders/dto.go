package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/internal/disbursements"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// FulfillmentInput is a seller moving one of their items forward.
type FulfillmentInput struct {
	ItemID   uuid.UUID
	SellerID uuid.UUID
	Target   enums.FulfillmentStatus
}

// ConfirmInput is a buyer confirming receipt, optionally with feedback.
type ConfirmInput struct {
	ItemID  uuid.UUID
	BuyerID uuid.UUID
	Rating  *int
	Review  *string
}

// CancelInput is a buyer or seller cancelling an item before it ships.
type CancelInput struct {
	ItemID  uuid.UUID
	ActorID uuid.UUID
}

// PaymentStatus summarizes what happened to the seller payout after a transition.
type PaymentStatus string

const (
	PaymentInitiated        PaymentStatus = "initiated"
	PaymentAlreadyProcessed PaymentStatus = "already_processed"
	PaymentNotYetPaid       PaymentStatus = "not_yet_paid"
	PaymentDisabled         PaymentStatus = "disabled"
	PaymentFailed           PaymentStatus = "failed"
)

// Payment is attached to a successful transition. It never turns the
// transition into a failure.
type Payment struct {
	Status       PaymentStatus         `json:"status"`
	Message      string                `json:"message"`
	Disbursement *disbursements.Result `json:"disbursement,omitempty"`
}

// TransitionResult is the item after the change plus the payout outcome, if any.
type TransitionResult struct {
	Item    *models.OrderItem `json:"item"`
	Payment *Payment          `json:"payment,omitempty"`
}

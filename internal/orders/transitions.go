package orders

import "github.com/angelmondragon/payflow-backend/pkg/enums"

var transitions = map[enums.FulfillmentStatus][]enums.FulfillmentStatus{
	enums.FulfillmentStatusPendingPayment: {enums.FulfillmentStatusProcessing, enums.FulfillmentStatusCancelled},
	enums.FulfillmentStatusProcessing:     {enums.FulfillmentStatusShipped, enums.FulfillmentStatusCancelled},
	enums.FulfillmentStatusShipped:        {enums.FulfillmentStatusDelivered},
}

// CanTransition reports whether an item may move from one fulfillment status to another.
func CanTransition(from, to enums.FulfillmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func sellerMayApply(to enums.FulfillmentStatus) bool {
	return to == enums.FulfillmentStatusShipped || to == enums.FulfillmentStatusDelivered
}

func cancellable(from enums.FulfillmentStatus) bool {
	return CanTransition(from, enums.FulfillmentStatusCancelled)
}

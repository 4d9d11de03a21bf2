package enums

import "fmt"

// FulfillmentStatus tracks the physical progress of an order item.
type FulfillmentStatus string

const (
	FulfillmentStatusPendingPayment FulfillmentStatus = "pending_payment"
	FulfillmentStatusProcessing     FulfillmentStatus = "processing"
	FulfillmentStatusShipped        FulfillmentStatus = "shipped"
	FulfillmentStatusDelivered      FulfillmentStatus = "delivered"
	FulfillmentStatusCancelled      FulfillmentStatus = "cancelled"
)

var validFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentStatusPendingPayment,
	FulfillmentStatusProcessing,
	FulfillmentStatusShipped,
	FulfillmentStatusDelivered,
	FulfillmentStatusCancelled,
}

// String implements fmt.Stringer.
func (f FulfillmentStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfillmentStatus.
func (f FulfillmentStatus) IsValid() bool {
	for _, candidate := range validFulfillmentStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFulfillmentStatus converts raw input into a FulfillmentStatus.
func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	for _, candidate := range validFulfillmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment status %q", value)
}

// IsTerminal reports whether no further fulfillment moves are possible.
func (f FulfillmentStatus) IsTerminal() bool {
	return f == FulfillmentStatusDelivered || f == FulfillmentStatusCancelled
}

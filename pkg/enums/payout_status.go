package enums

import "fmt"

// PayoutStatus tracks a single payout attempt recorded in the disbursements table.
type PayoutStatus string

const (
	PayoutStatusInitiated PayoutStatus = "initiated"
	PayoutStatusCompleted PayoutStatus = "completed"
	PayoutStatusFailed    PayoutStatus = "failed"
	PayoutStatusTimeout   PayoutStatus = "timeout"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusInitiated,
	PayoutStatusCompleted,
	PayoutStatusFailed,
	PayoutStatusTimeout,
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}

// IsTerminal reports whether the gateway has reported a final outcome.
func (p PayoutStatus) IsTerminal() bool {
	return p != PayoutStatusInitiated
}

// Retryable reports whether the attempt may be dispatched again.
func (p PayoutStatus) Retryable() bool {
	return p == PayoutStatusFailed || p == PayoutStatusTimeout
}

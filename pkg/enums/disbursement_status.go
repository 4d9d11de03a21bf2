package enums

import "fmt"

// DisbursementStatus tracks the seller payout of an order item.
type DisbursementStatus string

const (
	DisbursementStatusNone       DisbursementStatus = "none"
	DisbursementStatusPending    DisbursementStatus = "pending"
	DisbursementStatusProcessing DisbursementStatus = "processing"
	DisbursementStatusCompleted  DisbursementStatus = "completed"
	DisbursementStatusFailed     DisbursementStatus = "failed"
)

var validDisbursementStatuses = []DisbursementStatus{
	DisbursementStatusNone,
	DisbursementStatusPending,
	DisbursementStatusProcessing,
	DisbursementStatusCompleted,
	DisbursementStatusFailed,
}

// String implements fmt.Stringer.
func (d DisbursementStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisbursementStatus.
func (d DisbursementStatus) IsValid() bool {
	for _, candidate := range validDisbursementStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisbursementStatus converts raw input into a DisbursementStatus.
func ParseDisbursementStatus(value string) (DisbursementStatus, error) {
	for _, candidate := range validDisbursementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid disbursement status %q", value)
}

// Claimable reports whether a new payout attempt may claim the item.
func (d DisbursementStatus) Claimable() bool {
	switch d {
	case DisbursementStatusNone, DisbursementStatusPending, DisbursementStatusFailed, "":
		return true
	default:
		return false
	}
}

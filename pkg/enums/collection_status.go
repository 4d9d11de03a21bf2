package enums

import "fmt"

// CollectionStatus tracks the buyer-side payment of an order.
type CollectionStatus string

const (
	CollectionStatusPending    CollectionStatus = "pending"
	CollectionStatusProcessing CollectionStatus = "processing"
	CollectionStatusCompleted  CollectionStatus = "completed"
	CollectionStatusFailed     CollectionStatus = "failed"
	CollectionStatusCancelled  CollectionStatus = "cancelled"
)

var validCollectionStatuses = []CollectionStatus{
	CollectionStatusPending,
	CollectionStatusProcessing,
	CollectionStatusCompleted,
	CollectionStatusFailed,
	CollectionStatusCancelled,
}

// String implements fmt.Stringer.
func (c CollectionStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CollectionStatus.
func (c CollectionStatus) IsValid() bool {
	for _, candidate := range validCollectionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCollectionStatus converts raw input into a CollectionStatus.
func ParseCollectionStatus(value string) (CollectionStatus, error) {
	for _, candidate := range validCollectionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid collection status %q", value)
}

// IsTerminal reports whether the collection outcome is final.
func (c CollectionStatus) IsTerminal() bool {
	switch c {
	case CollectionStatusCompleted, CollectionStatusFailed, CollectionStatusCancelled:
		return true
	default:
		return false
	}
}

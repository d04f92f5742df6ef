package enums

import "fmt"

// PayoutStatus tracks a manual COD refund transfer.
type PayoutStatus string

const (
	PayoutStatusPendingDestination PayoutStatus = "pending_destination"
	PayoutStatusReady              PayoutStatus = "ready"
	PayoutStatusPaid               PayoutStatus = "paid"
	PayoutStatusFailed             PayoutStatus = "failed"
	PayoutStatusCancelled          PayoutStatus = "cancelled"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPendingDestination,
	PayoutStatusReady,
	PayoutStatusPaid,
	PayoutStatusFailed,
	PayoutStatusCancelled,
}

// String implements fmt.Stringer.
func (s PayoutStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PayoutStatus.
func (s PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == s {
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

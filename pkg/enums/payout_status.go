package enums

import "fmt"

// PayoutStatus tracks the operator-driven lifecycle of a vendor payout.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusApproved   PayoutStatus = "approved"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusRejected   PayoutStatus = "rejected"
	PayoutStatusOnHold     PayoutStatus = "on_hold"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusApproved,
	PayoutStatusProcessing,
	PayoutStatusPaid,
	PayoutStatusRejected,
	PayoutStatusOnHold,
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

// AllowsReaggregation reports whether the aggregator may refresh totals.
// Once a payout leaves pending/on_hold its amounts are frozen.
func (p PayoutStatus) AllowsReaggregation() bool {
	return p == PayoutStatusPending || p == PayoutStatusOnHold
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

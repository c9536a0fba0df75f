package enums

import "fmt"

// GatewayEventStatus is the status field carried by gateway webhook events.
type GatewayEventStatus string

const (
	GatewayEventProcessing GatewayEventStatus = "processing"
	GatewayEventSucceeded  GatewayEventStatus = "succeeded"
	GatewayEventFailed     GatewayEventStatus = "failed"
	GatewayEventRefunded   GatewayEventStatus = "refunded"
)

var validGatewayEventStatuses = []GatewayEventStatus{
	GatewayEventProcessing,
	GatewayEventSucceeded,
	GatewayEventFailed,
	GatewayEventRefunded,
}

// String implements fmt.Stringer.
func (s GatewayEventStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known GatewayEventStatus.
func (s GatewayEventStatus) IsValid() bool {
	for _, candidate := range validGatewayEventStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseGatewayEventStatus converts raw input into a GatewayEventStatus.
func ParseGatewayEventStatus(value string) (GatewayEventStatus, error) {
	for _, candidate := range validGatewayEventStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway event status %q", value)
}

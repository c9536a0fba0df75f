package enums

import "fmt"

// AuditAction maps to the audit_action enum in Postgres.
type AuditAction string

const (
	AuditPaymentStatusChanged      AuditAction = "payment_status_changed"
	AuditPaymentTransitionDenied   AuditAction = "payment_transition_denied"
	AuditPayoutStatusChanged       AuditAction = "payout_status_changed"
	AuditPayoutAdjustmentSet       AuditAction = "payout_adjustment_set"
	AuditCommissionRuleCreated     AuditAction = "commission_rule_created"
	AuditCommissionRuleDeactivated AuditAction = "commission_rule_deactivated"
	AuditInventoryRestocked        AuditAction = "inventory_restocked"
)

var validAuditActions = []AuditAction{
	AuditPaymentStatusChanged,
	AuditPaymentTransitionDenied,
	AuditPayoutStatusChanged,
	AuditPayoutAdjustmentSet,
	AuditCommissionRuleCreated,
	AuditCommissionRuleDeactivated,
	AuditInventoryRestocked,
}

// IsValid reports whether the value matches the canonical audit action enum.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}

package enums

import "fmt"

// PartStatus tracks whether a part is orderable.
type PartStatus string

const (
	PartStatusActive       PartStatus = "active"
	PartStatusDraft        PartStatus = "draft"
	PartStatusDiscontinued PartStatus = "discontinued"
)

var validPartStatuses = []PartStatus{
	PartStatusActive,
	PartStatusDraft,
	PartStatusDiscontinued,
}

// String implements fmt.Stringer.
func (s PartStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PartStatus.
func (s PartStatus) IsValid() bool {
	for _, candidate := range validPartStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePartStatus converts raw input into a PartStatus.
func ParsePartStatus(value string) (PartStatus, error) {
	for _, candidate := range validPartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid part status %q", value)
}

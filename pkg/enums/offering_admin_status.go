package enums

import "fmt"

// OfferingAdminStatus is the moderation state an admin assigns to a provider offering.
type OfferingAdminStatus string

const (
	OfferingAdminStatusActive   OfferingAdminStatus = "active"
	OfferingAdminStatusOnHold   OfferingAdminStatus = "on_hold"
	OfferingAdminStatusDisabled OfferingAdminStatus = "disabled"
)

var validOfferingAdminStatuses = []OfferingAdminStatus{
	OfferingAdminStatusActive,
	OfferingAdminStatusOnHold,
	OfferingAdminStatusDisabled,
}

func (s OfferingAdminStatus) String() string {
	return string(s)
}

func (s OfferingAdminStatus) IsValid() bool {
	for _, candidate := range validOfferingAdminStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOfferingAdminStatus converts raw input into an OfferingAdminStatus.
func ParseOfferingAdminStatus(value string) (OfferingAdminStatus, error) {
	for _, candidate := range validOfferingAdminStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offering admin status %q", value)
}

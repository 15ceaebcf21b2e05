package enums

import "fmt"

// AdStatus tracks whether a listing can still receive offers.
type AdStatus string

const (
	AdStatusActive   AdStatus = "active"
	AdStatusInactive AdStatus = "inactive"
	AdStatusSold     AdStatus = "sold"
	AdStatusExpired  AdStatus = "expired"
)

var validAdStatuses = []AdStatus{
	AdStatusActive,
	AdStatusInactive,
	AdStatusSold,
	AdStatusExpired,
}

// String implements fmt.Stringer.
func (a AdStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AdStatus.
func (a AdStatus) IsValid() bool {
	for _, candidate := range validAdStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAdStatus converts raw input into an AdStatus.
func ParseAdStatus(value string) (AdStatus, error) {
	for _, candidate := range validAdStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ad status %q", value)
}

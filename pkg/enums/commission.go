package enums

import "fmt"

// CommissionZone splits commission rules by the seller's tax region.
type CommissionZone string

const (
	CommissionZoneEU    CommissionZone = "eu"
	CommissionZoneNonEU CommissionZone = "non_eu"
)

var validCommissionZones = []CommissionZone{
	CommissionZoneEU,
	CommissionZoneNonEU,
}

// IsValid reports whether the value is a known CommissionZone.
func (c CommissionZone) IsValid() bool {
	for _, candidate := range validCommissionZones {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionZone converts raw input into a CommissionZone.
func ParseCommissionZone(value string) (CommissionZone, error) {
	for _, candidate := range validCommissionZones {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission zone %q", value)
}

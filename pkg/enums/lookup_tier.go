package enums

import "fmt"

// LookupTier identifies which vendor lookup service produced a device record.
// The tier values are the vendor's numeric service ids, kept verbatim because
// callers and stored history reference them.
type LookupTier string

const (
	// LookupTierIMEI is the full IMEI lookup service.
	LookupTierIMEI LookupTier = "219"
	// LookupTierSerial is the cheaper serial-number lookup service.
	LookupTierSerial LookupTier = "30"
)

var validLookupTiers = []LookupTier{
	LookupTierIMEI,
	LookupTierSerial,
}

// String implements fmt.Stringer.
func (t LookupTier) String() string {
	return string(t)
}

// IsValid reports whether the value is a known LookupTier.
func (t LookupTier) IsValid() bool {
	for _, candidate := range validLookupTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLookupTier converts raw input into a LookupTier.
func ParseLookupTier(value string) (LookupTier, error) {
	for _, candidate := range validLookupTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lookup tier %q", value)
}

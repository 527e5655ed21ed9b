// Package usage decodes Voice Connector usage type identifiers.
//
// A usage type such as "USE1-US-PA-outbound-minutes" names the calling
// region, the origin country, optional destination qualifiers, the call
// direction and the billing unit. The whole string is the pricing catalog
// filter value; the decomposed fields exist for diagnostics only.
package usage

import (
	"strings"

	"cdr-cost/internal/errors"
)

// Direction is the call direction segment
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionUnknown  Direction = ""
)

// UsageType is a decoded usage type
type UsageType struct {
	// Raw is the usage type exactly as it appeared in the record
	Raw string

	// Region is the region code prefix (e.g. "USE1")
	Region string

	// Country is the origin country (e.g. "US")
	Country string

	// Qualifiers are the segments between country and direction (e.g. "PA")
	Qualifiers []string

	// Direction is inbound or outbound when present
	Direction Direction

	// Unit is the trailing billing unit (e.g. "minutes")
	Unit string
}

// Parse decodes a usage type. It fails only when s is empty or blank.
func Parse(s string) (UsageType, error) {
	if strings.TrimSpace(s) == "" {
		return UsageType{}, errors.InvalidUsageType("usage type is empty")
	}

	u := UsageType{Raw: s}
	parts := strings.Split(s, "-")

	u.Region = parts[0]
	if len(parts) < 2 {
		return u, nil
	}
	u.Country = parts[1]
	if len(parts) < 3 {
		return u, nil
	}

	rest := parts[2:]
	u.Unit = rest[len(rest)-1]
	rest = rest[:len(rest)-1]

	for _, p := range rest {
		switch Direction(strings.ToLower(p)) {
		case DirectionInbound:
			u.Direction = DirectionInbound
		case DirectionOutbound:
			u.Direction = DirectionOutbound
		default:
			u.Qualifiers = append(u.Qualifiers, p)
		}
	}
	return u, nil
}

// Filter returns the catalog filter value, which is the raw string
func (u UsageType) Filter() string {
	return u.Raw
}

// String implements fmt.Stringer
func (u UsageType) String() string {
	return u.Raw
}

// IsDurationUnit reports whether the billing unit measures call time
func (u UsageType) IsDurationUnit() bool {
	switch strings.ToLower(u.Unit) {
	case "minutes", "minute", "seconds", "second":
		return true
	}
	return false
}

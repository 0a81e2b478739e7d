package domain

import (
	"strconv"
	"strings"
)

// RiskLevel orders outlook categories from none to high.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskThunderstorm
	RiskMarginal
	RiskSlight
	RiskEnhanced
	RiskModerate
	RiskHigh
)

var riskNames = [...]string{"NONE", "TSTM", "MRGL", "SLGT", "ENH", "MDT", "HIGH"}

func (r RiskLevel) String() string {
	if r < RiskNone || int(r) >= len(riskNames) {
		return riskNames[RiskNone]
	}
	return riskNames[r]
}

// MarshalText encodes the level as its short label.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a short label. Unknown labels decode to RiskNone.
func (r *RiskLevel) UnmarshalText(b []byte) error {
	*r = RiskNone
	for i, name := range riskNames {
		if string(b) == name {
			*r = RiskLevel(i)
			break
		}
	}
	return nil
}

// ParseSPCRisk maps an SPC categorical label, long name, or MapServer "dn"
// value to a RiskLevel.
func ParseSPCRisk(label string) RiskLevel {
	s := strings.ToUpper(strings.TrimSpace(label))
	switch s {
	case "TSTM", "GENERAL THUNDERSTORMS", "THUNDERSTORM", "THUNDERSTORMS", "GENERAL THUNDER":
		return RiskThunderstorm
	case "MRGL", "MARGINAL":
		return RiskMarginal
	case "SLGT", "SLIGHT":
		return RiskSlight
	case "ENH", "ENHANCED":
		return RiskEnhanced
	case "MDT", "MODERATE":
		return RiskModerate
	case "HIGH":
		return RiskHigh
	}
	// SPC MapServer layers also encode the category as a "dn" integer.
	if n, err := strconv.Atoi(s); err == nil {
		switch n {
		case 2:
			return RiskThunderstorm
		case 3:
			return RiskMarginal
		case 4:
			return RiskSlight
		case 5:
			return RiskEnhanced
		case 6:
			return RiskModerate
		case 8:
			return RiskHigh
		}
	}
	return RiskNone
}

// ParseERORisk maps a WPC excessive rainfall label to a RiskLevel. ERO has no
// thunderstorm or enhanced category.
func ParseERORisk(label string) RiskLevel {
	s := strings.ToUpper(strings.TrimSpace(label))
	switch {
	case s == "MRGL" || strings.HasPrefix(s, "MARGINAL"):
		return RiskMarginal
	case s == "SLGT" || strings.HasPrefix(s, "SLIGHT"):
		return RiskSlight
	case s == "MDT" || strings.HasPrefix(s, "MODERATE"):
		return RiskModerate
	case s == "HIGH" || strings.HasPrefix(s, "HIGH"):
		return RiskHigh
	}
	return RiskNone
}

// ParseRisk dispatches on the outlook source.
func ParseRisk(source, label string) RiskLevel {
	if source == SourceWPC {
		return ParseERORisk(label)
	}
	return ParseSPCRisk(label)
}

// SeverityRank orders NWS alert severities; unknown values rank lowest.
func SeverityRank(severity string) int {
	switch strings.ToLower(severity) {
	case "extreme":
		return 4
	case "severe":
		return 3
	case "moderate":
		return 2
	case "minor":
		return 1
	default:
		return 0
	}
}

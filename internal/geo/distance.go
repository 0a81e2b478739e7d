package geo

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

const metersPerMile = 1609.344

// MilesBetween is the great-circle distance between two lon/lat points.
func MilesBetween(a, b orb.Point) float64 {
	return orbgeo.DistanceHaversine(a, b) / metersPerMile
}

// Wind thresholds in mph.
const (
	HurricaneWindMPH     = 74
	TropicalStormWindMPH = 39
)

// TropicalPolicy is the two-tier radius rule for point hazards. Anything
// within NearMiles is included. Anything within FarMiles is included only
// when the system is elevated: an elevated classification or sustained winds
// at or above ElevatedWindMPH. Both radii are inclusive.
type TropicalPolicy struct {
	NearMiles       float64
	FarMiles        float64
	ElevatedClasses map[string]bool
	ElevatedWindMPH float64
}

// DefaultTropicalPolicy is 400/600 miles with hurricanes and tropical storms elevated.
func DefaultTropicalPolicy() TropicalPolicy {
	return NewTropicalPolicy(400, 600, []string{"HU", "MH", "TS"})
}

// NewTropicalPolicy builds a policy from configured radii and classes.
func NewTropicalPolicy(near, far float64, elevated []string) TropicalPolicy {
	classes := make(map[string]bool, len(elevated))
	for _, c := range elevated {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			classes[c] = true
		}
	}
	return TropicalPolicy{
		NearMiles:       near,
		FarMiles:        far,
		ElevatedClasses: classes,
		ElevatedWindMPH: HurricaneWindMPH,
	}
}

// Elevated reports whether a system qualifies for the far tier.
func (p TropicalPolicy) Elevated(h domain.HazardFeature) bool {
	if p.ElevatedClasses[strings.ToUpper(h.Classification)] {
		return true
	}
	return p.ElevatedWindMPH > 0 && h.WindMPH >= p.ElevatedWindMPH
}

// Includes applies the two-tier rule at the given distance.
func (p TropicalPolicy) Includes(miles float64, h domain.HazardFeature) bool {
	if miles <= p.NearMiles {
		return true
	}
	return miles <= p.FarMiles && p.Elevated(h)
}

// ImpactTier buckets a distance into direct, peripheral or indirect.
func ImpactTier(miles float64) string {
	switch {
	case miles < 100:
		return "direct"
	case miles < 200:
		return "peripheral"
	default:
		return "indirect"
	}
}

// WindThreat classifies sustained winds.
func WindThreat(mph float64) string {
	switch {
	case mph >= HurricaneWindMPH:
		return "hurricane"
	case mph >= TropicalStormWindMPH:
		return "tropical storm"
	default:
		return "minimal"
	}
}

// nearestAnchorMiles is the distance from p to the closest county anchor.
func nearestAnchorMiles(p orb.Point, counties []domain.AdminRegion) float64 {
	best := math.Inf(1)
	for _, c := range counties {
		if d := MilesBetween(p, c.Anchor); d < best {
			best = d
		}
	}
	return best
}

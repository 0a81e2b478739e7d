package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Upstream source identifiers.
const (
	SourceNWS = "nws"
	SourceSPC = "spc"
	SourceWPC = "wpc"
	SourceNHC = "nhc"
)

// Category groups hazards by the input they came from.
type Category string

const (
	CategoryAlert    Category = "alert"
	CategoryOutlook  Category = "outlook"
	CategoryTropical Category = "tropical"
)

func (c Category) rank() int {
	switch c {
	case CategoryAlert:
		return 0
	case CategoryOutlook:
		return 1
	default:
		return 2
	}
}

// Less orders categories alerts, outlooks, tropical.
func (c Category) Less(o Category) bool { return c.rank() < o.rank() }

// KnotsToMPH converts NHC intensities.
const KnotsToMPH = 1.15078

// HazardFeature is one input item normalized for attribution. Geometry is nil
// when the upstream record had no shape.
type HazardFeature struct {
	ID             string
	Category       Category
	Source         string
	Label          string
	Risk           RiskLevel
	Day            int
	Event          string
	Severity       string
	Classification string
	WindMPH        float64
	Geometry       orb.Geometry
	SAME           []string
	AreaNames      []string
	DistanceMiles  *float64
}

// HasGeometry reports whether the hazard carries a shape.
func (h HazardFeature) HasGeometry() bool {
	return h.Geometry != nil
}

// Polygonal reports whether the geometry has area.
func (h HazardFeature) Polygonal() bool {
	switch h.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Bound:
		return true
	}
	return false
}

// AlertHazard normalizes an NWS alert.
func AlertHazard(a Alert) HazardFeature {
	return HazardFeature{
		ID:        generateID("alert", a.ID, a.Event, geometryKey(a.Geometry)),
		Category:  CategoryAlert,
		Source:    SourceNWS,
		Label:     a.Event,
		Event:     a.Event,
		Severity:  normalizeSeverity(a.Severity),
		Geometry:  a.Geometry,
		SAME:      a.SAME,
		AreaNames: SplitAreaDesc(a.AreaDesc),
	}
}

// OutlookHazard normalizes an SPC or WPC outlook polygon.
func OutlookHazard(f OutlookFeature) HazardFeature {
	return HazardFeature{
		ID:       generateID(f.Source, strconv.Itoa(f.Day), strings.ToUpper(f.Label), geometryKey(f.Geometry)),
		Category: CategoryOutlook,
		Source:   f.Source,
		Label:    strings.ToUpper(strings.TrimSpace(f.Label)),
		Risk:     ParseRisk(f.Source, f.Label),
		Day:      f.Day,
		Geometry: f.Geometry,
	}
}

// TropicalHazard normalizes an NHC storm. The storm position, when known,
// becomes a point geometry.
func TropicalHazard(s TropicalSystem) HazardFeature {
	h := HazardFeature{
		ID:             generateID("tropical", s.ID, s.Name),
		Category:       CategoryTropical,
		Source:         SourceNHC,
		Label:          s.Name,
		Classification: strings.ToUpper(s.Classification),
		WindMPH:        s.IntensityMPH,
		DistanceMiles:  s.DistanceMiles,
	}
	if s.Position != nil {
		h.Geometry = *s.Position
	}
	return h
}

// SplitAreaDesc splits an NWS areaDesc ("Hinds; Rankin; Madison") into names.
func SplitAreaDesc(areaDesc string) []string {
	if strings.TrimSpace(areaDesc) == "" {
		return nil
	}
	parts := strings.Split(areaDesc, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// generateID produces a deterministic ID from a hazard's key fields so that
// assembling the same inputs twice yields identical briefings.
func generateID(prefix string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return prefix + "-" + hex.EncodeToString(hash[:8])
}

func geometryKey(g orb.Geometry) string {
	if g == nil {
		return ""
	}
	return wkt.MarshalString(g)
}

func normalizeSeverity(s string) string {
	switch SeverityRank(s) {
	case 4:
		return "Extreme"
	case 3:
		return "Severe"
	case 2:
		return "Moderate"
	case 1:
		return "Minor"
	default:
		return "Unknown"
	}
}

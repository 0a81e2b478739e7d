package briefing

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

// Thresholds for the statewide rainfall and winter lines.
const (
	heavyRainInches  = 1.0
	notableSnowInch  = 0.5
	freezingDegreesF = 32
)

var eroWords = map[domain.RiskLevel]string{
	domain.RiskMarginal: "Marginal",
	domain.RiskSlight:   "Slight",
	domain.RiskModerate: "Moderate",
	domain.RiskHigh:     "High",
}

// statewideForecast rolls the regional forecasts up. Ties go to the region
// that comes first in canonical order.
func (g *Grouper) statewideForecast(regions []domain.RegionalSummary, eroDay1 domain.RiskLevel) domain.StatewideForecast {
	near := make(map[string]string, len(regions))
	for _, p := range g.index.ParentRegions() {
		near[p.ID] = anchorName(p.Anchor)
	}

	var out domain.StatewideForecast
	for _, r := range regions {
		if r.High != nil {
			out.HighRange = widen(out.HighRange, *r.High)
		}
		if r.Low != nil {
			out.LowRange = widen(out.LowRange, *r.Low)
			if out.ColdestLow == nil || *r.Low < out.ColdestLow.DegreesF {
				out.ColdestLow = &domain.RegionTemp{ParentID: r.ParentID, Near: near[r.ParentID], DegreesF: *r.Low}
			}
		}
		if r.QPFInches != nil && *r.QPFInches > 0 && (out.MaxQPF == nil || *r.QPFInches > out.MaxQPF.Inches) {
			out.MaxQPF = &domain.RegionAmount{ParentID: r.ParentID, Near: near[r.ParentID], Inches: *r.QPFInches}
		}
		if r.SnowInches != nil && *r.SnowInches > 0 && (out.MaxSnow == nil || *r.SnowInches > out.MaxSnow.Inches) {
			out.MaxSnow = &domain.RegionAmount{ParentID: r.ParentID, Near: near[r.ParentID], Inches: *r.SnowInches}
		}
	}
	out.Freezing = out.ColdestLow != nil && out.ColdestLow.DegreesF <= freezingDegreesF

	out.RainfallSummary = rainfallSummary(out.MaxQPF, eroDay1)
	out.WinterSummary = winterSummary(out.MaxSnow, out.ColdestLow)
	return out
}

func widen(r *domain.TempRange, t int) *domain.TempRange {
	if r == nil {
		return &domain.TempRange{Min: t, Max: t}
	}
	r.Min = min(r.Min, t)
	r.Max = max(r.Max, t)
	return r
}

func rainfallSummary(maxQPF *domain.RegionAmount, eroDay1 domain.RiskLevel) *string {
	var parts []string
	if w, ok := eroWords[eroDay1]; ok {
		parts = append(parts, w+" excessive rainfall risk")
	}
	switch {
	case maxQPF == nil:
	case maxQPF.Inches >= heavyRainInches:
		parts = append(parts, fmt.Sprintf("Up to %.1f inches possible near %s", maxQPF.Inches, maxQPF.Near))
	default:
		parts = append(parts, fmt.Sprintf("Light rainfall amounts expected (up to %.1f inches)", maxQPF.Inches))
	}
	return joinSentences(parts)
}

func winterSummary(maxSnow *domain.RegionAmount, coldest *domain.RegionTemp) *string {
	var parts []string
	if maxSnow != nil && maxSnow.Inches >= notableSnowInch {
		parts = append(parts, fmt.Sprintf("Snow possible: up to %.1f inches near %s", maxSnow.Inches, maxSnow.Near))
	}
	if coldest != nil && coldest.DegreesF <= freezingDegreesF {
		parts = append(parts, fmt.Sprintf("Freezing temperatures expected (low of %d°F near %s)", coldest.DegreesF, coldest.Near))
	}
	return joinSentences(parts)
}

func joinSentences(parts []string) *string {
	if len(parts) == 0 {
		return nil
	}
	s := strings.Join(parts, ". ")
	return &s
}

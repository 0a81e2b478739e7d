// Package briefing groups county attributions into regional summaries and
// assembles the statewide briefing.
package briefing

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
	"github.com/couchcryptid/weather-briefing-service/internal/geo"
)

// DefaultMaxAnchorMiles bounds nearest-forecast substitution.
const DefaultMaxAnchorMiles = 60

// Grouper folds county attributions into one summary per parent region.
type Grouper struct {
	index          *geo.Index
	maxAnchorMiles float64
}

// NewGrouper creates a Grouper. A forecast from another anchor may stand in
// for a region whose own anchor is missing when it lies within maxAnchorMiles.
func NewGrouper(idx *geo.Index, maxAnchorMiles float64) *Grouper {
	return &Grouper{index: idx, maxAnchorMiles: maxAnchorMiles}
}

// Group returns a summary for every parent region in canonical order. A
// hazard that reaches a region through several counties is listed once, with
// all of those counties.
func (g *Grouper) Group(attrs []domain.Attribution, forecasts domain.Optional[map[string]domain.PointForecast]) []domain.RegionalSummary {
	parents := g.index.ParentRegions()
	byParent := make(map[string]map[string]*entry, len(parents))
	for _, p := range parents {
		byParent[p.ID] = make(map[string]*entry)
	}

	for _, at := range attrs {
		parentID, ok := g.index.ParentOf(at.RegionID)
		if !ok {
			continue
		}
		hazards := byParent[parentID]
		e, ok := hazards[at.Hazard.ID]
		if !ok {
			e = &entry{hazard: at.Hazard, method: at.Method}
			hazards[at.Hazard.ID] = e
		}
		if !slices.Contains(e.counties, at.RegionID) {
			e.counties = append(e.counties, at.RegionID)
		}
	}

	out := make([]domain.RegionalSummary, 0, len(parents))
	for _, p := range parents {
		s := domain.RegionalSummary{
			ParentID: p.ID,
			Name:     p.Name,
			Hazards:  g.hazardRefs(byParent[p.ID]),
			MaxRisk:  maxRisk(byParent[p.ID]),
		}
		g.applyForecast(&s, p, forecasts)
		out = append(out, s)
	}
	return out
}

type entry struct {
	hazard   domain.HazardFeature
	method   string
	counties []string
}

func (g *Grouper) hazardRefs(entries map[string]*entry) []domain.HazardRef {
	sorted := make([]*entry, 0, len(entries))
	for _, e := range entries {
		sorted = append(sorted, e)
	}
	slices.SortFunc(sorted, compareEntries)

	refs := make([]domain.HazardRef, 0, len(sorted))
	for _, e := range sorted {
		counties := slices.Clone(e.counties)
		slices.SortFunc(counties, func(a, b string) int {
			return cmp.Compare(g.index.Order(a), g.index.Order(b))
		})
		ref := domain.HazardRef{
			ID:       e.hazard.ID,
			Category: e.hazard.Category,
			Source:   e.hazard.Source,
			Label:    e.hazard.Label,
			Day:      e.hazard.Day,
			Severity: e.hazard.Severity,
			Method:   e.method,
			Counties: counties,
		}
		if e.hazard.Category == domain.CategoryOutlook {
			ref.Risk = e.hazard.Risk.String()
		}
		refs = append(refs, ref)
	}
	return refs
}

func compareEntries(a, b *entry) int {
	ha, hb := a.hazard, b.hazard
	if ha.Category != hb.Category {
		if ha.Category.Less(hb.Category) {
			return -1
		}
		return 1
	}
	return cmp.Or(
		cmp.Compare(ha.Source, hb.Source),
		cmp.Compare(ha.Day, hb.Day),
		cmp.Compare(hb.Risk, ha.Risk),
		cmp.Compare(domain.SeverityRank(hb.Severity), domain.SeverityRank(ha.Severity)),
		cmp.Compare(ha.Label, hb.Label),
		cmp.Compare(ha.ID, hb.ID),
	)
}

// maxRisk is the highest outlook category per source and day.
func maxRisk(entries map[string]*entry) []domain.OutlookDay {
	best := make(map[outlookKey]domain.RiskLevel)
	for _, e := range entries {
		h := e.hazard
		if h.Category != domain.CategoryOutlook {
			continue
		}
		k := outlookKey{h.Source, h.Day}
		if cur, ok := best[k]; !ok || h.Risk > cur {
			best[k] = h.Risk
		}
	}
	return outlookDays(best)
}

type outlookKey struct {
	source string
	day    int
}

func outlookDays(best map[outlookKey]domain.RiskLevel) []domain.OutlookDay {
	if len(best) == 0 {
		return nil
	}
	days := make([]domain.OutlookDay, 0, len(best))
	for k, r := range best {
		days = append(days, domain.OutlookDay{Source: k.source, Day: k.day, MaxRisk: r})
	}
	slices.SortFunc(days, func(a, b domain.OutlookDay) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.Day, b.Day))
	})
	return days
}

// applyForecast picks the region's forecast: its own anchor when present,
// otherwise the nearest successful forecast within range.
func (g *Grouper) applyForecast(s *domain.RegionalSummary, p domain.ParentRegion, forecasts domain.Optional[map[string]domain.PointForecast]) {
	all, ok := forecasts.Get()
	if !ok {
		return
	}

	if f, ok := all[p.Anchor.ID]; ok {
		if f.OK() {
			setForecast(s, f)
			return
		}
		reason := f.Err
		if reason == "" {
			reason = "no forecast periods"
		}
		s.Note = note("Forecast for %s unavailable: %s", anchorName(p.Anchor), reason)
		return
	}

	if f, miles, ok := g.nearestForecast(p, all); ok {
		setForecast(s, f)
		s.Note = note("Forecast for %s missing; using %s, %.0f mi away", anchorName(p.Anchor), f.AnchorID, miles)
		return
	}
	s.Note = note("No forecast available for %s", anchorName(p.Anchor))
}

func (g *Grouper) nearestForecast(p domain.ParentRegion, all map[string]domain.PointForecast) (domain.PointForecast, float64, bool) {
	var (
		best     domain.PointForecast
		bestDist = math.Inf(1)
	)
	for _, f := range all {
		if !f.OK() {
			continue
		}
		d := geo.MilesBetween(p.Anchor.Point, f.Location)
		if d < bestDist || (d == bestDist && f.AnchorID < best.AnchorID) {
			best, bestDist = f, d
		}
	}
	if math.IsInf(bestDist, 1) || bestDist > g.maxAnchorMiles {
		return domain.PointForecast{}, 0, false
	}
	return best, bestDist, true
}

func setForecast(s *domain.RegionalSummary, f domain.PointForecast) {
	first := f.Periods[0]
	text := strings.TrimSpace(first.DetailedForecast)
	if text == "" {
		text = strings.TrimSpace(first.ShortForecast)
	}
	s.ForecastText = &text
	s.High, s.Low = domain.NearTermTemps(f.Periods)
	s.QPFInches = f.Totals.QPFInches
	s.SnowInches = f.Totals.SnowInches
	s.Daily = domain.PairDailyForecasts(f.Periods)
}

func anchorName(a domain.ForecastAnchor) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

func note(format string, args ...any) *string {
	n := fmt.Sprintf(format, args...)
	return &n
}

package briefing

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
	"github.com/couchcryptid/weather-briefing-service/internal/geo"
)

// Source labels used in gaps and the sources-used list.
var sourceLabels = map[string]string{
	domain.SourceSPC: "SPC convective outlook",
	domain.SourceWPC: "WPC excessive rainfall outlook",
}

// Assembler fuses one run's inputs into a Briefing.
type Assembler struct {
	attributor *geo.Attributor
	grouper    *Grouper
	logger     *slog.Logger
}

// NewAssembler wires the attribution and grouping stages.
func NewAssembler(attributor *geo.Attributor, grouper *Grouper, logger *slog.Logger) *Assembler {
	return &Assembler{attributor: attributor, grouper: grouper, logger: logger}
}

// Assemble never fails. Every absent or empty input category adds a data gap
// and the briefing always carries one summary per parent region. Apart from
// GeneratedAt and Edition, the same inputs produce the same briefing.
func (a *Assembler) Assemble(in domain.Inputs) domain.Briefing {
	r := &run{gaps: []string{}, sources: []string{}}

	alerts := a.collectAlerts(r, in.Alerts)
	a.checkForecasts(r, in.Forecasts)
	outlooks := a.collectOutlooks(r, in.Outlooks)
	tropical := a.collectTropical(r, in.Tropical)

	var attrs []domain.Attribution
	for _, h := range alerts {
		attrs = a.attribute(attrs, h)
	}
	outlookBest := make(map[outlookKey]domain.RiskLevel)
	for _, h := range outlooks {
		attrs = a.attribute(attrs, h)
		k := outlookKey{h.Source, h.Day}
		if cur, ok := outlookBest[k]; !ok || h.Risk > cur {
			outlookBest[k] = h.Risk
		}
	}

	tropicalSummaries := []domain.TropicalSummary{}
	for _, ts := range tropical {
		h := domain.TropicalHazard(ts)
		res := a.attributor.Attribute(h)
		if !res.Included {
			a.logger.Debug("tropical system outside inclusion radius", "storm", ts.ID, "distance_miles", deref(res.DistanceMiles))
			continue
		}
		for _, id := range res.RegionIDs {
			attrs = append(attrs, domain.Attribution{RegionID: id, Hazard: h, Method: res.Method})
		}
		tropicalSummaries = append(tropicalSummaries, tropicalSummary(ts, res))
	}
	sortTropical(tropicalSummaries)

	alertSummaries, byEvent := summarizeAlerts(in.Alerts)
	outlookDaysList := outlookDays(outlookBest)
	if outlookDaysList == nil {
		outlookDaysList = []domain.OutlookDay{}
	}

	regions := a.grouper.Group(attrs, in.Forecasts)
	now := domain.Now()
	return domain.Briefing{
		GeneratedAt: now,
		Edition:     domain.Edition(now),
		Engine:      string(a.attributor.EngineKind()),
		Regions:     regions,
		Statewide: domain.Statewide{
			Alerts:        alertSummaries,
			AlertsByEvent: byEvent,
			Tropical:      tropicalSummaries,
			OutlookDays:   outlookDaysList,
			Forecast:      a.grouper.statewideForecast(regions, outlookBest[outlookKey{domain.SourceWPC, 1}]),
		},
		DataGaps:    r.gaps,
		SourcesUsed: r.sources,
	}
}

type run struct {
	gaps    []string
	sources []string
}

func (r *run) gap(format string, args ...any) {
	r.gaps = append(r.gaps, fmt.Sprintf(format, args...))
}

func (a *Assembler) attribute(attrs []domain.Attribution, h domain.HazardFeature) []domain.Attribution {
	res := a.attributor.Attribute(h)
	for _, id := range res.RegionIDs {
		attrs = append(attrs, domain.Attribution{RegionID: id, Hazard: h, Method: res.Method})
	}
	return attrs
}

func (a *Assembler) collectAlerts(r *run, in domain.Optional[[]domain.Alert]) []domain.HazardFeature {
	alerts, ok := in.Get()
	switch {
	case !ok:
		r.gap("%s", unavailable("NWS alerts", in.Reason()))
		return nil
	case len(alerts) == 0:
		r.gap("NWS alerts returned no data")
		return nil
	}
	r.sources = append(r.sources, "NWS alerts")

	out := make([]domain.HazardFeature, 0, len(alerts))
	for _, al := range alerts {
		out = append(out, domain.AlertHazard(al))
	}
	return out
}

func (a *Assembler) checkForecasts(r *run, in domain.Optional[map[string]domain.PointForecast]) {
	forecasts, ok := in.Get()
	switch {
	case !ok:
		r.gap("%s", unavailable("NWS point forecasts", in.Reason()))
		return
	case len(forecasts) == 0:
		r.gap("NWS point forecasts returned no data")
		return
	}
	for _, f := range forecasts {
		if f.OK() {
			r.sources = append(r.sources, "NWS point forecasts")
			return
		}
	}
	r.gap("NWS point forecasts returned no usable data")
}

func (a *Assembler) collectOutlooks(r *run, in domain.Optional[[]domain.OutlookSet]) []domain.HazardFeature {
	sets, ok := in.Get()
	if !ok {
		r.gap("%s", unavailable("SPC/WPC outlooks", in.Reason()))
		return nil
	}

	var (
		out    []domain.HazardFeature
		failed []string
	)
	for _, set := range sets {
		label := sourceLabel(set.Source)
		if set.Err != "" {
			failed = append(failed, unavailable(label, set.Err))
			continue
		}
		if len(set.Features) == 0 {
			continue
		}
		r.sources = append(r.sources, label)
		for _, f := range set.Features {
			if f.Source == "" {
				f.Source = set.Source
			}
			out = append(out, domain.OutlookHazard(f))
		}
	}
	// The category gets at most one gap however many sets failed.
	switch {
	case len(failed) > 0 && len(failed) == len(sets):
		r.gap("%s", unavailable("SPC/WPC outlooks", strings.Join(failed, "; ")))
	case len(failed) > 0:
		r.gap("%s", strings.Join(failed, "; "))
	case len(out) == 0:
		r.gap("SPC/WPC outlooks returned no data")
	}
	return out
}

func (a *Assembler) collectTropical(r *run, in domain.Optional[[]domain.TropicalSystem]) []domain.TropicalSystem {
	systems, ok := in.Get()
	switch {
	case !ok:
		r.gap("%s", unavailable("NHC tropical data", in.Reason()))
		return nil
	case len(systems) == 0:
		r.gap("NHC tropical data returned no data")
		return nil
	}
	r.sources = append(r.sources, "NHC active storms")
	return systems
}

func unavailable(what, reason string) string {
	if reason == "" {
		return what + " unavailable"
	}
	return what + " unavailable: " + reason
}

func sourceLabel(source string) string {
	if l, ok := sourceLabels[source]; ok {
		return l
	}
	return source + " outlook"
}

func summarizeAlerts(in domain.Optional[[]domain.Alert]) ([]domain.AlertSummary, []domain.EventGroup) {
	alerts, _ := in.Get()
	summaries := make([]domain.AlertSummary, 0, len(alerts))
	for _, al := range alerts {
		h := domain.AlertHazard(al)
		areas := h.AreaNames
		if areas == nil {
			areas = []string{}
		}
		summaries = append(summaries, domain.AlertSummary{
			ID:        al.ID,
			Event:     al.Event,
			Severity:  h.Severity,
			Certainty: al.Certainty,
			Headline:  al.Headline,
			Onset:     al.Onset,
			Expires:   al.Expires,
			Areas:     areas,
		})
	}
	slices.SortStableFunc(summaries, func(a, b domain.AlertSummary) int {
		return cmp.Or(
			cmp.Compare(domain.SeverityRank(b.Severity), domain.SeverityRank(a.Severity)),
			a.Onset.Compare(b.Onset),
			cmp.Compare(a.ID, b.ID),
		)
	})

	groups := []domain.EventGroup{}
	pos := make(map[string]int)
	for _, s := range summaries {
		i, ok := pos[s.Event]
		if !ok {
			pos[s.Event] = len(groups)
			groups = append(groups, domain.EventGroup{Event: s.Event, MaxSeverity: s.Severity})
			i = len(groups) - 1
		}
		groups[i].Count++
		if domain.SeverityRank(s.Severity) > domain.SeverityRank(groups[i].MaxSeverity) {
			groups[i].MaxSeverity = s.Severity
		}
	}
	return summaries, groups
}

func tropicalSummary(ts domain.TropicalSystem, res geo.Result) domain.TropicalSummary {
	s := domain.TropicalSummary{
		ID:             ts.ID,
		Name:           ts.Name,
		Classification: ts.Classification,
		IntensityMPH:   ts.IntensityMPH,
		PressureMB:     ts.PressureMB,
		Movement:       ts.Movement,
		DistanceMiles:  res.DistanceMiles,
		Tier:           "unknown",
		WindThreat:     geo.WindThreat(ts.IntensityMPH),
		CountiesInZone: len(res.RegionIDs),
	}
	if ts.Position != nil {
		lat, lon := ts.Position.Lat(), ts.Position.Lon()
		s.Lat, s.Lon = &lat, &lon
	}
	if res.DistanceMiles != nil {
		s.Tier = geo.ImpactTier(*res.DistanceMiles)
	}
	return s
}

func sortTropical(s []domain.TropicalSummary) {
	slices.SortFunc(s, func(a, b domain.TropicalSummary) int {
		switch {
		case a.DistanceMiles == nil && b.DistanceMiles != nil:
			return 1
		case a.DistanceMiles != nil && b.DistanceMiles == nil:
			return -1
		case a.DistanceMiles != nil && b.DistanceMiles != nil:
			if c := cmp.Compare(*a.DistanceMiles, *b.DistanceMiles); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func deref(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

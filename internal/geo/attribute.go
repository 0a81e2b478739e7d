package geo

import (
	"errors"
	"log/slog"
	"math"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

// Attribution methods recorded on each result.
const (
	MethodExact            = "exact"
	MethodCentroid         = "centroid"
	MethodCentroidFallback = "centroid-fallback"
	MethodPoint            = "point"
	MethodDistance         = "distance"
	MethodZone             = "zone"
	MethodNone             = "none"
)

// Result is the set of counties a hazard touches.
type Result struct {
	RegionIDs []string
	Method    string

	// Tropical systems only.
	Included      bool
	DistanceMiles *float64
}

// Attributor maps hazards to counties. It never mutates the index.
type Attributor struct {
	index    *Index
	engine   Engine
	fallback Engine
	policy   TropicalPolicy
	logger   *slog.Logger
}

// NewAttributor wires an engine and tropical policy to an index.
func NewAttributor(idx *Index, engine Engine, policy TropicalPolicy, logger *slog.Logger) *Attributor {
	return &Attributor{
		index:    idx,
		engine:   engine,
		fallback: CentroidFallback{},
		policy:   policy,
		logger:   logger,
	}
}

// EngineKind reports which engine polygon hazards go through.
func (a *Attributor) EngineKind() EngineKind {
	return a.engine.Kind()
}

// Attribute returns the counties the hazard touches, in index order.
func (a *Attributor) Attribute(h domain.HazardFeature) Result {
	var res Result
	switch {
	case h.Category == domain.CategoryTropical:
		res = a.attributeTropical(h)
	case h.Polygonal():
		res = a.attributePolygon(h)
	case isPoint(h.Geometry):
		res = Result{RegionIDs: a.countiesContaining(h.Geometry.(orb.Point)), Method: MethodPoint}
	case len(h.SAME) > 0 || len(h.AreaNames) > 0:
		res = a.attributeZones(h)
	default:
		a.logger.Debug("hazard has no usable geometry", "hazard", h.ID, "source", h.Source, "error", domain.ErrNoGeometry)
		return Result{Method: MethodNone}
	}

	if len(res.RegionIDs) == 0 && h.HasGeometry() {
		a.logger.Debug("hazard attributed to no counties",
			"hazard", h.ID,
			"source", h.Source,
			"method", res.Method,
		)
	}
	return res
}

func (a *Attributor) attributePolygon(h domain.HazardFeature) Result {
	shape, ok := toMultiPolygon(h.Geometry)
	if !ok {
		return Result{Method: MethodNone}
	}
	counties := a.index.Counties()

	ids, err := a.engine.Match(shape, counties)
	if err == nil {
		return Result{RegionIDs: ids, Method: string(a.engine.Kind())}
	}

	a.logger.Warn("exact intersection failed, using centroid test",
		"hazard", h.ID,
		"source", h.Source,
		"error", err,
	)
	ids, ferr := a.fallback.Match(shape, counties)
	if ferr != nil {
		a.logger.Warn("centroid test failed", "hazard", h.ID, "error", errors.Join(err, ferr))
		return Result{Method: MethodNone}
	}
	return Result{RegionIDs: ids, Method: MethodCentroidFallback}
}

func (a *Attributor) attributeTropical(h domain.HazardFeature) Result {
	counties := a.index.Counties()
	pos, hasPos := h.Geometry.(orb.Point)

	var dist *float64
	switch {
	case h.DistanceMiles != nil:
		d := *h.DistanceMiles
		dist = &d
	case hasPos:
		d := nearestAnchorMiles(pos, counties)
		if !math.IsInf(d, 1) {
			dist = &d
		}
	}

	res := Result{Method: MethodDistance, DistanceMiles: dist}
	if dist == nil {
		// Position unknown: reported statewide so the storm is not silently dropped.
		res.Included = true
		res.Method = MethodNone
		return res
	}
	res.Included = a.policy.Includes(*dist, h)
	if !res.Included || !hasPos {
		return res
	}

	for _, c := range counties {
		if a.policy.Includes(MilesBetween(pos, c.Anchor), h) {
			res.RegionIDs = append(res.RegionIDs, c.ID)
		}
	}
	return res
}

func (a *Attributor) attributeZones(h domain.HazardFeature) Result {
	seen := make(map[string]bool)
	for _, code := range h.SAME {
		if id, ok := a.index.CountyBySAME(code); ok {
			seen[id] = true
		}
	}
	if len(seen) == 0 {
		for _, name := range h.AreaNames {
			if id, ok := a.index.CountyByName(name); ok {
				seen[id] = true
			}
		}
	}
	return Result{RegionIDs: a.inIndexOrder(seen), Method: MethodZone}
}

func (a *Attributor) countiesContaining(p orb.Point) []string {
	var ids []string
	for _, c := range a.index.Counties() {
		if containsPoint(c.Geometry, p) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func (a *Attributor) inIndexOrder(set map[string]bool) []string {
	var ids []string
	for _, c := range a.index.Counties() {
		if set[c.ID] {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func isPoint(g orb.Geometry) bool {
	_, ok := g.(orb.Point)
	return ok
}

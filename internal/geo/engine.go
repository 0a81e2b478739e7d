package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
	"github.com/peterstace/simplefeatures/geom"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

// EngineKind selects the polygon attribution strategy.
type EngineKind string

const (
	EngineExact    EngineKind = "exact"
	EngineCentroid EngineKind = "centroid"
)

// ParseEngineKind validates a configured engine name.
func ParseEngineKind(s string) (EngineKind, error) {
	switch EngineKind(s) {
	case EngineExact, EngineCentroid:
		return EngineKind(s), nil
	default:
		return "", fmt.Errorf("unknown geometry engine %q (want exact or centroid)", s)
	}
}

// ErrExactUnavailable is returned when the exact engine cannot evaluate a geometry.
var ErrExactUnavailable = errors.New("exact intersection unavailable")

// Engine decides which counties a polygonal hazard touches.
type Engine interface {
	Kind() EngineKind
	// Match returns the ids of the counties the hazard overlaps, in the order given.
	Match(hazard orb.Geometry, counties []domain.AdminRegion) ([]string, error)
}

// NewEngine builds the engine of the given kind for the counties of idx.
func NewEngine(kind EngineKind, idx *Index) (Engine, error) {
	switch kind {
	case EngineExact:
		return NewExactPolygon(idx)
	case EngineCentroid:
		return CentroidFallback{}, nil
	default:
		return nil, fmt.Errorf("unknown geometry engine %q", kind)
	}
}

// ExactPolygon attributes a county when the hazard and the county share
// positive area, or when the hazard contains the county's anchor. Polygons
// that only touch along an edge or at a vertex away from the anchor do not
// match. The anchor rule keeps every CentroidFallback match an ExactPolygon
// match even when the shared area underflows.
type ExactPolygon struct {
	shapes map[string]geom.Geometry
	bounds map[string]orb.Bound
}

// NewExactPolygon converts every county once so hazards can be intersected
// without reparsing county shapes.
func NewExactPolygon(idx *Index) (*ExactPolygon, error) {
	e := &ExactPolygon{
		shapes: make(map[string]geom.Geometry, len(idx.Counties())),
		bounds: make(map[string]orb.Bound, len(idx.Counties())),
	}
	for _, c := range idx.Counties() {
		g, err := toSimpleFeatures(c.Geometry)
		if err != nil {
			return nil, fmt.Errorf("county %s: %w", c.ID, err)
		}
		e.shapes[c.ID] = g
		e.bounds[c.ID] = c.Geometry.Bound()
	}
	return e, nil
}

func (e *ExactPolygon) Kind() EngineKind { return EngineExact }

func (e *ExactPolygon) Match(hazard orb.Geometry, counties []domain.AdminRegion) ([]string, error) {
	hg, err := toSimpleFeatures(hazard)
	if err != nil {
		return nil, err
	}
	hb := hazard.Bound()

	var ids []string
	for _, c := range counties {
		cb, ok := e.bounds[c.ID]
		if !ok {
			cb = c.Geometry.Bound()
		}
		if !hb.Intersects(cb) {
			continue
		}
		cg, ok := e.shapes[c.ID]
		if !ok {
			if cg, err = toSimpleFeatures(c.Geometry); err != nil {
				return nil, fmt.Errorf("county %s: %w", c.ID, err)
			}
		}
		overlap, err := geom.Intersection(hg, cg)
		if err != nil {
			return nil, fmt.Errorf("%w: county %s: %v", ErrExactUnavailable, c.ID, err)
		}
		if overlap.Area() > 0 || (hb.Contains(c.Anchor) && containsPoint(hazard, c.Anchor)) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func toSimpleFeatures(g orb.Geometry) (geom.Geometry, error) {
	if b, ok := g.(orb.Bound); ok {
		g = b.ToPolygon()
	}
	parsed, err := geom.UnmarshalWKT(wkt.MarshalString(g))
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("%w: %v", ErrExactUnavailable, err)
	}
	return parsed, nil
}

// CentroidFallback attributes a county when its anchor point lies inside the
// hazard. It misses counties clipped by a hazard that does not reach the
// anchor, so its matches are always a subset of ExactPolygon's.
type CentroidFallback struct{}

func (CentroidFallback) Kind() EngineKind { return EngineCentroid }

func (CentroidFallback) Match(hazard orb.Geometry, counties []domain.AdminRegion) ([]string, error) {
	hb := hazard.Bound()
	var ids []string
	for _, c := range counties {
		if !hb.Contains(c.Anchor) {
			continue
		}
		if containsPoint(hazard, c.Anchor) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func containsPoint(g orb.Geometry, p orb.Point) bool {
	switch t := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(t, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(t, p)
	case orb.Bound:
		return t.Contains(p)
	default:
		return false
	}
}

// Package geo holds the county reference index and the spatial attribution of
// hazards to counties.
package geo

import (
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

// Expect holds the fixed totals the reference data must match.
type Expect struct {
	Counties int
	Regions  int
}

// Index is the read-only set of counties and parent regions. It is built once
// and safe for concurrent reads.
type Index struct {
	parents    []domain.ParentRegion
	parentByID map[string]int
	counties   []domain.AdminRegion
	countyByID map[string]int
	byName     map[string]string
}

type regionFile struct {
	Regions []regionEntry `yaml:"regions"`
}

type regionEntry struct {
	ID     string       `yaml:"id"`
	Name   string       `yaml:"name"`
	Anchor *anchorEntry `yaml:"anchor"`
}

type anchorEntry struct {
	ID   string   `yaml:"id"`
	Name string   `yaml:"name"`
	Lat  *float64 `yaml:"lat"`
	Lon  *float64 `yaml:"lon"`
}

// LoadFiles reads the county GeoJSON and region YAML from disk and builds an Index.
func LoadFiles(countiesPath, regionsPath string, expect Expect) (*Index, error) {
	counties, err := os.ReadFile(countiesPath)
	if err != nil {
		return nil, domain.NewConfigError("counties", "read county reference %s: %v", countiesPath, err)
	}
	regions, err := os.ReadFile(regionsPath)
	if err != nil {
		return nil, domain.NewConfigError("regions", "read region reference %s: %v", regionsPath, err)
	}
	return Load(counties, regions, expect)
}

// Load builds an Index from a county FeatureCollection and a region YAML
// document. Every failure is a *domain.ConfigError.
//
// County features need the properties "fips", "name", "region", "anchor_lat"
// and "anchor_lon", and a Polygon or MultiPolygon geometry. The anchor must lie
// strictly inside the county.
func Load(countiesGeoJSON, regionsYAML []byte, expect Expect) (*Index, error) {
	idx := &Index{
		parentByID: make(map[string]int),
		countyByID: make(map[string]int),
		byName:     make(map[string]string),
	}
	if err := idx.loadRegions(regionsYAML, expect.Regions); err != nil {
		return nil, err
	}
	if err := idx.loadCounties(countiesGeoJSON, expect.Counties); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) loadRegions(data []byte, expected int) error {
	var rf regionFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return domain.NewConfigError("regions", "parse yaml: %v", err)
	}
	if expected > 0 && len(rf.Regions) != expected {
		return domain.NewConfigError("regions", "expected %d parent regions, got %d", expected, len(rf.Regions))
	}

	for i, r := range rf.Regions {
		if r.ID == "" {
			return domain.NewConfigError("regions", "entry %d has no id", i)
		}
		if _, dup := idx.parentByID[r.ID]; dup {
			return domain.NewConfigError("regions", "duplicate region %q", r.ID)
		}
		if r.Anchor == nil || r.Anchor.ID == "" || r.Anchor.Lat == nil || r.Anchor.Lon == nil {
			return domain.NewConfigError("regions", "region %q has no forecast anchor", r.ID)
		}
		name := r.Name
		if name == "" {
			name = r.ID
		}
		idx.parentByID[r.ID] = len(idx.parents)
		idx.parents = append(idx.parents, domain.ParentRegion{
			ID:   r.ID,
			Name: name,
			Anchor: domain.ForecastAnchor{
				ID:    r.Anchor.ID,
				Name:  r.Anchor.Name,
				Point: orb.Point{*r.Anchor.Lon, *r.Anchor.Lat},
			},
		})
	}
	return nil
}

func (idx *Index) loadCounties(data []byte, expected int) error {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return domain.NewConfigError("counties", "parse geojson: %v", err)
	}

	byParent := make([][]domain.AdminRegion, len(idx.parents))
	seen := make(map[string]bool, len(fc.Features))
	for i, f := range fc.Features {
		county, err := countyFromFeature(i, f)
		if err != nil {
			return err
		}
		if seen[county.ID] {
			return domain.NewConfigError("counties", "duplicate county %q", county.ID)
		}
		seen[county.ID] = true

		pi, ok := idx.parentByID[county.ParentID]
		if !ok {
			return domain.NewConfigError("counties", "county %q references unknown region %q", county.ID, county.ParentID)
		}
		byParent[pi] = append(byParent[pi], county)
	}

	if expected > 0 && len(seen) != expected {
		return domain.NewConfigError("counties", "expected %d counties, got %d", expected, len(seen))
	}

	// Counties are stored grouped by parent region so index order follows
	// the canonical region order.
	for pi := range idx.parents {
		if len(byParent[pi]) == 0 {
			return domain.NewConfigError("regions", "region %q has no counties", idx.parents[pi].ID)
		}
		for _, c := range byParent[pi] {
			idx.countyByID[c.ID] = len(idx.counties)
			idx.counties = append(idx.counties, c)
			idx.parents[pi].CountyIDs = append(idx.parents[pi].CountyIDs, c.ID)
			idx.byName[normalizeName(c.Name)] = c.ID
		}
	}
	return nil
}

func countyFromFeature(i int, f *geojson.Feature) (domain.AdminRegion, error) {
	id := fipsProperty(f.Properties["fips"])
	if id == "" {
		return domain.AdminRegion{}, domain.NewConfigError("counties", "feature %d has no fips", i)
	}
	name, _ := f.Properties["name"].(string)
	parent, _ := f.Properties["region"].(string)
	if name == "" {
		return domain.AdminRegion{}, domain.NewConfigError("counties", "county %q has no name", id)
	}

	mp, ok := toMultiPolygon(f.Geometry)
	if !ok {
		return domain.AdminRegion{}, domain.NewConfigError("counties", "county %q has no polygon", id)
	}

	lat, okLat := f.Properties["anchor_lat"].(float64)
	lon, okLon := f.Properties["anchor_lon"].(float64)
	if !okLat || !okLon {
		return domain.AdminRegion{}, domain.NewConfigError("counties", "county %q has no anchor point", id)
	}
	anchor := orb.Point{lon, lat}
	if !strictlyInside(mp, anchor) {
		return domain.AdminRegion{}, domain.NewConfigError("counties", "county %q anchor %v is not inside its polygon", id, anchor)
	}

	return domain.AdminRegion{
		ID:       id,
		Name:     name,
		ParentID: parent,
		Geometry: mp,
		Anchor:   anchor,
	}, nil
}

func fipsProperty(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%05d", int(t))
	default:
		return ""
	}
}

// toMultiPolygon normalizes polygonal geometry and closes open rings.
func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, bool) {
	var mp orb.MultiPolygon
	switch t := g.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{t}
	case orb.MultiPolygon:
		mp = t
	case orb.Bound:
		mp = orb.MultiPolygon{t.ToPolygon()}
	default:
		return nil, false
	}

	out := make(orb.MultiPolygon, 0, len(mp))
	for _, poly := range mp {
		if len(poly) == 0 || len(poly[0]) < 3 {
			continue
		}
		closed := make(orb.Polygon, len(poly))
		for ri, ring := range poly {
			closed[ri] = closeRing(ring)
		}
		out = append(out, closed)
	}
	return out, len(out) > 0
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) > 0 && !r.Closed() {
		r = append(slices.Clone(r), r[0])
	}
	return r
}

// strictlyInside reports whether p is inside mp and not on any ring edge.
func strictlyInside(mp orb.MultiPolygon, p orb.Point) bool {
	if !planar.MultiPolygonContains(mp, p) {
		return false
	}
	for _, poly := range mp {
		for _, ring := range poly {
			for i := 1; i < len(ring); i++ {
				if planar.DistanceFromSegment(ring[i-1], ring[i], p) < boundaryTolerance {
					return false
				}
			}
		}
	}
	return true
}

const boundaryTolerance = 1e-9

func normalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if i := strings.Index(n, ","); i >= 0 {
		n = strings.TrimSpace(n[:i])
	}
	n = strings.TrimSuffix(n, " county")
	n = strings.TrimSuffix(n, " parish")
	return strings.Join(strings.Fields(n), " ")
}

// ParentRegions returns the parent regions in canonical order.
func (idx *Index) ParentRegions() []domain.ParentRegion {
	return slices.Clone(idx.parents)
}

// Counties returns every county in index order.
func (idx *Index) Counties() []domain.AdminRegion {
	return idx.counties
}

// RegionsOf returns the counties of a parent region in order, or nil for an
// unknown region.
func (idx *Index) RegionsOf(parentID string) []domain.AdminRegion {
	pi, ok := idx.parentByID[parentID]
	if !ok {
		return nil
	}
	ids := idx.parents[pi].CountyIDs
	out := make([]domain.AdminRegion, len(ids))
	for i, id := range ids {
		out[i] = idx.counties[idx.countyByID[id]]
	}
	return out
}

// AnchorPoint returns the representative point of a parent region (its
// forecast anchor) or of a county.
func (idx *Index) AnchorPoint(regionID string) (orb.Point, bool) {
	if pi, ok := idx.parentByID[regionID]; ok {
		return idx.parents[pi].Anchor.Point, true
	}
	if ci, ok := idx.countyByID[regionID]; ok {
		return idx.counties[ci].Anchor, true
	}
	return orb.Point{}, false
}

// County looks up a county by FIPS code.
func (idx *Index) County(id string) (domain.AdminRegion, bool) {
	ci, ok := idx.countyByID[id]
	if !ok {
		return domain.AdminRegion{}, false
	}
	return idx.counties[ci], true
}

// CountyBySAME resolves an NWS SAME geocode to a county id.
func (idx *Index) CountyBySAME(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return "", false
	}
	id := code[1:]
	_, ok := idx.countyByID[id]
	return id, ok
}

// CountyByName resolves a county name as written in an NWS areaDesc
// ("Hinds", "Hinds County", "Hinds, MS").
func (idx *Index) CountyByName(name string) (string, bool) {
	id, ok := idx.byName[normalizeName(name)]
	return id, ok
}

// ParentOf returns the parent region id of a county.
func (idx *Index) ParentOf(countyID string) (string, bool) {
	c, ok := idx.County(countyID)
	if !ok {
		return "", false
	}
	return c.ParentID, true
}

// Order returns the position of a county in index order, or MaxInt when unknown.
func (idx *Index) Order(countyID string) int {
	if ci, ok := idx.countyByID[countyID]; ok {
		return ci
	}
	return math.MaxInt
}

// Anchors returns the forecast anchor of every parent region in canonical order.
func (idx *Index) Anchors() []domain.ForecastAnchor {
	out := make([]domain.ForecastAnchor, len(idx.parents))
	for i, p := range idx.parents {
		out[i] = p.Anchor
	}
	return out
}

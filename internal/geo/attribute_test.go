package geo_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
	"github.com/couchcryptid/weather-briefing-service/internal/geo"
	"github.com/couchcryptid/weather-briefing-service/internal/geo/geotest"
)

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAttributor(t *testing.T, kind geo.EngineKind) *geo.Attributor {
	t.Helper()
	idx := geotest.NewIndex()
	engine, err := geo.NewEngine(kind, idx)
	require.NoError(t, err)
	return geo.NewAttributor(idx, engine, geo.DefaultTropicalPolicy(), discardLogger())
}

func outlook(g orb.Geometry) domain.HazardFeature {
	return domain.OutlookHazard(domain.OutlookFeature{Source: domain.SourceSPC, Day: 1, Label: "SLGT", Geometry: g})
}

type failingEngine struct{}

func (failingEngine) Kind() geo.EngineKind { return geo.EngineExact }

func (failingEngine) Match(orb.Geometry, []domain.AdminRegion) ([]string, error) {
	return nil, geo.ErrExactUnavailable
}

// --- tests ---

func TestParseEngineKind(t *testing.T) {
	k, err := geo.ParseEngineKind("exact")
	require.NoError(t, err)
	assert.Equal(t, geo.EngineExact, k)

	k, err = geo.ParseEngineKind("centroid")
	require.NoError(t, err)
	assert.Equal(t, geo.EngineCentroid, k)

	_, err = geo.ParseEngineKind("shapely")
	assert.Error(t, err)
}

func TestAttribute_ContainingPolygon(t *testing.T) {
	target := geotest.CountyID(3, 1)
	hazard := outlook(geotest.Rect(-89.9, 34.1, -89.1, 34.9)) // inside the Central Middle cell, around its anchor

	for _, kind := range []geo.EngineKind{geo.EngineExact, geo.EngineCentroid} {
		t.Run(string(kind), func(t *testing.T) {
			res := newAttributor(t, kind).Attribute(hazard)
			assert.Equal(t, []string{target}, res.RegionIDs)
			assert.Equal(t, string(kind), res.Method)
		})
	}
}

func TestAttribute_HazardCoversCounty(t *testing.T) {
	hazard := outlook(geotest.Rect(-91.5, 29.5, -89.8, 31.2)) // covers county (7,0), clips (7,1), (6,0) and (6,1)

	exact := newAttributor(t, geo.EngineExact).Attribute(hazard)
	centroid := newAttributor(t, geo.EngineCentroid).Attribute(hazard)

	assert.Contains(t, exact.RegionIDs, geotest.CountyID(7, 0))
	assert.Contains(t, exact.RegionIDs, geotest.CountyID(7, 1))
	assert.Contains(t, exact.RegionIDs, geotest.CountyID(6, 0))
	assert.Equal(t, []string{geotest.CountyID(7, 0)}, centroid.RegionIDs)
}

func TestAttribute_RegionCellsMatchOnlyThatRegion(t *testing.T) {
	for _, kind := range []geo.EngineKind{geo.EngineExact, geo.EngineCentroid} {
		t.Run(string(kind), func(t *testing.T) {
			res := newAttributor(t, kind).Attribute(outlook(geotest.RegionCells(4)))
			assert.Equal(t, []string{
				geotest.CountyID(4, 0),
				geotest.CountyID(4, 1),
				geotest.CountyID(4, 2),
			}, res.RegionIDs)
		})
	}
}

func TestAttribute_ExactExcludesTouching(t *testing.T) {
	tests := []struct {
		name   string
		hazard orb.Polygon
	}{
		{"shared edge", geotest.Rect(-92, 30, -91, 31)},
		{"shared vertex", geotest.Rect(-92, 29, -91, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newAttributor(t, geo.EngineExact).Attribute(outlook(tt.hazard))
			assert.Empty(t, res.RegionIDs)
		})
	}
}

func TestAttribute_CentroidIsSubsetOfExact(t *testing.T) {
	hazards := []orb.Polygon{
		geotest.Rect(-90.9, 30.1, -90.6, 30.4),
		geotest.Rect(-90.6, 31.6, -88.4, 33.4),
		geotest.Rect(-91.2, 34.2, -89.0, 37.8),
		{{{-91, 30}, {-88, 33}, {-91, 36}, {-91, 30}}},
		tinySquare(geotest.CountyAnchor(3, 1), 1e-6),
	}
	exactA := newAttributor(t, geo.EngineExact)
	centroidA := newAttributor(t, geo.EngineCentroid)

	for i, h := range hazards {
		exact := exactA.Attribute(outlook(h))
		centroid := centroidA.Attribute(outlook(h))
		assert.Subset(t, exact.RegionIDs, centroid.RegionIDs, "hazard %d", i)
	}
}

func tinySquare(center orb.Point, half float64) orb.Polygon {
	return geotest.Rect(center.X()-half, center.Y()-half, center.X()+half, center.Y()+half)
}

func TestAttribute_ExactMatchesTinyHazardAroundAnchor(t *testing.T) {
	hazard := outlook(tinySquare(geotest.CountyAnchor(3, 1), 1e-6))

	exact := newAttributor(t, geo.EngineExact).Attribute(hazard)
	centroid := newAttributor(t, geo.EngineCentroid).Attribute(hazard)

	want := []string{geotest.CountyID(3, 1)}
	assert.Equal(t, want, centroid.RegionIDs)
	assert.Equal(t, want, exact.RegionIDs)
}

func TestAttribute_CentroidMissesClippedCounty(t *testing.T) {
	// Clips the corner of (7,0) without reaching its anchor at (-90.5, 30.5).
	hazard := outlook(geotest.Rect(-91.5, 29.5, -90.8, 30.2))

	exact := newAttributor(t, geo.EngineExact).Attribute(hazard)
	centroid := newAttributor(t, geo.EngineCentroid).Attribute(hazard)

	assert.Equal(t, []string{geotest.CountyID(7, 0)}, exact.RegionIDs)
	assert.Empty(t, centroid.RegionIDs)
}

func TestAttribute_MultiPolygonAndOpenRing(t *testing.T) {
	open := orb.Polygon{{{-90.9, 30.1}, {-90.1, 30.1}, {-90.1, 30.9}, {-90.9, 30.9}}}
	mp := orb.MultiPolygon{open, geotest.Rect(-88.9, 37.1, -88.1, 37.9)}

	res := newAttributor(t, geo.EngineExact).Attribute(outlook(mp))

	assert.Equal(t, []string{geotest.CountyID(0, 2), geotest.CountyID(7, 0)}, res.RegionIDs)
}

func TestAttribute_ExactFailureFallsBackToCentroid(t *testing.T) {
	idx := geotest.NewIndex()
	a := geo.NewAttributor(idx, failingEngine{}, geo.DefaultTropicalPolicy(), discardLogger())

	res := a.Attribute(outlook(geotest.RegionCells(0)))

	assert.Equal(t, geo.MethodCentroidFallback, res.Method)
	assert.Len(t, res.RegionIDs, 3)
}

func TestAttribute_AlertZonesWithoutGeometry(t *testing.T) {
	a := newAttributor(t, geo.EngineExact)

	t.Run("SAME codes", func(t *testing.T) {
		h := domain.AlertHazard(domain.Alert{
			ID:    "a1",
			Event: "Flood Watch",
			SAME:  []string{"0" + geotest.CountyID(5, 2), "0" + geotest.CountyID(5, 0), "048001"},
		})
		res := a.Attribute(h)
		assert.Equal(t, geo.MethodZone, res.Method)
		assert.Equal(t, []string{geotest.CountyID(5, 0), geotest.CountyID(5, 2)}, res.RegionIDs)
	})

	t.Run("area names", func(t *testing.T) {
		h := domain.AlertHazard(domain.Alert{
			ID:       "a2",
			Event:    "Heat Advisory",
			AreaDesc: "Delta East; Gulf Coast West; Somewhere Else",
		})
		res := a.Attribute(h)
		assert.Equal(t, []string{geotest.CountyID(2, 2), geotest.CountyID(7, 0)}, res.RegionIDs)
	})
}

func TestAttribute_NoGeometry(t *testing.T) {
	res := newAttributor(t, geo.EngineExact).Attribute(domain.AlertHazard(domain.Alert{ID: "a3", Event: "Special Weather Statement"}))

	assert.Empty(t, res.RegionIDs)
	assert.Equal(t, geo.MethodNone, res.Method)
}

func TestAttribute_PointAlert(t *testing.T) {
	h := domain.AlertHazard(domain.Alert{ID: "a4", Event: "Tornado Warning", Geometry: orb.Point{-89.3, 34.7}})

	res := newAttributor(t, geo.EngineExact).Attribute(h)

	assert.Equal(t, geo.MethodPoint, res.Method)
	assert.Equal(t, []string{geotest.CountyID(3, 1)}, res.RegionIDs)
}

func TestAttribute_TropicalPrecomputedDistance(t *testing.T) {
	a := newAttributor(t, geo.EngineExact)
	tropical := func(class string, miles float64) domain.HazardFeature {
		return domain.TropicalHazard(domain.TropicalSystem{ID: class, Name: class, Classification: class, DistanceMiles: &miles})
	}

	tests := []struct {
		name  string
		class string
		miles float64
		want  bool
	}{
		{"near depression", "TD", 350, true},
		{"near hurricane", "HU", 350, true},
		{"far hurricane", "HU", 500, true},
		{"far depression", "TD", 500, false},
		{"depression on near radius", "TD", 400, true},
		{"depression just past near radius", "TD", 400.5, false},
		{"hurricane on far radius", "HU", 600, true},
		{"depression on far radius", "TD", 600, false},
		{"beyond far hurricane", "MH", 650, false},
		{"beyond far depression", "TD", 650, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.Attribute(tropical(tt.class, tt.miles))
			assert.Equal(t, tt.want, res.Included)
			require.NotNil(t, res.DistanceMiles)
			assert.InDelta(t, tt.miles, *res.DistanceMiles, 1e-9)
			assert.Empty(t, res.RegionIDs)
		})
	}
}

func TestAttribute_TropicalPositionTiers(t *testing.T) {
	a := newAttributor(t, geo.EngineExact)
	pos := geotest.CountyAnchor(0, 0)

	depression := a.Attribute(domain.TropicalHazard(domain.TropicalSystem{ID: "td", Classification: "TD", Position: &pos, IntensityMPH: 35}))
	hurricane := a.Attribute(domain.TropicalHazard(domain.TropicalSystem{ID: "hu", Classification: "HU", Position: &pos, IntensityMPH: 100}))

	require.True(t, depression.Included)
	assert.InDelta(t, 0, *depression.DistanceMiles, 1e-6)
	assert.Len(t, depression.RegionIDs, 18) // rows 0-5 lie within 400 miles
	assert.Len(t, hurricane.RegionIDs, 24)
}

func TestAttribute_TropicalUnknownPosition(t *testing.T) {
	res := newAttributor(t, geo.EngineExact).Attribute(domain.TropicalHazard(domain.TropicalSystem{ID: "x", Name: "Mystery"}))

	assert.True(t, res.Included)
	assert.Nil(t, res.DistanceMiles)
	assert.Empty(t, res.RegionIDs)
}

func TestTropicalPolicy_ElevatedByWind(t *testing.T) {
	p := geo.NewTropicalPolicy(400, 600, nil)

	assert.True(t, p.Elevated(domain.HazardFeature{Classification: "PTC", WindMPH: 80}))
	assert.False(t, p.Elevated(domain.HazardFeature{Classification: "PTC", WindMPH: 60}))
}

func TestImpactTierAndWindThreat(t *testing.T) {
	assert.Equal(t, "direct", geo.ImpactTier(50))
	assert.Equal(t, "peripheral", geo.ImpactTier(150))
	assert.Equal(t, "indirect", geo.ImpactTier(350))

	assert.Equal(t, "hurricane", geo.WindThreat(74))
	assert.Equal(t, "tropical storm", geo.WindThreat(39))
	assert.Equal(t, "minimal", geo.WindThreat(30))
}

func TestMilesBetween(t *testing.T) {
	jackson := orb.Point{-90.18, 32.30}
	gulfport := orb.Point{-89.09, 30.37}

	assert.InDelta(t, 148, geo.MilesBetween(jackson, gulfport), 10)
	assert.Zero(t, geo.MilesBetween(jackson, jackson))
}

func TestNewEngine_Unknown(t *testing.T) {
	_, err := geo.NewEngine("quantum", geotest.NewIndex())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, geo.ErrExactUnavailable))
}

// Package geotest builds a synthetic county grid for tests and local runs.
//
// The grid has eight rows, one per parent region from north to south, and
// three one-degree counties per row:
//
//	row r, column c  →  lon [-91+c, -90+c], lat [37-r, 38-r]
//
// Each county's anchor is the center of its cell and each region's forecast
// anchor is the anchor of its middle county.
package geotest

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/weather-briefing-service/internal/geo"
)

// Regions are the parent regions in canonical order, one per grid row.
var Regions = []struct{ ID, Name string }{
	{"northwest", "Northwest"},
	{"northeast", "Northeast"},
	{"delta", "Delta"},
	{"central", "Central"},
	{"east-central", "East Central"},
	{"southwest", "Southwest"},
	{"pine-belt", "Pine Belt"},
	{"gulf-coast", "Gulf Coast"},
}

// CountiesPerRegion is the number of grid columns.
const CountiesPerRegion = 3

var columnNames = [CountiesPerRegion]string{"West", "Middle", "East"}

// Expect matches the grid totals.
func Expect() geo.Expect {
	return geo.Expect{Counties: len(Regions) * CountiesPerRegion, Regions: len(Regions)}
}

// CountyID returns the FIPS code of the county at row, col.
func CountyID(row, col int) string {
	return fmt.Sprintf("28%03d", (row*CountiesPerRegion+col)*2+1)
}

// CountyName returns the display name of the county at row, col.
func CountyName(row, col int) string {
	return Regions[row].Name + " " + columnNames[col]
}

// CountyCell is the county polygon at row, col.
func CountyCell(row, col int) orb.Polygon {
	return Rect(-91+float64(col), 37-float64(row), -90+float64(col), 38-float64(row))
}

// CountyAnchor is the center of the county at row, col.
func CountyAnchor(row, col int) orb.Point {
	return orb.Point{-90.5 + float64(col), 37.5 - float64(row)}
}

// RegionCells is the polygon covering exactly the three counties of a region row.
func RegionCells(row int) orb.Polygon {
	return Rect(-91, 37-float64(row), -88, 38-float64(row))
}

// AnchorID is the forecast anchor id of a region row.
func AnchorID(row int) string {
	return Regions[row].ID + "-anchor"
}

// Rect is a closed axis-aligned polygon.
func Rect(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}}
}

// CountiesGeoJSON is the county reference FeatureCollection for the grid.
func CountiesGeoJSON() []byte {
	fc := geojson.NewFeatureCollection()
	for row := range Regions {
		for col := 0; col < CountiesPerRegion; col++ {
			f := geojson.NewFeature(CountyCell(row, col))
			anchor := CountyAnchor(row, col)
			f.Properties["fips"] = CountyID(row, col)
			f.Properties["name"] = CountyName(row, col)
			f.Properties["region"] = Regions[row].ID
			f.Properties["anchor_lat"] = anchor.Lat()
			f.Properties["anchor_lon"] = anchor.Lon()
			fc.Append(f)
		}
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		panic(fmt.Sprintf("geotest: marshal counties: %v", err))
	}
	return data
}

// RegionsYAML is the region-anchor document for the grid.
func RegionsYAML() []byte {
	var b strings.Builder
	b.WriteString("regions:\n")
	for row, r := range Regions {
		anchor := CountyAnchor(row, 1)
		fmt.Fprintf(&b, "  - id: %s\n    name: %s\n", r.ID, r.Name)
		fmt.Fprintf(&b, "    anchor:\n      id: %s\n      name: %s\n      lat: %g\n      lon: %g\n",
			AnchorID(row), CountyName(row, 1), anchor.Lat(), anchor.Lon())
	}
	return []byte(b.String())
}

// NewIndex loads the grid. It panics on error since the fixture is static.
func NewIndex() *geo.Index {
	idx, err := geo.Load(CountiesGeoJSON(), RegionsYAML(), Expect())
	if err != nil {
		panic(fmt.Sprintf("geotest: load index: %v", err))
	}
	return idx
}

package domain

import "github.com/paulmach/orb"

// AdminRegion is a county: the unit hazards are attributed to.
type AdminRegion struct {
	ID       string // five digit FIPS code
	Name     string
	ParentID string
	Geometry orb.MultiPolygon
	Anchor   orb.Point
}

// SAME returns the NWS SAME code for the county.
func (r AdminRegion) SAME() string {
	return "0" + r.ID
}

// ForecastAnchor is the point whose NWS forecast represents a parent region.
type ForecastAnchor struct {
	ID    string    `json:"id" yaml:"id"`
	Name  string    `json:"name" yaml:"name"`
	Point orb.Point `json:"-" yaml:"-"`
}

// ParentRegion is a reporting region made of whole counties.
type ParentRegion struct {
	ID        string
	Name      string
	Anchor    ForecastAnchor
	CountyIDs []string
}

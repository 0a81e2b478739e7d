// Package domain models the inputs and output of a statewide weather briefing.
//
// # Data Sources
//
// Four upstream categories feed a briefing, each fetched independently and each
// allowed to fail on its own:
//
//	alerts     NWS active alerts (api.weather.gov/alerts/active)
//	forecasts  NWS point forecasts, one per parent-region anchor
//	outlooks   SPC convective and WPC excessive-rainfall outlook polygons
//	tropical   NHC active storms (CurrentStorms.json)
//
// A category that could not be fetched arrives as an absent [Optional] carrying
// the reason. Absence is never an error at this layer; it becomes a data gap.
//
// # Geography
//
// Counties ([AdminRegion]) are identified by their five digit FIPS code, e.g.
// "28049" for Hinds County. Each county belongs to exactly one [ParentRegion].
// All coordinates are longitude/latitude (WGS84). No reprojection is done, so
// areas and containment are computed in degree space. That is accurate enough
// for county-scale polygons at these latitudes but is not an equal-area result.
//
// NWS alerts without polygons list their zones as SAME codes, a leading "0"
// followed by the county FIPS code:
//
//	"028049"  →  county "28049"
//
// # Risk Labels
//
// SPC categorical outlooks use TSTM, MRGL, SLGT, ENH, MDT and HIGH. WPC
// excessive rainfall outlooks use MRGL, SLGT, MDT and HIGH. Both are mapped onto
// a single ordered [RiskLevel] so the highest risk per region can be compared
// across sources. Labels are matched case-insensitively and long forms
// ("Slight", "Enhanced") are accepted. Anything else maps to [RiskNone].
//
// # Tropical Units
//
// NHC reports intensity in knots. Wind thresholds in this package are in mph
// (39 tropical storm, 74 hurricane), so intensities are converted on ingest.
package domain

package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Optional is an input category that was either fetched or is known to have failed.
type Optional[T any] struct {
	value   T
	present bool
	reason  string
}

// Some wraps a fetched value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// Absent records that a category could not be fetched, and why.
func Absent[T any](reason string) Optional[T] {
	return Optional[T]{reason: reason}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// Present reports whether the category was fetched.
func (o Optional[T]) Present() bool { return o.present }

// Reason is the failure description of an absent value.
func (o Optional[T]) Reason() string { return o.reason }

// Inputs is everything one briefing run is built from.
type Inputs struct {
	Alerts    Optional[[]Alert]
	Forecasts Optional[map[string]PointForecast] // keyed by ForecastAnchor.ID
	Outlooks  Optional[[]OutlookSet]
	Tropical  Optional[[]TropicalSystem]
}

// Alert is an active NWS alert.
type Alert struct {
	ID        string
	Event     string
	Headline  string
	Severity  string // Extreme, Severe, Moderate, Minor, Unknown
	Certainty string
	Urgency   string
	Onset     time.Time
	Expires   time.Time
	AreaDesc  string   // semicolon separated county and zone names
	SAME      []string // SAME geocodes, e.g. "028049"
	Geometry  orb.Geometry
}

// PointForecast is the NWS forecast at one anchor. Err is set when the
// anchor's forecast could not be fetched.
type PointForecast struct {
	AnchorID string
	Location orb.Point
	Periods  []ForecastPeriod
	Totals   GridTotals
	Err      string
}

// GridTotals are the next 24 hours of gridpoint precipitation, in inches.
// A nil amount means the grid data was unavailable.
type GridTotals struct {
	QPFInches  *float64
	SnowInches *float64
}

// OK reports whether the forecast was fetched and has periods.
func (f PointForecast) OK() bool {
	return f.Err == "" && len(f.Periods) > 0
}

// ForecastPeriod is one named NWS forecast period ("Tonight", "Tuesday").
type ForecastPeriod struct {
	Name             string
	StartTime        time.Time
	IsDaytime        bool
	Temperature      int
	TemperatureUnit  string
	WindSpeed        string
	ShortForecast    string
	DetailedForecast string
	PrecipChance     *int
}

// OutlookSet is the result of querying one outlook source. Err is set when
// the source failed while others in the category succeeded.
type OutlookSet struct {
	Source   string // "spc" or "wpc"
	Features []OutlookFeature
	Err      string
}

// OutlookFeature is one risk polygon from an outlook day.
type OutlookFeature struct {
	Source   string
	Day      int
	Label    string
	Geometry orb.Geometry
}

// TropicalSystem is an active NHC storm. Position is nil when NHC did not
// report a usable fix; DistanceMiles is set when a distance was precomputed.
type TropicalSystem struct {
	ID             string
	Name           string
	Classification string // TD, TS, HU, MH, PTC, STD, STS, PC
	Position       *orb.Point
	IntensityMPH   float64
	PressureMB     int
	Movement       string
	DistanceMiles  *float64
}

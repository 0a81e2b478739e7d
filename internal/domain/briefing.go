package domain

import "time"

// Attribution pairs a county with a hazard that touches it.
type Attribution struct {
	RegionID string
	Hazard   HazardFeature
	Method   string
}

// Briefing is the fused result of one run.
type Briefing struct {
	RunID       string            `json:"runId,omitempty"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Edition     string            `json:"edition"`
	Engine      string            `json:"engine"`
	Regions     []RegionalSummary `json:"regions"`
	Statewide   Statewide         `json:"statewide"`
	DataGaps    []string          `json:"dataGaps"`
	SourcesUsed []string          `json:"sourcesUsed"`
}

// ArchiveEntry summarizes an archived briefing without its body.
type ArchiveEntry struct {
	RunID       string    `json:"runId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Edition     string    `json:"edition"`
	Engine      string    `json:"engine"`
	GapCount    int       `json:"gapCount"`
	HazardCount int       `json:"hazardCount"`
}

// RegionalSummary is the hazard and forecast picture for one parent region.
type RegionalSummary struct {
	ParentID     string          `json:"parentId"`
	Name         string          `json:"name"`
	Hazards      []HazardRef     `json:"hazards"`
	MaxRisk      []OutlookDay    `json:"maxRisk,omitempty"`
	ForecastText *string         `json:"forecastText"`
	High         *int            `json:"high"`
	Low          *int            `json:"low"`
	QPFInches    *float64        `json:"qpfInches"`
	SnowInches   *float64        `json:"snowInches"`
	Daily        []DailyForecast `json:"daily,omitempty"`
	Note         *string         `json:"note"`
}

// HazardRef is a hazard as listed under a region.
type HazardRef struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Source   string   `json:"source"`
	Label    string   `json:"label"`
	Day      int      `json:"day,omitempty"`
	Risk     string   `json:"risk,omitempty"`
	Severity string   `json:"severity,omitempty"`
	Method   string   `json:"method"`
	Counties []string `json:"counties"`
}

// Statewide holds lists that are reported for the whole state, not per region.
type Statewide struct {
	Alerts        []AlertSummary    `json:"alerts"`
	AlertsByEvent []EventGroup      `json:"alertsByEvent"`
	Tropical      []TropicalSummary `json:"tropical"`
	OutlookDays   []OutlookDay      `json:"outlookDays"`
	Forecast      StatewideForecast `json:"forecast"`
}

// StatewideForecast rolls the regional forecasts up into temperature ranges
// and the rainfall and winter picture.
type StatewideForecast struct {
	HighRange       *TempRange    `json:"highRange"`
	LowRange        *TempRange    `json:"lowRange"`
	MaxQPF          *RegionAmount `json:"maxQpf"`
	MaxSnow         *RegionAmount `json:"maxSnow"`
	ColdestLow      *RegionTemp   `json:"coldestLow"`
	Freezing        bool          `json:"freezing"`
	RainfallSummary *string       `json:"rainfallSummary"`
	WinterSummary   *string       `json:"winterSummary"`
}

// TempRange spans the regional values in degrees Fahrenheit.
type TempRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// RegionAmount is the largest amount and the region it falls in.
type RegionAmount struct {
	ParentID string  `json:"parentId"`
	Near     string  `json:"near"`
	Inches   float64 `json:"inches"`
}

// RegionTemp is a temperature and the region it falls in.
type RegionTemp struct {
	ParentID string `json:"parentId"`
	Near     string `json:"near"`
	DegreesF int    `json:"degreesF"`
}

// AlertSummary is an active alert as reported statewide.
type AlertSummary struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Severity  string    `json:"severity"`
	Certainty string    `json:"certainty,omitempty"`
	Headline  string    `json:"headline,omitempty"`
	Onset     time.Time `json:"onset,omitzero"`
	Expires   time.Time `json:"expires,omitzero"`
	Areas     []string  `json:"areas"`
}

// EventGroup counts alerts of one event type.
type EventGroup struct {
	Event       string `json:"event"`
	Count       int    `json:"count"`
	MaxSeverity string `json:"maxSeverity"`
}

// TropicalSummary is a tropical system close enough to be reported.
type TropicalSummary struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Classification string   `json:"classification"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	IntensityMPH   float64  `json:"intensityMph"`
	PressureMB     int      `json:"pressureMb,omitempty"`
	Movement       string   `json:"movement,omitempty"`
	DistanceMiles  *float64 `json:"distanceMiles"`
	Tier           string   `json:"tier"`
	WindThreat     string   `json:"windThreat"`
	CountiesInZone int      `json:"countiesInZone"`
}

// OutlookDay is the highest risk of one source on one outlook day.
type OutlookDay struct {
	Source  string    `json:"source"`
	Day     int       `json:"day"`
	MaxRisk RiskLevel `json:"maxRisk"`
}

// DailyForecast pairs a daytime period with the following night.
type DailyForecast struct {
	Name      string `json:"name"`
	High      *int   `json:"high"`
	Low       *int   `json:"low"`
	Summary   string `json:"summary"`
	RainPct   *int   `json:"rainPct"`
	NightNote string `json:"nightNote,omitempty"`
}

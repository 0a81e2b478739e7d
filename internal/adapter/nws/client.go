// Package nws fetches active alerts and point forecasts from the National
// Weather Service API.
package nws

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

// DefaultBaseURL is the public NWS API.
const DefaultBaseURL = "https://api.weather.gov"

// Client talks to api.weather.gov. Requests are paced by a shared limiter
// and always carry the configured User-Agent, which NWS requires.
type Client struct {
	baseURL    string
	userAgent  string
	area       string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates an NWS client for one state or marine area.
func NewClient(baseURL, userAgent, area string, perSecond float64, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		area:      area,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  logger,
	}
}

// FetchAlerts returns the active alerts for the configured area.
func (c *Client) FetchAlerts(ctx context.Context) ([]domain.Alert, error) {
	params := url.Values{"area": {c.area}}
	var fc alertCollection
	if err := c.getJSON(ctx, c.baseURL+"/alerts/active?"+params.Encode(), "alerts", &fc); err != nil {
		return nil, err
	}

	alerts := make([]domain.Alert, 0, len(fc.Features))
	for _, f := range fc.Features {
		alerts = append(alerts, f.toDomain())
	}
	c.logger.Debug("nws alerts fetched", "area", c.area, "count", len(alerts))
	return alerts, nil
}

// Locate resolves a coordinate to its forecast grid cell.
func (c *Client) Locate(ctx context.Context, lat, lon float64) (domain.GridPoint, error) {
	u := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, lat, lon)
	var p pointResponse
	if err := c.getJSON(ctx, u, "points", &p); err != nil {
		return domain.GridPoint{}, err
	}
	return domain.GridPoint{
		Office:      p.Properties.GridID,
		GridX:       p.Properties.GridX,
		GridY:       p.Properties.GridY,
		ForecastURL: p.Properties.Forecast,
		GridDataURL: p.Properties.ForecastGridData,
	}, nil
}

// FetchForecast returns the periods of a grid forecast.
func (c *Client) FetchForecast(ctx context.Context, gp domain.GridPoint) ([]domain.ForecastPeriod, error) {
	var fr forecastResponse
	if err := c.getJSON(ctx, gp.ForecastURL, "forecast", &fr); err != nil {
		return nil, err
	}
	periods := make([]domain.ForecastPeriod, 0, len(fr.Properties.Periods))
	for _, p := range fr.Properties.Periods {
		periods = append(periods, p.toDomain())
	}
	return periods, nil
}

// gridHours is how many leading gridpoint values are summed, matching the
// hourly layers NWS serves for most offices.
const gridHours = 24

const mmPerInch = 25.4

// FetchGridTotals sums the leading QPF and snowfall values of the raw
// gridpoint data. A layer with no values leaves its amount nil.
func (c *Client) FetchGridTotals(ctx context.Context, gp domain.GridPoint) (domain.GridTotals, error) {
	if gp.GridDataURL == "" {
		return domain.GridTotals{}, nil
	}
	var gr gridDataResponse
	if err := c.getJSON(ctx, gp.GridDataURL, "grid data", &gr); err != nil {
		return domain.GridTotals{}, err
	}
	return domain.GridTotals{
		QPFInches:  gr.Properties.QPF.inches(2),
		SnowInches: gr.Properties.Snowfall.inches(1),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, fullURL, what string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", what, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("nws API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", what, err)
	}
	return nil
}

// NWS API response types.

type alertCollection struct {
	Features []alertFeature `json:"features"`
}

type alertFeature struct {
	ID         string            `json:"id"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties alertProperties   `json:"properties"`
}

type alertProperties struct {
	ID        string     `json:"id"`
	Event     string     `json:"event"`
	Headline  string     `json:"headline"`
	Severity  string     `json:"severity"`
	Certainty string     `json:"certainty"`
	Urgency   string     `json:"urgency"`
	AreaDesc  string     `json:"areaDesc"`
	Effective *time.Time `json:"effective"`
	Onset     *time.Time `json:"onset"`
	Expires   *time.Time `json:"expires"`
	Ends      *time.Time `json:"ends"`
	Geocode   struct {
		SAME []string `json:"SAME"`
	} `json:"geocode"`
}

func (f alertFeature) toDomain() domain.Alert {
	p := f.Properties
	a := domain.Alert{
		ID:        cmp.Or(p.ID, f.ID),
		Event:     p.Event,
		Headline:  p.Headline,
		Severity:  p.Severity,
		Certainty: p.Certainty,
		Urgency:   p.Urgency,
		AreaDesc:  p.AreaDesc,
		SAME:      p.Geocode.SAME,
		Onset:     firstTime(p.Onset, p.Effective),
		Expires:   firstTime(p.Ends, p.Expires),
	}
	if f.Geometry != nil {
		a.Geometry = f.Geometry.Geometry()
	}
	return a
}

type pointResponse struct {
	Properties struct {
		GridID   string `json:"gridId"`
		GridX    int    `json:"gridX"`
		GridY    int    `json:"gridY"`
		Forecast         string `json:"forecast"`
		ForecastGridData string `json:"forecastGridData"`
	} `json:"properties"`
}

type gridDataResponse struct {
	Properties struct {
		QPF      gridLayer `json:"quantitativePrecipitation"`
		Snowfall gridLayer `json:"snowfallAmount"`
	} `json:"properties"`
}

type gridLayer struct {
	UOM    string `json:"uom"`
	Values []struct {
		ValidTime string   `json:"validTime"`
		Value     *float64 `json:"value"`
	} `json:"values"`
}

// inches sums the first gridHours values, converted from millimeters unless
// the layer is already in inches, and rounds to the given decimals.
func (l gridLayer) inches(decimals int) *float64 {
	if len(l.Values) == 0 {
		return nil
	}
	total := 0.0
	for _, v := range l.Values[:min(len(l.Values), gridHours)] {
		if v.Value != nil {
			total += *v.Value
		}
	}
	if !strings.HasSuffix(l.UOM, ":in") {
		total /= mmPerInch
	}
	scale := math.Pow(10, float64(decimals))
	total = math.Round(total*scale) / scale
	return &total
}

type forecastResponse struct {
	Properties struct {
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

type forecastPeriod struct {
	Name             string    `json:"name"`
	StartTime        time.Time `json:"startTime"`
	IsDaytime        bool      `json:"isDaytime"`
	Temperature      int       `json:"temperature"`
	TemperatureUnit  string    `json:"temperatureUnit"`
	WindSpeed        string    `json:"windSpeed"`
	ShortForecast    string    `json:"shortForecast"`
	DetailedForecast string    `json:"detailedForecast"`
	PoP              struct {
		Value *float64 `json:"value"`
	} `json:"probabilityOfPrecipitation"`
}

func (p forecastPeriod) toDomain() domain.ForecastPeriod {
	fp := domain.ForecastPeriod{
		Name:             p.Name,
		StartTime:        p.StartTime,
		IsDaytime:        p.IsDaytime,
		Temperature:      p.Temperature,
		TemperatureUnit:  p.TemperatureUnit,
		WindSpeed:        p.WindSpeed,
		ShortForecast:    p.ShortForecast,
		DetailedForecast: p.DetailedForecast,
	}
	if p.PoP.Value != nil {
		pct := int(math.Round(*p.PoP.Value))
		fp.PrecipChance = &pct
	}
	return fp
}

func firstTime(ts ...*time.Time) time.Time {
	for _, t := range ts {
		if t != nil && !t.IsZero() {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Package nhc fetches active tropical systems from the National Hurricane
// Center.
package nhc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

// DefaultURL is the NHC active storms feed.
const DefaultURL = "https://www.nhc.noaa.gov/CurrentStorms.json"

// Client reads the CurrentStorms feed.
type Client struct {
	url        string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an NHC feed client.
func NewClient(url, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url:       url,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchStorms returns every active storm. Inclusion by distance is decided
// downstream, so nothing is filtered here.
func (c *Client) FetchStorms(ctx context.Context) ([]domain.TropicalSystem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nhc request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("nhc error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var feed currentStorms
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	systems := make([]domain.TropicalSystem, 0, len(feed.ActiveStorms))
	for _, s := range feed.ActiveStorms {
		ts := s.toDomain()
		if ts.Position == nil {
			c.logger.Warn("tropical system without usable position", "storm", ts.ID, "name", ts.Name)
		}
		systems = append(systems, ts)
	}
	c.logger.Debug("nhc storms fetched", "count", len(systems))
	return systems, nil
}

// NHC feed types. Several fields arrive as either numbers or strings.

type currentStorms struct {
	ActiveStorms []storm `json:"activeStorms"`
}

type storm struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Classification   string    `json:"classification"`
	Intensity        flexValue `json:"intensity"` // knots
	Pressure         flexValue `json:"pressure"`  // mb
	Latitude         string    `json:"latitude"`
	Longitude        string    `json:"longitude"`
	LatitudeNumeric  *float64  `json:"latitudeNumeric"`
	LongitudeNumeric *float64  `json:"longitudeNumeric"`
	MovementDir      flexValue `json:"movementDir"`
	MovementSpeed    flexValue `json:"movementSpeed"` // mph
}

func (s storm) toDomain() domain.TropicalSystem {
	ts := domain.TropicalSystem{
		ID:             s.ID,
		Name:           s.Name,
		Classification: strings.ToUpper(s.Classification),
		Movement:       movement(s.MovementDir, s.MovementSpeed),
	}
	if kt, ok := s.Intensity.float(); ok {
		ts.IntensityMPH = math.Round(kt * domain.KnotsToMPH)
	}
	if mb, ok := s.Pressure.float(); ok {
		ts.PressureMB = int(mb)
	}

	lat, latOK := coordinate(s.LatitudeNumeric, s.Latitude, 'N', 'S')
	lon, lonOK := coordinate(s.LongitudeNumeric, s.Longitude, 'E', 'W')
	if latOK && lonOK {
		ts.Position = &orb.Point{lon, lat}
	}
	return ts
}

// flexValue holds a JSON number or numeric string such as "75" or "990 mb".
type flexValue struct {
	raw string
}

func (f *flexValue) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	f.raw = strings.TrimSpace(s)
	return nil
}

func (f flexValue) float() (float64, bool) {
	s := strings.ToLower(f.raw)
	for _, unit := range []string{"kt", "mph", "mb"} {
		s = strings.TrimSuffix(s, unit)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}

// coordinate prefers the numeric field and falls back to strings like
// "24.4N" or "88.1W".
func coordinate(numeric *float64, text string, pos, neg byte) (float64, bool) {
	if numeric != nil {
		return *numeric, true
	}
	s := strings.ToUpper(strings.TrimSpace(text))
	if s == "" {
		return 0, false
	}
	sign := 1.0
	switch s[len(s)-1] {
	case pos:
		s = s[:len(s)-1]
	case neg:
		sign = -1
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return sign * v, true
}

var compass = [...]string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}

func movement(dir, speed flexValue) string {
	deg, dirOK := dir.float()
	mph, speedOK := speed.float()
	switch {
	case !speedOK:
		return ""
	case mph == 0:
		return "Stationary"
	case !dirOK:
		return fmt.Sprintf("%.0f mph", mph)
	}
	idx := int(math.Round(math.Mod(deg, 360)/22.5)) % len(compass)
	return fmt.Sprintf("%s at %.0f mph", compass[idx], mph)
}

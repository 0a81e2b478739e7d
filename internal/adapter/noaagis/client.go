// Package noaagis queries the NOAA GIS MapServer for SPC convective and WPC
// excessive rainfall outlook polygons.
package noaagis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

// DefaultBaseURL is the public NOAA map services host.
const DefaultBaseURL = "https://mapservices.weather.noaa.gov"

// Layer is one outlook day within a MapServer service.
type Layer struct {
	ID  int
	Day int
}

// Service is a MapServer outlook service.
type Service struct {
	Source string
	Path   string
	Layers []Layer
}

// Services queried by default.
var (
	SPCService = Service{
		Source: domain.SourceSPC,
		Path:   "/vector/rest/services/outlooks/SPC_wx_outlks/MapServer",
		Layers: []Layer{{ID: 1, Day: 1}, {ID: 2, Day: 2}, {ID: 3, Day: 3}},
	}
	WPCService = Service{
		Source: domain.SourceWPC,
		Path:   "/vector/rest/services/outlooks/wpc_qpf/MapServer",
		Layers: []Layer{{ID: 1, Day: 1}, {ID: 2, Day: 2}, {ID: 3, Day: 3}},
	}
)

// labelFields are the attribute names that carry the risk category, in the
// order they are tried.
var labelFields = []string{"label", "LABEL", "dn", "DN", "label2", "outlook", "OUTLOOK", "category", "cat"}

// Client fetches outlook polygons clipped to a bounding box.
type Client struct {
	baseURL    string
	bbox       orb.Bound
	services   []Service
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a MapServer client for the SPC and WPC services.
func NewClient(baseURL string, bbox orb.Bound, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		bbox:     bbox,
		services: []Service{SPCService, WPCService},
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchOutlooks queries every service concurrently and returns one
// OutlookSet per service. A service whose layers all failed carries Err.
// The call fails only when every service failed.
func (c *Client) FetchOutlooks(ctx context.Context) ([]domain.OutlookSet, error) {
	sets := make([]domain.OutlookSet, len(c.services))

	var g errgroup.Group
	for i, svc := range c.services {
		g.Go(func() error {
			sets[i] = c.fetchService(ctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	var errs []string
	for _, s := range sets {
		if s.Err != "" {
			errs = append(errs, s.Source+": "+s.Err)
		}
	}
	if len(errs) == len(sets) && len(sets) > 0 {
		return nil, errors.New(strings.Join(errs, "; "))
	}
	return sets, nil
}

func (c *Client) fetchService(ctx context.Context, svc Service) domain.OutlookSet {
	set := domain.OutlookSet{Source: svc.Source, Features: []domain.OutlookFeature{}}
	var lastErr error
	failed := 0
	for _, layer := range svc.Layers {
		features, err := c.fetchLayer(ctx, svc, layer)
		if err != nil {
			c.logger.Warn("outlook layer fetch failed",
				"source", svc.Source,
				"layer", layer.ID,
				"day", layer.Day,
				"error", err,
			)
			failed++
			lastErr = err
			continue
		}
		set.Features = append(set.Features, features...)
	}
	if failed == len(svc.Layers) && lastErr != nil {
		set.Err = lastErr.Error()
	}
	return set
}

func (c *Client) fetchLayer(ctx context.Context, svc Service, layer Layer) ([]domain.OutlookFeature, error) {
	params := url.Values{
		"where":          {"1=1"},
		"outFields":      {"*"},
		"geometryType":   {"esriGeometryEnvelope"},
		"geometry":       {c.envelope()},
		"inSR":           {"4326"},
		"spatialRel":     {"esriSpatialRelIntersects"},
		"outSR":          {"4326"},
		"returnGeometry": {"true"},
		"f":              {"geojson"},
	}
	u := fmt.Sprintf("%s%s/%d/query?%s", c.baseURL, svc.Path, layer.ID, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s layer %d request: %w", svc.Source, layer.ID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapserver error: status %d: %s", resp.StatusCode, truncate(body))
	}

	// MapServer reports query errors in a 200 response.
	var envelope struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("mapserver error: code %d: %s", envelope.Error.Code, envelope.Error.Message)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	out := make([]domain.OutlookFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		label, ok := riskLabel(svc.Source, f.Properties)
		if !ok {
			c.logger.Debug("outlook feature without risk category", "source", svc.Source, "day", layer.Day)
			continue
		}
		if f.Geometry == nil {
			continue
		}
		out = append(out, domain.OutlookFeature{
			Source:   svc.Source,
			Day:      layer.Day,
			Label:    label,
			Geometry: f.Geometry,
		})
	}
	return out, nil
}

func (c *Client) envelope() string {
	return fmt.Sprintf("%g,%g,%g,%g", c.bbox.Min.Lon(), c.bbox.Min.Lat(), c.bbox.Max.Lon(), c.bbox.Max.Lat())
}

// riskLabel finds the first attribute that parses to a risk category and
// returns the category's short label.
func riskLabel(source string, props geojson.Properties) (string, bool) {
	for _, key := range labelFields {
		v, ok := props[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.Itoa(int(t))
		default:
			s = fmt.Sprint(t)
		}
		if r := domain.ParseRisk(source, s); r != domain.RiskNone {
			return r.String(), true
		}
	}
	return "", false
}

func truncate(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

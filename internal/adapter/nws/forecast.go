package nws

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

// Forecaster fetches the point forecast of every region anchor.
type Forecaster struct {
	client  *Client
	locator domain.GridLocator
	logger  *slog.Logger
}

// NewForecaster resolves anchors through locator, usually a CachedLocator
// around the same client, and fetches forecasts through client.
func NewForecaster(client *Client, locator domain.GridLocator, logger *slog.Logger) *Forecaster {
	if locator == nil {
		locator = client
	}
	return &Forecaster{client: client, locator: locator, logger: logger}
}

// FetchForecasts returns one PointForecast per anchor, with 24-hour QPF and
// snowfall from the grid data when NWS serves it. An anchor that cannot be
// located or fetched is still present, with Err set. The call fails as a
// whole only when the context ends before any anchor succeeded.
func (f *Forecaster) FetchForecasts(ctx context.Context, anchors []domain.ForecastAnchor) (map[string]domain.PointForecast, error) {
	resolved, failed := domain.ResolveAnchors(ctx, f.locator, anchors, f.logger)

	out := make(map[string]domain.PointForecast, len(anchors))
	ok := 0
	for _, a := range anchors {
		pf := domain.PointForecast{AnchorID: a.ID, Location: a.Point}
		if err, bad := failed[a.ID]; bad {
			pf.Err = err.Error()
			out[a.ID] = pf
			continue
		}

		gp := resolved[a.ID]
		periods, err := f.client.FetchForecast(ctx, gp)
		if err != nil {
			f.logger.Warn("anchor forecast fetch failed", "anchor", a.ID, "error", err)
			pf.Err = err.Error()
			out[a.ID] = pf
			continue
		}
		pf.Periods = periods
		ok++

		// Grid totals are supplementary; the forecast stands without them.
		if totals, err := f.client.FetchGridTotals(ctx, gp); err != nil {
			f.logger.Warn("anchor grid data fetch failed", "anchor", a.ID, "error", err)
		} else {
			pf.Totals = totals
		}
		out[a.ID] = pf
	}

	if ok == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return out, nil
}

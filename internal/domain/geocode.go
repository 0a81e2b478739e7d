package domain

import (
	"context"
	"errors"
	"log/slog"
)

// ResolveAnchors locates the forecast grid cell of every anchor. Anchors that
// cannot be located are returned in failed with the reason; the rest of the
// anchors are still resolved.
func ResolveAnchors(ctx context.Context, locator GridLocator, anchors []ForecastAnchor, logger *slog.Logger) (resolved map[string]GridPoint, failed map[string]error) {
	resolved = make(map[string]GridPoint, len(anchors))
	failed = make(map[string]error)
	if locator == nil {
		for _, a := range anchors {
			failed[a.ID] = errors.New("no grid locator configured")
		}
		return resolved, failed
	}

	for _, a := range anchors {
		if ctx.Err() != nil {
			failed[a.ID] = ctx.Err()
			continue
		}
		gp, err := locator.Locate(ctx, a.Point.Lat(), a.Point.Lon())
		if err != nil {
			logger.Warn("anchor grid lookup failed",
				"anchor", a.ID,
				"lat", a.Point.Lat(),
				"lon", a.Point.Lon(),
				"error", err,
			)
			failed[a.ID] = err
			continue
		}
		if gp.ForecastURL == "" {
			failed[a.ID] = errors.New("grid point has no forecast url")
			continue
		}
		resolved[a.ID] = gp
	}
	return resolved, failed
}

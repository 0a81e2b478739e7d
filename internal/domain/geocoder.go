package domain

import "context"

// GridPoint is the NWS forecast grid cell covering a coordinate.
type GridPoint struct {
	Office      string
	GridX       int
	GridY       int
	ForecastURL string
	GridDataURL string // raw gridpoint layers: QPF, snowfall
}

// GridLocator resolves coordinates to NWS forecast grid cells.
type GridLocator interface {
	Locate(ctx context.Context, lat, lon float64) (GridPoint, error)
}

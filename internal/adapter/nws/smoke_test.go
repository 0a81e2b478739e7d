//go:build smoke

package nws

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
	"github.com/couchcryptid/weather-briefing-service/internal/observability"
)

// These tests hit the real api.weather.gov and need network access.
// Run with: NWS_USER_AGENT="you (you@example.com)" go test -tags=smoke ./internal/adapter/nws/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	ua := os.Getenv("NWS_USER_AGENT")
	if ua == "" {
		t.Fatal("NWS_USER_AGENT must be set to run smoke tests")
	}
	return NewClient(DefaultBaseURL, ua, "MS", 1, 15*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_FetchAlerts(t *testing.T) {
	c := smokeClient(t)

	alerts, err := c.FetchAlerts(context.Background())
	require.NoError(t, err)
	for _, a := range alerts {
		assert.NotEmpty(t, a.ID)
		assert.NotEmpty(t, a.Event)
	}
}

func TestSmoke_ForecastForJackson(t *testing.T) {
	c := smokeClient(t)
	locator := NewCachedLocator(c, DefaultPointsTTL, observability.NewMetricsForTesting())
	f := NewForecaster(c, locator, slog.New(slog.NewTextHandler(io.Discard, nil)))

	anchors := []domain.ForecastAnchor{{ID: "jackson", Name: "Jackson", Point: orb.Point{-90.18, 32.30}}}
	got, err := f.FetchForecasts(context.Background(), anchors)
	require.NoError(t, err)

	pf, ok := got["jackson"]
	require.True(t, ok)
	require.Empty(t, pf.Err)
	assert.NotEmpty(t, pf.Periods)
	assert.NotEmpty(t, pf.Periods[0].Name)
}

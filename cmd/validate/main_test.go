package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-briefing-service/internal/geo"
	"github.com/couchcryptid/weather-briefing-service/internal/geo/geotest"
)

func writeFixture(t *testing.T) (counties, regions string) {
	t.Helper()
	dir := t.TempDir()
	counties = filepath.Join(dir, "counties.geojson")
	regions = filepath.Join(dir, "regions.yaml")
	require.NoError(t, os.WriteFile(counties, geotest.CountiesGeoJSON(), 0o644))
	require.NoError(t, os.WriteFile(regions, geotest.RegionsYAML(), 0o644))
	return counties, regions
}

func TestRun_ValidFixture(t *testing.T) {
	counties, regions := writeFixture(t)
	var out bytes.Buffer

	code := run(&out, counties, regions, geotest.Expect())

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "PASS")
	assert.Contains(t, out.String(), "gulf-coast")
	assert.Contains(t, out.String(), "Counties: 24  Regions: 8")
}

func TestRun_WrongExpectedCount(t *testing.T) {
	counties, regions := writeFixture(t)
	var out bytes.Buffer

	code := run(&out, counties, regions, geo.Expect{Counties: 82, Regions: 8})

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FAIL")
	assert.Contains(t, out.String(), "counties")
}

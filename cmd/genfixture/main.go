// Command genfixture writes the synthetic county grid used by the tests as a
// county GeoJSON file and a region-anchor YAML file, so the service can run
// locally without the full state reference data.
//
// Usage:
//
//	go run ./cmd/genfixture -out-dir data/fixture
//	COUNTIES_PATH=data/fixture/counties.geojson \
//	REGIONS_PATH=data/fixture/regions.yaml \
//	EXPECTED_COUNTIES=24 go run ./cmd/briefing
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/couchcryptid/weather-briefing-service/internal/geo"
	"github.com/couchcryptid/weather-briefing-service/internal/geo/geotest"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "data/fixture", "directory to write counties.geojson and regions.yaml into")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	counties := geotest.CountiesGeoJSON()
	regions := geotest.RegionsYAML()

	// Round-trip through the loader so a broken fixture never reaches disk.
	expect := geotest.Expect()
	if _, err := geo.Load(counties, regions, expect); err != nil {
		return fmt.Errorf("fixture does not load: %w", err)
	}

	countiesPath := filepath.Join(*outDir, "counties.geojson")
	regionsPath := filepath.Join(*outDir, "regions.yaml")
	if err := os.WriteFile(countiesPath, counties, 0o644); err != nil {
		return fmt.Errorf("write counties: %w", err)
	}
	if err := os.WriteFile(regionsPath, regions, 0o644); err != nil {
		return fmt.Errorf("write regions: %w", err)
	}

	log.Printf("wrote %s (%d counties) and %s (%d regions)", countiesPath, expect.Counties, regionsPath, expect.Regions)
	log.Printf("set EXPECTED_COUNTIES=%d EXPECTED_REGIONS=%d when running against this fixture", expect.Counties, expect.Regions)
	return nil
}

// Command validate loads the county and region reference files the way the
// service does and prints a partition report: every parent region with its
// counties and forecast anchor. It exits 1 when the data is rejected.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -counties config/counties.geojson \
//	  -regions config/regions.yaml \
//	  -expected-counties 82 -expected-regions 8
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
	"github.com/couchcryptid/weather-briefing-service/internal/geo"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	counties := flag.String("counties", "config/counties.geojson", "county reference GeoJSON")
	regions := flag.String("regions", "config/regions.yaml", "region-anchor YAML")
	expectedCounties := flag.Int("expected-counties", 82, "expected number of counties")
	expectedRegions := flag.Int("expected-regions", 8, "expected number of parent regions")
	flag.Parse()

	os.Exit(run(os.Stdout, *counties, *regions, geo.Expect{Counties: *expectedCounties, Regions: *expectedRegions}))
}

func run(w io.Writer, countiesPath, regionsPath string, expect geo.Expect) int {
	fmt.Fprintln(w, "=== Reference Data Validation ===")
	fmt.Fprintln(w)

	idx, err := geo.LoadFiles(countiesPath, regionsPath, expect)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(w, "  %-42s \033[31mFAIL\033[0m\n\n", "load")
			fmt.Fprintf(w, "  %s: %s\n", cfgErr.Field, cfgErr.Reason)
			return 1
		}
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		checkPartition(idx),
		checkAnchors(idx),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	for _, pr := range idx.ParentRegions() {
		members := idx.RegionsOf(pr.ID)
		fmt.Fprintf(w, "%-14s %-20s %3d counties  anchor %s (%.4f, %.4f)\n",
			pr.ID, pr.Name, len(members), pr.Anchor.Name, pr.Anchor.Point.Lat(), pr.Anchor.Point.Lon())
	}
	fmt.Fprintf(w, "\nCounties: %d  Regions: %d\n", len(idx.Counties()), len(idx.ParentRegions()))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for _, e := range p.errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

// checkPartition verifies every county sits in exactly one parent region.
func checkPartition(idx *geo.Index) *phase {
	p := &phase{name: "Every county in exactly one region"}
	seen := make(map[string]string)
	for _, pr := range idx.ParentRegions() {
		members := idx.RegionsOf(pr.ID)
		if len(members) == 0 {
			p.errorf("region %s has no counties", pr.ID)
		}
		for _, c := range members {
			if other, dup := seen[c.ID]; dup {
				p.errorf("county %s in both %s and %s", c.ID, other, pr.ID)
			}
			seen[c.ID] = pr.ID
		}
	}
	for _, c := range idx.Counties() {
		if _, ok := seen[c.ID]; !ok {
			p.errorf("county %s (%s) has no parent region", c.ID, c.Name)
		}
	}
	return p
}

// checkAnchors verifies each region's forecast anchor falls in one of its own counties.
func checkAnchors(idx *geo.Index) *phase {
	p := &phase{name: "Forecast anchors inside their region"}
	for _, pr := range idx.ParentRegions() {
		inside := false
		for _, c := range idx.RegionsOf(pr.ID) {
			if planar.MultiPolygonContains(c.Geometry, pr.Anchor.Point) {
				inside = true
				break
			}
		}
		if !inside {
			p.errorf("anchor %s of %s lies outside the region's counties", pr.Anchor.ID, pr.ID)
		}
	}
	return p
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/paulmach/orb"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Reference geography. The county file is not shipped: build it from the
	// Census county shapes, or run cmd/genfixture for the 24-county test grid.
	CountiesPath     string
	RegionsPath      string
	ExpectedCounties int
	ExpectedRegions  int
	GeometryEngine   string

	// Attribution policy.
	TropicalNearMiles       float64
	TropicalFarMiles        float64
	TropicalElevatedClasses []string
	AnchorMaxMiles          float64

	// Scheduling. A zero RunInterval runs a single briefing.
	RunInterval  time.Duration
	FetchTimeout time.Duration

	// Upstream sources.
	NWSBaseURL       string
	NWSUserAgent     string
	NWSArea          string
	NWSRatePerSecond float64
	NOAAGISBaseURL   string
	NHCURL           string
	StateBBox        orb.Bound

	// Sinks.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaBriefingTopic string
	ArchivePath        string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	runInterval, err := parseDuration("RUN_INTERVAL", "0", true)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s", false)
	if err != nil {
		return nil, err
	}

	expectedCounties, err := parsePositiveInt("EXPECTED_COUNTIES", 82)
	if err != nil {
		return nil, err
	}
	expectedRegions, err := parsePositiveInt("EXPECTED_REGIONS", 8)
	if err != nil {
		return nil, err
	}

	near, err := parsePositiveFloat("TROPICAL_NEAR_MILES", 400)
	if err != nil {
		return nil, err
	}
	far, err := parsePositiveFloat("TROPICAL_FAR_MILES", 600)
	if err != nil {
		return nil, err
	}
	anchorMax, err := parsePositiveFloat("ANCHOR_MAX_MILES", 60)
	if err != nil {
		return nil, err
	}
	rate, err := parsePositiveFloat("NWS_RATE_PER_SECOND", 1)
	if err != nil {
		return nil, err
	}

	bbox, err := parseBBox(sharedcfg.EnvOrDefault("STATE_BBOX", "-91.7,30.1,-88.0,35.0"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CountiesPath:     sharedcfg.EnvOrDefault("COUNTIES_PATH", "config/counties.geojson"),
		RegionsPath:      sharedcfg.EnvOrDefault("REGIONS_PATH", "config/regions.yaml"),
		ExpectedCounties: expectedCounties,
		ExpectedRegions:  expectedRegions,
		GeometryEngine:   strings.ToLower(sharedcfg.EnvOrDefault("GEOMETRY_ENGINE", "exact")),

		TropicalNearMiles:       near,
		TropicalFarMiles:        far,
		TropicalElevatedClasses: parseList(sharedcfg.EnvOrDefault("TROPICAL_ELEVATED_CLASSES", "HU,MH,TS")),
		AnchorMaxMiles:          anchorMax,

		RunInterval:  runInterval,
		FetchTimeout: fetchTimeout,

		NWSBaseURL:       strings.TrimRight(sharedcfg.EnvOrDefault("NWS_BASE_URL", "https://api.weather.gov"), "/"),
		NWSUserAgent:     sharedcfg.EnvOrDefault("NWS_USER_AGENT", "weather-briefing-service (ops@example.com)"),
		NWSArea:          strings.ToUpper(sharedcfg.EnvOrDefault("NWS_AREA", "MS")),
		NWSRatePerSecond: rate,
		NOAAGISBaseURL:   strings.TrimRight(sharedcfg.EnvOrDefault("NOAA_GIS_BASE_URL", "https://mapservices.weather.noaa.gov"), "/"),
		NHCURL:           sharedcfg.EnvOrDefault("NHC_URL", "https://www.nhc.noaa.gov/CurrentStorms.json"),
		StateBBox:        bbox,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaBriefingTopic: sharedcfg.EnvOrDefault("KAFKA_BRIEFING_TOPIC", "weather-briefings"),
		ArchivePath:        os.Getenv("ARCHIVE_PATH"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.GeometryEngine != "exact" && cfg.GeometryEngine != "centroid" {
		return nil, errors.New("GEOMETRY_ENGINE must be exact or centroid")
	}
	if cfg.TropicalNearMiles > cfg.TropicalFarMiles {
		return nil, errors.New("TROPICAL_NEAR_MILES must not exceed TROPICAL_FAR_MILES")
	}
	if cfg.NWSUserAgent == "" {
		return nil, errors.New("NWS_USER_AGENT is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaEnabled && cfg.KafkaBriefingTopic == "" {
		return nil, errors.New("KAFKA_BRIEFING_TOPIC is required")
	}

	return cfg, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseBBox reads "minLon,minLat,maxLon,maxLat".
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.New("invalid STATE_BBOX: want minLon,minLat,maxLon,maxLat")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid STATE_BBOX: %w", err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return orb.Bound{}, errors.New("invalid STATE_BBOX: min must be below max")
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

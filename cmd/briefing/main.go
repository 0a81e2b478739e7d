package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/weather-briefing-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-briefing-service/internal/adapter/kafka"
	"github.com/couchcryptid/weather-briefing-service/internal/adapter/nhc"
	"github.com/couchcryptid/weather-briefing-service/internal/adapter/noaagis"
	"github.com/couchcryptid/weather-briefing-service/internal/adapter/nws"
	"github.com/couchcryptid/weather-briefing-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-briefing-service/internal/briefing"
	"github.com/couchcryptid/weather-briefing-service/internal/config"
	"github.com/couchcryptid/weather-briefing-service/internal/domain"
	"github.com/couchcryptid/weather-briefing-service/internal/geo"
	"github.com/couchcryptid/weather-briefing-service/internal/observability"
	"github.com/couchcryptid/weather-briefing-service/internal/pipeline"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	idx, err := geo.LoadFiles(cfg.CountiesPath, cfg.RegionsPath, geo.Expect{
		Counties: cfg.ExpectedCounties,
		Regions:  cfg.ExpectedRegions,
	})
	if err != nil {
		logger.Error("failed to load reference data", "error", err, "config_error", domain.IsConfigError(err))
		os.Exit(1)
	}
	logger.Info("reference data loaded", "counties", len(idx.Counties()), "regions", len(idx.ParentRegions()))

	engine := newEngine(cfg, idx, logger)
	metrics.EngineInfo.WithLabelValues(string(engine.Kind())).Set(1)

	policy := geo.NewTropicalPolicy(cfg.TropicalNearMiles, cfg.TropicalFarMiles, cfg.TropicalElevatedClasses)
	attributor := geo.NewAttributor(idx, engine, policy, logger)
	assembler := briefing.NewAssembler(attributor, briefing.NewGrouper(idx, cfg.AnchorMaxMiles), logger)

	nwsClient := nws.NewClient(cfg.NWSBaseURL, cfg.NWSUserAgent, cfg.NWSArea, cfg.NWSRatePerSecond, cfg.FetchTimeout, logger)
	locator := nws.NewCachedLocator(nwsClient, nws.DefaultPointsTTL, metrics)
	sources := pipeline.Sources{
		Alerts:    nwsClient,
		Forecasts: nws.NewForecaster(nwsClient, locator, logger),
		Outlooks:  noaagis.NewClient(cfg.NOAAGISBaseURL, cfg.StateBBox, cfg.FetchTimeout, logger),
		Tropical:  nhc.NewClient(cfg.NHCURL, cfg.NWSUserAgent, cfg.FetchTimeout, logger),
	}

	var sinks []pipeline.Sink
	var closers []io.Closer
	var archive *sqlite.Archive

	if cfg.ArchivePath != "" {
		archive, err = sqlite.Open(cfg.ArchivePath)
		if err != nil {
			logger.Error("failed to open briefing archive", "error", err, "path", cfg.ArchivePath)
			os.Exit(1)
		}
		sinks = append(sinks, archive)
		closers = append(closers, archive)
		logger.Info("briefing archive enabled", "path", cfg.ArchivePath)
	}
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		closers = append(closers, writer)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaBriefingTopic)
	}

	// Each HTTP request is already bounded by FETCH_TIMEOUT; the stage as a
	// whole must finish before the next tick.
	p := pipeline.New(sources, assembler, sinks, logger, metrics, pipeline.Options{
		Anchors:      idx.Anchors(),
		RunInterval:  cfg.RunInterval,
		FetchTimeout: cfg.RunInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var history httpadapter.History
	if archive != nil {
		history = archive
		seedLatest(ctx, p, archive, logger)
	}

	code := 0
	if cfg.RunInterval <= 0 {
		code = runOnce(ctx, p, logger)
	} else {
		serve(ctx, cfg, p, history, logger)
	}

	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}
	logger.Info("shutdown complete")
	if code != 0 {
		os.Exit(code)
	}
}

// newEngine builds the configured engine. If the exact engine cannot be
// built, every hazard goes through the centroid engine for this process.
func newEngine(cfg *config.Config, idx *geo.Index, logger *slog.Logger) geo.Engine {
	kind, err := geo.ParseEngineKind(cfg.GeometryEngine)
	if err != nil {
		logger.Warn("invalid geometry engine, using centroid", "error", err)
		kind = geo.EngineCentroid
	}
	engine, err := geo.NewEngine(kind, idx)
	if err != nil {
		logger.Warn("exact geometry engine unavailable, using centroid", "error", err)
		return geo.CentroidFallback{}
	}
	logger.Info("geometry engine selected", "engine", engine.Kind())
	return engine
}

// seedLatest serves the newest archived briefing until the first run of this
// process completes.
func seedLatest(ctx context.Context, p *pipeline.Pipeline, archive *sqlite.Archive, logger *slog.Logger) {
	b, ok, err := archive.Latest(ctx)
	switch {
	case err != nil:
		logger.Warn("could not read latest archived briefing", "error", err)
	case ok:
		p.Seed(b)
		logger.Info("serving archived briefing until first run", "run_id", b.RunID, "generated_at", b.GeneratedAt)
	}
}

// runOnce builds one briefing and writes it to stdout.
func runOnce(ctx context.Context, p *pipeline.Pipeline, logger *slog.Logger) int {
	b, err := p.RunOnce(ctx)
	if err != nil && b.RunID == "" {
		logger.Error("briefing run failed", "error", err)
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(b); encErr != nil {
		logger.Error("write briefing", "error", encErr)
		return 1
	}
	if err != nil {
		logger.Warn("briefing built but not every sink accepted it", "error", err)
	}
	return 0
}

// serve runs the pipeline on its interval behind the HTTP server until a
// shutdown signal arrives.
func serve(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, history httpadapter.History, logger *slog.Logger) {
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, history, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
}

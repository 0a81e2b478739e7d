package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/couchcryptid/weather-briefing-service/internal/briefing"
	"github.com/couchcryptid/weather-briefing-service/internal/domain"
	"github.com/couchcryptid/weather-briefing-service/internal/geo"
	"github.com/couchcryptid/weather-briefing-service/internal/geo/geotest"
	"github.com/couchcryptid/weather-briefing-service/internal/observability"
	"github.com/couchcryptid/weather-briefing-service/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- mocks ---

type mockAlerts struct {
	alerts []domain.Alert
	err    error
}

func (m *mockAlerts) FetchAlerts(_ context.Context) ([]domain.Alert, error) {
	return m.alerts, m.err
}

type mockForecasts struct {
	gotAnchors []domain.ForecastAnchor
}

func (m *mockForecasts) FetchForecasts(_ context.Context, anchors []domain.ForecastAnchor) (map[string]domain.PointForecast, error) {
	m.gotAnchors = anchors
	out := make(map[string]domain.PointForecast, len(anchors))
	for _, a := range anchors {
		out[a.ID] = domain.PointForecast{
			AnchorID: a.ID,
			Location: a.Point,
			Periods: []domain.ForecastPeriod{
				{Name: "Today", IsDaytime: true, Temperature: 90, ShortForecast: "Sunny", DetailedForecast: "Sunny and hot."},
			},
		}
	}
	return out, nil
}

type mockOutlooks struct {
	sets []domain.OutlookSet
}

func (m *mockOutlooks) FetchOutlooks(_ context.Context) ([]domain.OutlookSet, error) {
	return m.sets, nil
}

// blockingTropical waits for the context, simulating a hung upstream.
type blockingTropical struct{}

func (blockingTropical) FetchStorms(ctx context.Context) ([]domain.TropicalSystem, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type emptyTropical struct{}

func (emptyTropical) FetchStorms(_ context.Context) ([]domain.TropicalSystem, error) {
	return []domain.TropicalSystem{}, nil
}

type mockSink struct {
	name     string
	failures int // fail this many attempts before succeeding
	mu       sync.Mutex
	attempts int
	got      []domain.Briefing
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Publish(_ context.Context, b domain.Briefing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.attempts <= m.failures {
		return errors.New("broker unavailable")
	}
	m.got = append(m.got, b)
	return nil
}

func (m *mockSink) published() []domain.Briefing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Briefing(nil), m.got...)
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAssembler(t *testing.T) *briefing.Assembler {
	t.Helper()
	idx := geotest.NewIndex()
	engine, err := geo.NewEngine(geo.EngineExact, idx)
	require.NoError(t, err)
	attributor := geo.NewAttributor(idx, engine, geo.DefaultTropicalPolicy(), discardLogger())
	return briefing.NewAssembler(attributor, briefing.NewGrouper(idx, briefing.DefaultMaxAnchorMiles), discardLogger())
}

func outlookOverCentral() *mockOutlooks {
	// Row 1 of the fixture grid, all three counties.
	return &mockOutlooks{sets: []domain.OutlookSet{
		{Source: domain.SourceSPC, Features: []domain.OutlookFeature{
			{Source: domain.SourceSPC, Day: 1, Label: "SLGT", Geometry: geotest.RegionCells(1)},
		}},
		{Source: domain.SourceWPC, Features: []domain.OutlookFeature{}},
	}}
}

func fullSources() pipeline.Sources {
	return pipeline.Sources{
		Alerts:    &mockAlerts{alerts: []domain.Alert{}},
		Forecasts: &mockForecasts{},
		Outlooks:  outlookOverCentral(),
		Tropical:  emptyTropical{},
	}
}

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	require.NoError(t, (<-ch).Write(&m))
	return m.GetCounter().GetValue()
}

// --- tests ---

func TestPipeline_RunOnce_PublishesToEverySink(t *testing.T) {
	idx := geotest.NewIndex()
	metrics := observability.NewMetricsForTesting()
	forecasts := &mockForecasts{}
	sources := fullSources()
	sources.Forecasts = forecasts
	archive := &mockSink{name: "sqlite"}
	bus := &mockSink{name: "kafka"}

	p := pipeline.New(sources, newAssembler(t), []pipeline.Sink{archive, bus}, discardLogger(), metrics,
		pipeline.Options{Anchors: idx.Anchors()})

	b, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, b.RunID)
	assert.Len(t, forecasts.gotAnchors, len(geotest.Regions))
	require.Len(t, archive.published(), 1)
	require.Len(t, bus.published(), 1)
	assert.Equal(t, b.RunID, archive.published()[0].RunID)

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, b.RunID, latest.RunID)
	require.NoError(t, p.CheckReadiness(context.Background()))

	assert.InDelta(t, 1, counterValue(t, metrics.HazardsAttributed.WithLabelValues(string(domain.CategoryOutlook), "exact")), 0)
	assert.InDelta(t, 1, counterValue(t, metrics.SourceFetches.WithLabelValues("outlooks", "ok")), 0)
}

func TestPipeline_RunOnce_NewRunIDEachRun(t *testing.T) {
	p := pipeline.New(fullSources(), newAssembler(t), nil, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.Options{Anchors: geotest.NewIndex().Anchors()})

	first, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	second, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Regions, second.Regions)
}

func TestPipeline_RunOnce_SourceFailuresBecomeGaps(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	sources := pipeline.Sources{
		Alerts:   &mockAlerts{err: errors.New("nws API error: status 503")},
		Outlooks: outlookOverCentral(),
		Tropical: blockingTropical{},
		// Forecasts left nil.
	}

	p := pipeline.New(sources, newAssembler(t), nil, discardLogger(), metrics,
		pipeline.Options{FetchTimeout: 50 * time.Millisecond})

	b, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, b.DataGaps, 3)
	joined := b.DataGaps[0] + b.DataGaps[1] + b.DataGaps[2]
	assert.Contains(t, joined, "status 503")
	assert.Contains(t, joined, "not configured")
	assert.Contains(t, joined, "deadline exceeded")
	assert.Len(t, b.Regions, len(geotest.Regions))

	assert.InDelta(t, 1, counterValue(t, metrics.RunsTotal.WithLabelValues("partial")), 0)
	assert.InDelta(t, 3, counterValue(t, metrics.DataGaps), 0)
	assert.InDelta(t, 1, counterValue(t, metrics.SourceFetches.WithLabelValues("nws_alerts", "error")), 0)
}

func TestPipeline_RunOnce_RetriesSink(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	flaky := &mockSink{name: "kafka", failures: 2}

	p := pipeline.New(fullSources(), newAssembler(t), []pipeline.Sink{flaky}, discardLogger(), metrics,
		pipeline.Options{PublishRetries: 3, PublishBackoff: time.Millisecond})

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.attempts)
	assert.Len(t, flaky.published(), 1)
	assert.InDelta(t, 0, counterValue(t, metrics.SinkErrors.WithLabelValues("kafka")), 0)
}

func TestPipeline_RunOnce_SinkFailureDoesNotBlockOthers(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	broken := &mockSink{name: "kafka", failures: 100}
	archive := &mockSink{name: "sqlite"}

	p := pipeline.New(fullSources(), newAssembler(t), []pipeline.Sink{broken, archive}, discardLogger(), metrics,
		pipeline.Options{PublishRetries: 2, PublishBackoff: -1})

	b, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka: broker unavailable")
	assert.NotEmpty(t, b.RunID)
	assert.Equal(t, 2, broken.attempts)
	assert.Len(t, archive.published(), 1)
	assert.InDelta(t, 1, counterValue(t, metrics.SinkErrors.WithLabelValues("kafka")), 0)

	// The briefing is still served even though a sink failed.
	_, ok := p.Latest()
	assert.True(t, ok)
}

func TestPipeline_NotReadyBeforeFirstRun(t *testing.T) {
	p := pipeline.New(fullSources(), newAssembler(t), nil, discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{})

	require.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.Latest()
	assert.False(t, ok)
}

func TestPipeline_SeedServesArchivedBriefing(t *testing.T) {
	p := pipeline.New(fullSources(), newAssembler(t), nil, discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{})

	p.Seed(domain.Briefing{RunID: "archived-run"})
	seeded, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, "archived-run", seeded.RunID)
	require.Error(t, p.CheckReadiness(context.Background()))

	b, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	latest, _ := p.Latest()
	assert.Equal(t, b.RunID, latest.RunID)

	// A late seed never replaces a briefing this process built.
	p.Seed(domain.Briefing{RunID: "stale-run"})
	latest, _ = p.Latest()
	assert.Equal(t, b.RunID, latest.RunID)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	sink := &mockSink{name: "sqlite"}
	p := pipeline.New(fullSources(), newAssembler(t), []pipeline.Sink{sink}, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.Options{RunInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, sink.published())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_SingleShot(t *testing.T) {
	sink := &mockSink{name: "sqlite"}
	p := pipeline.New(fullSources(), newAssembler(t), []pipeline.Sink{sink}, discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{})

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, sink.published(), 1)
}

func TestPipeline_Run_TicksOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := &mockSink{name: "sqlite"}
	p := pipeline.New(fullSources(), newAssembler(t), []pipeline.Sink{sink}, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.Options{RunInterval: 30 * time.Minute, Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var done atomic.Bool
	finished := make(chan error, 1)
	go func() {
		finished <- p.Run(ctx)
		done.Store(true)
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1)) // ticker armed after the first run
	assert.Len(t, sink.published(), 1)

	clock.Advance(30 * time.Minute)
	require.Eventually(t, func() bool { return len(sink.published()) == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-finished)
	assert.True(t, done.Load())
}

func TestPipeline_RunOnce_TropicalSystemWithoutPosition(t *testing.T) {
	sources := fullSources()
	sources.Tropical = tropicalStub{systems: []domain.TropicalSystem{
		{ID: "al092025", Name: "Ivo", Classification: "TS", IntensityMPH: 45},
		{ID: "al102025", Name: "Jo", Classification: "HU", IntensityMPH: 90, Position: &orb.Point{-60, 20}},
	}}
	p := pipeline.New(sources, newAssembler(t), nil, discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{})

	b, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(b.Statewide.Tropical))
	for _, s := range b.Statewide.Tropical {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Ivo")
}

type tropicalStub struct {
	systems []domain.TropicalSystem
}

func (s tropicalStub) FetchStorms(_ context.Context) ([]domain.TropicalSystem, error) {
	return s.systems, nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
	"github.com/couchcryptid/weather-briefing-service/internal/observability"
)

// AlertSource fetches active alerts for the state.
type AlertSource interface {
	FetchAlerts(ctx context.Context) ([]domain.Alert, error)
}

// ForecastSource fetches a point forecast for each anchor.
type ForecastSource interface {
	FetchForecasts(ctx context.Context, anchors []domain.ForecastAnchor) (map[string]domain.PointForecast, error)
}

// OutlookSource fetches SPC and WPC outlook polygons.
type OutlookSource interface {
	FetchOutlooks(ctx context.Context) ([]domain.OutlookSet, error)
}

// TropicalSource fetches active tropical systems.
type TropicalSource interface {
	FetchStorms(ctx context.Context) ([]domain.TropicalSystem, error)
}

// Assembler fuses one run's inputs into a briefing.
type Assembler interface {
	Assemble(in domain.Inputs) domain.Briefing
}

// Sink receives every assembled briefing.
type Sink interface {
	Name() string
	Publish(ctx context.Context, b domain.Briefing) error
}

// Sources groups the upstream feeds. A nil source is reported as a data gap.
type Sources struct {
	Alerts    AlertSource
	Forecasts ForecastSource
	Outlooks  OutlookSource
	Tropical  TropicalSource
}

// Options tune scheduling and retry behavior.
type Options struct {
	Anchors        []domain.ForecastAnchor
	RunInterval    time.Duration // 0 runs once
	FetchTimeout   time.Duration // 0 means no per-run deadline
	PublishRetries int
	PublishBackoff time.Duration
	Clock          clockwork.Clock
}

const (
	defaultPublishRetries = 3
	defaultPublishBackoff = 200 * time.Millisecond
	maxPublishBackoff     = 5 * time.Second
)

// Pipeline fetches every source, assembles a briefing, and hands it to the sinks.
type Pipeline struct {
	sources   Sources
	assembler Assembler
	sinks     []Sink
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options

	ready     atomic.Bool
	mu        sync.RWMutex
	latest    domain.Briefing
	hasLatest bool
}

// New creates a Pipeline with the given sources, sinks, and observability.
func New(sources Sources, assembler Assembler, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.PublishRetries <= 0 {
		opts.PublishRetries = defaultPublishRetries
	}
	if opts.PublishBackoff < 0 {
		opts.PublishBackoff = 0
	} else if opts.PublishBackoff == 0 {
		opts.PublishBackoff = defaultPublishBackoff
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		sources:   sources,
		assembler: assembler,
		sinks:     sinks,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// CheckReadiness returns nil once a briefing has been assembled.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no briefing has been assembled yet")
	}
	return nil
}

// Latest returns the most recently assembled briefing, or the seeded one
// until the first run completes.
func (p *Pipeline) Latest() (domain.Briefing, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.hasLatest
}

// Seed serves b as the latest briefing until this process assembles its own,
// so a restart does not blank /briefing/latest. It does not mark the pipeline
// ready, and it is ignored once a run has completed.
func (p *Pipeline) Seed(b domain.Briefing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready.Load() {
		return
	}
	p.latest = b
	p.hasLatest = true
}

// Run builds a briefing immediately and then on every RunInterval tick until
// the context is cancelled. With no interval it returns after the first run.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.opts.RunInterval, "sinks", len(p.sinks))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if _, err := p.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		p.logger.Error("briefing run failed", "error", err)
	}
	if p.opts.RunInterval <= 0 {
		return nil
	}

	ticker := p.opts.Clock.NewTicker(p.opts.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("briefing run failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single fetch-assemble-publish cycle. The briefing is
// returned even when a sink fails; the error then joins every sink failure.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.Briefing, error) {
	start := p.opts.Clock.Now()

	in := p.fetch(ctx)
	if err := ctx.Err(); err != nil {
		return domain.Briefing{}, err
	}

	b := p.assembler.Assemble(in)
	b.RunID = uuid.NewString()

	p.mu.Lock()
	p.latest = b
	p.hasLatest = true
	p.ready.Store(true)
	p.mu.Unlock()

	p.record(b)
	p.logger.Info("briefing assembled",
		"run_id", b.RunID,
		"edition", b.Edition,
		"engine", b.Engine,
		"data_gaps", len(b.DataGaps),
		"sources", len(b.SourcesUsed),
	)

	err := p.publish(ctx, b)
	p.metrics.RunDuration.Observe(p.opts.Clock.Since(start).Seconds())
	return b, err
}

// fetch queries all sources concurrently. Failures become absent categories.
func (p *Pipeline) fetch(ctx context.Context) domain.Inputs {
	if p.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
	}

	var in domain.Inputs
	var g errgroup.Group

	g.Go(func() error {
		in.Alerts = fetchOne(ctx, p, "nws_alerts", p.sources.Alerts != nil, func(ctx context.Context) ([]domain.Alert, error) {
			return p.sources.Alerts.FetchAlerts(ctx)
		})
		return nil
	})
	g.Go(func() error {
		in.Forecasts = fetchOne(ctx, p, "nws_forecasts", p.sources.Forecasts != nil, func(ctx context.Context) (map[string]domain.PointForecast, error) {
			return p.sources.Forecasts.FetchForecasts(ctx, p.opts.Anchors)
		})
		return nil
	})
	g.Go(func() error {
		in.Outlooks = fetchOne(ctx, p, "outlooks", p.sources.Outlooks != nil, func(ctx context.Context) ([]domain.OutlookSet, error) {
			return p.sources.Outlooks.FetchOutlooks(ctx)
		})
		return nil
	})
	g.Go(func() error {
		in.Tropical = fetchOne(ctx, p, "nhc", p.sources.Tropical != nil, func(ctx context.Context) ([]domain.TropicalSystem, error) {
			return p.sources.Tropical.FetchStorms(ctx)
		})
		return nil
	})

	_ = g.Wait()
	return in
}

func fetchOne[T any](ctx context.Context, p *Pipeline, source string, configured bool, fn func(context.Context) (T, error)) domain.Optional[T] {
	if !configured {
		return domain.Absent[T]("not configured")
	}
	start := p.opts.Clock.Now()
	v, err := fn(ctx)
	p.metrics.SourceFetchDuration.WithLabelValues(source).Observe(p.opts.Clock.Since(start).Seconds())
	if err != nil {
		p.metrics.SourceFetches.WithLabelValues(source, "error").Inc()
		p.logger.Warn("source fetch failed", "source", source, "error", err)
		return domain.Absent[T](err.Error())
	}
	p.metrics.SourceFetches.WithLabelValues(source, "ok").Inc()
	return domain.Some(v)
}

func (p *Pipeline) record(b domain.Briefing) {
	outcome := "success"
	if len(b.DataGaps) > 0 {
		outcome = "partial"
	}
	p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	p.metrics.DataGaps.Add(float64(len(b.DataGaps)))

	// A hazard appears under every region it touches; count it once.
	seen := make(map[string]bool)
	for _, r := range b.Regions {
		for _, h := range r.Hazards {
			if seen[h.ID] {
				continue
			}
			seen[h.ID] = true
			p.metrics.HazardsAttributed.WithLabelValues(string(h.Category), h.Method).Inc()
		}
	}
}

// publish delivers the briefing to every sink, retrying each with exponential
// backoff. One sink failing does not stop the others.
func (p *Pipeline) publish(ctx context.Context, b domain.Briefing) error {
	var errs []error
	for _, sink := range p.sinks {
		if err := p.publishWithRetry(ctx, sink, b); err != nil {
			p.metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			p.logger.Error("publish briefing failed", "sink", sink.Name(), "run_id", b.RunID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) publishWithRetry(ctx context.Context, sink Sink, b domain.Briefing) error {
	backoff := p.opts.PublishBackoff
	var err error
	for attempt := 1; attempt <= p.opts.PublishRetries; attempt++ {
		if err = sink.Publish(ctx, b); err == nil {
			return nil
		}
		if attempt == p.opts.PublishRetries || ctx.Err() != nil {
			break
		}
		p.logger.Warn("publish attempt failed, retrying",
			"sink", sink.Name(), "attempt", attempt, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, maxPublishBackoff)
	}
	return err
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("briefing published", "run_id", "r1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "briefing published", line["msg"])
	assert.Equal(t, "r1", line["run_id"])
	assert.Equal(t, "weather-briefing", line["service"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "debug", "text").Debug("fetch started", "source", "nws")

	assert.Contains(t, buf.String(), "msg=\"fetch started\"")
	assert.Contains(t, buf.String(), "source=nws")
}

func TestNewMetricsForTesting_Unregistered(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RunsTotal.WithLabelValues("success").Inc()
	b.SourceFetches.WithLabelValues("nws_alerts", "ok").Add(2)

	// Two instances register cleanly into separate registries.
	for _, m := range []*Metrics{a, b} {
		reg := prometheus.NewRegistry()
		require.NoError(t, reg.Register(m.RunsTotal))
		require.NoError(t, reg.Register(m.SourceFetches))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(a.RunsTotal)
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "weather_briefing_runs_total", families[0].GetName())
	require.Len(t, families[0].GetMetric(), 1)
	assert.InDelta(t, 1, families[0].GetMetric()[0].GetCounter().GetValue(), 0)
}

package observability

import (
	"context"
	"testing"

	"github.com/smallbiznis/paramstore/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSplitConfigFansOutTelemetrySettings(t *testing.T) {
	cfg := Config{
		ServiceName:          "paramstore",
		Environment:          "development",
		Version:              "1.4.0",
		LogLevel:             "info",
		LogFormat:            "console",
		OtelEnabled:          true,
		OtelExporterEndpoint: "collector:4318",
		OtelExporterProtocol: "http",
		OtelSamplingRatio:    0.5,
	}

	out := splitConfig(cfg)

	assert.Equal(t, "console", out.Logger.Format)
	assert.True(t, out.Logger.Debug)
	assert.True(t, out.Logger.IncludeStackOnError)
	assert.Equal(t, "1.4.0", out.Tracing.ServiceVersion)
	assert.Equal(t, 0.5, out.Tracing.SamplingRatio)
	assert.Equal(t, "collector:4318", out.Metrics.ExporterEndpoint)
	assert.Equal(t, "http", out.Metrics.ExporterProtocol)
	assert.True(t, out.Metrics.Enabled)
}

func TestProvideParameterMetricsRecordsWithNoopProvider(t *testing.T) {
	m, err := provideParameterMetrics(metrics.Config{ServiceName: "paramstore"}, noop.NewMeterProvider(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()
	m.RecordMutation(ctx, "update", false)
	m.RecordConflict(ctx, "update")
	m.RecordCache(ctx, "get", "hit")
}

func TestAnnounceTelemetryLogsOnStart(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	lc := fxtest.NewLifecycle(t)

	announceTelemetry(lc, Config{ServiceName: "paramstore", OtelExporterProtocol: "grpc"}, zap.New(core), nil, nil)
	assert.Equal(t, 0, logs.Len())

	lc.RequireStart()
	t.Cleanup(func() { lc.RequireStop() })

	entries := logs.FilterMessage("telemetry ready").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "paramstore", entries[0].ContextMap()["service"])
	assert.Equal(t, "grpc", entries[0].ContextMap()["otlp_protocol"])
}

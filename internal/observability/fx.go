package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/paramstore/internal/observability/logger"
	"github.com/smallbiznis/paramstore/internal/observability/metrics"
	"github.com/smallbiznis/paramstore/internal/observability/tracing"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		splitConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		provideParameterMetrics,
		providePrometheusRegisterer,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(announceTelemetry),
)

// providerConfigs fans the process telemetry settings out to the logger,
// tracer and meter providers.
type providerConfigs struct {
	fx.Out

	Logger  logger.Config
	Tracing tracing.Config
	Metrics metrics.Config
}

func splitConfig(cfg Config) providerConfigs {
	return providerConfigs{
		Logger: logger.Config{
			ServiceName:         cfg.ServiceName,
			Environment:         cfg.Environment,
			Version:             cfg.Version,
			Level:               cfg.LogLevel,
			Format:              cfg.LogFormat,
			Debug:               cfg.Debug(),
			IncludeCaller:       true,
			IncludeStackOnError: cfg.Debug(),
		},
		Tracing: tracing.Config{
			Enabled:          cfg.OtelEnabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			SamplingRatio:    cfg.OtelSamplingRatio,
		},
		Metrics: metrics.Config{
			Enabled:          cfg.OtelEnabled,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
		},
	}
}

// provideParameterMetrics builds the mutation, conflict, timeout, cache and
// change-event counters shared by the parameter service and the cache layer.
func provideParameterMetrics(cfg metrics.Config, provider metric.MeterProvider, log *zap.Logger) (*metrics.Metrics, error) {
	m, err := metrics.New(cfg, provider)
	if err != nil {
		return nil, err
	}
	log.Named("observability").Debug("parameter metrics registered",
		zap.String("meter", cfg.ServiceName),
		zap.Bool("exported", cfg.Enabled),
	)
	return m, nil
}

func providePrometheusRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// announceTelemetry forces the tracer provider to be built and logs the
// telemetry setup once the app starts.
func announceTelemetry(lc fx.Lifecycle, cfg Config, log *zap.Logger, _ *sdktrace.TracerProvider, _ *metrics.Metrics) {
	log = log.Named("observability")
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("telemetry ready",
				zap.String("service", cfg.ServiceName),
				zap.String("environment", cfg.Environment),
				zap.String("version", cfg.Version),
				zap.String("log_format", cfg.LogFormat),
				zap.Bool("otlp_enabled", cfg.OtelEnabled),
				zap.String("otlp_protocol", cfg.OtelExporterProtocol),
				zap.Float64("sampling_ratio", cfg.OtelSamplingRatio),
			)
			return nil
		},
	})
}

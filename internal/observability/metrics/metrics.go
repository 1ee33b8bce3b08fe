package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes domain-level instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	mutations    metric.Int64Counter
	conflicts    metric.Int64Counter
	timeouts     metric.Int64Counter
	cacheOps     metric.Int64Counter
	eventPublish metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "paramstore"
	}
	meter := provider.Meter(name)

	mutations, err := meter.Int64Counter("paramstore_parameter_mutations_total")
	if err != nil {
		return nil, err
	}
	conflicts, err := meter.Int64Counter("paramstore_version_conflicts_total")
	if err != nil {
		return nil, err
	}
	timeouts, err := meter.Int64Counter("paramstore_transaction_timeouts_total")
	if err != nil {
		return nil, err
	}
	cacheOps, err := meter.Int64Counter("paramstore_cache_operations_total")
	if err != nil {
		return nil, err
	}
	eventPublish, err := meter.Int64Counter("paramstore_change_events_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		mutations:    mutations,
		conflicts:    conflicts,
		timeouts:     timeouts,
		cacheOps:     cacheOps,
		eventPublish: eventPublish,
	}, nil
}

// RecordMutation counts a committed mutation; forced marks a conflict-check bypass.
func (m *Metrics) RecordMutation(ctx context.Context, operation string, forced bool) {
	if m == nil {
		return
	}
	outcome := "committed"
	if forced {
		outcome = "forced"
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("outcome", outcome),
	)
	m.mutations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordConflict(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.conflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordTransactionTimeout(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.timeouts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCache counts a cache call by operation (get, set, delete, scan_delete) and result.
func (m *Metrics) RecordCache(ctx context.Context, operation, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.cacheOps.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordEventPublish(ctx context.Context, eventType string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("result", result),
	)
	m.eventPublish.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"operation":   {},
	"outcome":     {},
	"result":      {},
	"event_type":  {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

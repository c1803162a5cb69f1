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

// Metrics exposes application-level instruments.
type Metrics struct {
	prepaidUnits     metric.Int64Counter
	usageReported    metric.Int64Counter
	usageSettled     metric.Int64Counter
	settledAmount    metric.Int64Counter
	withdrawals      metric.Int64Counter
	authFailures     metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "metergate"
	}
	meter := provider.Meter(name)

	prepaidUnits, err := meter.Int64Counter("metergate_prepaid_units_total")
	if err != nil {
		return nil, err
	}
	usageReported, err := meter.Int64Counter("metergate_usage_reported_total")
	if err != nil {
		return nil, err
	}
	usageSettled, err := meter.Int64Counter("metergate_usage_settled_total")
	if err != nil {
		return nil, err
	}
	settledAmount, err := meter.Int64Counter("metergate_settled_amount_total")
	if err != nil {
		return nil, err
	}
	withdrawals, err := meter.Int64Counter("metergate_withdrawals_total")
	if err != nil {
		return nil, err
	}
	authFailures, err := meter.Int64Counter("metergate_auth_failures_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("metergate_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("metergate_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		prepaidUnits:     prepaidUnits,
		usageReported:    usageReported,
		usageSettled:     usageSettled,
		settledAmount:    settledAmount,
		withdrawals:      withdrawals,
		authFailures:     authFailures,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordPrepaid increments prepaid unit counts.
func (m *Metrics) RecordPrepaid(ctx context.Context, apiID string, units int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("api_id", strings.TrimSpace(apiID)))
	m.prepaidUnits.Add(ctx, units, metric.WithAttributes(attrs...))
}

// RecordUsageReported increments reported usage counts.
func (m *Metrics) RecordUsageReported(ctx context.Context, apiID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("api_id", strings.TrimSpace(apiID)))
	m.usageReported.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUsageSettled increments settlement counts and the settled amount.
func (m *Metrics) RecordUsageSettled(ctx context.Context, apiID string, amount int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("api_id", strings.TrimSpace(apiID)))
	m.usageSettled.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.settledAmount.Add(ctx, amount, metric.WithAttributes(attrs...))
}

// RecordWithdrawal increments withdrawal counts.
func (m *Metrics) RecordWithdrawal(ctx context.Context, apiID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("api_id", strings.TrimSpace(apiID)))
	m.withdrawals.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAuthFailure increments authorization failure counts by reason.
func (m *Metrics) RecordAuthFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.authFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
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
	"api_id":      {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
	"route":       {},
	"method":      {},
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

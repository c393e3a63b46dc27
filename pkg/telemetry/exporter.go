// Package telemetry provides OpenTelemetry metrics with a Prometheus exporter
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// InitMetrics initializes the Prometheus exporter, sets the global meter
// provider, and creates the application instruments.
func InitMetrics(serviceName string) error {
	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	holder := GetGlobalMetrics()
	if err := holder.InitMetrics(provider.Meter(serviceName)); err != nil {
		return fmt.Errorf("failed to init instruments: %w", err)
	}

	return nil
}

// GetMeter returns a named meter from the global provider
func GetMeter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// NewMeterProvider creates an in-process meter provider with the given
// service name. Without a reader nothing is exported.
func NewMeterProvider(serviceName string) metric.MeterProvider {
	return sdkmetric.NewMeterProvider(sdkmetric.WithResource(NewResource(serviceName)))
}

// GetMeterProvider returns the globally installed meter provider.
func GetMeterProvider() metric.MeterProvider { return otel.GetMeterProvider() }

// NewResource creates a new OpenTelemetry resource with service name.
func NewResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)
}

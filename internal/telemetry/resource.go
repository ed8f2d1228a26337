package telemetry

import (
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ServiceNamespace groups the storefront, worker and email binaries in traces and metrics.
const ServiceNamespace = "glassworks"

func serviceResource(serviceName, serviceVersion string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNamespace(ServiceNamespace),
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)
}

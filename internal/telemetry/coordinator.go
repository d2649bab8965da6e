package telemetry

import (
	"go.opentelemetry.io/otel/metric"
)

const coordinatorScope = "claudia/coordinator"

// CoordinatorMetrics bundles the instruments the coordinator records per
// request. With telemetry disabled these are no-op instruments.
type CoordinatorMetrics struct {
	Requests     metric.Int64Counter
	ClaimLatency metric.Float64Histogram
}

// NewCoordinatorMetrics builds the coordinator's instrument set.
func NewCoordinatorMetrics() *CoordinatorMetrics {
	m := Meter(coordinatorScope)
	requests, _ := m.Int64Counter("claudia.http.requests",
		metric.WithDescription("HTTP requests served, by route and status code"),
	)
	claims, _ := m.Float64Histogram("claudia.claim.duration",
		metric.WithDescription("Time to serve a task claim in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &CoordinatorMetrics{Requests: requests, ClaimLatency: claims}
}

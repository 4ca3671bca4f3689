package requestcoord

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

type coordinatorMetricsCollection struct {
	cacheHitCount  metric.Int64Counter
	cacheMissCount metric.Int64Counter
	dedupWaitCount metric.Int64Counter
	cancelCount    metric.Int64Counter
	requestCount   metric.Int64Counter
}

func setupCoordinatorMetrics(meter metric.Meter) (coordinatorMetricsCollection, error) {
	cacheHitCount, err := meter.Int64Counter("requestcoord/cache_hit_count")
	if err != nil {
		return coordinatorMetricsCollection{}, fmt.Errorf("failed to create cache hit count metric: %w", err)
	}

	cacheMissCount, err := meter.Int64Counter("requestcoord/cache_miss_count")
	if err != nil {
		return coordinatorMetricsCollection{}, fmt.Errorf("failed to create cache miss count metric: %w", err)
	}

	dedupWaitCount, err := meter.Int64Counter(
		"requestcoord/dedup_wait_count",
		metric.WithDescription("Requests that waited for an identical in-flight request"),
	)
	if err != nil {
		return coordinatorMetricsCollection{}, fmt.Errorf("failed to create dedup wait count metric: %w", err)
	}

	cancelCount, err := meter.Int64Counter("requestcoord/cancel_count")
	if err != nil {
		return coordinatorMetricsCollection{}, fmt.Errorf("failed to create cancel count metric: %w", err)
	}

	requestCount, err := meter.Int64Counter(
		"requestcoord/request_count",
		metric.WithDescription("Requests issued to the transport"),
	)
	if err != nil {
		return coordinatorMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	return coordinatorMetricsCollection{
		cacheHitCount:  cacheHitCount,
		cacheMissCount: cacheMissCount,
		dedupWaitCount: dedupWaitCount,
		cancelCount:    cancelCount,
		requestCount:   requestCount,
	}, nil
}

package maintenance

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "lingo-services-engagement.maintenance"

const (
	jobReconcile = "reconcile"
	jobPurge     = "purge"
)

type metrics struct {
	runCounter   metric.Int64Counter
	itemCounter  metric.Int64Counter
	runHistogram metric.Float64Histogram
}

func newMetrics() *metrics {
	m := otel.GetMeterProvider().Meter(meterName)
	runCounter, _ := m.Int64Counter("engagement_maintenance_runs_total")
	itemCounter, _ := m.Int64Counter("engagement_maintenance_items_total")
	runHistogram, _ := m.Float64Histogram("engagement_maintenance_run_duration_ms", metric.WithUnit("ms"))
	return &metrics{runCounter: runCounter, itemCounter: itemCounter, runHistogram: runHistogram}
}

func (m *metrics) recordRun(ctx context.Context, job string, elapsed time.Duration, err error) {
	if m == nil || m.runCounter == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("job", job), attribute.String("result", result))
	m.runCounter.Add(ctx, 1, attrs)
	if m.runHistogram != nil {
		m.runHistogram.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}

func (m *metrics) recordItems(ctx context.Context, job string, n int64) {
	if m == nil || m.itemCounter == nil || n <= 0 {
		return
	}
	m.itemCounter.Add(ctx, n, metric.WithAttributes(attribute.String("job", job)))
}

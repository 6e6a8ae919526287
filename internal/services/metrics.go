package services

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

var (
	engagementMetricsMu      sync.Mutex
	engagementMetricsEnabled bool
	notificationCounter      metric.Int64Counter
	sideEffectCounter        metric.Int64Counter
	sideEffectDuration       metric.Float64Histogram
	reconcileCounter         metric.Int64Counter
)

const (
	notificationMetricName       = "engagement_notifications_total"
	sideEffectMetricName         = "engagement_side_effects_total"
	sideEffectDurationMetricName = "engagement_side_effect_duration_ms"
	reconcileMetricName          = "engagement_reconcile_total"
)

var (
	attrComponent        = attribute.Key("component")
	attrNotificationType = attribute.Key("notification_type")
	attrOutcome          = attribute.Key("outcome")
	attrEffect           = attribute.Key("effect")
	attrTargetType       = attribute.Key("target_type")
)

// 指标 outcome 取值
const (
	outcomeCreated      = "created"
	outcomeDeduplicated = "deduplicated"
	outcomeSuppressed   = "suppressed"
	outcomeFailed       = "failed"
	outcomeOK           = "ok"
	outcomeDropped      = "dropped"
	outcomePanicked     = "panicked"
)

type engagementMetrics struct {
	component string
}

func newEngagementMetrics(component string) *engagementMetrics {
	engagementMetricsMu.Lock()
	defer engagementMetricsMu.Unlock()
	if !engagementMetricsEnabled {
		initEngagementMetricsLocked()
	}
	if !engagementMetricsEnabled {
		return &engagementMetrics{}
	}
	return &engagementMetrics{component: component}
}

func initEngagementMetricsLocked() {
	provider := otel.GetMeterProvider()
	if provider == nil {
		provider = noopmetric.NewMeterProvider()
	}
	meter := provider.Meter("lingo-services-engagement.services")

	var err error
	notificationCounter, err = meter.Int64Counter(notificationMetricName,
		metric.WithDescription("Number of notification fan-out decisions by outcome"))
	if err != nil {
		engagementMetricsEnabled = false
		return
	}
	sideEffectCounter, err = meter.Int64Counter(sideEffectMetricName,
		metric.WithDescription("Number of dispatched secondary effects by outcome"))
	if err != nil {
		engagementMetricsEnabled = false
		return
	}
	sideEffectDuration, err = meter.Float64Histogram(sideEffectDurationMetricName,
		metric.WithDescription("Duration of dispatched secondary effects"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		engagementMetricsEnabled = false
		return
	}
	reconcileCounter, err = meter.Int64Counter(reconcileMetricName,
		metric.WithDescription("Number of counter reconciliations by target type and outcome"))
	if err != nil {
		engagementMetricsEnabled = false
		return
	}
	engagementMetricsEnabled = true
}

func (m *engagementMetrics) recordNotifications(ctx context.Context, typ string, outcome string, n int) {
	if m == nil || !engagementMetricsEnabled || notificationCounter == nil || n <= 0 {
		return
	}
	notificationCounter.Add(ctx, int64(n), metric.WithAttributes(
		attrComponent.String(m.component),
		attrNotificationType.String(typ),
		attrOutcome.String(outcome),
	))
}

func (m *engagementMetrics) recordSideEffect(ctx context.Context, effect, outcome string, started time.Time) {
	if m == nil || !engagementMetricsEnabled || sideEffectCounter == nil {
		return
	}
	attrs := metric.WithAttributes(
		attrComponent.String(m.component),
		attrEffect.String(effect),
		attrOutcome.String(outcome),
	)
	sideEffectCounter.Add(ctx, 1, attrs)
	if started.IsZero() || sideEffectDuration == nil {
		return
	}
	sideEffectDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
}

func (m *engagementMetrics) recordReconcile(ctx context.Context, targetType, outcome string) {
	if m == nil || !engagementMetricsEnabled || reconcileCounter == nil {
		return
	}
	reconcileCounter.Add(ctx, 1, metric.WithAttributes(
		attrComponent.String(m.component),
		attrTargetType.String(targetType),
		attrOutcome.String(outcome),
	))
}

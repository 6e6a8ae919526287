package httpserver

import (
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	kmetrics "github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "lingo-services-engagement/http"

// Instruments 是 kratos metrics 中间件使用的请求计数与耗时直方图。
type Instruments struct {
	Requests metric.Int64Counter
	Seconds  metric.Float64Histogram
}

// NewInstruments 基于全局 MeterProvider（由 observability 组件安装）创建请求指标。
func NewInstruments() (*Instruments, error) {
	meter := otel.GetMeterProvider().Meter(instrumentationName)
	requests, err := kmetrics.DefaultRequestsCounter(meter, kmetrics.DefaultServerRequestsCounterName)
	if err != nil {
		return nil, err
	}
	seconds, err := kmetrics.DefaultSecondsHistogram(meter, kmetrics.DefaultServerSecondsHistogramName)
	if err != nil {
		return nil, err
	}
	return &Instruments{Requests: requests, Seconds: seconds}, nil
}

// PoolStatter 暴露连接池快照，*pgxpool.Pool 满足该接口。
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// DispatcherGauge 暴露副作用调度器的实时状态。
type DispatcherGauge interface {
	InFlight() int64
	Capacity() int
}

var _ DispatcherGauge = (*services.Dispatcher)(nil)

// NewRegistry 构造 /metrics 暴露的 Prometheus Registry：进程与 Go 运行时采集器，
// 以及连接池与副作用调度器的实时 gauge。nil 依赖对应的指标不注册。
func NewRegistry(pool PoolStatter, dispatcher DispatcherGauge) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	if pool != nil {
		registry.MustRegister(newPoolCollector(pool))
	}
	if dispatcher != nil {
		registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "engagement",
				Subsystem: "dispatcher",
				Name:      "in_flight",
				Help:      "Secondary effects currently running.",
			}, func() float64 { return float64(dispatcher.InFlight()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "engagement",
				Subsystem: "dispatcher",
				Name:      "capacity",
				Help:      "Maximum concurrent secondary effects.",
			}, func() float64 { return float64(dispatcher.Capacity()) }),
		)
	}
	return registry
}

// ProvideRegistry 供 Wire 使用。
func ProvideRegistry(pool *pgxpool.Pool, dispatcher *services.Dispatcher) *prometheus.Registry {
	var statter PoolStatter
	if pool != nil {
		statter = pool
	}
	return NewRegistry(statter, dispatcher)
}

// ProvideReadinessProbe 将连接池作为就绪探针。
func ProvideReadinessProbe(pool *pgxpool.Pool) ReadinessProbe {
	if pool == nil {
		return nil
	}
	return pool
}

type poolCollector struct {
	pool     PoolStatter
	total    *prometheus.Desc
	idle     *prometheus.Desc
	acquired *prometheus.Desc
	max      *prometheus.Desc
	acquires *prometheus.Desc
	empty    *prometheus.Desc
}

func newPoolCollector(pool PoolStatter) *poolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("engagement", "pgxpool", name), help, nil, nil)
	}
	return &poolCollector{
		pool:     pool,
		total:    desc("total_conns", "Total connections in the pool."),
		idle:     desc("idle_conns", "Idle connections in the pool."),
		acquired: desc("acquired_conns", "Connections currently acquired."),
		max:      desc("max_conns", "Maximum pool size."),
		acquires: desc("acquires_total", "Cumulative successful acquires."),
		empty:    desc("empty_acquires_total", "Acquires that waited for a connection."),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.acquired
	ch <- c.max
	ch <- c.acquires
	ch <- c.empty
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	if stat == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(stat.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(stat.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.empty, prometheus.CounterValue, float64(stat.EmptyAcquireCount()))
}

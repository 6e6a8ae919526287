package configloader

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"
	"github.com/bionicotaku/lingo-services-engagement/internal/tasks/maintenance"
)

const (
	defaultHandlerTimeout = 5 * time.Second
	defaultQueryTimeout   = 3 * time.Second
	defaultServerTimeout  = 10 * time.Second
	defaultJWTHeaderKey   = "authorization"
)

// Duration 接受 "5s" 形式的字符串或以纳秒计的数字。
type Duration time.Duration

// UnmarshalJSON 实现 json.Unmarshaler。
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(v))
	case string:
		if strings.TrimSpace(v) == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
	return nil
}

// Std 返回标准库 time.Duration。
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// bootstrap 对应 configs/config.yaml 的整体结构。
type bootstrap struct {
	Server        serverSection        `json:"server"`
	Data          dataSection          `json:"data"`
	Observability observabilitySection `json:"observability"`
	Engagement    engagementSection    `json:"engagement"`
	Maintenance   maintenanceSection   `json:"maintenance"`
}

type serverSection struct {
	HTTP         httpSection     `json:"http"`
	Handlers     handlersSection `json:"handlers"`
	JWT          jwtSection      `json:"jwt"`
	MetadataKeys []string        `json:"metadata_keys"`
	AdminUserIDs []string        `json:"admin_user_ids" validate:"dive,uuid"`
	TrustedHops  int             `json:"trusted_proxy_hops" validate:"gte=0,lte=16"`
}

type httpSection struct {
	Network string   `json:"network" validate:"omitempty,oneof=tcp tcp4 tcp6 unix"`
	Addr    string   `json:"addr" validate:"required"`
	Timeout Duration `json:"timeout" validate:"gte=0"`
}

type handlersSection struct {
	DefaultTimeout Duration `json:"default_timeout" validate:"gte=0"`
	CommandTimeout Duration `json:"command_timeout" validate:"gte=0"`
	QueryTimeout   Duration `json:"query_timeout" validate:"gte=0"`
}

type jwtSection struct {
	ExpectedAudience string `json:"expected_audience"`
	SkipValidate     bool   `json:"skip_validate"`
	Required         bool   `json:"required"`
	HeaderKey        string `json:"header_key"`
}

type dataSection struct {
	Postgres postgresSection `json:"postgres"`
}

type postgresSection struct {
	DSN                       string             `json:"dsn" validate:"required"`
	MaxOpenConns              int                `json:"max_open_conns" validate:"gte=0,lte=1000"`
	MinOpenConns              int                `json:"min_open_conns" validate:"gte=0"`
	MaxConnLifetime           Duration           `json:"max_conn_lifetime" validate:"gte=0"`
	MaxConnIdleTime           Duration           `json:"max_conn_idle_time" validate:"gte=0"`
	HealthCheckPeriod         Duration           `json:"health_check_period" validate:"gte=0"`
	Schema                    string             `json:"schema"`
	PreparedStatementsEnabled bool               `json:"prepared_statements_enabled"`
	PoolMetricsEnabled        bool               `json:"pool_metrics_enabled"`
	Transaction               transactionSection `json:"transaction"`
	Call                      callSection        `json:"call"`
}

type transactionSection struct {
	DefaultIsolation string   `json:"default_isolation" validate:"omitempty,oneof=read_committed repeatable_read serializable"`
	DefaultTimeout   Duration `json:"default_timeout" validate:"gte=0"`
	LockTimeout      Duration `json:"lock_timeout" validate:"gte=0"`
	MaxRetries       int      `json:"max_retries" validate:"gte=0,lte=10"`
	MetricsEnabled   bool     `json:"metrics_enabled"`
}

type callSection struct {
	Timeout Duration       `json:"timeout" validate:"gte=0"`
	Retries int            `json:"retries" validate:"gte=0,lte=3"`
	Breaker breakerSection `json:"breaker"`
}

type breakerSection struct {
	Enabled      bool     `json:"enabled"`
	MinRequests  uint32   `json:"min_requests"`
	FailureRatio float64  `json:"failure_ratio" validate:"gte=0,lte=1"`
	Interval     Duration `json:"interval" validate:"gte=0"`
	OpenTimeout  Duration `json:"open_timeout" validate:"gte=0"`
}

type observabilitySection struct {
	GlobalAttributes map[string]string `json:"global_attributes"`
	Tracing          tracingSection    `json:"tracing"`
	Metrics          metricsSection    `json:"metrics"`
}

type tracingSection struct {
	Enabled            bool              `json:"enabled"`
	Exporter           string            `json:"exporter"`
	Endpoint           string            `json:"endpoint"`
	Headers            map[string]string `json:"headers"`
	Insecure           bool              `json:"insecure"`
	SamplingRatio      float64           `json:"sampling_ratio" validate:"gte=0,lte=1"`
	BatchTimeout       Duration          `json:"batch_timeout"`
	ExportTimeout      Duration          `json:"export_timeout"`
	MaxQueueSize       int               `json:"max_queue_size" validate:"gte=0"`
	MaxExportBatchSize int               `json:"max_export_batch_size" validate:"gte=0"`
	Required           bool              `json:"required"`
	Attributes         map[string]string `json:"attributes"`
}

type metricsSection struct {
	Enabled             bool              `json:"enabled"`
	Exporter            string            `json:"exporter"`
	Endpoint            string            `json:"endpoint"`
	Headers             map[string]string `json:"headers"`
	Insecure            bool              `json:"insecure"`
	Interval            Duration          `json:"interval"`
	DisableRuntimeStats bool              `json:"disable_runtime_stats"`
	Required            bool              `json:"required"`
	ResourceAttributes  map[string]string `json:"resource_attributes"`
}

type engagementSection struct {
	DedupWindow     Duration          `json:"dedup_window" validate:"gte=0"`
	NotificationTTL Duration          `json:"notification_ttl" validate:"gte=0"`
	FanoutBatchSize int               `json:"fanout_batch_size" validate:"gte=0,lte=10000"`
	MentionLimit    int               `json:"mention_limit" validate:"gte=0,lte=100"`
	Milestones      []int64           `json:"milestones" validate:"dive,gt=0"`
	Dispatcher      dispatcherSection `json:"dispatcher"`
}

type dispatcherSection struct {
	Workers int      `json:"workers" validate:"gte=0,lte=1024"`
	Timeout Duration `json:"timeout" validate:"gte=0"`
}

type maintenanceSection struct {
	Enabled           bool     `json:"enabled"`
	ReconcileInterval Duration `json:"reconcile_interval" validate:"gte=0"`
	ReconcileBatch    int32    `json:"reconcile_batch" validate:"gte=0,lte=5000"`
	PurgeInterval     Duration `json:"purge_interval" validate:"gte=0"`
	PurgeBatch        int32    `json:"purge_batch" validate:"gte=0,lte=10000"`
	MaxPurgeRounds    int      `json:"max_purge_rounds" validate:"gte=0"`
}

func toRuntime(b *bootstrap) RuntimeConfig {
	if b == nil {
		return RuntimeConfig{}
	}
	return RuntimeConfig{
		Server:        serverFromFile(b.Server),
		Database:      databaseFromFile(b.Data.Postgres),
		Observability: observabilityFromFile(b.Observability),
		Engagement: services.Config{
			DedupWindow:     b.Engagement.DedupWindow.Std(),
			NotificationTTL: b.Engagement.NotificationTTL.Std(),
			FanoutBatchSize: b.Engagement.FanoutBatchSize,
			MentionLimit:    b.Engagement.MentionLimit,
			Milestones:      append([]int64(nil), b.Engagement.Milestones...),
		}.Normalize(),
		Dispatcher: services.DispatcherConfig{
			Workers: b.Engagement.Dispatcher.Workers,
			Timeout: b.Engagement.Dispatcher.Timeout.Std(),
		}.Normalize(),
		Maintenance: maintenance.Config{
			Enabled:           b.Maintenance.Enabled,
			ReconcileInterval: b.Maintenance.ReconcileInterval.Std(),
			ReconcileBatch:    b.Maintenance.ReconcileBatch,
			PurgeInterval:     b.Maintenance.PurgeInterval.Std(),
			PurgeBatch:        b.Maintenance.PurgeBatch,
			MaxPurgeRounds:    b.Maintenance.MaxPurgeRounds,
		}.Normalize(),
	}
}

func serverFromFile(s serverSection) ServerConfig {
	return ServerConfig{
		Network: s.HTTP.Network,
		Address: s.HTTP.Addr,
		Timeout: s.HTTP.Timeout.Std(),
		JWT: ServerJWTConfig{
			ExpectedAudience: s.JWT.ExpectedAudience,
			SkipValidate:     s.JWT.SkipValidate,
			Required:         s.JWT.Required,
			HeaderKey:        firstNonEmpty(s.JWT.HeaderKey, defaultJWTHeaderKey),
		},
		Handlers:         handlerTimeoutFromFile(s.Handlers),
		MetadataKeys:     append([]string(nil), s.MetadataKeys...),
		AdminUserIDs:     append([]string(nil), s.AdminUserIDs...),
		TrustedProxyHops: s.TrustedHops,
	}
}

func handlerTimeoutFromFile(h handlersSection) HandlerTimeoutConfig {
	cfg := HandlerTimeoutConfig{
		Default: defaultHandlerTimeout,
		Query:   defaultQueryTimeout,
	}
	if d := h.DefaultTimeout.Std(); d > 0 {
		cfg.Default = d
	}
	cfg.Command = firstNonZero(h.CommandTimeout.Std(), cfg.Default)
	cfg.Query = firstNonZero(h.QueryTimeout.Std(), cfg.Query)
	return cfg
}

func databaseFromFile(pg postgresSection) DatabaseConfig {
	return DatabaseConfig{
		DSN:               pg.DSN,
		MaxOpenConns:      pg.MaxOpenConns,
		MinOpenConns:      pg.MinOpenConns,
		MaxConnLifetime:   pg.MaxConnLifetime.Std(),
		MaxConnIdleTime:   pg.MaxConnIdleTime.Std(),
		HealthCheckPeriod: pg.HealthCheckPeriod.Std(),
		Schema:            pg.Schema,
		PreparedStmts:     pg.PreparedStatementsEnabled,
		PoolMetrics:       pg.PoolMetricsEnabled,
		Transaction: TransactionConfig{
			DefaultIsolation: pg.Transaction.DefaultIsolation,
			DefaultTimeout:   pg.Transaction.DefaultTimeout.Std(),
			LockTimeout:      pg.Transaction.LockTimeout.Std(),
			MaxRetries:       pg.Transaction.MaxRetries,
			MetricsEnabled:   pg.Transaction.MetricsEnabled,
		},
		Call: storecall.Config{
			Timeout: pg.Call.Timeout.Std(),
			Retries: pg.Call.Retries,
			Breaker: storecall.BreakerConfig{
				Enabled:      pg.Call.Breaker.Enabled,
				MinRequests:  pg.Call.Breaker.MinRequests,
				FailureRatio: pg.Call.Breaker.FailureRatio,
				Interval:     pg.Call.Breaker.Interval.Std(),
				OpenTimeout:  pg.Call.Breaker.OpenTimeout.Std(),
			},
		},
	}
}

func observabilityFromFile(obs observabilitySection) ObservabilityConfig {
	t := obs.Tracing
	m := obs.Metrics
	return ObservabilityConfig{
		GlobalAttributes: mapCopy(obs.GlobalAttributes),
		Tracing: TracingConfig{
			Enabled:            t.Enabled,
			Exporter:           t.Exporter,
			Endpoint:           t.Endpoint,
			Headers:            mapCopy(t.Headers),
			Insecure:           t.Insecure,
			SamplingRatio:      t.SamplingRatio,
			BatchTimeout:       t.BatchTimeout.Std(),
			ExportTimeout:      t.ExportTimeout.Std(),
			MaxQueueSize:       t.MaxQueueSize,
			MaxExportBatchSize: t.MaxExportBatchSize,
			Required:           t.Required,
			Attributes:         mapCopy(t.Attributes),
		},
		Metrics: MetricsConfig{
			Enabled:             m.Enabled,
			Exporter:            m.Exporter,
			Endpoint:            m.Endpoint,
			Headers:             mapCopy(m.Headers),
			Insecure:            m.Insecure,
			Interval:            m.Interval.Std(),
			DisableRuntimeStats: m.DisableRuntimeStats,
			Required:            m.Required,
			ResourceAttributes:  mapCopy(m.ResourceAttributes),
		},
	}
}

func mapCopy(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func firstNonZero(durations ...time.Duration) time.Duration {
	for _, d := range durations {
		if d > 0 {
			return d
		}
	}
	return 0
}

func fillDefaults(cfg *RuntimeConfig) {
	if cfg.Server.Timeout <= 0 {
		cfg.Server.Timeout = defaultServerTimeout
	}
	defaultKeys := []string{
		"x-apigateway-api-userinfo",
		"x-md-",
		"x-md-idempotency-key",
		"x-session-id",
		"x-forwarded-for",
	}
	if len(cfg.Server.MetadataKeys) == 0 {
		cfg.Server.MetadataKeys = append([]string(nil), defaultKeys...)
	}
}

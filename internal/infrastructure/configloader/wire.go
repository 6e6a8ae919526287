package configloader

import (
	"github.com/bionicotaku/lingo-services-engagement/internal/controllers"
	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"
	"github.com/bionicotaku/lingo-services-engagement/internal/tasks/maintenance"

	"github.com/bionicotaku/lingo-utils/gcjwt"
	"github.com/bionicotaku/lingo-utils/gclog"
	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/bionicotaku/lingo-utils/pgxpoolx"
	txconfig "github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/wire"
)

// ProviderSet 暴露配置加载相关的依赖注入入口。
var ProviderSet = wire.NewSet(
	LoadRuntimeConfig,
	ProvideServiceInfo,
	ProvideLoggerConfig,
	ProvideObservabilityConfig,
	ProvideObservabilityInfo,
	ProvideServerConfig,
	ProvideDatabaseConfig,
	ProvidePgxConfig,
	ProvideTxConfig,
	ProvideStoreCallConfig,
	ProvideJWTConfig,
	ProvideHandlerTimeouts,
	ProvideClientIPPolicy,
	ProvideAdminConfig,
	ProvideEngagementConfig,
	ProvideDispatcherConfig,
	ProvideMaintenanceConfig,
)

// LoadRuntimeConfig 调用 Load 并供 Wire 使用。
func LoadRuntimeConfig(params Params) (RuntimeConfig, error) {
	return Load(params)
}

// ProvideServiceInfo 返回服务元信息。
func ProvideServiceInfo(cfg RuntimeConfig) ServiceInfo {
	return cfg.Service
}

// ProvideLoggerConfig 构造 gclog.Config。
func ProvideLoggerConfig(info ServiceInfo) gclog.Config {
	return gclog.Config{
		Service:              info.Name,
		Version:              info.Version,
		Environment:          info.Environment,
		InstanceID:           info.InstanceID,
		EnableSourceLocation: true,
		StaticLabels: map[string]string{
			"service.id": info.InstanceID,
		},
	}
}

// ProvideObservabilityConfig 将 ObservabilityConfig 转换为 obswire.ObservabilityConfig。
func ProvideObservabilityConfig(cfg RuntimeConfig) obswire.ObservabilityConfig {
	tracing := cfg.Observability.Tracing
	metrics := cfg.Observability.Metrics

	var tracingCfg *obswire.TracingConfig
	if tracing.Enabled || tracing.Endpoint != "" || tracing.Exporter != "" {
		tracingCfg = &obswire.TracingConfig{
			Enabled:            tracing.Enabled,
			Exporter:           tracing.Exporter,
			Endpoint:           tracing.Endpoint,
			Headers:            tracing.Headers,
			Insecure:           tracing.Insecure,
			SamplingRatio:      tracing.SamplingRatio,
			Attributes:         tracing.Attributes,
			BatchTimeout:       tracing.BatchTimeout,
			ExportTimeout:      tracing.ExportTimeout,
			MaxQueueSize:       tracing.MaxQueueSize,
			MaxExportBatchSize: tracing.MaxExportBatchSize,
			Required:           tracing.Required,
		}
	}

	var metricsCfg *obswire.MetricsConfig
	if metrics.Enabled || metrics.Exporter != "" || metrics.Endpoint != "" {
		metricsCfg = &obswire.MetricsConfig{
			Enabled:             metrics.Enabled,
			Exporter:            metrics.Exporter,
			Endpoint:            metrics.Endpoint,
			Headers:             metrics.Headers,
			Insecure:            metrics.Insecure,
			Interval:            metrics.Interval,
			ResourceAttributes:  metrics.ResourceAttributes,
			DisableRuntimeStats: metrics.DisableRuntimeStats,
			Required:            metrics.Required,
		}
	}

	return obswire.ObservabilityConfig{
		Tracing:          tracingCfg,
		Metrics:          metricsCfg,
		GlobalAttributes: cfg.Observability.GlobalAttributes,
	}
}

// ProvideObservabilityInfo 转换为 obswire.ServiceInfo。
func ProvideObservabilityInfo(info ServiceInfo) obswire.ServiceInfo {
	return obswire.ServiceInfo{
		Name:        info.Name,
		Version:     info.Version,
		Environment: info.Environment,
	}
}

// ProvideServerConfig 返回服务端 HTTP 配置。
func ProvideServerConfig(cfg RuntimeConfig) ServerConfig {
	return cfg.Server
}

// ProvideDatabaseConfig 返回数据库配置。
func ProvideDatabaseConfig(cfg RuntimeConfig) DatabaseConfig {
	return cfg.Database
}

// ProvidePgxConfig 将 DatabaseConfig 转换为 pgxpoolx.Config。
func ProvidePgxConfig(dbCfg DatabaseConfig) pgxpoolx.Config {
	enablePrepared := dbCfg.PreparedStmts
	metricsEnabled := dbCfg.PoolMetrics
	return pgxpoolx.Config{
		DSN:                dbCfg.DSN,
		MaxConns:           int32(dbCfg.MaxOpenConns),
		MinConns:           int32(dbCfg.MinOpenConns),
		MaxConnLifetime:    dbCfg.MaxConnLifetime,
		MaxConnIdleTime:    dbCfg.MaxConnIdleTime,
		HealthCheckPeriod:  dbCfg.HealthCheckPeriod,
		Schema:             dbCfg.Schema,
		EnablePreparedStmt: &enablePrepared,
		MetricsEnabled:     &metricsEnabled,
	}
}

// ProvideTxConfig 构造 txmanager.Config。
func ProvideTxConfig(dbCfg DatabaseConfig) txconfig.Config {
	tx := dbCfg.Transaction
	return txconfig.Config{
		DefaultIsolation: tx.DefaultIsolation,
		DefaultTimeout:   tx.DefaultTimeout,
		LockTimeout:      tx.LockTimeout,
		MaxRetries:       tx.MaxRetries,
		MetricsEnabled:   boolPtr(tx.MetricsEnabled),
	}
}

// ProvideStoreCallConfig 返回仓储调用点的超时、重试与熔断策略。
func ProvideStoreCallConfig(dbCfg DatabaseConfig) storecall.Config {
	return dbCfg.Call
}

// ProvideHandlerTimeouts 将 Server 层配置映射为控制层使用的超时策略。
func ProvideHandlerTimeouts(cfg ServerConfig) controllers.HandlerTimeouts {
	return controllers.HandlerTimeouts{
		Default: cfg.Handlers.Default,
		Command: cfg.Handlers.Command,
		Query:   cfg.Handlers.Query,
	}
}

// ProvideClientIPPolicy 返回解析客户端地址时信任的代理跳数。
func ProvideClientIPPolicy(cfg ServerConfig) controllers.ClientIPPolicy {
	return controllers.ClientIPPolicy{TrustedProxyHops: cfg.TrustedProxyHops}
}

// ProvideAdminConfig 返回管理接口的白名单。
func ProvideAdminConfig(cfg ServerConfig) controllers.AdminConfig {
	return controllers.AdminConfig{UserIDs: append([]string(nil), cfg.AdminUserIDs...)}
}

// ProvideJWTConfig 构造服务端 JWT 配置，本服务不发起出站调用。
func ProvideJWTConfig(cfg ServerConfig) gcjwt.Config {
	var serverCfg *gcjwt.ServerConfig
	if cfg.JWT.ExpectedAudience != "" || cfg.JWT.Required || !cfg.JWT.SkipValidate {
		serverCfg = &gcjwt.ServerConfig{
			ExpectedAudience: cfg.JWT.ExpectedAudience,
			SkipValidate:     cfg.JWT.SkipValidate,
			Required:         cfg.JWT.Required,
			HeaderKey:        cfg.JWT.HeaderKey,
		}
	}
	return gcjwt.Config{Server: serverCfg}
}

// ProvideEngagementConfig 返回互动核心的业务参数。
func ProvideEngagementConfig(cfg RuntimeConfig) services.Config {
	return cfg.Engagement
}

// ProvideDispatcherConfig 返回副作用调度器配置。
func ProvideDispatcherConfig(cfg RuntimeConfig) services.DispatcherConfig {
	return cfg.Dispatcher
}

// ProvideMaintenanceConfig 返回维护任务配置。
func ProvideMaintenanceConfig(cfg RuntimeConfig) maintenance.Config {
	return cfg.Maintenance
}

func boolPtr(v bool) *bool {
	return &v
}

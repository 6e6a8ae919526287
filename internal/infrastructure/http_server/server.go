// Package httpserver 负责装配入站 HTTP Server 及其中间件栈，
// 并挂载健康检查与 Prometheus 指标端点。
package httpserver

import (
	"context"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/controllers"
	configloader "github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"

	"github.com/bionicotaku/lingo-utils/gcjwt"
	obsTrace "github.com/bionicotaku/lingo-utils/observability/tracing"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/metadata"
	kmetrics "github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/go-kratos/kratos/v2/middleware/ratelimit"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// 探针与指标路径，不经过业务中间件，也不产生 trace。
const (
	PathHealthz = "/healthz"
	PathReadyz  = "/readyz"
	PathMetrics = "/metrics"

	readinessTimeout = 2 * time.Second
)

// ReadinessProbe 检查关键依赖是否可用，pgxpool.Pool 直接满足该接口。
type ReadinessProbe interface {
	Ping(ctx context.Context) error
}

// NewHTTPServer 构造配置完整的 Kratos HTTP Server 实例。
//
// 中间件链（按执行顺序）：
// 1. obsTrace.Server() - OpenTelemetry 追踪
// 2. recovery.Recovery() - Panic 恢复
// 3. metadata.Server() - 按前缀传播请求头
// 4. gcjwt - 可选的 JWT 校验
// 5. ratelimit.Server() - BBR 自适应限流
// 6. kmetrics.Server() - 按 operation 统计请求数与耗时
// 7. logging.Server() - 结构化访问日志
func NewHTTPServer(
	cfg configloader.ServerConfig,
	jwt gcjwt.ServerMiddleware,
	handlers *controllers.Handlers,
	instruments *Instruments,
	registry *prometheus.Registry,
	probe ReadinessProbe,
	logger log.Logger,
) *khttp.Server {
	mws := []middleware.Middleware{
		obsTrace.Server(),
		recovery.Recovery(),
		metadata.Server(metadata.WithPropagatedPrefix(cfg.MetadataKeys...)),
	}
	if jwt != nil {
		mws = append(mws, middleware.Middleware(jwt))
	}
	mws = append(mws, ratelimit.Server())
	if instruments != nil {
		mws = append(mws, kmetrics.Server(
			kmetrics.WithRequests(instruments.Requests),
			kmetrics.WithSeconds(instruments.Seconds),
		))
	}
	mws = append(mws, logging.Server(logger))

	opts := []khttp.ServerOption{
		khttp.Middleware(mws...),
		khttp.Filter(otelFilter()),
	}
	if cfg.Network != "" {
		opts = append(opts, khttp.Network(cfg.Network))
	}
	if cfg.Address != "" {
		opts = append(opts, khttp.Address(cfg.Address))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, khttp.Timeout(cfg.Timeout))
	}
	srv := khttp.NewServer(opts...)

	srv.Handle(PathHealthz, stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
	}))
	srv.Handle(PathReadyz, readinessHandler(probe, logger))
	if registry != nil {
		srv.Handle(PathMetrics, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	handlers.Register(srv)
	return srv
}

func readinessHandler(probe ReadinessProbe, logger log.Logger) stdhttp.Handler {
	helper := log.NewHelper(log.With(logger, "component", "readyz"))
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if probe == nil {
			w.WriteHeader(stdhttp.StatusOK)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := probe.Ping(ctx); err != nil {
			helper.WithContext(ctx).Warnf("readiness check failed: %v", err)
			w.WriteHeader(stdhttp.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(stdhttp.StatusOK)
	})
}

// otelFilter 为业务路由包上 otelhttp，探针与指标路径除外。
func otelFilter() khttp.FilterFunc {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return otelhttp.NewHandler(next, "engagement.http",
			otelhttp.WithFilter(func(r *stdhttp.Request) bool {
				return !isProbePath(r.URL.Path)
			}),
		)
	}
}

func isProbePath(path string) bool {
	path = strings.TrimSuffix(path, "/")
	return path == PathHealthz || path == PathReadyz || path == PathMetrics
}

//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

//go:generate go run github.com/google/wire/cmd/wire

package main

import (
	"context"

	"github.com/bionicotaku/lingo-services-engagement/internal/controllers"
	configloader "github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	httpserver "github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/http_server"
	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"
	"github.com/bionicotaku/lingo-services-engagement/internal/tasks/maintenance"

	"github.com/bionicotaku/lingo-utils/gcjwt"
	"github.com/bionicotaku/lingo-utils/gclog"
	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/bionicotaku/lingo-utils/pgxpoolx"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2"
	"github.com/google/wire"
)

// wireApp 构建整个 Kratos 应用，分阶段装配依赖。
//
// 依赖注入顺序:
//  1. 配置加载: configloader.ProviderSet 解析配置并派生组件配置
//  2. 基础设施: gclog → observability → gcjwt → pgxpoolx → txmanager → storecall
//  3. 业务层: repositories → services → controllers
//  4. 服务器: httpserver.ProviderSet 组装 HTTP Server、指标与探针
//  5. 后台任务: maintenance.ProvideRunner
//  6. 应用: newApp 创建 Kratos App
func wireApp(context.Context, configloader.Params) (*kratos.App, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,    // 配置加载与解析
		gclog.ProviderSet,           // 结构化日志
		gcjwt.ProviderSet,           // JWT 认证中间件
		obswire.ProviderSet,         // OpenTelemetry 追踪和指标
		pgxpoolx.ProviderSet,        // PostgreSQL 连接池
		txmanager.ProviderSet,       // 事务管理器
		storecall.NewGuard,          // 仓储调用超时/重试/熔断
		repositories.ProviderSet,    // 数据访问层
		services.RepositoryBindings, // 仓储接口绑定
		services.ProviderSet,        // 业务逻辑层
		controllers.ProviderSet,     // 控制器层（HTTP handlers）
		httpserver.ProviderSet,      // HTTP Server
		maintenance.ProvideRunner,
		newApp, // 组装 Kratos 应用
	))
}

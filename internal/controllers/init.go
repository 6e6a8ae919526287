// Package controllers 提供 HTTP 传输层 Handler，负责处理外部请求并调用业务层。
// 该层负责身份解析、参数校验与 DTO 转换，错误直接以 kratos Error 返回。
package controllers

import "github.com/google/wire"

// ProviderSet exposes controller/handler constructors for DI.
var ProviderSet = wire.NewSet(
	NewBaseHandler,
	NewEngagementHandler,
	NewNotificationHandler,
	NewAnalyticsHandler,
	NewWatchListHandler,
	NewAdminHandler,
	NewHandlers,
)

package httpserver

import "github.com/google/wire"

// ProviderSet 暴露 HTTP Server 及其指标、探针的构造函数供 Wire 依赖注入使用。
var ProviderSet = wire.NewSet(
	NewHTTPServer,
	NewInstruments,
	ProvideRegistry,
	ProvideReadinessProbe,
)

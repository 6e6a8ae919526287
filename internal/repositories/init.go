package repositories

import "github.com/google/wire"

// ProviderSet 暴露 Repository 层的构造函数供 Wire 依赖注入使用。
// 所有仓储共享同一个 *pgxpool.Pool 与 *storecall.Guard。
var ProviderSet = wire.NewSet(
	NewUsersRepository,
	NewChannelsRepository,
	NewVideosRepository,
	NewCommentsRepository,
	NewLikesRepository,         // ← 点赞账本
	NewVideoViewsRepository,    // ← 观看去重
	NewSubscriptionsRepository, // ← 订阅账本
	NewNotificationsRepository,
	NewChannelDailyStatsRepository,
	NewWatchListsRepository,
)

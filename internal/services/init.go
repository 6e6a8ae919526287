// Package services 包含互动核心的业务用例。
// 该层负责账本写入、计数对账、观看去重、通知扇出与日统计，并由 EngagementService 显式编排；
// 不直接依赖传输层或基础设施细节。
package services

import (
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	"github.com/google/wire"
)

// ProviderSet 暴露 Services 层的构造函数供 Wire 依赖注入使用。
var ProviderSet = wire.NewSet(
	NewTargetRegistry,
	NewLedgerService,
	NewCounterReconciler,
	NewViewDeduplicator,
	NewNotificationService,
	NewAnalyticsRollup,
	NewDispatcher,
	NewEngagementService,
	NewWatchListService,
	wire.Bind(new(Notifier), new(*NotificationService)),
	wire.Bind(new(StatsBumper), new(*AnalyticsRollup)),
	wire.Bind(new(EngagementUsecase), new(*EngagementService)),
	wire.Bind(new(NotificationInbox), new(*NotificationService)),
	wire.Bind(new(AnalyticsReader), new(*AnalyticsRollup)),
	wire.Bind(new(WatchListUsecase), new(*WatchListService)),
	wire.Bind(new(Reconciler), new(*CounterReconciler)),
	wire.Bind(new(NotificationPurger), new(*NotificationService)),
)

// RepositoryBindings 将本包声明的仓储接口绑定到 PostgreSQL 实现。
var RepositoryBindings = wire.NewSet(
	wire.Bind(new(UsersRepo), new(*repositories.UsersRepository)),
	wire.Bind(new(ChannelsRepo), new(*repositories.ChannelsRepository)),
	wire.Bind(new(VideosRepo), new(*repositories.VideosRepository)),
	wire.Bind(new(CommentsRepo), new(*repositories.CommentsRepository)),
	wire.Bind(new(LikesRepo), new(*repositories.LikesRepository)),
	wire.Bind(new(VideoViewsRepo), new(*repositories.VideoViewsRepository)),
	wire.Bind(new(SubscriptionsRepo), new(*repositories.SubscriptionsRepository)),
	wire.Bind(new(NotificationsRepo), new(*repositories.NotificationsRepository)),
	wire.Bind(new(DailyStatsRepo), new(*repositories.ChannelDailyStatsRepository)),
	wire.Bind(new(WatchListsRepo), new(*repositories.WatchListsRepository)),
)

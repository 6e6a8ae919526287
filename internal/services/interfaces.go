package services

import (
	"context"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"

	"github.com/google/uuid"
)

// EngagementUsecase 抽象互动写用例，便于控制器测试替换。
type EngagementUsecase interface {
	Vote(ctx context.Context, cmd VoteCommand) (*vo.VoteResult, error)
	RecordView(ctx context.Context, cmd ViewCommand) (*vo.ViewResult, error)
	Subscribe(ctx context.Context, subscriberID, channelID uuid.UUID) (*vo.SubscriptionResult, error)
	Unsubscribe(ctx context.Context, subscriberID, channelID uuid.UUID) (*vo.SubscriptionResult, error)
	CreateComment(ctx context.Context, cmd CommentCommand) (*vo.Comment, error)
	DeleteComment(ctx context.Context, actorID, commentID uuid.UUID) error
	PublishVideo(ctx context.Context, cmd PublishVideoCommand) (*vo.Video, error)
}

// NotificationInbox 抽象收件箱用例。
type NotificationInbox interface {
	List(ctx context.Context, input ListNotificationsInput) (*vo.NotificationPage, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

// AnalyticsReader 抽象频道日统计查询。
type AnalyticsReader interface {
	Range(ctx context.Context, channelID uuid.UUID, from, to time.Time) ([]*po.ChannelDailyStats, error)
}

// WatchListUsecase 抽象稍后观看与观看历史用例。
type WatchListUsecase interface {
	AddWatchLater(ctx context.Context, userID, videoID uuid.UUID) (bool, error)
	RemoveWatchLater(ctx context.Context, userID, videoID uuid.UUID) (bool, error)
	ListWatchLater(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*vo.WatchItem, error)
	ListHistory(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*vo.WatchItem, error)
	ClearHistory(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Reconciler 抽象计数对账，供管理接口与维护任务使用。
type Reconciler interface {
	Reconcile(ctx context.Context, targetType po.TargetType, targetID uuid.UUID) (vo.CounterSnapshot, error)
	ReconcileChannelSubscribers(ctx context.Context, channelID uuid.UUID) (int64, error)
	ReconcileDrifted(ctx context.Context, limit int32) (DriftReport, error)
}

// NotificationPurger 抽象过期通知清理。
type NotificationPurger interface {
	PurgeExpired(ctx context.Context, limit int32) (int64, error)
}

var (
	_ EngagementUsecase  = (*EngagementService)(nil)
	_ NotificationInbox  = (*NotificationService)(nil)
	_ AnalyticsReader    = (*AnalyticsRollup)(nil)
	_ WatchListUsecase   = (*WatchListService)(nil)
	_ Reconciler         = (*CounterReconciler)(nil)
	_ NotificationPurger = (*NotificationService)(nil)
)

package services

import (
	"context"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/uuid"
)

// LikesRepo 抽象点赞账本。
type LikesRepo interface {
	Get(ctx context.Context, sess txmanager.Session, actorID uuid.UUID, targetType po.TargetType, targetID uuid.UUID) (*po.Like, error)
	Insert(ctx context.Context, sess txmanager.Session, actorID uuid.UUID, targetType po.TargetType, targetID uuid.UUID, value po.VoteValue) (*po.Like, error)
	UpdateValue(ctx context.Context, sess txmanager.Session, actorID uuid.UUID, targetType po.TargetType, targetID uuid.UUID, expected, value po.VoteValue) (*po.Like, error)
	Delete(ctx context.Context, sess txmanager.Session, actorID uuid.UUID, targetType po.TargetType, targetID uuid.UUID, expected po.VoteValue) error
}

// UsersRepo 抽象用户查询。
type UsersRepo interface {
	FindActive(ctx context.Context, sess txmanager.Session, userID uuid.UUID) (*po.User, error)
	FindActiveByHandles(ctx context.Context, sess txmanager.Session, handles []string) ([]*po.User, error)
}

// ChannelsRepo 抽象频道及计数。
type ChannelsRepo interface {
	FindActive(ctx context.Context, sess txmanager.Session, channelID uuid.UUID) (*po.Channel, error)
	AdjustCounters(ctx context.Context, sess txmanager.Session, channelID uuid.UUID, delta repositories.ChannelCounterDelta) (*po.Channel, error)
	ReconcileSubscribers(ctx context.Context, sess txmanager.Session, channelID uuid.UUID) (int64, error)
	ListSubscriberDrift(ctx context.Context, sess txmanager.Session, limit int32) ([]uuid.UUID, error)
}

// VideosRepo 抽象视频及计数。
type VideosRepo interface {
	FindActive(ctx context.Context, sess txmanager.Session, videoID uuid.UUID) (*po.Video, error)
	Create(ctx context.Context, sess txmanager.Session, input repositories.CreateVideoInput) (*po.Video, error)
	IncrementViews(ctx context.Context, sess txmanager.Session, videoID uuid.UUID, unique bool) (int64, int64, error)
	AdjustComments(ctx context.Context, sess txmanager.Session, videoID uuid.UUID, delta int64) (int64, error)
	ReconcileLikes(ctx context.Context, sess txmanager.Session, videoID uuid.UUID) (po.LikeTally, error)
	ListLikeDrift(ctx context.Context, sess txmanager.Session, limit int32) ([]uuid.UUID, error)
}

// CommentsRepo 抽象评论及计数。
type CommentsRepo interface {
	FindActive(ctx context.Context, sess txmanager.Session, commentID uuid.UUID) (*po.Comment, error)
	Create(ctx context.Context, sess txmanager.Session, input repositories.CreateCommentInput) (*po.Comment, error)
	SoftDelete(ctx context.Context, sess txmanager.Session, commentID uuid.UUID) (*po.Comment, error)
	AdjustReplies(ctx context.Context, sess txmanager.Session, commentID uuid.UUID, delta int64) error
	ReconcileLikes(ctx context.Context, sess txmanager.Session, commentID uuid.UUID) (po.LikeTally, error)
	ListLikeDrift(ctx context.Context, sess txmanager.Session, limit int32) ([]uuid.UUID, error)
}

// VideoViewsRepo 抽象观看去重表。
type VideoViewsRepo interface {
	InsertOrMerge(ctx context.Context, sess txmanager.Session, input repositories.RecordViewInput) (*po.VideoView, bool, error)
}

// SubscriptionsRepo 抽象订阅账本。
type SubscriptionsRepo interface {
	Insert(ctx context.Context, sess txmanager.Session, subscriberID, channelID uuid.UUID) (bool, error)
	Delete(ctx context.Context, sess txmanager.Session, subscriberID, channelID uuid.UUID) (bool, error)
	ListSubscriberIDs(ctx context.Context, sess txmanager.Session, channelID uuid.UUID) ([]uuid.UUID, error)
}

// NotificationsRepo 抽象通知存储。
type NotificationsRepo interface {
	FindRecentDuplicates(ctx context.Context, sess txmanager.Session, recipients []uuid.UUID, key repositories.DedupKey, since time.Time) (map[uuid.UUID]*po.Notification, error)
	InsertBatch(ctx context.Context, sess txmanager.Session, items []*po.Notification) error
	List(ctx context.Context, sess txmanager.Session, filter repositories.ListNotificationsFilter) ([]*po.Notification, error)
	CountUnread(ctx context.Context, sess txmanager.Session, recipientID uuid.UUID, now time.Time) (int64, error)
	MarkRead(ctx context.Context, sess txmanager.Session, recipientID uuid.UUID, ids []uuid.UUID, readAt time.Time) (int64, error)
	MarkAllRead(ctx context.Context, sess txmanager.Session, recipientID uuid.UUID, readAt time.Time) (int64, error)
	PurgeExpired(ctx context.Context, sess txmanager.Session, now time.Time, limit int32) (int64, error)
}

// DailyStatsRepo 抽象频道日统计。
type DailyStatsRepo interface {
	Bump(ctx context.Context, sess txmanager.Session, channelID uuid.UUID, day time.Time, delta repositories.StatsDelta) (*po.ChannelDailyStats, error)
	Range(ctx context.Context, sess txmanager.Session, channelID uuid.UUID, from, to time.Time) ([]*po.ChannelDailyStats, error)
}

// WatchListsRepo 抽象稍后观看与观看历史。
type WatchListsRepo interface {
	AddWatchLater(ctx context.Context, sess txmanager.Session, userID, videoID uuid.UUID) (bool, error)
	RemoveWatchLater(ctx context.Context, sess txmanager.Session, userID, videoID uuid.UUID) (bool, error)
	ListWatchLater(ctx context.Context, sess txmanager.Session, userID uuid.UUID, limit, offset int32) ([]*po.WatchLaterEntry, error)
	TouchHistory(ctx context.Context, sess txmanager.Session, userID, videoID uuid.UUID, watchedPercentage float64, at time.Time) error
	ListHistory(ctx context.Context, sess txmanager.Session, userID uuid.UUID, limit, offset int32) ([]*po.WatchHistoryEntry, error)
	ClearHistory(ctx context.Context, sess txmanager.Session, userID uuid.UUID) (int64, error)
}

var (
	_ LikesRepo         = (*repositories.LikesRepository)(nil)
	_ UsersRepo         = (*repositories.UsersRepository)(nil)
	_ ChannelsRepo      = (*repositories.ChannelsRepository)(nil)
	_ VideosRepo        = (*repositories.VideosRepository)(nil)
	_ CommentsRepo      = (*repositories.CommentsRepository)(nil)
	_ VideoViewsRepo    = (*repositories.VideoViewsRepository)(nil)
	_ SubscriptionsRepo = (*repositories.SubscriptionsRepository)(nil)
	_ NotificationsRepo = (*repositories.NotificationsRepository)(nil)
	_ DailyStatsRepo    = (*repositories.ChannelDailyStatsRepository)(nil)
	_ WatchListsRepo    = (*repositories.WatchListsRepository)(nil)
)

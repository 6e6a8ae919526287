package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// 输入长度上限
const (
	maxCommentRunes     = 10_000
	maxTitleRunes       = 200
	maxDescriptionRunes = 5_000
)

// 次要副作用名称，用于日志与指标。
const (
	effectNotify        = "notify"
	effectChannelViews  = "channel.views"
	effectAnalytics     = "analytics.bump"
	effectWatchHistory  = "watch_history.touch"
	effectCommentCounts = "comment.counters"
)

// EngagementService 编排互动用例。
//
// 每个用例先同步完成主路径（账本写入与直接目标的计数），主路径任何错误都直接返回；
// 随后把通知、频道计数、日统计等次要副作用交给 Dispatcher 异步执行，其失败只记录日志。
type EngagementService struct {
	ledger        *LedgerService
	reconciler    *CounterReconciler
	views         *ViewDeduplicator
	notifier      Notifier
	rollup        StatsBumper
	channels      ChannelsRepo
	videos        VideosRepo
	comments      CommentsRepo
	subscriptions SubscriptionsRepo
	watchLists    WatchListsRepo
	dispatcher    *Dispatcher
	milestones    []int64
	now           func() time.Time
	log           *log.Helper
}

// NewEngagementService 构造 EngagementService。
func NewEngagementService(
	ledger *LedgerService,
	reconciler *CounterReconciler,
	views *ViewDeduplicator,
	notifier Notifier,
	rollup StatsBumper,
	channels ChannelsRepo,
	videos VideosRepo,
	comments CommentsRepo,
	subscriptions SubscriptionsRepo,
	watchLists WatchListsRepo,
	dispatcher *Dispatcher,
	cfg Config,
	logger log.Logger,
) *EngagementService {
	cfg = cfg.Normalize()
	return &EngagementService{
		ledger:        ledger,
		reconciler:    reconciler,
		views:         views,
		notifier:      notifier,
		rollup:        rollup,
		channels:      channels,
		videos:        videos,
		comments:      comments,
		subscriptions: subscriptions,
		watchLists:    watchLists,
		dispatcher:    dispatcher,
		milestones:    cfg.Milestones,
		now:           time.Now,
		log:           log.NewHelper(logger),
	}
}

// Vote 写入投票账本并立即对账目标计数，随后异步发送点赞通知与日统计。
func (s *EngagementService) Vote(ctx context.Context, cmd VoteCommand) (*vo.VoteResult, error) {
	outcome, err := s.ledger.ApplyVote(ctx, cmd)
	if err != nil {
		return nil, err
	}
	counters, err := s.reconciler.Reconcile(ctx, cmd.TargetType, cmd.TargetID)
	if err != nil {
		return nil, err
	}

	if outcome.Operation != vo.VoteDeleted && outcome.Record.Value == po.VoteLike {
		evt := NotifyEvent{ActorID: &cmd.ActorID}
		videoID := outcome.Target.VideoID
		switch cmd.TargetType {
		case po.TargetVideo:
			evt.Type = po.NotificationVideoLike
			evt.Refs = po.NotificationRefs{VideoID: &videoID}
		case po.TargetComment:
			commentID := outcome.Target.ID
			evt.Type = po.NotificationCommentLike
			evt.Refs = po.NotificationRefs{VideoID: &videoID, CommentID: &commentID}
		}
		s.notifyAsync(ctx, evt)
	}
	if delta := outcome.LikeDelta(); delta != 0 && outcome.Target.ChannelID != uuid.Nil {
		s.bumpAsync(ctx, outcome.Target.ChannelID, repositories.StatsDelta{Likes: delta})
	}

	return &vo.VoteResult{
		Vote:      vo.NewVote(outcome.Record),
		Operation: outcome.Operation,
		Counters:  counters,
	}, nil
}

// RecordView 记录观看并返回最新计数，频道播放数、日统计、观看历史与里程碑均异步处理。
// 每次请求都会累加 views，无论是否重复观看。
func (s *EngagementService) RecordView(ctx context.Context, cmd ViewCommand) (*vo.ViewResult, error) {
	outcome, err := s.views.RecordView(ctx, cmd)
	if err != nil {
		return nil, err
	}
	video := outcome.Video
	channelID := video.ChannelID

	s.dispatcher.Go(ctx, effectChannelViews, func(ctx context.Context) error {
		_, err := s.channels.AdjustCounters(ctx, nil, channelID, repositories.ChannelCounterDelta{Views: 1})
		return err
	})
	s.bumpAsync(ctx, channelID, repositories.StatsDelta{Views: 1})
	if actor := cmd.Identity.ActorID; actor != nil && *actor != uuid.Nil && s.watchLists != nil {
		userID, videoID, pct, at := *actor, video.ID, cmd.WatchedPercentage, s.now().UTC()
		s.dispatcher.Go(ctx, effectWatchHistory, func(ctx context.Context) error {
			return s.watchLists.TouchHistory(ctx, nil, userID, videoID, pct, at)
		})
	}
	if m, ok := crossedMilestone(outcome.Result.Views-1, outcome.Result.Views, s.milestones); ok {
		videoRef := video.ID
		s.notifyAsync(ctx, NotifyEvent{
			Type:       po.NotificationMilestone,
			Refs:       po.NotificationRefs{VideoID: &videoRef},
			Recipients: []uuid.UUID{video.OwnerID},
			Title:      "Milestone reached",
			Message:    fmt.Sprintf("Your video %q reached %d views", video.Title, m),
		})
	}

	result := outcome.Result
	return &result, nil
}

// Subscribe 订阅频道，重复订阅幂等；首次订阅时通知频道主。
// 频道主可订阅自己的频道，计数照常变化，通知由自我抑制过滤。
func (s *EngagementService) Subscribe(ctx context.Context, subscriberID, channelID uuid.UUID) (*vo.SubscriptionResult, error) {
	channel, err := s.loadChannelForSubscription(ctx, subscriberID, channelID)
	if err != nil {
		return nil, err
	}
	inserted, err := s.subscriptions.Insert(ctx, nil, subscriberID, channelID)
	if err != nil {
		return nil, translate("subscriptions.insert", err)
	}
	if !inserted {
		return &vo.SubscriptionResult{ChannelID: channelID, Subscribed: true, Subscribers: channel.Subscribers}, nil
	}
	updated, err := s.channels.AdjustCounters(ctx, nil, channelID, repositories.ChannelCounterDelta{Subscribers: 1})
	if err != nil {
		return nil, translate("channels.adjust_counters", err)
	}

	channelRef := channelID
	s.notifyAsync(ctx, NotifyEvent{
		Type:    po.NotificationNewSubscriber,
		ActorID: &subscriberID,
		Refs:    po.NotificationRefs{ChannelID: &channelRef},
	})
	s.bumpAsync(ctx, channelID, repositories.StatsDelta{Subscribers: 1})
	if m, ok := crossedMilestone(updated.Subscribers-1, updated.Subscribers, s.milestones); ok {
		s.notifyAsync(ctx, NotifyEvent{
			Type:       po.NotificationMilestone,
			Refs:       po.NotificationRefs{ChannelID: &channelRef},
			Recipients: []uuid.UUID{updated.OwnerID},
			Title:      "Milestone reached",
			Message:    fmt.Sprintf("Your channel %q reached %d subscribers", updated.Name, m),
		})
	}

	return &vo.SubscriptionResult{ChannelID: channelID, Subscribed: true, Changed: true, Subscribers: updated.Subscribers}, nil
}

// Unsubscribe 取消订阅，未订阅时幂等返回。
func (s *EngagementService) Unsubscribe(ctx context.Context, subscriberID, channelID uuid.UUID) (*vo.SubscriptionResult, error) {
	channel, err := s.loadChannelForSubscription(ctx, subscriberID, channelID)
	if err != nil {
		return nil, err
	}
	deleted, err := s.subscriptions.Delete(ctx, nil, subscriberID, channelID)
	if err != nil {
		return nil, translate("subscriptions.delete", err)
	}
	if !deleted {
		return &vo.SubscriptionResult{ChannelID: channelID, Subscribers: channel.Subscribers}, nil
	}
	updated, err := s.channels.AdjustCounters(ctx, nil, channelID, repositories.ChannelCounterDelta{Subscribers: -1})
	if err != nil {
		return nil, translate("channels.adjust_counters", err)
	}
	s.bumpAsync(ctx, channelID, repositories.StatsDelta{Subscribers: -1})
	return &vo.SubscriptionResult{ChannelID: channelID, Changed: true, Subscribers: updated.Subscribers}, nil
}

func (s *EngagementService) loadChannelForSubscription(ctx context.Context, subscriberID, channelID uuid.UUID) (*po.Channel, error) {
	if subscriberID == uuid.Nil || channelID == uuid.Nil {
		return nil, ValidationError("subscriber_id and channel_id are required")
	}
	channel, err := s.channels.FindActive(ctx, nil, channelID)
	if err != nil {
		return nil, translate("channels.find_active", err)
	}
	return channel, nil
}

// CommentCommand 描述发表评论或回复。
type CommentCommand struct {
	AuthorID uuid.UUID
	VideoID  uuid.UUID
	ParentID *uuid.UUID
	Body     string
}

// CreateComment 发表评论并更新视频评论数；回复同时更新父评论回复数。
// 视频主、父评论作者与被 @ 的用户异步收到通知。
func (s *EngagementService) CreateComment(ctx context.Context, cmd CommentCommand) (*vo.Comment, error) {
	body := strings.TrimSpace(cmd.Body)
	if cmd.AuthorID == uuid.Nil || cmd.VideoID == uuid.Nil {
		return nil, ValidationError("author_id and video_id are required")
	}
	if body == "" {
		return nil, ValidationError("comment body is required")
	}
	if utf8.RuneCountInString(body) > maxCommentRunes {
		return nil, ValidationError("comment body exceeds %d characters", maxCommentRunes)
	}

	video, err := s.videos.FindActive(ctx, nil, cmd.VideoID)
	if err != nil {
		return nil, translate("videos.find_active", err)
	}
	if cmd.ParentID != nil {
		parent, err := s.comments.FindActive(ctx, nil, *cmd.ParentID)
		if err != nil {
			return nil, translate("comments.find_active", err)
		}
		if parent.VideoID != video.ID {
			return nil, ValidationError("parent comment belongs to another video")
		}
	}

	comment, err := s.comments.Create(ctx, nil, repositories.CreateCommentInput{
		VideoID:  video.ID,
		AuthorID: cmd.AuthorID,
		ParentID: cmd.ParentID,
		Body:     body,
	})
	if err != nil {
		return nil, translate("comments.create", err)
	}
	if _, err := s.videos.AdjustComments(ctx, nil, video.ID, 1); err != nil {
		return nil, translate("videos.adjust_comments", err)
	}
	if cmd.ParentID != nil {
		if err := s.comments.AdjustReplies(ctx, nil, *cmd.ParentID, 1); err != nil {
			return nil, translate("comments.adjust_replies", err)
		}
	}

	videoRef, commentRef := video.ID, comment.ID
	refs := po.NotificationRefs{VideoID: &videoRef, CommentID: &commentRef}
	s.notifyAsync(ctx, NotifyEvent{Type: po.NotificationNewComment, ActorID: &cmd.AuthorID, Refs: refs})
	if cmd.ParentID != nil {
		parentID := *cmd.ParentID
		s.notifyAsync(ctx, NotifyEvent{Type: po.NotificationCommentReply, ActorID: &cmd.AuthorID, Refs: refs, ParentCommentID: &parentID})
	}
	if len(ExtractMentions(body, 1)) > 0 {
		s.notifyAsync(ctx, NotifyEvent{Type: po.NotificationMention, ActorID: &cmd.AuthorID, Refs: refs, Text: body})
	}
	s.bumpAsync(ctx, video.ChannelID, repositories.StatsDelta{Comments: 1})

	return vo.NewComment(comment), nil
}

// DeleteComment 软删除评论，仅作者可操作；视频评论数与父评论回复数同步回退，日统计异步回退。
func (s *EngagementService) DeleteComment(ctx context.Context, actorID, commentID uuid.UUID) error {
	if actorID == uuid.Nil || commentID == uuid.Nil {
		return ValidationError("actor_id and comment_id are required")
	}
	comment, err := s.comments.FindActive(ctx, nil, commentID)
	if err != nil {
		return translate("comments.find_active", err)
	}
	if comment.AuthorID != actorID {
		return ForbiddenError("only the author can delete this comment")
	}
	if _, err := s.comments.SoftDelete(ctx, nil, commentID); err != nil {
		return translate("comments.soft_delete", err)
	}
	if _, err := s.videos.AdjustComments(ctx, nil, comment.VideoID, -1); err != nil {
		return translate("videos.adjust_comments", err)
	}
	if comment.ParentID != nil {
		if err := s.comments.AdjustReplies(ctx, nil, *comment.ParentID, -1); err != nil {
			return translate("comments.adjust_replies", err)
		}
	}

	videoID := comment.VideoID
	s.dispatcher.Go(ctx, effectCommentCounts, func(ctx context.Context) error {
		if s.rollup == nil {
			return nil
		}
		video, err := s.videos.FindActive(ctx, nil, videoID)
		if err != nil {
			return err
		}
		_, err = s.rollup.Bump(ctx, video.ChannelID, s.now(), repositories.StatsDelta{Comments: -1})
		return err
	})
	return nil
}

// PublishVideoCommand 描述上传完成后的视频发布。
type PublishVideoCommand struct {
	OwnerID     uuid.UUID
	ChannelID   uuid.UUID
	Title       string
	Description string
	MediaURL    string
	MediaKey    string
}

// PublishVideo 创建视频并更新频道视频数，随后异步通知全部订阅者。
func (s *EngagementService) PublishVideo(ctx context.Context, cmd PublishVideoCommand) (*vo.Video, error) {
	title := strings.TrimSpace(cmd.Title)
	switch {
	case cmd.OwnerID == uuid.Nil || cmd.ChannelID == uuid.Nil:
		return nil, ValidationError("owner_id and channel_id are required")
	case title == "":
		return nil, ValidationError("title is required")
	case utf8.RuneCountInString(title) > maxTitleRunes:
		return nil, ValidationError("title exceeds %d characters", maxTitleRunes)
	case utf8.RuneCountInString(cmd.Description) > maxDescriptionRunes:
		return nil, ValidationError("description exceeds %d characters", maxDescriptionRunes)
	case strings.TrimSpace(cmd.MediaURL) == "" || strings.TrimSpace(cmd.MediaKey) == "":
		return nil, ValidationError("media url and key are required")
	}

	channel, err := s.channels.FindActive(ctx, nil, cmd.ChannelID)
	if err != nil {
		return nil, translate("channels.find_active", err)
	}
	if channel.OwnerID != cmd.OwnerID {
		return nil, ForbiddenError("only the channel owner can publish")
	}

	video, err := s.videos.Create(ctx, nil, repositories.CreateVideoInput{
		ChannelID:   channel.ID,
		OwnerID:     cmd.OwnerID,
		Title:       title,
		Description: cmd.Description,
		MediaURL:    strings.TrimSpace(cmd.MediaURL),
		MediaKey:    strings.TrimSpace(cmd.MediaKey),
	})
	if err != nil {
		return nil, translate("videos.create", err)
	}
	if _, err := s.channels.AdjustCounters(ctx, nil, channel.ID, repositories.ChannelCounterDelta{Videos: 1}); err != nil {
		return nil, translate("channels.adjust_counters", err)
	}

	videoRef, channelRef := video.ID, channel.ID
	s.notifyAsync(ctx, NotifyEvent{
		Type:    po.NotificationVideoUpload,
		ActorID: &cmd.OwnerID,
		Refs:    po.NotificationRefs{VideoID: &videoRef, ChannelID: &channelRef},
	})
	s.bumpAsync(ctx, channel.ID, repositories.StatsDelta{Videos: 1})

	return vo.NewVideo(video), nil
}

func (s *EngagementService) notifyAsync(ctx context.Context, evt NotifyEvent) {
	if s.notifier == nil {
		return
	}
	s.dispatcher.Go(ctx, effectNotify+"."+strings.ToLower(string(evt.Type)), func(ctx context.Context) error {
		_, err := s.notifier.Notify(ctx, evt)
		return err
	})
}

func (s *EngagementService) bumpAsync(ctx context.Context, channelID uuid.UUID, delta repositories.StatsDelta) {
	if s.rollup == nil || channelID == uuid.Nil {
		return
	}
	at := s.now()
	s.dispatcher.Go(ctx, effectAnalytics, func(ctx context.Context) error {
		_, err := s.rollup.Bump(ctx, channelID, at, delta)
		return err
	})
}

// crossedMilestone 返回 (prev, curr] 区间内最大的里程碑。
func crossedMilestone(prev, curr int64, milestones []int64) (int64, bool) {
	var hit int64
	for _, m := range milestones {
		if prev < m && m <= curr && m > hit {
			hit = m
		}
	}
	return hit, hit > 0
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// 分页与批量上限。
const (
	defaultNotificationPageSize = 20
	maxNotificationPageSize     = 100
	maxMarkReadBatch            = 500
	defaultPurgeLimit           = 1000
)

// NotifyEvent 描述一次需要扇出通知的领域事件。
type NotifyEvent struct {
	Type    po.NotificationType
	ActorID *uuid.UUID // 系统通知为 nil
	Refs    po.NotificationRefs
	// ParentCommentID 仅 COMMENT_REPLY 使用，接收人为父评论作者。
	ParentCommentID *uuid.UUID
	// Text 仅 MENTION 使用，从中提取 @handle。
	Text string
	// Recipients 仅 MILESTONE / SYSTEM 使用。
	Recipients []uuid.UUID
	// Title/Message 为空时按类型生成。
	Title   string
	Message string
}

// Notifier 是通知扇出的抽象，编排层通过它发送通知。
type Notifier interface {
	Notify(ctx context.Context, evt NotifyEvent) ([]*po.Notification, error)
}

// NotificationService 负责通知扇出（接收人解析、自我抑制、窗口去重、批量写入）与收件箱查询。
type NotificationService struct {
	notifications NotificationsRepo
	users         UsersRepo
	videos        VideosRepo
	comments      CommentsRepo
	channels      ChannelsRepo
	subscriptions SubscriptionsRepo
	cfg           Config
	now           func() time.Time
	log           *log.Helper
	metrics       *engagementMetrics
}

var _ Notifier = (*NotificationService)(nil)

// NewNotificationService 构造 NotificationService。
func NewNotificationService(
	notifications NotificationsRepo,
	users UsersRepo,
	videos VideosRepo,
	comments CommentsRepo,
	channels ChannelsRepo,
	subscriptions SubscriptionsRepo,
	cfg Config,
	logger log.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		videos:        videos,
		comments:      comments,
		channels:      channels,
		subscriptions: subscriptions,
		cfg:           cfg.Normalize(),
		now:           time.Now,
		log:           log.NewHelper(log.With(logger, "component", "notifications")),
		metrics:       newEngagementMetrics("notifications"),
	}
}

// WithClock 替换时钟，便于测试去重窗口与过期时间。
func (s *NotificationService) WithClock(now func() time.Time) *NotificationService {
	if now != nil {
		s.now = now
	}
	return s
}

// PriorityFor 返回通知类型对应的优先级。
func PriorityFor(typ po.NotificationType) po.NotificationPriority {
	switch typ {
	case po.NotificationVideoLike, po.NotificationCommentLike:
		return po.PriorityLow
	case po.NotificationMilestone, po.NotificationSystem:
		return po.PriorityHigh
	default:
		return po.PriorityNormal
	}
}

// Notify 为事件解析接收人并写入通知，返回本次生效的通知（包括窗口内已存在的重复项）。
//
// 自己触发的事件不会通知自己；同一 (recipient, sender, type, refs) 在去重窗口内只保留一条。
// 批量扇出时按批写入，单批失败只记录日志，其余批次继续。
func (s *NotificationService) Notify(ctx context.Context, evt NotifyEvent) ([]*po.Notification, error) {
	if !validNotificationType(evt.Type) {
		return nil, ValidationError("unsupported notification type %q", evt.Type)
	}
	recipients, err := s.resolveRecipients(ctx, evt)
	if err != nil {
		return nil, err
	}

	recipients = s.suppressSelf(ctx, evt, recipients)
	if len(recipients) == 0 {
		return nil, nil
	}

	now := s.now().UTC()
	key := repositories.DedupKey{SenderID: evt.ActorID, Type: evt.Type, Refs: evt.Refs}
	existing, err := s.notifications.FindRecentDuplicates(ctx, nil, recipients, key, now.Add(-s.cfg.DedupWindow))
	if err != nil {
		return nil, translate("notifications.find_duplicates", err)
	}

	result := make([]*po.Notification, 0, len(recipients))
	fresh := make([]uuid.UUID, 0, len(recipients))
	for _, recipient := range recipients {
		if dup, ok := existing[recipient]; ok {
			result = append(result, dup)
			continue
		}
		fresh = append(fresh, recipient)
	}
	s.metrics.recordNotifications(ctx, string(evt.Type), outcomeDeduplicated, len(result))
	if len(fresh) == 0 {
		return result, nil
	}

	title, message := s.render(ctx, evt)
	items := make([]*po.Notification, 0, len(fresh))
	for _, recipient := range fresh {
		items = append(items, &po.Notification{
			ID:          uuid.New(),
			RecipientID: recipient,
			SenderID:    evt.ActorID,
			Type:        evt.Type,
			Priority:    PriorityFor(evt.Type),
			Title:       title,
			Message:     message,
			Refs:        evt.Refs,
			Status:      po.NotificationUnread,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.cfg.NotificationTTL),
		})
	}

	created, failed := s.insertChunks(ctx, evt.Type, items)
	result = append(result, created...)
	if len(created) == 0 && failed != nil {
		return nil, translate("notifications.insert", failed)
	}
	if failed != nil {
		s.log.WithContext(ctx).Warnf("notification fan-out partially failed: type=%s created=%d total=%d err=%v", evt.Type, len(created), len(items), failed)
	}
	return result, nil
}

func (s *NotificationService) insertChunks(ctx context.Context, typ po.NotificationType, items []*po.Notification) ([]*po.Notification, error) {
	created := make([]*po.Notification, 0, len(items))
	var errs []error
	for start := 0; start < len(items); start += s.cfg.FanoutBatchSize {
		end := min(start+s.cfg.FanoutBatchSize, len(items))
		chunk := items[start:end]
		if err := s.notifications.InsertBatch(ctx, nil, chunk); err != nil {
			s.log.WithContext(ctx).Errorf("insert notification batch failed: type=%s offset=%d size=%d err=%v", typ, start, len(chunk), err)
			s.metrics.recordNotifications(ctx, string(typ), outcomeFailed, len(chunk))
			errs = append(errs, err)
			continue
		}
		s.metrics.recordNotifications(ctx, string(typ), outcomeCreated, len(chunk))
		created = append(created, chunk...)
	}
	return created, errors.Join(errs...)
}

func (s *NotificationService) suppressSelf(ctx context.Context, evt NotifyEvent, recipients []uuid.UUID) []uuid.UUID {
	if evt.ActorID == nil {
		return recipients
	}
	out := recipients[:0]
	for _, r := range recipients {
		if r == *evt.ActorID {
			s.metrics.recordNotifications(ctx, string(evt.Type), outcomeSuppressed, 1)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *NotificationService) resolveRecipients(ctx context.Context, evt NotifyEvent) ([]uuid.UUID, error) {
	switch evt.Type {
	case po.NotificationVideoLike, po.NotificationNewComment:
		if evt.Refs.VideoID == nil {
			return nil, ValidationError("%s requires video reference", evt.Type)
		}
		video, err := s.videos.FindActive(ctx, nil, *evt.Refs.VideoID)
		if err != nil {
			return nil, translate("videos.find_active", err)
		}
		return []uuid.UUID{video.OwnerID}, nil
	case po.NotificationCommentLike:
		if evt.Refs.CommentID == nil {
			return nil, ValidationError("%s requires comment reference", evt.Type)
		}
		return s.commentAuthor(ctx, *evt.Refs.CommentID)
	case po.NotificationCommentReply:
		if evt.ParentCommentID == nil {
			return nil, ValidationError("%s requires parent comment", evt.Type)
		}
		return s.commentAuthor(ctx, *evt.ParentCommentID)
	case po.NotificationNewSubscriber:
		if evt.Refs.ChannelID == nil {
			return nil, ValidationError("%s requires channel reference", evt.Type)
		}
		channel, err := s.channels.FindActive(ctx, nil, *evt.Refs.ChannelID)
		if err != nil {
			return nil, translate("channels.find_active", err)
		}
		return []uuid.UUID{channel.OwnerID}, nil
	case po.NotificationVideoUpload:
		if evt.Refs.ChannelID == nil {
			return nil, ValidationError("%s requires channel reference", evt.Type)
		}
		ids, err := s.subscriptions.ListSubscriberIDs(ctx, nil, *evt.Refs.ChannelID)
		if err != nil {
			return nil, translate("subscriptions.list_subscribers", err)
		}
		return dedupeIDs(ids), nil
	case po.NotificationMention:
		handles := ExtractMentions(evt.Text, s.cfg.MentionLimit)
		if len(handles) == 0 {
			return nil, nil
		}
		users, err := s.users.FindActiveByHandles(ctx, nil, handles)
		if err != nil {
			return nil, translate("users.find_by_handles", err)
		}
		ids := make([]uuid.UUID, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		return dedupeIDs(ids), nil
	default:
		return dedupeIDs(evt.Recipients), nil
	}
}

func (s *NotificationService) commentAuthor(ctx context.Context, commentID uuid.UUID) ([]uuid.UUID, error) {
	comment, err := s.comments.FindActive(ctx, nil, commentID)
	if err != nil {
		return nil, translate("comments.find_active", err)
	}
	return []uuid.UUID{comment.AuthorID}, nil
}

func (s *NotificationService) render(ctx context.Context, evt NotifyEvent) (string, string) {
	if evt.Title != "" {
		return evt.Title, evt.Message
	}
	who := "Someone"
	if evt.ActorID != nil {
		if user, err := s.users.FindActive(ctx, nil, *evt.ActorID); err == nil {
			who = displayName(user)
		} else {
			s.log.WithContext(ctx).Debugf("resolve sender name failed: sender=%s err=%v", *evt.ActorID, err)
		}
	}
	switch evt.Type {
	case po.NotificationVideoLike:
		return "New like", fmt.Sprintf("%s liked your video", who)
	case po.NotificationCommentLike:
		return "New like", fmt.Sprintf("%s liked your comment", who)
	case po.NotificationNewComment:
		return "New comment", fmt.Sprintf("%s commented on your video", who)
	case po.NotificationCommentReply:
		return "New reply", fmt.Sprintf("%s replied to your comment", who)
	case po.NotificationMention:
		return "You were mentioned", fmt.Sprintf("%s mentioned you in a comment", who)
	case po.NotificationNewSubscriber:
		return "New subscriber", fmt.Sprintf("%s subscribed to your channel", who)
	case po.NotificationVideoUpload:
		return "New video", fmt.Sprintf("%s uploaded a new video", who)
	case po.NotificationMilestone:
		return "Milestone reached", evt.Message
	default:
		return "Notice", evt.Message
	}
}

func displayName(user *po.User) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return "@" + user.Handle
}

func validNotificationType(typ po.NotificationType) bool {
	switch typ {
	case po.NotificationVideoLike, po.NotificationCommentLike, po.NotificationNewComment,
		po.NotificationCommentReply, po.NotificationMention, po.NotificationNewSubscriber,
		po.NotificationVideoUpload, po.NotificationMilestone, po.NotificationSystem:
		return true
	default:
		return false
	}
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ListNotificationsInput 描述收件箱查询参数。
type ListNotificationsInput struct {
	RecipientID uuid.UUID
	UnreadOnly  bool
	Limit       int32
	Offset      int32
}

// List 返回未过期的通知（按创建时间倒序）及未读数。
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) (*vo.NotificationPage, error) {
	if input.RecipientID == uuid.Nil {
		return nil, ValidationError("recipient is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultNotificationPageSize
	}
	if limit > maxNotificationPageSize {
		limit = maxNotificationPageSize
	}
	offset := max(input.Offset, 0)
	now := s.now().UTC()

	filter := repositories.ListNotificationsFilter{
		RecipientID: input.RecipientID,
		Now:         now,
		Limit:       limit,
		Offset:      offset,
	}
	if input.UnreadOnly {
		status := po.NotificationUnread
		filter.Status = &status
	}
	items, err := s.notifications.List(ctx, nil, filter)
	if err != nil {
		return nil, translate("notifications.list", err)
	}
	unread, err := s.notifications.CountUnread(ctx, nil, input.RecipientID, now)
	if err != nil {
		return nil, translate("notifications.count_unread", err)
	}
	return &vo.NotificationPage{Items: vo.NewNotifications(items), Unread: unread}, nil
}

// UnreadCount 返回未读且未过期的通知数。
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if recipientID == uuid.Nil {
		return 0, ValidationError("recipient is required")
	}
	count, err := s.notifications.CountUnread(ctx, nil, recipientID, s.now().UTC())
	if err != nil {
		return 0, translate("notifications.count_unread", err)
	}
	return count, nil
}

// MarkRead 将接收人名下的指定通知标记为已读，返回实际更新条数。
func (s *NotificationService) MarkRead(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if recipientID == uuid.Nil {
		return 0, ValidationError("recipient is required")
	}
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return 0, ValidationError("notification ids are required")
	}
	if len(ids) > maxMarkReadBatch {
		return 0, ValidationError("at most %d notification ids per request", maxMarkReadBatch)
	}
	updated, err := s.notifications.MarkRead(ctx, nil, recipientID, ids, s.now().UTC())
	if err != nil {
		return 0, translate("notifications.mark_read", err)
	}
	return updated, nil
}

// MarkAllRead 将接收人的全部未读通知标记为已读。
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if recipientID == uuid.Nil {
		return 0, ValidationError("recipient is required")
	}
	updated, err := s.notifications.MarkAllRead(ctx, nil, recipientID, s.now().UTC())
	if err != nil {
		return 0, translate("notifications.mark_all_read", err)
	}
	return updated, nil
}

// PurgeExpired 删除已过期的通知，供维护任务调用。
func (s *NotificationService) PurgeExpired(ctx context.Context, limit int32) (int64, error) {
	if limit <= 0 {
		limit = defaultPurgeLimit
	}
	purged, err := s.notifications.PurgeExpired(ctx, nil, s.now().UTC(), limit)
	if err != nil {
		return 0, translate("notifications.purge_expired", err)
	}
	return purged, nil
}

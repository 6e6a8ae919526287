package po

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType 通知类型。
type NotificationType string

// 通知类型取值
const (
	NotificationVideoLike     NotificationType = "VIDEO_LIKE"
	NotificationCommentLike   NotificationType = "COMMENT_LIKE"
	NotificationNewComment    NotificationType = "NEW_COMMENT"
	NotificationCommentReply  NotificationType = "COMMENT_REPLY"
	NotificationMention       NotificationType = "MENTION"
	NotificationNewSubscriber NotificationType = "NEW_SUBSCRIBER"
	NotificationVideoUpload   NotificationType = "VIDEO_UPLOAD"
	NotificationMilestone     NotificationType = "MILESTONE"
	NotificationSystem        NotificationType = "SYSTEM"
)

// NotificationPriority 仅用于客户端排序与高亮，不影响投递。
type NotificationPriority string

// 优先级取值
const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// NotificationStatus 读状态。
type NotificationStatus string

// 读状态取值
const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

// NotificationRefs 是通知关联的实体引用，同时参与去重键。
type NotificationRefs struct {
	VideoID   *uuid.UUID
	ChannelID *uuid.UUID
	CommentID *uuid.UUID
}

// Notification 表示 engagement.notifications 表的行。
type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	SenderID    *uuid.UUID
	Type        NotificationType
	Priority    NotificationPriority
	Title       string
	Message     string
	Refs        NotificationRefs
	Status      NotificationStatus
	CreatedAt   time.Time
	ReadAt      *time.Time
	ExpiresAt   time.Time
}

// ChannelDailyStats 表示 engagement.channel_daily_stats 表的行，每个 (channel, day) 一条。
type ChannelDailyStats struct {
	ChannelID   uuid.UUID
	Day         time.Time
	Views       int64
	Subscribers int64
	Videos      int64
	Likes       int64
	Comments    int64
	UpdatedAt   time.Time
}

// Package po 定义面向持久化的数据对象（Persistent Objects），由 Repository 层使用。
// PO 对象映射 engagement schema 的表结构；计数字段是派生缓存，权威数据在账本表中。
package po

import (
	"time"

	"github.com/google/uuid"
)

// User 表示 engagement.users 表的行。
type User struct {
	ID          uuid.UUID
	Handle      string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Channel 表示 engagement.channels 表的行。
type Channel struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Name        string
	Subscribers int64
	Views       int64
	Videos      int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Video 表示 engagement.videos 表的行。
type Video struct {
	ID          uuid.UUID  // 主键
	ChannelID   uuid.UUID  // 所属频道
	OwnerID     uuid.UUID  // 上传者
	Title       string     // 标题
	Description string     // 描述
	MediaURL    string     // 上传完成后的媒体地址
	MediaKey    string     // 对象存储 key
	Views       int64      // 总播放（每次请求 +1）
	UniqueViews int64      // 去重观看人数
	Likes       int64      // 点赞缓存
	Dislikes    int64      // 点踩缓存
	Comments    int64      // 评论数缓存
	PublishedAt time.Time  // 发布时间
	CreatedAt   time.Time  // 创建时间
	UpdatedAt   time.Time  // 最近更新时间
	DeletedAt   *time.Time // 软删除时间
}

// Comment 表示 engagement.comments 表的行。
type Comment struct {
	ID        uuid.UUID
	VideoID   uuid.UUID
	AuthorID  uuid.UUID
	ParentID  *uuid.UUID
	Body      string
	Likes     int64
	Dislikes  int64
	Replies   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Subscription 表示 engagement.subscriptions 表的行。
type Subscription struct {
	SubscriberID uuid.UUID
	ChannelID    uuid.UUID
	CreatedAt    time.Time
}

// WatchLaterEntry 表示 engagement.watch_later 表的行。
type WatchLaterEntry struct {
	UserID    uuid.UUID
	VideoID   uuid.UUID
	CreatedAt time.Time
}

// WatchHistoryEntry 表示 engagement.watch_history 表的行。
type WatchHistoryEntry struct {
	UserID            uuid.UUID
	VideoID           uuid.UUID
	WatchedPercentage float64
	FirstWatchedAt    time.Time
	LastWatchedAt     time.Time
}

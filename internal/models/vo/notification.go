package vo

import (
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/google/uuid"
)

// NotificationData 是通知关联的实体引用。
type NotificationData struct {
	VideoID   *uuid.UUID `json:"video_id,omitempty"`
	ChannelID *uuid.UUID `json:"channel_id,omitempty"`
	CommentID *uuid.UUID `json:"comment_id,omitempty"`
}

// Notification 表示通知视图。
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID uuid.UUID        `json:"recipient_id"`
	SenderID    *uuid.UUID       `json:"sender_id,omitempty"`
	Type        string           `json:"type"`
	Priority    string           `json:"priority"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        NotificationData `json:"data"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

// NewNotifications 批量转换通知行。
func NewNotifications(items []*po.Notification) []*Notification {
	result := make([]*Notification, 0, len(items))
	for _, n := range items {
		if n == nil {
			continue
		}
		result = append(result, &Notification{
			ID:          n.ID,
			RecipientID: n.RecipientID,
			SenderID:    n.SenderID,
			Type:        string(n.Type),
			Priority:    string(n.Priority),
			Title:       n.Title,
			Message:     n.Message,
			Data: NotificationData{
				VideoID:   n.Refs.VideoID,
				ChannelID: n.Refs.ChannelID,
				CommentID: n.Refs.CommentID,
			},
			Status:    string(n.Status),
			CreatedAt: n.CreatedAt,
			ReadAt:    n.ReadAt,
			ExpiresAt: n.ExpiresAt,
		})
	}
	return result
}

// NotificationPage 是通知列表分页结果。
type NotificationPage struct {
	Items  []*Notification `json:"items"`
	Unread int64           `json:"unread"`
}

// DailyStats 表示频道某天的统计桶。
type DailyStats struct {
	Day         string `json:"day"`
	Views       int64  `json:"views"`
	Subscribers int64  `json:"subscribers"`
	Videos      int64  `json:"videos"`
	Likes       int64  `json:"likes"`
	Comments    int64  `json:"comments"`
}

// NewDailyStats 将统计桶转换为 VO，日期格式为 YYYY-MM-DD（UTC）。
func NewDailyStats(items []*po.ChannelDailyStats) []*DailyStats {
	result := make([]*DailyStats, 0, len(items))
	for _, s := range items {
		if s == nil {
			continue
		}
		result = append(result, &DailyStats{
			Day:         s.Day.UTC().Format(time.DateOnly),
			Views:       s.Views,
			Subscribers: s.Subscribers,
			Videos:      s.Videos,
			Likes:       s.Likes,
			Comments:    s.Comments,
		})
	}
	return result
}

// WatchItem 表示稍后观看或历史列表中的一项。
type WatchItem struct {
	VideoID           uuid.UUID `json:"video_id"`
	WatchedPercentage float64   `json:"watched_percentage,omitempty"`
	At                time.Time `json:"at"`
}

// Package vo 定义视图对象（View Objects），用于向上层传递业务数据。
// VO 对象由 Service 层返回，经 Controller 层直接编码为 JSON 响应，隔离内部数据结构。
package vo

import (
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/google/uuid"
)

// VoteOperation 描述一次投票对账本造成的变化。
type VoteOperation string

// 账本变化类型
const (
	VoteCreated VoteOperation = "created"
	VoteUpdated VoteOperation = "updated"
	VoteDeleted VoteOperation = "deleted"
)

// CounterSnapshot 是对账后写回目标实体的计数。
type CounterSnapshot struct {
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
}

// Vote 表示账本中的一条投票记录。
type Vote struct {
	ActorID    uuid.UUID `json:"actor_id"`
	TargetType string    `json:"target_type"`
	TargetID   uuid.UUID `json:"target_id"`
	Value      int16     `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewVote 从账本行构造 VO，nil 表示记录已被删除。
func NewVote(like *po.Like) *Vote {
	if like == nil {
		return nil
	}
	return &Vote{
		ActorID:    like.ActorID,
		TargetType: string(like.TargetType),
		TargetID:   like.TargetID,
		Value:      int16(like.Value),
		CreatedAt:  like.CreatedAt,
		UpdatedAt:  like.UpdatedAt,
	}
}

// VoteResult 是 Vote 用例的返回值。
type VoteResult struct {
	Vote      *Vote           `json:"vote,omitempty"`
	Operation VoteOperation   `json:"operation"`
	Counters  CounterSnapshot `json:"counters"`
}

// ViewResult 是 RecordView 用例的返回值。
type ViewResult struct {
	Views       int64 `json:"views"`
	UniqueViews int64 `json:"unique_views"`
	IsUnique    bool  `json:"is_unique"`
}

// SubscriptionResult 是订阅/取消订阅的返回值。
type SubscriptionResult struct {
	ChannelID   uuid.UUID `json:"channel_id"`
	Subscribed  bool      `json:"subscribed"`
	Changed     bool      `json:"changed"`
	Subscribers int64     `json:"subscribers"`
}

// Comment 表示评论视图。
type Comment struct {
	ID        uuid.UUID  `json:"id"`
	VideoID   uuid.UUID  `json:"video_id"`
	AuthorID  uuid.UUID  `json:"author_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Body      string     `json:"body"`
	Likes     int64      `json:"likes"`
	Dislikes  int64      `json:"dislikes"`
	Replies   int64      `json:"replies"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewComment 从评论行构造 VO。
func NewComment(c *po.Comment) *Comment {
	if c == nil {
		return nil
	}
	return &Comment{
		ID:        c.ID,
		VideoID:   c.VideoID,
		AuthorID:  c.AuthorID,
		ParentID:  c.ParentID,
		Body:      c.Body,
		Likes:     c.Likes,
		Dislikes:  c.Dislikes,
		Replies:   c.Replies,
		CreatedAt: c.CreatedAt,
	}
}

// Video 表示视频及其计数视图。
type Video struct {
	ID          uuid.UUID `json:"id"`
	ChannelID   uuid.UUID `json:"channel_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	MediaURL    string    `json:"media_url"`
	Views       int64     `json:"views"`
	UniqueViews int64     `json:"unique_views"`
	Likes       int64     `json:"likes"`
	Dislikes    int64     `json:"dislikes"`
	Comments    int64     `json:"comments"`
	PublishedAt time.Time `json:"published_at"`
}

// NewVideo 从视频行构造 VO。
func NewVideo(v *po.Video) *Video {
	if v == nil {
		return nil
	}
	return &Video{
		ID:          v.ID,
		ChannelID:   v.ChannelID,
		OwnerID:     v.OwnerID,
		Title:       v.Title,
		Description: v.Description,
		MediaURL:    v.MediaURL,
		Views:       v.Views,
		UniqueViews: v.UniqueViews,
		Likes:       v.Likes,
		Dislikes:    v.Dislikes,
		Comments:    v.Comments,
		PublishedAt: v.PublishedAt,
	}
}

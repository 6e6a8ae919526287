// Package dto 定义 HTTP 请求/响应结构，请求字段通过 validate tag 声明约束。
// 路径参数由 Handler 从路由变量回填，响应体直接复用 vo 视图对象。
package dto

import "github.com/bionicotaku/lingo-services-engagement/internal/models/vo"

// VoteRequest 对应 POST /v1/votes。
type VoteRequest struct {
	TargetType string `json:"target_type" validate:"required,oneof=video comment"`
	TargetID   string `json:"target_id" validate:"required,uuid"`
	Value      int16  `json:"value" validate:"required,oneof=1 -1"`
}

// RecordViewRequest 对应 POST /v1/videos/{video_id}/views。
// SessionID 缺省时回退到 x-session-id 请求头。
type RecordViewRequest struct {
	VideoID           string  `json:"video_id" validate:"required,uuid"`
	SessionID         string  `json:"session_id" validate:"max=128"`
	DurationSeconds   int32   `json:"duration_seconds" validate:"gte=0"`
	WatchedPercentage float64 `json:"watched_percentage" validate:"gte=0,lte=100"`
}

// SubscriptionRequest 对应 POST/DELETE /v1/channels/{channel_id}/subscription。
type SubscriptionRequest struct {
	ChannelID string `json:"channel_id" validate:"required,uuid"`
}

// CreateCommentRequest 对应 POST /v1/videos/{video_id}/comments。
type CreateCommentRequest struct {
	VideoID  string `json:"video_id" validate:"required,uuid"`
	ParentID string `json:"parent_id" validate:"omitempty,uuid"`
	Body     string `json:"body" validate:"required,max=10000"`
}

// DeleteCommentRequest 对应 DELETE /v1/comments/{comment_id}。
type DeleteCommentRequest struct {
	CommentID string `json:"comment_id" validate:"required,uuid"`
}

// MediaRef 描述上传完成后的媒体引用。
type MediaRef struct {
	URL string `json:"url" validate:"required,url"`
	Key string `json:"key" validate:"required,max=1024"`
}

// PublishVideoRequest 对应 POST /v1/channels/{channel_id}/videos。
type PublishVideoRequest struct {
	ChannelID   string   `json:"channel_id" validate:"required,uuid"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Media       MediaRef `json:"media"`
}

// DeleteCommentResponse 是删除评论的响应。
type DeleteCommentResponse struct {
	CommentID string `json:"comment_id"`
	Deleted   bool   `json:"deleted"`
}

// PublishVideoResponse 是发布视频的响应。
type PublishVideoResponse struct {
	Video *vo.Video `json:"video"`
}

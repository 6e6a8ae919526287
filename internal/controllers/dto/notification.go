package dto

// ListNotificationsRequest 对应 GET /v1/notifications 的查询参数。
type ListNotificationsRequest struct {
	UnreadOnly bool  `json:"unread_only"`
	Limit      int32 `json:"limit" validate:"gte=0,lte=100"`
	Offset     int32 `json:"offset" validate:"gte=0"`
}

// MarkReadRequest 对应 POST /v1/notifications/read。
type MarkReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
}

// UnreadCountResponse 是未读数响应。
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

// MarkReadResponse 是标记已读的响应。
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

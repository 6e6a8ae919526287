package dto

import "github.com/bionicotaku/lingo-services-engagement/internal/models/vo"

// PageRequest 是列表查询的分页参数。
type PageRequest struct {
	Limit  int32 `json:"limit" validate:"gte=0,lte=100"`
	Offset int32 `json:"offset" validate:"gte=0"`
}

// WatchLaterRequest 携带路径上的 video_id。
type WatchLaterRequest struct {
	VideoID string `json:"video_id" validate:"required,uuid"`
}

// WatchLaterResponse 是加入/移出稍后观看的响应。
type WatchLaterResponse struct {
	VideoID string `json:"video_id"`
	Changed bool   `json:"changed"`
}

// WatchListResponse 是稍后观看与观看历史列表响应。
type WatchListResponse struct {
	Items []*vo.WatchItem `json:"items"`
}

// ClearHistoryResponse 是清空观看历史的响应。
type ClearHistoryResponse struct {
	Removed int64 `json:"removed"`
}

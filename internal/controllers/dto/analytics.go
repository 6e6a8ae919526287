package dto

import "github.com/bionicotaku/lingo-services-engagement/internal/models/vo"

// AnalyticsRangeRequest 对应 GET /v1/channels/{channel_id}/analytics，日期为 UTC 的 YYYY-MM-DD。
type AnalyticsRangeRequest struct {
	ChannelID string `json:"channel_id" validate:"required,uuid"`
	From      string `json:"from" validate:"required,datetime=2006-01-02"`
	To        string `json:"to" validate:"required,datetime=2006-01-02"`
}

// AnalyticsRangeResponse 是频道日统计区间响应，无数据的日期不返回。
type AnalyticsRangeResponse struct {
	ChannelID string           `json:"channel_id"`
	From      string           `json:"from"`
	To        string           `json:"to"`
	Days      []*vo.DailyStats `json:"days"`
}

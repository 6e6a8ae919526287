package dto

import "github.com/bionicotaku/lingo-services-engagement/internal/models/vo"

// ReconcileRequest 对应 POST /v1/admin/reconcile。
// target_type 为 channel 时重算订阅数，其余按账本重算点赞计数。
type ReconcileRequest struct {
	TargetType string `json:"target_type" validate:"required,oneof=video comment channel"`
	TargetID   string `json:"target_id" validate:"required,uuid"`
}

// ReconcileResponse 是单实体对账结果。
type ReconcileResponse struct {
	TargetType  string              `json:"target_type"`
	TargetID    string              `json:"target_id"`
	Counters    *vo.CounterSnapshot `json:"counters,omitempty"`
	Subscribers *int64              `json:"subscribers,omitempty"`
}

// ReconcileDriftedRequest 对应 POST /v1/admin/reconcile/drifted。
type ReconcileDriftedRequest struct {
	Limit int32 `json:"limit" validate:"gte=0,lte=5000"`
}

package controllers

import (
	"context"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// AnalyticsHandler 暴露频道日统计查询。
type AnalyticsHandler struct {
	*BaseHandler
	reader services.AnalyticsReader
}

// NewAnalyticsHandler 构造 AnalyticsHandler。
func NewAnalyticsHandler(reader services.AnalyticsReader, base *BaseHandler) *AnalyticsHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{}, ClientIPPolicy{})
	}
	return &AnalyticsHandler{BaseHandler: base, reader: reader}
}

// RegisterRoutes 注册统计路由。
func (h *AnalyticsHandler) RegisterRoutes(r *khttp.Router) {
	r.GET("/channels/{channel_id}/analytics", func(ctx khttp.Context) error {
		var in dto.AnalyticsRangeRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		in.ChannelID = ctx.Vars().Get("channel_id")
		return serve(ctx, OperationChannelAnalytics, &in, h.Range)
	})
}

// Range 返回 [from, to] 闭区间内的日统计桶。
func (h *AnalyticsHandler) Range(ctx context.Context, req *dto.AnalyticsRangeRequest) (*dto.AnalyticsRangeResponse, error) {
	meta := h.ExtractMetadata(ctx)
	if _, err := h.RequireUser(meta); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	channelID, err := parseID("channel_id", req.ChannelID)
	if err != nil {
		return nil, err
	}
	from, err := time.Parse(time.DateOnly, req.From)
	if err != nil {
		return nil, services.ValidationError("from must be a valid date")
	}
	to, err := time.Parse(time.DateOnly, req.To)
	if err != nil {
		return nil, services.ValidationError("to must be a valid date")
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeQuery)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	items, err := h.reader.Range(timeoutCtx, channelID, from, to)
	if err != nil {
		return nil, err
	}
	return &dto.AnalyticsRangeResponse{
		ChannelID: channelID.String(),
		From:      from.Format(time.DateOnly),
		To:        to.Format(time.DateOnly),
		Days:      vo.NewDailyStats(items),
	}, nil
}

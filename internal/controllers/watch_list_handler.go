package controllers

import (
	"context"

	"github.com/bionicotaku/lingo-services-engagement/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// WatchListHandler 暴露当前用户的稍后观看与观看历史接口。
type WatchListHandler struct {
	*BaseHandler
	lists services.WatchListUsecase
}

// NewWatchListHandler 构造 WatchListHandler。
func NewWatchListHandler(lists services.WatchListUsecase, base *BaseHandler) *WatchListHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{}, ClientIPPolicy{})
	}
	return &WatchListHandler{BaseHandler: base, lists: lists}
}

// RegisterRoutes 注册 /me 下的列表路由。
func (h *WatchListHandler) RegisterRoutes(r *khttp.Router) {
	r.GET("/me/watch-later", func(ctx khttp.Context) error {
		var in dto.PageRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		return serve(ctx, OperationListWatchLater, &in, h.ListWatchLater)
	})
	r.POST("/me/watch-later/{video_id}", func(ctx khttp.Context) error {
		in := dto.WatchLaterRequest{VideoID: ctx.Vars().Get("video_id")}
		return serve(ctx, OperationAddWatchLater, &in, h.AddWatchLater)
	})
	r.DELETE("/me/watch-later/{video_id}", func(ctx khttp.Context) error {
		in := dto.WatchLaterRequest{VideoID: ctx.Vars().Get("video_id")}
		return serve(ctx, OperationRemoveWatchLater, &in, h.RemoveWatchLater)
	})
	r.GET("/me/history", func(ctx khttp.Context) error {
		var in dto.PageRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		return serve(ctx, OperationListHistory, &in, h.ListHistory)
	})
	r.DELETE("/me/history", func(ctx khttp.Context) error {
		return serve(ctx, OperationClearHistory, &struct{}{}, h.ClearHistory)
	})
}

// AddWatchLater 加入稍后观看，已存在时 changed=false。
func (h *WatchListHandler) AddWatchLater(ctx context.Context, req *dto.WatchLaterRequest) (*dto.WatchLaterResponse, error) {
	return h.toggle(ctx, req, h.lists.AddWatchLater)
}

// RemoveWatchLater 移出稍后观看，不存在时 changed=false。
func (h *WatchListHandler) RemoveWatchLater(ctx context.Context, req *dto.WatchLaterRequest) (*dto.WatchLaterResponse, error) {
	return h.toggle(ctx, req, h.lists.RemoveWatchLater)
}

func (h *WatchListHandler) toggle(
	ctx context.Context,
	req *dto.WatchLaterRequest,
	call func(context.Context, uuid.UUID, uuid.UUID) (bool, error),
) (*dto.WatchLaterResponse, error) {
	meta := h.ExtractMetadata(ctx)
	userID, err := h.RequireUser(meta)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	videoID, err := parseID("video_id", req.VideoID)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	changed, err := call(timeoutCtx, userID, videoID)
	if err != nil {
		return nil, err
	}
	return &dto.WatchLaterResponse{VideoID: videoID.String(), Changed: changed}, nil
}

// ListWatchLater 返回稍后观看列表。
func (h *WatchListHandler) ListWatchLater(ctx context.Context, req *dto.PageRequest) (*dto.WatchListResponse, error) {
	return h.list(ctx, req, h.lists.ListWatchLater)
}

// ListHistory 返回最近观看列表。
func (h *WatchListHandler) ListHistory(ctx context.Context, req *dto.PageRequest) (*dto.WatchListResponse, error) {
	return h.list(ctx, req, h.lists.ListHistory)
}

func (h *WatchListHandler) list(
	ctx context.Context,
	req *dto.PageRequest,
	call func(context.Context, uuid.UUID, int32, int32) ([]*vo.WatchItem, error),
) (*dto.WatchListResponse, error) {
	meta := h.ExtractMetadata(ctx)
	userID, err := h.RequireUser(meta)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeQuery)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	items, err := call(timeoutCtx, userID, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	return &dto.WatchListResponse{Items: items}, nil
}

// ClearHistory 清空观看历史。
func (h *WatchListHandler) ClearHistory(ctx context.Context, _ *struct{}) (*dto.ClearHistoryResponse, error) {
	meta := h.ExtractMetadata(ctx)
	userID, err := h.RequireUser(meta)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	removed, err := h.lists.ClearHistory(timeoutCtx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.ClearHistoryResponse{Removed: removed}, nil
}

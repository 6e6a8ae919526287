package controllers

import (
	"context"

	"github.com/bionicotaku/lingo-services-engagement/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// NotificationHandler 暴露当前用户的收件箱接口。
type NotificationHandler struct {
	*BaseHandler
	inbox services.NotificationInbox
}

// NewNotificationHandler 构造 NotificationHandler。
func NewNotificationHandler(inbox services.NotificationInbox, base *BaseHandler) *NotificationHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{}, ClientIPPolicy{})
	}
	return &NotificationHandler{BaseHandler: base, inbox: inbox}
}

// RegisterRoutes 注册收件箱路由。
func (h *NotificationHandler) RegisterRoutes(r *khttp.Router) {
	r.GET("/notifications", func(ctx khttp.Context) error {
		var in dto.ListNotificationsRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		return serve(ctx, OperationListNotifications, &in, h.List)
	})
	r.GET("/notifications/unread-count", func(ctx khttp.Context) error {
		return serve(ctx, OperationUnreadCount, &struct{}{}, h.UnreadCount)
	})
	r.POST("/notifications/read", func(ctx khttp.Context) error {
		var in dto.MarkReadRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		return serve(ctx, OperationMarkRead, &in, h.MarkRead)
	})
	r.POST("/notifications/read-all", func(ctx khttp.Context) error {
		return serve(ctx, OperationMarkAllRead, &struct{}{}, h.MarkAllRead)
	})
}

// List 分页返回未过期通知。
func (h *NotificationHandler) List(ctx context.Context, req *dto.ListNotificationsRequest) (*vo.NotificationPage, error) {
	meta := h.ExtractMetadata(ctx)
	recipientID, err := h.RequireUser(meta)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeQuery)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	return h.inbox.List(timeoutCtx, services.ListNotificationsInput{
		RecipientID: recipientID,
		UnreadOnly:  req.UnreadOnly,
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
}

// UnreadCount 返回未读数。
func (h *NotificationHandler) UnreadCount(ctx context.Context, _ *struct{}) (*dto.UnreadCountResponse, error) {
	meta := h.ExtractMetadata(ctx)
	recipientID, err := h.RequireUser(meta)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeQuery)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	count, err := h.inbox.UnreadCount(timeoutCtx, recipientID)
	if err != nil {
		return nil, err
	}
	return &dto.UnreadCountResponse{Unread: count}, nil
}

// MarkRead 将指定通知标记为已读，不属于当前用户的 ID 会被忽略。
func (h *NotificationHandler) MarkRead(ctx context.Context, req *dto.MarkReadRequest) (*dto.MarkReadResponse, error) {
	meta := h.ExtractMetadata(ctx)
	recipientID, err := h.RequireUser(meta)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := parseID("ids", raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	updated, err := h.inbox.MarkRead(timeoutCtx, recipientID, ids)
	if err != nil {
		return nil, err
	}
	return &dto.MarkReadResponse{Updated: updated}, nil
}

// MarkAllRead 将全部未读通知标记为已读。
func (h *NotificationHandler) MarkAllRead(ctx context.Context, _ *struct{}) (*dto.MarkReadResponse, error) {
	meta := h.ExtractMetadata(ctx)
	recipientID, err := h.RequireUser(meta)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	updated, err := h.inbox.MarkAllRead(timeoutCtx, recipientID)
	if err != nil {
		return nil, err
	}
	return &dto.MarkReadResponse{Updated: updated}, nil
}

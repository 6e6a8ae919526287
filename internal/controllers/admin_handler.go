package controllers

import (
	"context"
	"strings"

	"github.com/bionicotaku/lingo-services-engagement/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-engagement/internal/metadata"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// AdminConfig 控制管理接口的访问名单，名单为空时拒绝全部请求。
type AdminConfig struct {
	UserIDs []string
}

// AdminHandler 暴露计数对账等运维接口。
type AdminHandler struct {
	*BaseHandler
	reconciler services.Reconciler
	admins     map[uuid.UUID]struct{}
}

// NewAdminHandler 构造 AdminHandler，非法的名单项会被忽略。
func NewAdminHandler(reconciler services.Reconciler, cfg AdminConfig, base *BaseHandler) *AdminHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{}, ClientIPPolicy{})
	}
	admins := make(map[uuid.UUID]struct{}, len(cfg.UserIDs))
	for _, raw := range cfg.UserIDs {
		if id, err := uuid.Parse(strings.TrimSpace(raw)); err == nil {
			admins[id] = struct{}{}
		}
	}
	return &AdminHandler{BaseHandler: base, reconciler: reconciler, admins: admins}
}

// RegisterRoutes 注册管理路由。
func (h *AdminHandler) RegisterRoutes(r *khttp.Router) {
	r.POST("/admin/reconcile", func(ctx khttp.Context) error {
		var in dto.ReconcileRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		return serve(ctx, OperationReconcile, &in, h.Reconcile)
	})
	r.POST("/admin/reconcile/drifted", func(ctx khttp.Context) error {
		var in dto.ReconcileDriftedRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		return serve(ctx, OperationReconcileDrifted, &in, h.ReconcileDrifted)
	})
}

// Reconcile 按账本重算单个实体的计数。
func (h *AdminHandler) Reconcile(ctx context.Context, req *dto.ReconcileRequest) (*dto.ReconcileResponse, error) {
	meta, err := h.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	targetID, err := parseID("target_id", req.TargetID)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	resp := &dto.ReconcileResponse{TargetType: req.TargetType, TargetID: targetID.String()}
	if req.TargetType == "channel" {
		subscribers, err := h.reconciler.ReconcileChannelSubscribers(timeoutCtx, targetID)
		if err != nil {
			return nil, err
		}
		resp.Subscribers = &subscribers
		return resp, nil
	}
	targetType, ok := po.ParseTargetType(req.TargetType)
	if !ok {
		return nil, services.ValidationError("unsupported target_type %q", req.TargetType)
	}
	snapshot, err := h.reconciler.Reconcile(timeoutCtx, targetType, targetID)
	if err != nil {
		return nil, err
	}
	resp.Counters = &snapshot
	return resp, nil
}

// ReconcileDrifted 扫描并修复与账本不一致的计数。
func (h *AdminHandler) ReconcileDrifted(ctx context.Context, req *dto.ReconcileDriftedRequest) (*services.DriftReport, error) {
	meta, err := h.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	report, err := h.reconciler.ReconcileDrifted(timeoutCtx, req.Limit)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (h *AdminHandler) requireAdmin(ctx context.Context) (metadata.HandlerMetadata, error) {
	meta := h.ExtractMetadata(ctx)
	userID, err := h.RequireUser(meta)
	if err != nil {
		return meta, err
	}
	if _, ok := h.admins[userID]; !ok {
		return meta, services.ForbiddenError("admin access required")
	}
	return meta, nil
}

package controllers

import (
	"context"
	stdhttp "net/http"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// 路由前缀与 operation 名称，operation 供中间件匹配与访问日志使用。
const (
	APIPrefix = "/v1"

	OperationVote              = "/engagement.v1.Engagement/Vote"
	OperationRecordView        = "/engagement.v1.Engagement/RecordView"
	OperationSubscribe         = "/engagement.v1.Engagement/Subscribe"
	OperationUnsubscribe       = "/engagement.v1.Engagement/Unsubscribe"
	OperationCreateComment     = "/engagement.v1.Engagement/CreateComment"
	OperationDeleteComment     = "/engagement.v1.Engagement/DeleteComment"
	OperationPublishVideo      = "/engagement.v1.Engagement/PublishVideo"
	OperationListNotifications = "/engagement.v1.Notification/List"
	OperationUnreadCount       = "/engagement.v1.Notification/UnreadCount"
	OperationMarkRead          = "/engagement.v1.Notification/MarkRead"
	OperationMarkAllRead       = "/engagement.v1.Notification/MarkAllRead"
	OperationChannelAnalytics  = "/engagement.v1.Analytics/Range"
	OperationAddWatchLater     = "/engagement.v1.WatchList/AddWatchLater"
	OperationRemoveWatchLater  = "/engagement.v1.WatchList/RemoveWatchLater"
	OperationListWatchLater    = "/engagement.v1.WatchList/ListWatchLater"
	OperationListHistory       = "/engagement.v1.WatchList/ListHistory"
	OperationClearHistory      = "/engagement.v1.WatchList/ClearHistory"
	OperationReconcile         = "/engagement.v1.Admin/Reconcile"
	OperationReconcileDrifted  = "/engagement.v1.Admin/ReconcileDrifted"
)

// Handlers 聚合全部 Handler，便于 Wire 一次性注入到 Server。
type Handlers struct {
	Engagement    *EngagementHandler
	Notifications *NotificationHandler
	Analytics     *AnalyticsHandler
	WatchLists    *WatchListHandler
	Admin         *AdminHandler
}

// NewHandlers 构造 Handler 聚合。
func NewHandlers(engagement *EngagementHandler, notifications *NotificationHandler, analytics *AnalyticsHandler, watchLists *WatchListHandler, admin *AdminHandler) *Handlers {
	return &Handlers{
		Engagement:    engagement,
		Notifications: notifications,
		Analytics:     analytics,
		WatchLists:    watchLists,
		Admin:         admin,
	}
}

// Register 将全部非空 Handler 挂载到 /v1 前缀下。
func (h *Handlers) Register(srv *khttp.Server) {
	if h == nil || srv == nil {
		return
	}
	r := srv.Route(APIPrefix)
	if h.Engagement != nil {
		h.Engagement.RegisterRoutes(r)
	}
	if h.Notifications != nil {
		h.Notifications.RegisterRoutes(r)
	}
	if h.Analytics != nil {
		h.Analytics.RegisterRoutes(r)
	}
	if h.WatchLists != nil {
		h.WatchLists.RegisterRoutes(r)
	}
	if h.Admin != nil {
		h.Admin.RegisterRoutes(r)
	}
}

// serve 按 kratos 生成代码的形式执行中间件链并写回 JSON。
func serve[T, R any](ctx khttp.Context, operation string, in T, call func(context.Context, T) (R, error)) error {
	khttp.SetOperation(ctx, operation)
	h := ctx.Middleware(func(c context.Context, req any) (any, error) {
		out, err := call(c, req.(T))
		return out, err
	})
	out, err := h(ctx, in)
	if err != nil {
		return err
	}
	return ctx.Result(stdhttp.StatusOK, out)
}

package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/controllers"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type engagementStub struct {
	voteFn          func(context.Context, services.VoteCommand) (*vo.VoteResult, error)
	recordViewFn    func(context.Context, services.ViewCommand) (*vo.ViewResult, error)
	subscribeFn     func(context.Context, uuid.UUID, uuid.UUID) (*vo.SubscriptionResult, error)
	unsubscribeFn   func(context.Context, uuid.UUID, uuid.UUID) (*vo.SubscriptionResult, error)
	createCommentFn func(context.Context, services.CommentCommand) (*vo.Comment, error)
	deleteCommentFn func(context.Context, uuid.UUID, uuid.UUID) error
	publishVideoFn  func(context.Context, services.PublishVideoCommand) (*vo.Video, error)
}

func (s *engagementStub) Vote(ctx context.Context, cmd services.VoteCommand) (*vo.VoteResult, error) {
	if s.voteFn != nil {
		return s.voteFn(ctx, cmd)
	}
	return &vo.VoteResult{}, nil
}

func (s *engagementStub) RecordView(ctx context.Context, cmd services.ViewCommand) (*vo.ViewResult, error) {
	if s.recordViewFn != nil {
		return s.recordViewFn(ctx, cmd)
	}
	return &vo.ViewResult{}, nil
}

func (s *engagementStub) Subscribe(ctx context.Context, subscriberID, channelID uuid.UUID) (*vo.SubscriptionResult, error) {
	if s.subscribeFn != nil {
		return s.subscribeFn(ctx, subscriberID, channelID)
	}
	return &vo.SubscriptionResult{}, nil
}

func (s *engagementStub) Unsubscribe(ctx context.Context, subscriberID, channelID uuid.UUID) (*vo.SubscriptionResult, error) {
	if s.unsubscribeFn != nil {
		return s.unsubscribeFn(ctx, subscriberID, channelID)
	}
	return &vo.SubscriptionResult{}, nil
}

func (s *engagementStub) CreateComment(ctx context.Context, cmd services.CommentCommand) (*vo.Comment, error) {
	if s.createCommentFn != nil {
		return s.createCommentFn(ctx, cmd)
	}
	return &vo.Comment{}, nil
}

func (s *engagementStub) DeleteComment(ctx context.Context, actorID, commentID uuid.UUID) error {
	if s.deleteCommentFn != nil {
		return s.deleteCommentFn(ctx, actorID, commentID)
	}
	return nil
}

func (s *engagementStub) PublishVideo(ctx context.Context, cmd services.PublishVideoCommand) (*vo.Video, error) {
	if s.publishVideoFn != nil {
		return s.publishVideoFn(ctx, cmd)
	}
	return &vo.Video{}, nil
}

type inboxStub struct {
	listFn        func(context.Context, services.ListNotificationsInput) (*vo.NotificationPage, error)
	unreadFn      func(context.Context, uuid.UUID) (int64, error)
	markReadFn    func(context.Context, uuid.UUID, []uuid.UUID) (int64, error)
	markAllReadFn func(context.Context, uuid.UUID) (int64, error)
}

func (s *inboxStub) List(ctx context.Context, input services.ListNotificationsInput) (*vo.NotificationPage, error) {
	if s.listFn != nil {
		return s.listFn(ctx, input)
	}
	return &vo.NotificationPage{}, nil
}

func (s *inboxStub) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if s.unreadFn != nil {
		return s.unreadFn(ctx, recipientID)
	}
	return 0, nil
}

func (s *inboxStub) MarkRead(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, recipientID, ids)
	}
	return 0, nil
}

func (s *inboxStub) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, recipientID)
	}
	return 0, nil
}

type analyticsStub struct {
	rangeFn func(context.Context, uuid.UUID, time.Time, time.Time) ([]*po.ChannelDailyStats, error)
}

func (s *analyticsStub) Range(ctx context.Context, channelID uuid.UUID, from, to time.Time) ([]*po.ChannelDailyStats, error) {
	if s.rangeFn != nil {
		return s.rangeFn(ctx, channelID, from, to)
	}
	return nil, nil
}

type watchListStub struct {
	addFn     func(context.Context, uuid.UUID, uuid.UUID) (bool, error)
	removeFn  func(context.Context, uuid.UUID, uuid.UUID) (bool, error)
	laterFn   func(context.Context, uuid.UUID, int32, int32) ([]*vo.WatchItem, error)
	historyFn func(context.Context, uuid.UUID, int32, int32) ([]*vo.WatchItem, error)
	clearFn   func(context.Context, uuid.UUID) (int64, error)
}

func (s *watchListStub) AddWatchLater(ctx context.Context, userID, videoID uuid.UUID) (bool, error) {
	if s.addFn != nil {
		return s.addFn(ctx, userID, videoID)
	}
	return true, nil
}

func (s *watchListStub) RemoveWatchLater(ctx context.Context, userID, videoID uuid.UUID) (bool, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, userID, videoID)
	}
	return true, nil
}

func (s *watchListStub) ListWatchLater(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*vo.WatchItem, error) {
	if s.laterFn != nil {
		return s.laterFn(ctx, userID, limit, offset)
	}
	return nil, nil
}

func (s *watchListStub) ListHistory(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*vo.WatchItem, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, userID, limit, offset)
	}
	return nil, nil
}

func (s *watchListStub) ClearHistory(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.clearFn != nil {
		return s.clearFn(ctx, userID)
	}
	return 0, nil
}

type reconcilerStub struct {
	reconcileFn   func(context.Context, po.TargetType, uuid.UUID) (vo.CounterSnapshot, error)
	subscribersFn func(context.Context, uuid.UUID) (int64, error)
	driftedFn     func(context.Context, int32) (services.DriftReport, error)
}

func (s *reconcilerStub) Reconcile(ctx context.Context, targetType po.TargetType, targetID uuid.UUID) (vo.CounterSnapshot, error) {
	if s.reconcileFn != nil {
		return s.reconcileFn(ctx, targetType, targetID)
	}
	return vo.CounterSnapshot{}, nil
}

func (s *reconcilerStub) ReconcileChannelSubscribers(ctx context.Context, channelID uuid.UUID) (int64, error) {
	if s.subscribersFn != nil {
		return s.subscribersFn(ctx, channelID)
	}
	return 0, nil
}

func (s *reconcilerStub) ReconcileDrifted(ctx context.Context, limit int32) (services.DriftReport, error) {
	if s.driftedFn != nil {
		return s.driftedFn(ctx, limit)
	}
	return services.DriftReport{}, nil
}

type stubs struct {
	engagement *engagementStub
	inbox      *inboxStub
	analytics  *analyticsStub
	watchLists *watchListStub
	reconciler *reconcilerStub
	admins     []string
}

type apiServer struct {
	srv *khttp.Server
}

func newAPIServer(s *stubs) *apiServer {
	if s.engagement == nil {
		s.engagement = &engagementStub{}
	}
	if s.inbox == nil {
		s.inbox = &inboxStub{}
	}
	if s.analytics == nil {
		s.analytics = &analyticsStub{}
	}
	if s.watchLists == nil {
		s.watchLists = &watchListStub{}
	}
	if s.reconciler == nil {
		s.reconciler = &reconcilerStub{}
	}
	base := controllers.NewBaseHandler(controllers.HandlerTimeouts{}, controllers.ClientIPPolicy{TrustedProxyHops: 1})
	handlers := controllers.NewHandlers(
		controllers.NewEngagementHandler(s.engagement, base),
		controllers.NewNotificationHandler(s.inbox, base),
		controllers.NewAnalyticsHandler(s.analytics, base),
		controllers.NewWatchListHandler(s.watchLists, base),
		controllers.NewAdminHandler(s.reconciler, controllers.AdminConfig{UserIDs: s.admins}, base),
	)
	srv := khttp.NewServer()
	handlers.Register(srv)
	return &apiServer{srv: srv}
}

type request struct {
	method  string
	path    string
	body    any
	userID  string
	headers map[string]string
}

type errorBody struct {
	Code     int               `json:"code"`
	Reason   string            `json:"reason"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata"`
}

func (a *apiServer) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(req.body))
	}
	httpReq := httptest.NewRequest(req.method, req.path, &body)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.userID != "" {
		httpReq.Header.Set("x-apigateway-api-userinfo", userInfoHeader(t, req.userID))
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, httpReq)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}

var _ stdhttp.Handler = (*khttp.Server)(nil)

package controllers

import (
	"context"
	"strings"

	"github.com/bionicotaku/lingo-services-engagement/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// EngagementHandler 暴露投票、观看、订阅、评论与发布视频等写接口。
type EngagementHandler struct {
	*BaseHandler
	usecase services.EngagementUsecase
}

// NewEngagementHandler 构造 EngagementHandler。
func NewEngagementHandler(usecase services.EngagementUsecase, base *BaseHandler) *EngagementHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{}, ClientIPPolicy{})
	}
	return &EngagementHandler{BaseHandler: base, usecase: usecase}
}

// RegisterRoutes 注册互动相关路由。
func (h *EngagementHandler) RegisterRoutes(r *khttp.Router) {
	r.POST("/votes", func(ctx khttp.Context) error {
		var in dto.VoteRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		return serve(ctx, OperationVote, &in, h.Vote)
	})
	r.POST("/videos/{video_id}/views", func(ctx khttp.Context) error {
		var in dto.RecordViewRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		in.VideoID = ctx.Vars().Get("video_id")
		return serve(ctx, OperationRecordView, &in, h.RecordView)
	})
	r.POST("/channels/{channel_id}/subscription", func(ctx khttp.Context) error {
		in := dto.SubscriptionRequest{ChannelID: ctx.Vars().Get("channel_id")}
		return serve(ctx, OperationSubscribe, &in, h.Subscribe)
	})
	r.DELETE("/channels/{channel_id}/subscription", func(ctx khttp.Context) error {
		in := dto.SubscriptionRequest{ChannelID: ctx.Vars().Get("channel_id")}
		return serve(ctx, OperationUnsubscribe, &in, h.Unsubscribe)
	})
	r.POST("/videos/{video_id}/comments", func(ctx khttp.Context) error {
		var in dto.CreateCommentRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		in.VideoID = ctx.Vars().Get("video_id")
		return serve(ctx, OperationCreateComment, &in, h.CreateComment)
	})
	r.DELETE("/comments/{comment_id}", func(ctx khttp.Context) error {
		in := dto.DeleteCommentRequest{CommentID: ctx.Vars().Get("comment_id")}
		return serve(ctx, OperationDeleteComment, &in, h.DeleteComment)
	})
	r.POST("/channels/{channel_id}/videos", func(ctx khttp.Context) error {
		var in dto.PublishVideoRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		in.ChannelID = ctx.Vars().Get("channel_id")
		return serve(ctx, OperationPublishVideo, &in, h.PublishVideo)
	})
}

// Vote 写入点赞/点踩账本并返回对账后的计数。
func (h *EngagementHandler) Vote(ctx context.Context, req *dto.VoteRequest) (*vo.VoteResult, error) {
	meta := h.ExtractMetadata(ctx)
	actorID, err := h.RequireUser(meta)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	targetType, ok := po.ParseTargetType(req.TargetType)
	if !ok {
		return nil, services.ValidationError("unsupported target_type %q", req.TargetType)
	}
	targetID, err := parseID("target_id", req.TargetID)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	return h.usecase.Vote(timeoutCtx, services.VoteCommand{
		ActorID:    actorID,
		TargetType: targetType,
		TargetID:   targetID,
		Value:      po.VoteValue(req.Value),
	})
}

// RecordView 上报一次观看，匿名请求按会话或客户端 IP 去重。
func (h *EngagementHandler) RecordView(ctx context.Context, req *dto.RecordViewRequest) (*vo.ViewResult, error) {
	meta := h.ExtractMetadata(ctx)
	if meta.InvalidUserInfo {
		if _, err := h.RequireUser(meta); err != nil {
			return nil, err
		}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	videoID, err := parseID("video_id", req.VideoID)
	if err != nil {
		return nil, err
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = meta.SessionID
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	return h.usecase.RecordView(timeoutCtx, services.ViewCommand{
		VideoID: videoID,
		Identity: services.ViewIdentity{
			ActorID:   h.OptionalUser(meta),
			SessionID: sessionID,
			IP:        meta.ClientIP,
		},
		DurationSeconds:   req.DurationSeconds,
		WatchedPercentage: req.WatchedPercentage,
	})
}

// Subscribe 订阅频道，重复订阅返回 changed=false。
func (h *EngagementHandler) Subscribe(ctx context.Context, req *dto.SubscriptionRequest) (*vo.SubscriptionResult, error) {
	return h.subscription(ctx, req, h.usecase.Subscribe)
}

// Unsubscribe 取消订阅，未订阅时返回 changed=false。
func (h *EngagementHandler) Unsubscribe(ctx context.Context, req *dto.SubscriptionRequest) (*vo.SubscriptionResult, error) {
	return h.subscription(ctx, req, h.usecase.Unsubscribe)
}

func (h *EngagementHandler) subscription(
	ctx context.Context,
	req *dto.SubscriptionRequest,
	call func(context.Context, uuid.UUID, uuid.UUID) (*vo.SubscriptionResult, error),
) (*vo.SubscriptionResult, error) {
	meta := h.ExtractMetadata(ctx)
	subscriberID, err := h.RequireUser(meta)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	channelID, err := parseID("channel_id", req.ChannelID)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)
	return call(timeoutCtx, subscriberID, channelID)
}

// CreateComment 发表评论或回复。
func (h *EngagementHandler) CreateComment(ctx context.Context, req *dto.CreateCommentRequest) (*vo.Comment, error) {
	meta := h.ExtractMetadata(ctx)
	authorID, err := h.RequireUser(meta)
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
	parentID, err := parseOptionalID("parent_id", req.ParentID)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	return h.usecase.CreateComment(timeoutCtx, services.CommentCommand{
		AuthorID: authorID,
		VideoID:  videoID,
		ParentID: parentID,
		Body:     req.Body,
	})
}

// DeleteComment 软删除评论，仅作者本人可操作。
func (h *EngagementHandler) DeleteComment(ctx context.Context, req *dto.DeleteCommentRequest) (*dto.DeleteCommentResponse, error) {
	meta := h.ExtractMetadata(ctx)
	actorID, err := h.RequireUser(meta)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	commentID, err := parseID("comment_id", req.CommentID)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	if err := h.usecase.DeleteComment(timeoutCtx, actorID, commentID); err != nil {
		return nil, err
	}
	return &dto.DeleteCommentResponse{CommentID: commentID.String(), Deleted: true}, nil
}

// PublishVideo 记录上传完成的视频并通知订阅者。
func (h *EngagementHandler) PublishVideo(ctx context.Context, req *dto.PublishVideoRequest) (*dto.PublishVideoResponse, error) {
	meta := h.ExtractMetadata(ctx)
	ownerID, err := h.RequireUser(meta)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	channelID, err := parseID("channel_id", req.ChannelID)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	video, err := h.usecase.PublishVideo(timeoutCtx, services.PublishVideoCommand{
		OwnerID:     ownerID,
		ChannelID:   channelID,
		Title:       req.Title,
		Description: req.Description,
		MediaURL:    req.Media.URL,
		MediaKey:    req.Media.Key,
	})
	if err != nil {
		return nil, err
	}
	return &dto.PublishVideoResponse{Video: video}, nil
}

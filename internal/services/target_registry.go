package services

import (
	"context"
	"sort"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"

	"github.com/google/uuid"
)

// TargetInfo 是目标实体的归属信息，供通知与统计使用。
type TargetInfo struct {
	Type      po.TargetType
	ID        uuid.UUID
	OwnerID   uuid.UUID // 视频上传者或评论作者
	VideoID   uuid.UUID // 视频自身或评论所属视频
	ChannelID uuid.UUID // 仅视频目标填充
}

// Target 描述一种可被投票的实体类型。新增类型只需注册新的实现。
type Target interface {
	Type() po.TargetType
	// Resolve 校验目标存在且未软删除。
	Resolve(ctx context.Context, id uuid.UUID) (TargetInfo, error)
	// ReconcileLikes 以账本重算并写回点赞/点踩数。
	ReconcileLikes(ctx context.Context, id uuid.UUID) (po.LikeTally, error)
	ListDrifted(ctx context.Context, limit int32) ([]uuid.UUID, error)
}

// TargetRegistry 按类型查找 Target。
type TargetRegistry struct {
	targets map[po.TargetType]Target
}

// NewTargetRegistry 注册视频与评论两种目标。
func NewTargetRegistry(videos VideosRepo, comments CommentsRepo) *TargetRegistry {
	return NewTargetRegistryWith(
		videoTarget{videos: videos},
		commentTarget{comments: comments},
	)
}

// NewTargetRegistryWith 以给定实现构造注册表。
func NewTargetRegistryWith(targets ...Target) *TargetRegistry {
	r := &TargetRegistry{targets: make(map[po.TargetType]Target, len(targets))}
	for _, t := range targets {
		r.targets[t.Type()] = t
	}
	return r
}

// Lookup 返回目标类型对应的实现，未注册时返回 ValidationError。
func (r *TargetRegistry) Lookup(targetType po.TargetType) (Target, error) {
	t, ok := r.targets[targetType]
	if !ok {
		return nil, ValidationError("unsupported target type %q", targetType)
	}
	return t, nil
}

// Targets 返回按类型名排序的全部实现。
func (r *TargetRegistry) Targets() []Target {
	out := make([]Target, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type() < out[j].Type() })
	return out
}

type videoTarget struct {
	videos VideosRepo
}

func (videoTarget) Type() po.TargetType { return po.TargetVideo }

func (t videoTarget) Resolve(ctx context.Context, id uuid.UUID) (TargetInfo, error) {
	video, err := t.videos.FindActive(ctx, nil, id)
	if err != nil {
		return TargetInfo{}, translate("videos.find_active", err)
	}
	return TargetInfo{
		Type:      po.TargetVideo,
		ID:        video.ID,
		OwnerID:   video.OwnerID,
		VideoID:   video.ID,
		ChannelID: video.ChannelID,
	}, nil
}

func (t videoTarget) ReconcileLikes(ctx context.Context, id uuid.UUID) (po.LikeTally, error) {
	return t.videos.ReconcileLikes(ctx, nil, id)
}

func (t videoTarget) ListDrifted(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	return t.videos.ListLikeDrift(ctx, nil, limit)
}

type commentTarget struct {
	comments CommentsRepo
}

func (commentTarget) Type() po.TargetType { return po.TargetComment }

func (t commentTarget) Resolve(ctx context.Context, id uuid.UUID) (TargetInfo, error) {
	comment, err := t.comments.FindActive(ctx, nil, id)
	if err != nil {
		return TargetInfo{}, translate("comments.find_active", err)
	}
	return TargetInfo{
		Type:    po.TargetComment,
		ID:      comment.ID,
		OwnerID: comment.AuthorID,
		VideoID: comment.VideoID,
	}, nil
}

func (t commentTarget) ReconcileLikes(ctx context.Context, id uuid.UUID) (po.LikeTally, error) {
	return t.comments.ReconcileLikes(ctx, nil, id)
}

func (t commentTarget) ListDrifted(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	return t.comments.ListLikeDrift(ctx, nil, limit)
}

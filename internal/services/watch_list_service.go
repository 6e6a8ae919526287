package services

import (
	"context"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

const (
	defaultWatchListPageSize = 20
	maxWatchListPageSize     = 100
)

// WatchListService 管理稍后观看与观看历史。
type WatchListService struct {
	lists  WatchListsRepo
	videos VideosRepo
	log    *log.Helper
}

// NewWatchListService 构造 WatchListService。
func NewWatchListService(lists WatchListsRepo, videos VideosRepo, logger log.Logger) *WatchListService {
	return &WatchListService{
		lists:  lists,
		videos: videos,
		log:    log.NewHelper(logger),
	}
}

// AddWatchLater 将视频加入稍后观看，重复加入幂等；返回是否新增。
func (s *WatchListService) AddWatchLater(ctx context.Context, userID, videoID uuid.UUID) (bool, error) {
	if userID == uuid.Nil || videoID == uuid.Nil {
		return false, ValidationError("user_id and video_id are required")
	}
	if _, err := s.videos.FindActive(ctx, nil, videoID); err != nil {
		return false, translate("videos.find_active", err)
	}
	added, err := s.lists.AddWatchLater(ctx, nil, userID, videoID)
	if err != nil {
		return false, translate("watch_later.add", err)
	}
	return added, nil
}

// RemoveWatchLater 从稍后观看移除视频；返回是否确有移除。
func (s *WatchListService) RemoveWatchLater(ctx context.Context, userID, videoID uuid.UUID) (bool, error) {
	if userID == uuid.Nil || videoID == uuid.Nil {
		return false, ValidationError("user_id and video_id are required")
	}
	removed, err := s.lists.RemoveWatchLater(ctx, nil, userID, videoID)
	if err != nil {
		return false, translate("watch_later.remove", err)
	}
	return removed, nil
}

// ListWatchLater 返回稍后观看列表（最近加入优先）。
func (s *WatchListService) ListWatchLater(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*vo.WatchItem, error) {
	if userID == uuid.Nil {
		return nil, ValidationError("user_id is required")
	}
	limit, offset = clampPage(limit, offset)
	entries, err := s.lists.ListWatchLater(ctx, nil, userID, limit, offset)
	if err != nil {
		return nil, translate("watch_later.list", err)
	}
	items := make([]*vo.WatchItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, &vo.WatchItem{VideoID: e.VideoID, At: e.CreatedAt})
	}
	return items, nil
}

// ListHistory 返回观看历史（最近观看优先）。
func (s *WatchListService) ListHistory(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*vo.WatchItem, error) {
	if userID == uuid.Nil {
		return nil, ValidationError("user_id is required")
	}
	limit, offset = clampPage(limit, offset)
	entries, err := s.lists.ListHistory(ctx, nil, userID, limit, offset)
	if err != nil {
		return nil, translate("watch_history.list", err)
	}
	items := make([]*vo.WatchItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, &vo.WatchItem{VideoID: e.VideoID, WatchedPercentage: e.WatchedPercentage, At: e.LastWatchedAt})
	}
	return items, nil
}

// ClearHistory 清空观看历史，返回删除条数。
func (s *WatchListService) ClearHistory(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, ValidationError("user_id is required")
	}
	removed, err := s.lists.ClearHistory(ctx, nil, userID)
	if err != nil {
		return 0, translate("watch_history.clear", err)
	}
	s.log.WithContext(ctx).Infof("watch history cleared: user=%s removed=%d", userID, removed)
	return removed, nil
}

func clampPage(limit, offset int32) (int32, int32) {
	if limit <= 0 {
		limit = defaultWatchListPageSize
	}
	if limit > maxWatchListPageSize {
		limit = maxWatchListPageSize
	}
	return limit, max(offset, 0)
}

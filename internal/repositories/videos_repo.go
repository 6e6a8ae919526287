package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VideosRepository 维护视频元数据与计数缓存。
type VideosRepository struct {
	store
	log *log.Helper
}

// NewVideosRepository 构造视频仓储。
func NewVideosRepository(db *pgxpool.Pool, guard *storecall.Guard, logger log.Logger) *VideosRepository {
	return &VideosRepository{
		store: store{db: db, guard: guard},
		log:   log.NewHelper(logger),
	}
}

// CreateVideoInput 描述发布视频的写入参数，媒体上传已在外部完成。
type CreateVideoInput struct {
	ChannelID   uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	Description string
	MediaURL    string
	MediaKey    string
}

const videoColumns = `id, channel_id, owner_id, title, description, media_url, media_key,
  views, unique_views, likes, dislikes, comments, published_at, created_at, updated_at, deleted_at`

// FindActive 返回未软删除的视频。
func (r *VideosRepository) FindActive(ctx context.Context, sess txmanager.Session, videoID uuid.UUID) (*po.Video, error) {
	var video *po.Video
	err := r.run(ctx, sess, "videos.find_active", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `SELECT `+videoColumns+` FROM engagement.videos
WHERE id = $1 AND deleted_at IS NULL`, videoID)
		var err error
		video, err = scanVideo(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("find video: %w", err)
	}
	return video, nil
}

// Create 写入视频记录。
func (r *VideosRepository) Create(ctx context.Context, sess txmanager.Session, input CreateVideoInput) (*po.Video, error) {
	var video *po.Video
	err := r.run(ctx, sess, "videos.create", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `INSERT INTO engagement.videos (channel_id, owner_id, title, description, media_url, media_key)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+videoColumns, input.ChannelID, input.OwnerID, input.Title, input.Description, input.MediaURL, input.MediaKey)
		var err error
		video, err = scanVideo(row)
		return err
	})
	if err != nil {
		r.log.WithContext(ctx).Errorf("create video failed: channel=%s owner=%s err=%v", input.ChannelID, input.OwnerID, err)
		return nil, fmt.Errorf("create video: %w", err)
	}
	return video, nil
}

// IncrementViews 原地累加播放数；unique 为 true 时同时累加去重观看数。
func (r *VideosRepository) IncrementViews(ctx context.Context, sess txmanager.Session, videoID uuid.UUID, unique bool) (views, uniqueViews int64, err error) {
	var uniqueDelta int64
	if unique {
		uniqueDelta = 1
	}
	err = r.run(ctx, sess, "videos.increment_views", func(ctx context.Context, q dbtx) error {
		return q.QueryRow(ctx, `UPDATE engagement.videos SET
  views = views + 1,
  unique_views = unique_views + $2
WHERE id = $1
RETURNING views, unique_views`, videoID, uniqueDelta).Scan(&views, &uniqueViews)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrVideoNotFound
		}
		r.log.WithContext(ctx).Errorf("increment video views failed: video=%s err=%v", videoID, err)
		return 0, 0, fmt.Errorf("increment video views: %w", err)
	}
	return views, uniqueViews, nil
}

// AdjustComments 原子地调整评论数（下限为 0）。
func (r *VideosRepository) AdjustComments(ctx context.Context, sess txmanager.Session, videoID uuid.UUID, delta int64) (int64, error) {
	var comments int64
	err := r.run(ctx, sess, "videos.adjust_comments", func(ctx context.Context, q dbtx) error {
		return q.QueryRow(ctx, `UPDATE engagement.videos SET comments = GREATEST(0, comments + $2)
WHERE id = $1
RETURNING comments`, videoID, delta).Scan(&comments)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrVideoNotFound
		}
		r.log.WithContext(ctx).Errorf("adjust video comments failed: video=%s err=%v", videoID, err)
		return 0, fmt.Errorf("adjust video comments: %w", err)
	}
	return comments, nil
}

// ReconcileLikes 以账本重算视频的点赞/点踩数并写回，单条语句完成，返回最新值。
func (r *VideosRepository) ReconcileLikes(ctx context.Context, sess txmanager.Session, videoID uuid.UUID) (po.LikeTally, error) {
	return reconcileLikes(ctx, r.store, sess, "videos.reconcile_likes", `UPDATE engagement.videos v
SET likes = t.likes, dislikes = t.dislikes
FROM (
  SELECT count(*) FILTER (WHERE value = 1) AS likes,
    count(*) FILTER (WHERE value = -1) AS dislikes
  FROM engagement.likes WHERE target_type = 'video' AND target_id = $1
) t
WHERE v.id = $1
RETURNING v.likes, v.dislikes`, videoID, ErrVideoNotFound)
}

// ListLikeDrift 返回点赞缓存与账本不一致的视频。
func (r *VideosRepository) ListLikeDrift(ctx context.Context, sess txmanager.Session, limit int32) ([]uuid.UUID, error) {
	return listIDs(ctx, r.store, sess, "videos.list_drift", `SELECT v.id FROM engagement.videos v
LEFT JOIN (
  SELECT target_id,
    count(*) FILTER (WHERE value = 1) AS likes,
    count(*) FILTER (WHERE value = -1) AS dislikes
  FROM engagement.likes WHERE target_type = 'video' GROUP BY target_id
) t ON t.target_id = v.id
WHERE v.deleted_at IS NULL
  AND (v.likes <> COALESCE(t.likes, 0) OR v.dislikes <> COALESCE(t.dislikes, 0))
ORDER BY v.id
LIMIT $1`, limit)
}

func scanVideo(row pgx.Row) (*po.Video, error) {
	var v po.Video
	if err := row.Scan(
		&v.ID, &v.ChannelID, &v.OwnerID, &v.Title, &v.Description, &v.MediaURL, &v.MediaKey,
		&v.Views, &v.UniqueViews, &v.Likes, &v.Dislikes, &v.Comments,
		&v.PublishedAt, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

func reconcileLikes(ctx context.Context, s store, sess txmanager.Session, op, sql string, id uuid.UUID, notFound error) (po.LikeTally, error) {
	var tally po.LikeTally
	err := s.run(ctx, sess, op, func(ctx context.Context, q dbtx) error {
		return q.QueryRow(ctx, sql, id).Scan(&tally.Likes, &tally.Dislikes)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return po.LikeTally{}, notFound
		}
		return po.LikeTally{}, fmt.Errorf("%s: %w", op, err)
	}
	return tally, nil
}

package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VideoViewsRepository 维护 (video, identity) 维度的观看去重表。
type VideoViewsRepository struct {
	store
	log *log.Helper
}

// NewVideoViewsRepository 构造观看去重仓储。
func NewVideoViewsRepository(db *pgxpool.Pool, guard *storecall.Guard, logger log.Logger) *VideoViewsRepository {
	return &VideoViewsRepository{
		store: store{db: db, guard: guard},
		log:   log.NewHelper(logger),
	}
}

// RecordViewInput 描述一次观看事件。
type RecordViewInput struct {
	VideoID           uuid.UUID
	IdentityKey       string
	IdentityKind      po.IdentityKind
	ActorID           *uuid.UUID
	SessionID         *string
	IPAddress         *string
	DurationSeconds   int32
	WatchedPercentage float64
	SeenAt            time.Time
}

// InsertOrMerge 首次出现时插入，否则合并观看指标（时长/百分比取较大值）并刷新 last_seen_at。
// inserted 为 true 表示这是该身份对该视频的首次观看。
func (r *VideoViewsRepository) InsertOrMerge(ctx context.Context, sess txmanager.Session, input RecordViewInput) (view *po.VideoView, inserted bool, err error) {
	err = r.run(ctx, sess, "video_views.insert_or_merge", func(ctx context.Context, q dbtx) error {
		var (
			v    po.VideoView
			kind string
		)
		scanErr := q.QueryRow(ctx, `INSERT INTO engagement.video_views (
  video_id, identity_key, identity_kind, actor_id, session_id, ip_address,
  duration_seconds, watched_percentage, first_seen_at, last_seen_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
ON CONFLICT (video_id, identity_key) DO UPDATE SET
  duration_seconds = GREATEST(engagement.video_views.duration_seconds, EXCLUDED.duration_seconds),
  watched_percentage = GREATEST(engagement.video_views.watched_percentage, EXCLUDED.watched_percentage),
  last_seen_at = GREATEST(engagement.video_views.last_seen_at, EXCLUDED.last_seen_at)
RETURNING video_id, identity_key, identity_kind, actor_id, session_id, ip_address,
  duration_seconds, watched_percentage, first_seen_at, last_seen_at, (xmax = 0) AS inserted`,
			input.VideoID, input.IdentityKey, string(input.IdentityKind), input.ActorID, input.SessionID, input.IPAddress,
			input.DurationSeconds, input.WatchedPercentage, input.SeenAt,
		).Scan(
			&v.VideoID, &v.IdentityKey, &kind, &v.ActorID, &v.SessionID, &v.IPAddress,
			&v.DurationSeconds, &v.WatchedPercentage, &v.FirstSeenAt, &v.LastSeenAt, &inserted,
		)
		if scanErr != nil {
			return scanErr
		}
		v.IdentityKind = po.IdentityKind(kind)
		view = &v
		return nil
	})
	if err != nil {
		r.log.WithContext(ctx).Errorf("record view failed: video=%s identity=%s err=%v", input.VideoID, input.IdentityKey, err)
		return nil, false, fmt.Errorf("record view: %w", err)
	}
	return view, inserted, nil
}

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

// WatchListsRepository 维护稍后观看与观看历史。
type WatchListsRepository struct {
	store
	log *log.Helper
}

// NewWatchListsRepository 构造列表仓储。
func NewWatchListsRepository(db *pgxpool.Pool, guard *storecall.Guard, logger log.Logger) *WatchListsRepository {
	return &WatchListsRepository{
		store: store{db: db, guard: guard},
		log:   log.NewHelper(logger),
	}
}

// AddWatchLater 幂等加入稍后观看，返回是否新建。
func (r *WatchListsRepository) AddWatchLater(ctx context.Context, sess txmanager.Session, userID, videoID uuid.UUID) (bool, error) {
	return r.exec(ctx, sess, "watch_later.add", `INSERT INTO engagement.watch_later (user_id, video_id)
VALUES ($1, $2) ON CONFLICT (user_id, video_id) DO NOTHING`, userID, videoID)
}

// RemoveWatchLater 移出稍后观看，返回是否确实删除。
func (r *WatchListsRepository) RemoveWatchLater(ctx context.Context, sess txmanager.Session, userID, videoID uuid.UUID) (bool, error) {
	return r.exec(ctx, sess, "watch_later.remove", `DELETE FROM engagement.watch_later WHERE user_id = $1 AND video_id = $2`, userID, videoID)
}

// ListWatchLater 按加入时间倒序返回稍后观看列表。
func (r *WatchListsRepository) ListWatchLater(ctx context.Context, sess txmanager.Session, userID uuid.UUID, limit, offset int32) ([]*po.WatchLaterEntry, error) {
	var items []*po.WatchLaterEntry
	err := r.run(ctx, sess, "watch_later.list", func(ctx context.Context, q dbtx) error {
		rows, err := q.Query(ctx, `SELECT user_id, video_id, created_at FROM engagement.watch_later
WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		items = items[:0]
		for rows.Next() {
			var e po.WatchLaterEntry
			if err := rows.Scan(&e.UserID, &e.VideoID, &e.CreatedAt); err != nil {
				return err
			}
			items = append(items, &e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list watch later: %w", err)
	}
	return items, nil
}

// TouchHistory 写入或刷新观看历史，进度取较大值。
func (r *WatchListsRepository) TouchHistory(ctx context.Context, sess txmanager.Session, userID, videoID uuid.UUID, watchedPercentage float64, at time.Time) error {
	_, err := r.exec(ctx, sess, "watch_history.touch", `INSERT INTO engagement.watch_history (user_id, video_id, watched_percentage, first_watched_at, last_watched_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (user_id, video_id) DO UPDATE SET
  watched_percentage = GREATEST(engagement.watch_history.watched_percentage, EXCLUDED.watched_percentage),
  last_watched_at = GREATEST(engagement.watch_history.last_watched_at, EXCLUDED.last_watched_at)`, userID, videoID, watchedPercentage, at)
	return err
}

// ListHistory 按最近观看时间倒序返回历史。
func (r *WatchListsRepository) ListHistory(ctx context.Context, sess txmanager.Session, userID uuid.UUID, limit, offset int32) ([]*po.WatchHistoryEntry, error) {
	var items []*po.WatchHistoryEntry
	err := r.run(ctx, sess, "watch_history.list", func(ctx context.Context, q dbtx) error {
		rows, err := q.Query(ctx, `SELECT user_id, video_id, watched_percentage, first_watched_at, last_watched_at
FROM engagement.watch_history
WHERE user_id = $1 ORDER BY last_watched_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		items = items[:0]
		for rows.Next() {
			var e po.WatchHistoryEntry
			if err := rows.Scan(&e.UserID, &e.VideoID, &e.WatchedPercentage, &e.FirstWatchedAt, &e.LastWatchedAt); err != nil {
				return err
			}
			items = append(items, &e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list watch history: %w", err)
	}
	return items, nil
}

// ClearHistory 清空用户观看历史，返回删除数量。
func (r *WatchListsRepository) ClearHistory(ctx context.Context, sess txmanager.Session, userID uuid.UUID) (int64, error) {
	var affected int64
	err := r.run(ctx, sess, "watch_history.clear", func(ctx context.Context, q dbtx) error {
		tag, err := q.Exec(ctx, `DELETE FROM engagement.watch_history WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear watch history: %w", err)
	}
	return affected, nil
}

func (r *WatchListsRepository) exec(ctx context.Context, sess txmanager.Session, op, sql string, args ...any) (bool, error) {
	var affected int64
	err := r.run(ctx, sess, op, func(ctx context.Context, q dbtx) error {
		tag, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		r.log.WithContext(ctx).Errorf("%s failed: err=%v", op, err)
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected > 0, nil
}

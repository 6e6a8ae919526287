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
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChannelDailyStatsRepository 维护频道日统计桶。
type ChannelDailyStatsRepository struct {
	store
	log *log.Helper
}

// NewChannelDailyStatsRepository 构造日统计仓储。
func NewChannelDailyStatsRepository(db *pgxpool.Pool, guard *storecall.Guard, logger log.Logger) *ChannelDailyStatsRepository {
	return &ChannelDailyStatsRepository{
		store: store{db: db, guard: guard},
		log:   log.NewHelper(logger),
	}
}

// StatsDelta 描述对日统计桶的增量。
type StatsDelta struct {
	Views       int64
	Subscribers int64
	Videos      int64
	Likes       int64
	Comments    int64
}

const dailyStatsColumns = `channel_id, day, views, subscribers, videos, likes, comments, updated_at`

// Bump 按 (channel, day) 增量更新或创建统计桶，所有字段以 0 为下限。day 需已截断到 UTC 零点。
func (r *ChannelDailyStatsRepository) Bump(ctx context.Context, sess txmanager.Session, channelID uuid.UUID, day time.Time, delta StatsDelta) (*po.ChannelDailyStats, error) {
	var stats *po.ChannelDailyStats
	err := r.run(ctx, sess, "channel_daily_stats.bump", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `INSERT INTO engagement.channel_daily_stats AS s
  (channel_id, day, views, subscribers, videos, likes, comments)
VALUES ($1, $2, GREATEST(0, $3::bigint), GREATEST(0, $4::bigint), GREATEST(0, $5::bigint), GREATEST(0, $6::bigint), GREATEST(0, $7::bigint))
ON CONFLICT (channel_id, day) DO UPDATE SET
  views = GREATEST(0, s.views + $3),
  subscribers = GREATEST(0, s.subscribers + $4),
  videos = GREATEST(0, s.videos + $5),
  likes = GREATEST(0, s.likes + $6),
  comments = GREATEST(0, s.comments + $7),
  updated_at = now()
RETURNING `+dailyStatsColumns, channelID, day, delta.Views, delta.Subscribers, delta.Videos, delta.Likes, delta.Comments)
		var err error
		stats, err = scanDailyStats(row)
		return err
	})
	if err != nil {
		r.log.WithContext(ctx).Errorf("bump channel stats failed: channel=%s day=%s err=%v", channelID, day.Format(time.DateOnly), err)
		return nil, fmt.Errorf("bump channel stats: %w", err)
	}
	return stats, nil
}

// Range 返回 [from, to] 区间内的统计桶，按日期升序。
func (r *ChannelDailyStatsRepository) Range(ctx context.Context, sess txmanager.Session, channelID uuid.UUID, from, to time.Time) ([]*po.ChannelDailyStats, error) {
	var items []*po.ChannelDailyStats
	err := r.run(ctx, sess, "channel_daily_stats.range", func(ctx context.Context, q dbtx) error {
		rows, err := q.Query(ctx, `SELECT `+dailyStatsColumns+` FROM engagement.channel_daily_stats
WHERE channel_id = $1 AND day BETWEEN $2 AND $3
ORDER BY day`, channelID, from, to)
		if err != nil {
			return err
		}
		defer rows.Close()
		items = items[:0]
		for rows.Next() {
			s, err := scanDailyStats(rows)
			if err != nil {
				return err
			}
			items = append(items, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("range channel stats: %w", err)
	}
	return items, nil
}

func scanDailyStats(row pgx.Row) (*po.ChannelDailyStats, error) {
	var s po.ChannelDailyStats
	if err := row.Scan(&s.ChannelID, &s.Day, &s.Views, &s.Subscribers, &s.Videos, &s.Likes, &s.Comments, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

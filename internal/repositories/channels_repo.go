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

// ChannelsRepository 维护频道及其计数缓存。
type ChannelsRepository struct {
	store
	log *log.Helper
}

// NewChannelsRepository 构造频道仓储。
func NewChannelsRepository(db *pgxpool.Pool, guard *storecall.Guard, logger log.Logger) *ChannelsRepository {
	return &ChannelsRepository{
		store: store{db: db, guard: guard},
		log:   log.NewHelper(logger),
	}
}

// ChannelCounterDelta 描述频道计数的增量，结果以 0 为下限。
type ChannelCounterDelta struct {
	Subscribers int64
	Views       int64
	Videos      int64
}

const channelColumns = `id, owner_id, name, subscribers, views, videos, created_at, updated_at, deleted_at`

// FindActive 返回未软删除的频道。
func (r *ChannelsRepository) FindActive(ctx context.Context, sess txmanager.Session, channelID uuid.UUID) (*po.Channel, error) {
	var channel *po.Channel
	err := r.run(ctx, sess, "channels.find_active", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `SELECT `+channelColumns+` FROM engagement.channels
WHERE id = $1 AND deleted_at IS NULL`, channelID)
		var err error
		channel, err = scanChannel(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("find channel: %w", err)
	}
	return channel, nil
}

// AdjustCounters 原子地应用增量并返回最新计数。
func (r *ChannelsRepository) AdjustCounters(ctx context.Context, sess txmanager.Session, channelID uuid.UUID, delta ChannelCounterDelta) (*po.Channel, error) {
	var channel *po.Channel
	err := r.run(ctx, sess, "channels.adjust_counters", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `UPDATE engagement.channels SET
  subscribers = GREATEST(0, subscribers + $2),
  views = GREATEST(0, views + $3),
  videos = GREATEST(0, videos + $4)
WHERE id = $1
RETURNING `+channelColumns, channelID, delta.Subscribers, delta.Views, delta.Videos)
		var err error
		channel, err = scanChannel(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChannelNotFound
		}
		r.log.WithContext(ctx).Errorf("adjust channel counters failed: channel=%s err=%v", channelID, err)
		return nil, fmt.Errorf("adjust channel counters: %w", err)
	}
	return channel, nil
}

// ReconcileSubscribers 以订阅账本重算订阅数并写回，返回最新值。
func (r *ChannelsRepository) ReconcileSubscribers(ctx context.Context, sess txmanager.Session, channelID uuid.UUID) (int64, error) {
	var subscribers int64
	err := r.run(ctx, sess, "channels.reconcile_subscribers", func(ctx context.Context, q dbtx) error {
		return q.QueryRow(ctx, `UPDATE engagement.channels c SET subscribers = (
  SELECT count(*) FROM engagement.subscriptions s WHERE s.channel_id = c.id
)
WHERE c.id = $1
RETURNING c.subscribers`, channelID).Scan(&subscribers)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrChannelNotFound
		}
		return 0, fmt.Errorf("reconcile channel subscribers: %w", err)
	}
	return subscribers, nil
}

// ListSubscriberDrift 返回订阅数缓存与账本不一致的频道。
func (r *ChannelsRepository) ListSubscriberDrift(ctx context.Context, sess txmanager.Session, limit int32) ([]uuid.UUID, error) {
	return listIDs(ctx, r.store, sess, "channels.list_drift", `SELECT c.id FROM engagement.channels c
LEFT JOIN (
  SELECT channel_id, count(*) AS total FROM engagement.subscriptions GROUP BY channel_id
) s ON s.channel_id = c.id
WHERE c.deleted_at IS NULL AND c.subscribers <> COALESCE(s.total, 0)
ORDER BY c.id
LIMIT $1`, limit)
}

func scanChannel(row pgx.Row) (*po.Channel, error) {
	var c po.Channel
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Subscribers, &c.Views, &c.Videos, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func listIDs(ctx context.Context, s store, sess txmanager.Session, op, sql string, args ...any) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.run(ctx, sess, op, func(ctx context.Context, q dbtx) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

package repositories

import (
	"context"
	"fmt"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionsRepository 维护订阅账本，每个 (subscriber, channel) 至多一条。
type SubscriptionsRepository struct {
	store
	log *log.Helper
}

// NewSubscriptionsRepository 构造订阅仓储。
func NewSubscriptionsRepository(db *pgxpool.Pool, guard *storecall.Guard, logger log.Logger) *SubscriptionsRepository {
	return &SubscriptionsRepository{
		store: store{db: db, guard: guard},
		log:   log.NewHelper(logger),
	}
}

// Insert 幂等写入订阅，返回是否新建。
func (r *SubscriptionsRepository) Insert(ctx context.Context, sess txmanager.Session, subscriberID, channelID uuid.UUID) (bool, error) {
	var affected int64
	err := r.run(ctx, sess, "subscriptions.insert", func(ctx context.Context, q dbtx) error {
		tag, err := q.Exec(ctx, `INSERT INTO engagement.subscriptions (subscriber_id, channel_id)
VALUES ($1, $2)
ON CONFLICT (subscriber_id, channel_id) DO NOTHING`, subscriberID, channelID)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		r.log.WithContext(ctx).Errorf("insert subscription failed: subscriber=%s channel=%s err=%v", subscriberID, channelID, err)
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	return affected > 0, nil
}

// Delete 幂等删除订阅，返回是否确实删除了记录。
func (r *SubscriptionsRepository) Delete(ctx context.Context, sess txmanager.Session, subscriberID, channelID uuid.UUID) (bool, error) {
	var affected int64
	err := r.run(ctx, sess, "subscriptions.delete", func(ctx context.Context, q dbtx) error {
		tag, err := q.Exec(ctx, `DELETE FROM engagement.subscriptions WHERE subscriber_id = $1 AND channel_id = $2`, subscriberID, channelID)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		r.log.WithContext(ctx).Errorf("delete subscription failed: subscriber=%s channel=%s err=%v", subscriberID, channelID, err)
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return affected > 0, nil
}

// ListSubscriberIDs 返回频道当前全部订阅者。
func (r *SubscriptionsRepository) ListSubscriberIDs(ctx context.Context, sess txmanager.Session, channelID uuid.UUID) ([]uuid.UUID, error) {
	return listIDs(ctx, r.store, sess, "subscriptions.list_subscribers",
		`SELECT subscriber_id FROM engagement.subscriptions WHERE channel_id = $1 ORDER BY created_at`, channelID)
}

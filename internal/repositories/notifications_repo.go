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

// NotificationsRepository 维护 engagement.notifications。
type NotificationsRepository struct {
	store
	log *log.Helper
}

// NewNotificationsRepository 构造通知仓储。
func NewNotificationsRepository(db *pgxpool.Pool, guard *storecall.Guard, logger log.Logger) *NotificationsRepository {
	return &NotificationsRepository{
		store: store{db: db, guard: guard},
		log:   log.NewHelper(logger),
	}
}

// DedupKey 是去重窗口比较的字段组合。
type DedupKey struct {
	SenderID *uuid.UUID
	Type     po.NotificationType
	Refs     po.NotificationRefs
}

// ListNotificationsFilter 描述通知列表查询条件。
type ListNotificationsFilter struct {
	RecipientID uuid.UUID
	Status      *po.NotificationStatus
	Now         time.Time
	Limit       int32
	Offset      int32
}

const notificationColumns = `id, recipient_id, sender_id, type, priority, title, message,
  video_id, channel_id, comment_id, status, created_at, read_at, expires_at`

var notificationCopyColumns = []string{
	"id", "recipient_id", "sender_id", "type", "priority", "title", "message",
	"video_id", "channel_id", "comment_id", "status", "created_at", "expires_at",
}

// FindRecentDuplicates 返回 since 之后已存在的同键通知，按接收人索引。
func (r *NotificationsRepository) FindRecentDuplicates(ctx context.Context, sess txmanager.Session, recipients []uuid.UUID, key DedupKey, since time.Time) (map[uuid.UUID]*po.Notification, error) {
	result := make(map[uuid.UUID]*po.Notification, len(recipients))
	if len(recipients) == 0 {
		return result, nil
	}
	err := r.run(ctx, sess, "notifications.find_duplicates", func(ctx context.Context, q dbtx) error {
		rows, err := q.Query(ctx, `SELECT DISTINCT ON (recipient_id) `+notificationColumns+`
FROM engagement.notifications
WHERE recipient_id = ANY($1)
  AND sender_id IS NOT DISTINCT FROM $2
  AND type = $3
  AND video_id IS NOT DISTINCT FROM $4
  AND channel_id IS NOT DISTINCT FROM $5
  AND comment_id IS NOT DISTINCT FROM $6
  AND created_at >= $7
ORDER BY recipient_id, created_at DESC`,
			recipients, key.SenderID, string(key.Type), key.Refs.VideoID, key.Refs.ChannelID, key.Refs.CommentID, since)
		if err != nil {
			return err
		}
		defer rows.Close()
		clear(result)
		for rows.Next() {
			n, err := scanNotification(rows)
			if err != nil {
				return err
			}
			result[n.RecipientID] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("find duplicate notifications: %w", err)
	}
	return result, nil
}

// InsertBatch 通过 COPY 一次写入一批通知；批次整体成功或失败，不做重试。
func (r *NotificationsRepository) InsertBatch(ctx context.Context, sess txmanager.Session, items []*po.Notification) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(items))
	for _, n := range items {
		rows = append(rows, []any{
			n.ID, n.RecipientID, n.SenderID, string(n.Type), string(n.Priority), n.Title, n.Message,
			n.Refs.VideoID, n.Refs.ChannelID, n.Refs.CommentID, string(n.Status), n.CreatedAt, n.ExpiresAt,
		})
	}
	copyFn := func(ctx context.Context) error {
		_, err := r.q(sess).CopyFrom(ctx, pgx.Identifier{"engagement", "notifications"}, notificationCopyColumns, pgx.CopyFromRows(rows))
		return err
	}
	var err error
	if sess != nil {
		err = copyFn(ctx)
	} else {
		err = r.guard.Once(ctx, "notifications.insert_batch", copyFn)
	}
	if err != nil {
		r.log.WithContext(ctx).Errorf("insert notifications failed: count=%d err=%v", len(items), err)
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

// List 返回接收人未过期的通知，按创建时间倒序。
func (r *NotificationsRepository) List(ctx context.Context, sess txmanager.Session, filter ListNotificationsFilter) ([]*po.Notification, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	var items []*po.Notification
	err := r.run(ctx, sess, "notifications.list", func(ctx context.Context, q dbtx) error {
		rows, err := q.Query(ctx, `SELECT `+notificationColumns+`
FROM engagement.notifications
WHERE recipient_id = $1
  AND expires_at > $2
  AND ($3::text IS NULL OR status = $3)
ORDER BY created_at DESC, id
LIMIT $4 OFFSET $5`, filter.RecipientID, filter.Now, status, filter.Limit, filter.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		items = items[:0]
		for rows.Next() {
			n, err := scanNotification(rows)
			if err != nil {
				return err
			}
			items = append(items, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// CountUnread 统计接收人未读且未过期的通知数量。
func (r *NotificationsRepository) CountUnread(ctx context.Context, sess txmanager.Session, recipientID uuid.UUID, now time.Time) (int64, error) {
	var total int64
	err := r.run(ctx, sess, "notifications.count_unread", func(ctx context.Context, q dbtx) error {
		return q.QueryRow(ctx, `SELECT count(*) FROM engagement.notifications
WHERE recipient_id = $1 AND status = 'unread' AND expires_at > $2`, recipientID, now).Scan(&total)
	})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return total, nil
}

// MarkRead 将接收人名下的指定通知标记为已读，返回实际变更数量。
func (r *NotificationsRepository) MarkRead(ctx context.Context, sess txmanager.Session, recipientID uuid.UUID, ids []uuid.UUID, readAt time.Time) (int64, error) {
	return r.markRead(ctx, sess, "notifications.mark_read", `UPDATE engagement.notifications
SET status = 'read', read_at = $3
WHERE recipient_id = $1 AND id = ANY($2) AND status = 'unread'`, recipientID, ids, readAt)
}

// MarkAllRead 将接收人全部未读通知标记为已读。
func (r *NotificationsRepository) MarkAllRead(ctx context.Context, sess txmanager.Session, recipientID uuid.UUID, readAt time.Time) (int64, error) {
	return r.markRead(ctx, sess, "notifications.mark_all_read", `UPDATE engagement.notifications
SET status = 'read', read_at = $2
WHERE recipient_id = $1 AND status = 'unread'`, recipientID, readAt)
}

func (r *NotificationsRepository) markRead(ctx context.Context, sess txmanager.Session, op, sql string, args ...any) (int64, error) {
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
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return affected, nil
}

// PurgeExpired 删除最多 limit 条已过期通知，返回删除数量。
func (r *NotificationsRepository) PurgeExpired(ctx context.Context, sess txmanager.Session, now time.Time, limit int32) (int64, error) {
	var affected int64
	err := r.run(ctx, sess, "notifications.purge_expired", func(ctx context.Context, q dbtx) error {
		tag, err := q.Exec(ctx, `DELETE FROM engagement.notifications
WHERE id IN (
  SELECT id FROM engagement.notifications WHERE expires_at <= $1 ORDER BY expires_at LIMIT $2
)`, now, limit)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge expired notifications: %w", err)
	}
	return affected, nil
}

func scanNotification(row pgx.Row) (*po.Notification, error) {
	var (
		n                     po.Notification
		typ, priority, status string
	)
	if err := row.Scan(
		&n.ID, &n.RecipientID, &n.SenderID, &typ, &priority, &n.Title, &n.Message,
		&n.Refs.VideoID, &n.Refs.ChannelID, &n.Refs.CommentID, &status, &n.CreatedAt, &n.ReadAt, &n.ExpiresAt,
	); err != nil {
		return nil, err
	}
	n.Type = po.NotificationType(typ)
	n.Priority = po.NotificationPriority(priority)
	n.Status = po.NotificationStatus(status)
	return &n, nil
}

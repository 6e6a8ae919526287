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

// CommentsRepository 维护评论及其计数缓存。
type CommentsRepository struct {
	store
	log *log.Helper
}

// NewCommentsRepository 构造评论仓储。
func NewCommentsRepository(db *pgxpool.Pool, guard *storecall.Guard, logger log.Logger) *CommentsRepository {
	return &CommentsRepository{
		store: store{db: db, guard: guard},
		log:   log.NewHelper(logger),
	}
}

// CreateCommentInput 描述评论写入参数。
type CreateCommentInput struct {
	VideoID  uuid.UUID
	AuthorID uuid.UUID
	ParentID *uuid.UUID
	Body     string
}

const commentColumns = `id, video_id, author_id, parent_id, body, likes, dislikes, replies, created_at, updated_at, deleted_at`

// FindActive 返回未软删除的评论。
func (r *CommentsRepository) FindActive(ctx context.Context, sess txmanager.Session, commentID uuid.UUID) (*po.Comment, error) {
	var comment *po.Comment
	err := r.run(ctx, sess, "comments.find_active", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `SELECT `+commentColumns+` FROM engagement.comments
WHERE id = $1 AND deleted_at IS NULL`, commentID)
		var err error
		comment, err = scanComment(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return comment, nil
}

// Create 写入评论。
func (r *CommentsRepository) Create(ctx context.Context, sess txmanager.Session, input CreateCommentInput) (*po.Comment, error) {
	var comment *po.Comment
	err := r.run(ctx, sess, "comments.create", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `INSERT INTO engagement.comments (video_id, author_id, parent_id, body)
VALUES ($1, $2, $3, $4)
RETURNING `+commentColumns, input.VideoID, input.AuthorID, input.ParentID, input.Body)
		var err error
		comment, err = scanComment(row)
		return err
	})
	if err != nil {
		r.log.WithContext(ctx).Errorf("create comment failed: video=%s author=%s err=%v", input.VideoID, input.AuthorID, err)
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// SoftDelete 标记评论删除，已删除时返回 ErrCommentNotFound。
func (r *CommentsRepository) SoftDelete(ctx context.Context, sess txmanager.Session, commentID uuid.UUID) (*po.Comment, error) {
	var comment *po.Comment
	err := r.run(ctx, sess, "comments.soft_delete", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `UPDATE engagement.comments SET deleted_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING `+commentColumns, commentID)
		var err error
		comment, err = scanComment(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		r.log.WithContext(ctx).Errorf("soft delete comment failed: comment=%s err=%v", commentID, err)
		return nil, fmt.Errorf("soft delete comment: %w", err)
	}
	return comment, nil
}

// AdjustReplies 原子地调整回复数（下限为 0）。
func (r *CommentsRepository) AdjustReplies(ctx context.Context, sess txmanager.Session, commentID uuid.UUID, delta int64) error {
	err := r.run(ctx, sess, "comments.adjust_replies", func(ctx context.Context, q dbtx) error {
		_, err := q.Exec(ctx, `UPDATE engagement.comments SET replies = GREATEST(0, replies + $2) WHERE id = $1`, commentID, delta)
		return err
	})
	if err != nil {
		return fmt.Errorf("adjust comment replies: %w", err)
	}
	return nil
}

// ReconcileLikes 以账本重算评论的点赞/点踩数并写回，返回最新值。
func (r *CommentsRepository) ReconcileLikes(ctx context.Context, sess txmanager.Session, commentID uuid.UUID) (po.LikeTally, error) {
	return reconcileLikes(ctx, r.store, sess, "comments.reconcile_likes", `UPDATE engagement.comments c
SET likes = t.likes, dislikes = t.dislikes
FROM (
  SELECT count(*) FILTER (WHERE value = 1) AS likes,
    count(*) FILTER (WHERE value = -1) AS dislikes
  FROM engagement.likes WHERE target_type = 'comment' AND target_id = $1
) t
WHERE c.id = $1
RETURNING c.likes, c.dislikes`, commentID, ErrCommentNotFound)
}

// ListLikeDrift 返回点赞缓存与账本不一致的评论。
func (r *CommentsRepository) ListLikeDrift(ctx context.Context, sess txmanager.Session, limit int32) ([]uuid.UUID, error) {
	return listIDs(ctx, r.store, sess, "comments.list_drift", `SELECT c.id FROM engagement.comments c
LEFT JOIN (
  SELECT target_id,
    count(*) FILTER (WHERE value = 1) AS likes,
    count(*) FILTER (WHERE value = -1) AS dislikes
  FROM engagement.likes WHERE target_type = 'comment' GROUP BY target_id
) t ON t.target_id = c.id
WHERE c.deleted_at IS NULL
  AND (c.likes <> COALESCE(t.likes, 0) OR c.dislikes <> COALESCE(t.dislikes, 0))
ORDER BY c.id
LIMIT $1`, limit)
}

func scanComment(row pgx.Row) (*po.Comment, error) {
	var c po.Comment
	if err := row.Scan(&c.ID, &c.VideoID, &c.AuthorID, &c.ParentID, &c.Body, &c.Likes, &c.Dislikes, &c.Replies, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

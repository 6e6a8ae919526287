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

// LikesRepository 维护点赞/点踩账本 engagement.likes。
type LikesRepository struct {
	store
	log *log.Helper
}

// NewLikesRepository 构造账本仓储。
func NewLikesRepository(db *pgxpool.Pool, guard *storecall.Guard, logger log.Logger) *LikesRepository {
	return &LikesRepository{
		store: store{db: db, guard: guard},
		log:   log.NewHelper(logger),
	}
}

const likeColumns = `actor_id, target_type, target_id, value, created_at, updated_at`

// Get 返回 (actor, target) 的账本记录，不存在时返回 ErrLikeNotFound。
func (r *LikesRepository) Get(ctx context.Context, sess txmanager.Session, actorID uuid.UUID, targetType po.TargetType, targetID uuid.UUID) (*po.Like, error) {
	var like *po.Like
	err := r.run(ctx, sess, "likes.get", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `SELECT `+likeColumns+` FROM engagement.likes
WHERE actor_id = $1 AND target_type = $2 AND target_id = $3`, actorID, string(targetType), targetID)
		var err error
		like, err = scanLike(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLikeNotFound
		}
		return nil, fmt.Errorf("get like: %w", err)
	}
	return like, nil
}

// Insert 写入新记录。并发创建会触发唯一约束冲突，调用方据此判断竞争。
func (r *LikesRepository) Insert(ctx context.Context, sess txmanager.Session, actorID uuid.UUID, targetType po.TargetType, targetID uuid.UUID, value po.VoteValue) (*po.Like, error) {
	var like *po.Like
	err := r.run(ctx, sess, "likes.insert", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `INSERT INTO engagement.likes (actor_id, target_type, target_id, value)
VALUES ($1, $2, $3, $4)
RETURNING `+likeColumns, actorID, string(targetType), targetID, int16(value))
		var err error
		like, err = scanLike(row)
		return err
	})
	if err != nil {
		if !IsUniqueViolation(err) {
			r.log.WithContext(ctx).Errorf("insert like failed: actor=%s target=%s/%s err=%v", actorID, targetType, targetID, err)
		}
		return nil, fmt.Errorf("insert like: %w", err)
	}
	return like, nil
}

// UpdateValue 仅当当前值仍为 expected 时改写，返回 ErrLikeNotFound 表示被并发修改。
func (r *LikesRepository) UpdateValue(ctx context.Context, sess txmanager.Session, actorID uuid.UUID, targetType po.TargetType, targetID uuid.UUID, expected, value po.VoteValue) (*po.Like, error) {
	var like *po.Like
	err := r.run(ctx, sess, "likes.update", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `UPDATE engagement.likes SET value = $5
WHERE actor_id = $1 AND target_type = $2 AND target_id = $3 AND value = $4
RETURNING `+likeColumns, actorID, string(targetType), targetID, int16(expected), int16(value))
		var err error
		like, err = scanLike(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLikeNotFound
		}
		r.log.WithContext(ctx).Errorf("update like failed: actor=%s target=%s/%s err=%v", actorID, targetType, targetID, err)
		return nil, fmt.Errorf("update like: %w", err)
	}
	return like, nil
}

// Delete 仅当当前值仍为 expected 时删除，返回 ErrLikeNotFound 表示被并发修改。
func (r *LikesRepository) Delete(ctx context.Context, sess txmanager.Session, actorID uuid.UUID, targetType po.TargetType, targetID uuid.UUID, expected po.VoteValue) error {
	var affected int64
	err := r.run(ctx, sess, "likes.delete", func(ctx context.Context, q dbtx) error {
		tag, err := q.Exec(ctx, `DELETE FROM engagement.likes
WHERE actor_id = $1 AND target_type = $2 AND target_id = $3 AND value = $4`, actorID, string(targetType), targetID, int16(expected))
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		r.log.WithContext(ctx).Errorf("delete like failed: actor=%s target=%s/%s err=%v", actorID, targetType, targetID, err)
		return fmt.Errorf("delete like: %w", err)
	}
	if affected == 0 {
		return ErrLikeNotFound
	}
	return nil
}

func scanLike(row pgx.Row) (*po.Like, error) {
	var (
		like       po.Like
		targetType string
		value      int16
	)
	if err := row.Scan(&like.ActorID, &targetType, &like.TargetID, &value, &like.CreatedAt, &like.UpdatedAt); err != nil {
		return nil, err
	}
	like.TargetType = po.TargetType(targetType)
	like.Value = po.VoteValue(value)
	return &like, nil
}

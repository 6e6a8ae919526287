package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsersRepository 提供用户只读查询（账号写入不在本服务内）。
type UsersRepository struct {
	store
	log *log.Helper
}

// NewUsersRepository 构造用户仓储。
func NewUsersRepository(db *pgxpool.Pool, guard *storecall.Guard, logger log.Logger) *UsersRepository {
	return &UsersRepository{
		store: store{db: db, guard: guard},
		log:   log.NewHelper(logger),
	}
}

const userColumns = `id, handle, display_name, created_at, updated_at, deleted_at`

// FindActive 返回未软删除的用户。
func (r *UsersRepository) FindActive(ctx context.Context, sess txmanager.Session, userID uuid.UUID) (*po.User, error) {
	var user *po.User
	err := r.run(ctx, sess, "users.find_active", func(ctx context.Context, q dbtx) error {
		row := q.QueryRow(ctx, `SELECT `+userColumns+` FROM engagement.users
WHERE id = $1 AND deleted_at IS NULL`, userID)
		var err error
		user, err = scanUser(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// FindActiveByHandles 按 handle（大小写不敏感）批量解析未删除的用户，未命中的 handle 被忽略。
func (r *UsersRepository) FindActiveByHandles(ctx context.Context, sess txmanager.Session, handles []string) ([]*po.User, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	lowered := make([]string, 0, len(handles))
	for _, h := range handles {
		lowered = append(lowered, strings.ToLower(h))
	}
	var users []*po.User
	err := r.run(ctx, sess, "users.find_by_handles", func(ctx context.Context, q dbtx) error {
		rows, err := q.Query(ctx, `SELECT `+userColumns+` FROM engagement.users
WHERE lower(handle) = ANY($1) AND deleted_at IS NULL`, lowered)
		if err != nil {
			return err
		}
		defer rows.Close()
		users = users[:0]
		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return err
			}
			users = append(users, user)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("find users by handle: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*po.User, error) {
	var user po.User
	if err := row.Scan(&user.ID, &user.Handle, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

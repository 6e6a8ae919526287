package repositories

import (
	"context"
	"errors"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx 是连接池与事务共同满足的最小查询接口。
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var (
	_ dbtx = (*pgxpool.Pool)(nil)
	_ dbtx = (pgx.Tx)(nil)
)

// store 聚合仓储共享的连接池与调用保护。
type store struct {
	db    *pgxpool.Pool
	guard *storecall.Guard
}

func (s store) q(sess txmanager.Session) dbtx {
	if sess != nil {
		return sess.Tx()
	}
	return s.db
}

// run 在事务外通过 Guard 执行；事务内的语句失败后事务已中止，由事务调用方整体处理。
func (s store) run(ctx context.Context, sess txmanager.Session, op string, fn func(ctx context.Context, q dbtx) error) error {
	q := s.q(sess)
	if sess != nil {
		return fn(ctx, q)
	}
	return s.guard.Do(ctx, op, func(ctx context.Context) error {
		return fn(ctx, q)
	})
}

// IsUniqueViolation 判断错误是否为唯一约束冲突。
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation 判断错误是否为外键约束失败，返回约束名。
func IsForeignKeyViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsIntegrityViolation 判断错误是否属于 23 类完整性约束错误（非空、CHECK、排他等）。
func IsIntegrityViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23"
}

// 仓储层哨兵错误。
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrVideoNotFound   = errors.New("video not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrLikeNotFound    = errors.New("like not found")
)

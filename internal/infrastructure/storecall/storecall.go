// Package storecall 为所有数据库调用提供统一的调用点保护：
// 每次尝试绑定超时、瞬时错误重试一次、连续失败时熔断快速失败。
// 最终失败以 DependencyError（kratos ServiceUnavailable）形式返回给调用方。
package storecall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker/v2"
)

// ReasonDependencyUnavailable 是 DependencyError 的错误原因。
const ReasonDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"

const (
	defaultTimeout         = 2 * time.Second
	defaultRetries         = 1
	defaultBreakerRequests = 20
	defaultFailureRatio    = 0.5
	defaultOpenTimeout     = 10 * time.Second
	defaultBreakerInterval = time.Minute
)

// Config 控制调用点保护策略。
type Config struct {
	Timeout time.Duration
	Retries int
	Breaker BreakerConfig
}

// BreakerConfig 控制熔断器行为。
type BreakerConfig struct {
	Enabled      bool
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	OpenTimeout  time.Duration
}

// Guard 包装数据库调用。nil Guard 直接执行调用，便于测试。
type Guard struct {
	timeout time.Duration
	retries uint64
	cb      *gobreaker.CircuitBreaker[struct{}]
	log     *log.Helper
}

// NewGuard 构造调用点保护器，零值配置会回退到默认值。
func NewGuard(cfg Config, logger log.Logger) *Guard {
	cfg = cfg.normalize()
	helper := log.NewHelper(logger)
	g := &Guard{
		timeout: cfg.Timeout,
		retries: uint64(cfg.Retries),
		log:     helper,
	}
	if cfg.Breaker.Enabled {
		minRequests := cfg.Breaker.MinRequests
		ratio := cfg.Breaker.FailureRatio
		g.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "postgres",
			MaxRequests: 1,
			Interval:    cfg.Breaker.Interval,
			Timeout:     cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < minRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				helper.Warnf("circuit breaker %s: %s -> %s", name, from, to)
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !IsTransient(err)
			},
		})
	}
	return g
}

func (c Config) normalize() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Retries < 0 {
		c.Retries = 0
	} else if c.Retries == 0 {
		c.Retries = defaultRetries
	}
	if c.Breaker.MinRequests == 0 {
		c.Breaker.MinRequests = defaultBreakerRequests
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		c.Breaker.FailureRatio = defaultFailureRatio
	}
	if c.Breaker.Interval <= 0 {
		c.Breaker.Interval = defaultBreakerInterval
	}
	if c.Breaker.OpenTimeout <= 0 {
		c.Breaker.OpenTimeout = defaultOpenTimeout
	}
	return c
}

// Do 执行一次受保护的调用。
// 非瞬时错误（如 pgx.ErrNoRows、唯一约束冲突）原样返回；瞬时错误在重试耗尽后包装为 DependencyError。
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}
	return g.do(ctx, op, g.retries, fn)
}

// Once 与 Do 相同但不重试，用于重放可能产生重复写入的批量操作。
func (g *Guard) Once(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}
	return g.do(ctx, op, 0, fn)
}

func (g *Guard) do(ctx context.Context, op string, retries uint64, fn func(ctx context.Context) error) error {
	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, retries), ctx)
	err := backoff.Retry(func() error {
		attempt++
		err := g.execute(ctx, fn)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		case IsTransient(err):
			if uint64(attempt) <= retries {
				g.log.WithContext(ctx).Warnf("store call retrying: op=%s attempt=%d err=%v", op, attempt, err)
			}
			return err
		default:
			return backoff.Permanent(err)
		}
	}, policy)
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
		IsTransient(err) || ctx.Err() != nil {
		g.log.WithContext(ctx).Errorf("store call failed: op=%s attempts=%d err=%v", op, attempt, err)
		return Unavailable(op, err)
	}
	return err
}

func (g *Guard) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	call := func() (struct{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return struct{}{}, fn(callCtx)
	}
	if g.cb == nil {
		_, err := call()
		return err
	}
	_, err := g.cb.Execute(call)
	return err
}

// Query 执行带返回值的受保护调用。
func Query[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := g.Do(ctx, op, func(ctx context.Context) error {
		value, err := fn(ctx)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	return result, err
}

// Unavailable 构造 DependencyError。
func Unavailable(op string, cause error) error {
	return kerrors.ServiceUnavailable(ReasonDependencyUnavailable, fmt.Sprintf("%s: storage unavailable", op)).WithCause(cause)
}

// IsUnavailable 判断错误是否为 DependencyError。
func IsUnavailable(err error) bool {
	return kerrors.Reason(err) == ReasonDependencyUnavailable
}

// IsTransient 判断错误是否值得在调用点重试。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "53300", "57P01", "57P02", "57P03":
			return true
		}
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}
	return false
}

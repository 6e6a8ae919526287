// Package maintenance 提供计数漂移修复与过期通知清理的周期任务。
// Runner 既可作为服务进程内的后台 worker，也可由 cmd/tasks/maintenance 单独执行一次。
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	defaultReconcileInterval = 10 * time.Minute
	defaultReconcileBatch    = 500
	defaultPurgeInterval     = time.Hour
	defaultPurgeBatch        = 1000
	defaultMaxPurgeRounds    = 20
)

// Config 控制维护任务的节奏与批量。
type Config struct {
	Enabled           bool
	ReconcileInterval time.Duration
	ReconcileBatch    int32
	PurgeInterval     time.Duration
	PurgeBatch        int32
	MaxPurgeRounds    int
}

// Normalize 填充缺省值。
func (c Config) Normalize() Config {
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = defaultReconcileInterval
	}
	if c.ReconcileBatch <= 0 {
		c.ReconcileBatch = defaultReconcileBatch
	}
	if c.PurgeInterval <= 0 {
		c.PurgeInterval = defaultPurgeInterval
	}
	if c.PurgeBatch <= 0 {
		c.PurgeBatch = defaultPurgeBatch
	}
	if c.MaxPurgeRounds <= 0 {
		c.MaxPurgeRounds = defaultMaxPurgeRounds
	}
	return c
}

// Result 汇总一轮维护的结果。
type Result struct {
	Drift  services.DriftReport
	Purged int64
}

// Runner 周期性执行计数漂移修复与过期通知清理。
type Runner struct {
	reconciler services.Reconciler
	purger     services.NotificationPurger
	cfg        Config
	log        *log.Helper
	metrics    *metrics
}

// RunnerParams 注入 Runner 所需依赖。
type RunnerParams struct {
	Reconciler services.Reconciler
	Purger     services.NotificationPurger
	Config     Config
	Logger     log.Logger
}

// NewRunner 构造维护 Runner。
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Reconciler == nil {
		return nil, fmt.Errorf("maintenance: reconciler is required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("maintenance: purger is required")
	}
	logger := params.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Runner{
		reconciler: params.Reconciler,
		purger:     params.Purger,
		cfg:        params.Config.Normalize(),
		log:        log.NewHelper(log.With(logger, "component", "maintenance")),
		metrics:    newMetrics(),
	}, nil
}

// Run 启动后立即执行一轮，随后按各自间隔循环，直到 ctx 取消。
func (r *Runner) Run(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.reconcile(ctx)
	r.purge(ctx)

	reconcileTicker := time.NewTicker(r.cfg.ReconcileInterval)
	defer reconcileTicker.Stop()
	purgeTicker := time.NewTicker(r.cfg.PurgeInterval)
	defer purgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconcileTicker.C:
			r.reconcile(ctx)
		case <-purgeTicker.C:
			r.purge(ctx)
		}
	}
}

// RunOnce 顺序执行一轮漂移修复与通知清理，任一步失败都会返回聚合错误。
func (r *Runner) RunOnce(ctx context.Context) (Result, error) {
	if r == nil {
		return Result{}, nil
	}
	var result Result
	drift, reconcileErr := r.reconcile(ctx)
	result.Drift = drift
	purged, purgeErr := r.purge(ctx)
	result.Purged = purged
	return result, errors.Join(reconcileErr, purgeErr)
}

func (r *Runner) reconcile(ctx context.Context) (services.DriftReport, error) {
	started := time.Now()
	report, err := r.reconciler.ReconcileDrifted(ctx, r.cfg.ReconcileBatch)
	r.metrics.recordRun(ctx, jobReconcile, time.Since(started), err)
	if err != nil {
		r.log.WithContext(ctx).Warnf("reconcile drifted counters failed: %v", err)
		return report, err
	}
	r.metrics.recordItems(ctx, jobReconcile, int64(report.Repaired))
	if report.Repaired > 0 || report.Failed > 0 {
		r.log.WithContext(ctx).Infow(
			"msg", "reconciled drifted counters",
			"scanned", report.Scanned,
			"repaired", report.Repaired,
			"failed", report.Failed,
		)
	}
	return report, nil
}

// purge 分批删除过期通知，单轮最多执行 MaxPurgeRounds 批。
func (r *Runner) purge(ctx context.Context) (int64, error) {
	started := time.Now()
	var total int64
	var err error
	for round := 0; round < r.cfg.MaxPurgeRounds; round++ {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		var removed int64
		removed, err = r.purger.PurgeExpired(ctx, r.cfg.PurgeBatch)
		if err != nil {
			break
		}
		total += removed
		if removed < int64(r.cfg.PurgeBatch) {
			break
		}
	}
	r.metrics.recordRun(ctx, jobPurge, time.Since(started), err)
	r.metrics.recordItems(ctx, jobPurge, total)
	if err != nil {
		r.log.WithContext(ctx).Warnf("purge expired notifications failed after %d removed: %v", total, err)
		return total, err
	}
	if total > 0 {
		r.log.WithContext(ctx).Infof("purged %d expired notifications", total)
	}
	return total, nil
}

package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/semaphore"
)

// Dispatcher 以 fire-and-forget 方式执行次要副作用（通知、频道计数、日统计）。
//
// 任务运行在脱离请求取消的 context 上，并带独立超时；失败与 panic 只记录日志，
// 不会回传给主流程。并发上限由信号量控制，满载时新任务直接丢弃。
type Dispatcher struct {
	sem      *semaphore.Weighted
	workers  int
	inFlight atomic.Int64
	timeout  time.Duration
	log      *log.Helper
	metrics  *engagementMetrics

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher 构造 Dispatcher。
func NewDispatcher(cfg DispatcherConfig, logger log.Logger) *Dispatcher {
	cfg = cfg.Normalize()
	return &Dispatcher{
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		log:     log.NewHelper(log.With(logger, "component", "dispatcher")),
		metrics: newEngagementMetrics("dispatcher"),
	}
}

// Go 异步执行 fn。ctx 仅用于继承 trace 等值，取消信号不会传播。
func (d *Dispatcher) Go(ctx context.Context, effect string, fn func(ctx context.Context) error) {
	if d == nil || fn == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.WithContext(ctx).Warnf("dispatcher closed, drop effect=%s", effect)
		d.metrics.recordSideEffect(ctx, effect, outcomeDropped, time.Time{})
		return
	}
	if !d.sem.TryAcquire(1) {
		d.mu.Unlock()
		d.log.WithContext(ctx).Warnf("dispatcher saturated, drop effect=%s", effect)
		d.metrics.recordSideEffect(ctx, effect, outcomeDropped, time.Time{})
		return
	}
	d.wg.Add(1)
	d.inFlight.Add(1)
	d.mu.Unlock()

	base := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		defer d.inFlight.Add(-1)

		runCtx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()
		started := time.Now()

		defer func() {
			if r := recover(); r != nil {
				d.log.WithContext(runCtx).Errorf("side effect panicked: effect=%s panic=%v", effect, r)
				d.metrics.recordSideEffect(runCtx, effect, outcomePanicked, started)
			}
		}()

		if err := fn(runCtx); err != nil {
			d.log.WithContext(runCtx).Warnf("side effect failed: effect=%s err=%v", effect, err)
			d.metrics.recordSideEffect(runCtx, effect, outcomeFailed, started)
			return
		}
		d.metrics.recordSideEffect(runCtx, effect, outcomeOK, started)
	}()
}

// InFlight 返回正在执行的任务数。
func (d *Dispatcher) InFlight() int64 {
	if d == nil {
		return 0
	}
	return d.inFlight.Load()
}

// Capacity 返回并发上限。
func (d *Dispatcher) Capacity() int {
	if d == nil {
		return 0
	}
	return d.workers
}

// Wait 阻塞直到所有已派发任务结束。
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// Close 拒绝新任务并等待在途任务结束，ctx 到期时提前返回。
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

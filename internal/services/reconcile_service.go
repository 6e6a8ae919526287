package services

import (
	"context"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// 单轮漂移扫描的默认上限。
const defaultDriftLimit = 500

// DriftReport 汇总一轮漂移修复的结果。
type DriftReport struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

func (r *DriftReport) add(other DriftReport) {
	r.Scanned += other.Scanned
	r.Repaired += other.Repaired
	r.Failed += other.Failed
}

// CounterReconciler 从账本重算派生计数，可单独调用用于修复漂移。
type CounterReconciler struct {
	targets  *TargetRegistry
	channels ChannelsRepo
	log      *log.Helper
	metrics  *engagementMetrics
}

// NewCounterReconciler 构造 CounterReconciler。
func NewCounterReconciler(targets *TargetRegistry, channels ChannelsRepo, logger log.Logger) *CounterReconciler {
	return &CounterReconciler{
		targets:  targets,
		channels: channels,
		log:      log.NewHelper(logger),
		metrics:  newEngagementMetrics("reconciler"),
	}
}

// Reconcile 以单条语句统计账本中目标的点赞/点踩数并覆盖写回目标实体。
// 重复调用结果相同；账本与计数之间的任何漂移都会被修正。
func (r *CounterReconciler) Reconcile(ctx context.Context, targetType po.TargetType, targetID uuid.UUID) (vo.CounterSnapshot, error) {
	if targetID == uuid.Nil {
		return vo.CounterSnapshot{}, ValidationError("target_id is required")
	}
	target, err := r.targets.Lookup(targetType)
	if err != nil {
		return vo.CounterSnapshot{}, err
	}
	tally, err := target.ReconcileLikes(ctx, targetID)
	if err != nil {
		r.metrics.recordReconcile(ctx, string(targetType), outcomeFailed)
		return vo.CounterSnapshot{}, translate("reconcile.likes", err)
	}
	r.metrics.recordReconcile(ctx, string(targetType), outcomeOK)
	return vo.CounterSnapshot{Likes: tally.Likes, Dislikes: tally.Dislikes}, nil
}

// ReconcileChannelSubscribers 以订阅账本重算频道订阅数。
func (r *CounterReconciler) ReconcileChannelSubscribers(ctx context.Context, channelID uuid.UUID) (int64, error) {
	if channelID == uuid.Nil {
		return 0, ValidationError("channel_id is required")
	}
	subscribers, err := r.channels.ReconcileSubscribers(ctx, nil, channelID)
	if err != nil {
		r.metrics.recordReconcile(ctx, "channel", outcomeFailed)
		return 0, translate("reconcile.subscribers", err)
	}
	r.metrics.recordReconcile(ctx, "channel", outcomeOK)
	return subscribers, nil
}

// ReconcileDrifted 扫描计数与账本不一致的实体并逐个修复。
// 单个实体修复失败只计入报告；扫描查询本身失败时返回错误。
func (r *CounterReconciler) ReconcileDrifted(ctx context.Context, limit int32) (DriftReport, error) {
	if limit <= 0 {
		limit = defaultDriftLimit
	}
	var report DriftReport
	for _, target := range r.targets.Targets() {
		ids, err := target.ListDrifted(ctx, limit)
		if err != nil {
			return report, translate("reconcile.list_drift", err)
		}
		report.add(r.repairAll(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
			_, err := r.Reconcile(ctx, target.Type(), id)
			return err
		}))
	}

	channelIDs, err := r.channels.ListSubscriberDrift(ctx, nil, limit)
	if err != nil {
		return report, translate("reconcile.list_subscriber_drift", err)
	}
	report.add(r.repairAll(ctx, channelIDs, func(ctx context.Context, id uuid.UUID) error {
		_, err := r.ReconcileChannelSubscribers(ctx, id)
		return err
	}))

	if report.Scanned > 0 {
		r.log.WithContext(ctx).Infof("drift reconciled: scanned=%d repaired=%d failed=%d", report.Scanned, report.Repaired, report.Failed)
	}
	return report, nil
}

func (r *CounterReconciler) repairAll(ctx context.Context, ids []uuid.UUID, repair func(context.Context, uuid.UUID) error) DriftReport {
	report := DriftReport{Scanned: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			report.Failed += len(ids) - report.Repaired - report.Failed
			break
		}
		if err := repair(ctx, id); err != nil {
			report.Failed++
			r.log.WithContext(ctx).Warnf("reconcile drifted entity failed: id=%s err=%v", id, err)
			continue
		}
		report.Repaired++
	}
	return report
}

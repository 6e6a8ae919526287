package services

import (
	"context"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// StatsBumper 是日统计累加的抽象，编排层通过它写入分析桶。
type StatsBumper interface {
	Bump(ctx context.Context, channelID uuid.UUID, at time.Time, delta repositories.StatsDelta) (*po.ChannelDailyStats, error)
}

// AnalyticsRollup 维护频道按 UTC 自然日聚合的统计桶。
type AnalyticsRollup struct {
	stats   DailyStatsRepo
	maxSpan time.Duration
	log     *log.Helper
}

var _ StatsBumper = (*AnalyticsRollup)(nil)

// NewAnalyticsRollup 构造 AnalyticsRollup。
func NewAnalyticsRollup(stats DailyStatsRepo, logger log.Logger) *AnalyticsRollup {
	return &AnalyticsRollup{
		stats:   stats,
		maxSpan: DefaultAnalyticsMaxSpan,
		log:     log.NewHelper(logger),
	}
}

// TruncateDay 返回 t 所在 UTC 自然日的零点。
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Bump 将增量累加到 (channel, day) 桶，桶不存在时创建；各计数下限为 0。
func (a *AnalyticsRollup) Bump(ctx context.Context, channelID uuid.UUID, at time.Time, delta repositories.StatsDelta) (*po.ChannelDailyStats, error) {
	if channelID == uuid.Nil {
		return nil, ValidationError("channel_id is required")
	}
	if at.IsZero() {
		at = time.Now()
	}
	bucket, err := a.stats.Bump(ctx, nil, channelID, TruncateDay(at), delta)
	if err != nil {
		return nil, translate("channel_daily_stats.bump", err)
	}
	return bucket, nil
}

// Range 返回 [from, to] 闭区间内（按 UTC 日）存在的统计桶，按日期升序。
func (a *AnalyticsRollup) Range(ctx context.Context, channelID uuid.UUID, from, to time.Time) ([]*po.ChannelDailyStats, error) {
	if channelID == uuid.Nil {
		return nil, ValidationError("channel_id is required")
	}
	from, to = TruncateDay(from), TruncateDay(to)
	if to.Before(from) {
		return nil, ValidationError("range end precedes start")
	}
	if to.Sub(from) > a.maxSpan {
		return nil, ValidationError("range exceeds %d days", int(a.maxSpan/(24*time.Hour)))
	}
	items, err := a.stats.Range(ctx, nil, channelID, from, to)
	if err != nil {
		return nil, translate("channel_daily_stats.range", err)
	}
	return items, nil
}

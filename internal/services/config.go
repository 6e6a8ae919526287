package services

import "time"

// 默认值
const (
	DefaultDedupWindow      = 60 * time.Second
	DefaultNotificationTTL  = 30 * 24 * time.Hour
	DefaultFanoutBatchSize  = 500
	DefaultMentionLimit     = 20
	DefaultDispatchWorkers  = 64
	DefaultDispatchTimeout  = 10 * time.Second
	DefaultAnalyticsMaxSpan = 366 * 24 * time.Hour
)

// DefaultMilestones 是订阅数与播放数的里程碑阈值。
var DefaultMilestones = []int64{100, 1_000, 10_000, 100_000, 1_000_000}

// Config 汇总互动核心的业务参数，由 configloader 从配置文件转换而来。
type Config struct {
	DedupWindow     time.Duration
	NotificationTTL time.Duration
	FanoutBatchSize int
	MentionLimit    int
	Milestones      []int64
}

// Normalize 填充缺省值。
func (c Config) Normalize() Config {
	if c.DedupWindow <= 0 {
		c.DedupWindow = DefaultDedupWindow
	}
	if c.NotificationTTL <= 0 {
		c.NotificationTTL = DefaultNotificationTTL
	}
	if c.FanoutBatchSize <= 0 {
		c.FanoutBatchSize = DefaultFanoutBatchSize
	}
	if c.MentionLimit <= 0 {
		c.MentionLimit = DefaultMentionLimit
	}
	if len(c.Milestones) == 0 {
		c.Milestones = append([]int64(nil), DefaultMilestones...)
	}
	return c
}

// DispatcherConfig 控制次要副作用的异步执行。
type DispatcherConfig struct {
	Workers int
	Timeout time.Duration
}

// Normalize 填充缺省值。
func (c DispatcherConfig) Normalize() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = DefaultDispatchWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultDispatchTimeout
	}
	return c
}

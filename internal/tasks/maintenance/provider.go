package maintenance

import (
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	"github.com/go-kratos/kratos/v2/log"
)

// ProvideRunner 装配维护 Runner，未启用时返回 nil。
func ProvideRunner(
	reconciler services.Reconciler,
	purger services.NotificationPurger,
	cfg Config,
	logger log.Logger,
) *Runner {
	if !cfg.Enabled {
		return nil
	}
	runner, err := NewRunner(RunnerParams{
		Reconciler: reconciler,
		Purger:     purger,
		Config:     cfg,
		Logger:     logger,
	})
	if err != nil {
		log.NewHelper(logger).Errorw("msg", "init maintenance runner failed", "error", err)
		return nil
	}
	return runner
}

// ProvideStandaloneRunner 供独立任务进程使用，忽略 Enabled 开关。
func ProvideStandaloneRunner(
	reconciler services.Reconciler,
	purger services.NotificationPurger,
	cfg Config,
	logger log.Logger,
) (*Runner, error) {
	return NewRunner(RunnerParams{
		Reconciler: reconciler,
		Purger:     purger,
		Config:     cfg,
		Logger:     logger,
	})
}

// Package main 提供维护任务的独立进程入口：计数漂移修复与过期通知清理。
// 默认常驻运行，-once 只执行一轮后退出，适合 Cloud Run Job 或 cron。
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	configloader "github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-engagement/internal/tasks/maintenance"

	"github.com/go-kratos/kratos/v2/log"
)

type maintenanceTaskApp struct {
	Runner *maintenance.Runner
	Logger log.Logger
}

func main() {
	ctx := context.Background()

	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	onceFlag := flag.Bool("once", false, "run a single maintenance pass and exit")
	flag.Parse()

	params := configloader.Params{ConfPath: *confFlag}
	app, cleanup, err := wireMaintenanceTask(ctx, params)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	logger := app.Logger
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}
	helper := log.NewHelper(logger)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *onceFlag {
		result, err := app.Runner.RunOnce(runCtx)
		helper.Infow(
			"msg", "maintenance pass finished",
			"scanned", result.Drift.Scanned,
			"repaired", result.Drift.Repaired,
			"failed", result.Drift.Failed,
			"purged", result.Purged,
		)
		if err != nil {
			helper.Errorf("maintenance pass failed: %v", err)
			stop()
			cleanup()
			os.Exit(1)
		}
		return
	}

	helper.Info("starting maintenance task")
	if err := app.Runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		helper.Errorf("maintenance runner stopped unexpectedly: %v", err)
		stop()
		cleanup()
		os.Exit(1)
	}
	helper.Info("maintenance task stopped")
}

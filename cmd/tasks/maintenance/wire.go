//go:build wireinject
// +build wireinject

// Package main 为维护任务 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"
	"fmt"

	configloader "github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"
	"github.com/bionicotaku/lingo-services-engagement/internal/tasks/maintenance"

	"github.com/bionicotaku/lingo-utils/gclog"
	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/bionicotaku/lingo-utils/pgxpoolx"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireMaintenanceTask(context.Context, configloader.Params) (*maintenanceTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		gclog.ProviderSet,
		obswire.ProviderSet,
		pgxpoolx.ProviderSet,
		txmanager.ProviderSet,
		storecall.NewGuard,
		repositories.ProviderSet,
		services.RepositoryBindings,
		services.ProviderSet,
		maintenance.ProvideStandaloneRunner,
		newMaintenanceTaskApp,
	))
}

func newMaintenanceTaskApp(_ *obswire.Component, logger log.Logger, runner *maintenance.Runner) (*maintenanceTaskApp, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	return &maintenanceTaskApp{
		Runner: runner,
		Logger: logger,
	}, nil
}

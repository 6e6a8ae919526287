// Package main 提供 Engagement HTTP 服务的启动入口。
// 负责加载配置、初始化依赖（通过 Wire）、启动 HTTP Server 与后台维护任务并优雅关闭。
package main

import (
	"context"
	"errors"
	"flag"
	"sync"

	configloader "github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"
	"github.com/bionicotaku/lingo-services-engagement/internal/tasks/maintenance"

	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs" // 自动设置 GOMAXPROCS 为容器 CPU 配额
)

// newApp 负责组装 Kratos 应用：注入观测组件、日志器、服务元信息、HTTP Server 与后台任务。
//
// 参数：
//   - obsCmp: 可观测性组件（Tracer/Meter Provider），Wire 自动管理生命周期
//   - logger: 结构化日志器（gclog），包含 trace_id/span_id 关联
//   - hs: 配置完整的 HTTP Server（已注册路由和中间件）
//   - meta: 服务元信息（Name/Version/Environment/InstanceID）
//   - runner: 维护任务，未启用时为 nil
//   - dispatcher: 副作用调度器，停止时等待在途任务结束
func newApp(
	_ *obswire.Component,
	logger log.Logger,
	hs *khttp.Server,
	meta configloader.ServiceInfo,
	runner *maintenance.Runner,
	dispatcher *services.Dispatcher,
) *kratos.App {
	options := []kratos.Option{
		kratos.ID(meta.InstanceID),
		kratos.Name(meta.Name),
		kratos.Version(meta.Version),
		kratos.Metadata(map[string]string{"environment": meta.Environment}),
		kratos.Logger(logger),
		kratos.Server(hs),
	}

	type worker struct {
		name string
		run  func(context.Context) error
	}

	var workers []worker
	if runner != nil {
		workers = append(workers, worker{name: "maintenance runner", run: runner.Run})
	}

	var (
		wg      sync.WaitGroup
		cancels []context.CancelFunc
	)
	helper := log.NewHelper(logger)

	options = append(options,
		kratos.BeforeStart(func(ctx context.Context) error {
			cancels = make([]context.CancelFunc, len(workers))
			for i := range workers {
				runCtx, cancel := context.WithCancel(ctx)
				cancels[i] = cancel
				wg.Add(1)
				worker := workers[i]
				go func() {
					defer wg.Done()
					if err := worker.run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
						helper.Warnf("%s stopped: %v", worker.name, err)
					}
				}()
			}
			return nil
		}),
		kratos.AfterStop(func(ctx context.Context) error {
			for _, cancel := range cancels {
				if cancel != nil {
					cancel()
				}
			}
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-ctx.Done():
			case <-done:
			}
			if err := dispatcher.Close(ctx); err != nil {
				helper.Warnf("dispatcher drain incomplete: %v", err)
			}
			return nil
		}),
	)

	return kratos.New(options...)
}

func main() {
	ctx := context.Background()

	// 1. 解析命令行参数：-conf 指定配置文件路径或目录
	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	flag.Parse()

	// 2. 构造配置加载参数
	params := configloader.Params{
		ConfPath: *confFlag,
	}

	// 3. 通过 Wire 装配所有依赖并创建 Kratos App，wireApp 由 wire_gen.go 生成
	app, cleanupApp, err := wireApp(ctx, params)
	if err != nil {
		panic(err)
	}
	defer cleanupApp()

	// 4. 启动应用并阻塞，直到收到停止信号（SIGINT/SIGTERM）
	if err := app.Run(); err != nil {
		panic(err)
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"orderflow/internal/config"
	"orderflow/internal/logger"
	"orderflow/internal/pipeline"
	"orderflow/internal/store/journal"
	"orderflow/internal/store/seed"
	"orderflow/internal/store/sqlite"
	"orderflow/internal/stream"
	streamhttp "orderflow/internal/transport/http/stream"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 接入与种子监听。
type App struct {
	cfg       *config.Config
	store     *sqlite.SqliteStore
	journal   *journal.Journal
	seeder    *seed.Loader
	watchSeed bool
	driver    *pipeline.Driver
	http      *streamhttp.Server
	closers   []func() error
	Summary   *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return NewAppBuilder(cfg, opts...).Build(context.Background())
}

// Run 启动 HTTP 服务与种子文件监听，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.http == nil {
		return fmt.Errorf("http server not configured (app.http_addr)")
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("stream http server error: %w", err)
		}
		return nil
	})
	if a.seeder != nil && a.watchSeed {
		group.Go(func() error {
			return a.seeder.Watch(ctx)
		})
	}
	logger.Infof("orderflow 已启动：venue=%s http=%s", a.driver.Venue(), a.http.Addr())
	return group.Wait()
}

// RunEvent 处理单个变更流事件，返回与 HTTP 接口一致的响应。
func (a *App) RunEvent(ctx context.Context, raw []byte) (streamhttp.EventResponse, error) {
	if a == nil || a.driver == nil {
		return streamhttp.EventResponse{State: "ERROR"}, fmt.Errorf("app not initialized")
	}
	batch, err := stream.Decode(raw)
	if err != nil {
		return streamhttp.EventResponse{State: "ERROR", Error: err.Error()}, err
	}
	res := a.driver.Run(ctx, batch)
	return streamhttp.NewEventResponse(batch, res), res.Err
}

// RunEventFile 读取事件文件并执行一次。
func (a *App) RunEventFile(ctx context.Context, path string) (streamhttp.EventResponse, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return streamhttp.EventResponse{State: "ERROR", Error: err.Error()}, fmt.Errorf("read event file: %w", err)
	}
	return a.RunEvent(ctx, raw)
}

// Driver 暴露批次驱动器（测试与回放用）。
func (a *App) Driver() *pipeline.Driver {
	if a == nil {
		return nil
	}
	return a.driver
}

// Journal 返回报告日志，未配置时为 nil。
func (a *App) Journal() *journal.Journal {
	if a == nil {
		return nil
	}
	return a.journal
}

// Close 逆序释放存储资源。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

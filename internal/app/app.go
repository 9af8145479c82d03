// Package app 负责装配各组件并驱动前台命令循环与后台保活任务。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trade-console/internal/alias"
	"trade-console/internal/config"
	"trade-console/internal/console"
	"trade-console/internal/engine"
	"trade-console/internal/journal"
	"trade-console/internal/keepalive"
	"trade-console/internal/log"
	"trade-console/internal/position"
	"trade-console/internal/registry"
	"trade-console/internal/session"
	"trade-console/internal/store"
)

// App 聚合应用生命周期内的全部组件。
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	console   *console.Console
	keepalive *keepalive.Scheduler

	keepaliveLogger *zap.Logger
}

// Option 定制 App 装配，目前用于测试替换输入输出。
type Option func(*options)

type options struct {
	in  io.Reader
	out io.Writer
}

// WithIO 替换命令行的输入输出流。
func WithIO(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		o.in = in
		o.out = out
	}
}

// New 按配置装配全部组件。任何一步失败都直接返回错误，不做部分启动。
func New(cfg *config.Config, logger *zap.Logger, db *store.Store, opts ...Option) (*App, error) {
	o := options{in: os.Stdin, out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	reg, err := registry.Build(cfg, logger)
	if err != nil {
		return nil, err
	}

	events, err := journal.NewService(db, logger)
	if err != nil {
		return nil, err
	}

	keepaliveLogger, err := log.NewKeepaliveLogger(cfg.Keepalive.LogFile)
	if err != nil {
		return nil, err
	}

	aliases, err := alias.LoadFile(cfg.Console.AliasFile, logger)
	if err != nil {
		return nil, fmt.Errorf("加载别名文件失败: %w", err)
	}

	sess := session.New(reg, cfg.Console.DefaultInstrument, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		console: console.New(
			sess,
			engine.New(logger),
			position.NewManager(logger),
			aliases,
			events,
			logger,
			o.in,
			o.out,
		),
		keepalive:       keepalive.NewScheduler(reg, cfg.Keepalive.Interval, keepaliveLogger, events),
		keepaliveLogger: keepaliveLogger,
	}, nil
}

// Run 并行运行命令循环与保活任务。命令循环退出（exit 或输入结束）
// 会取消保活任务；信号触发的上下文取消会同时终止两者。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易控制台启动",
		zap.String("environment", a.cfg.App.Environment),
		zap.Duration("keepalive_interval", a.cfg.Keepalive.Interval),
	)

	group, groupCtx := errgroup.WithContext(ctx)

	consoleCtx, stopConsole := context.WithCancel(groupCtx)
	group.Go(func() error {
		defer stopConsole()
		return a.console.Run(consoleCtx)
	})

	group.Go(func() error {
		err := a.keepalive.Run(consoleCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	a.logger.Info("交易控制台退出")
	return err
}

// Close 释放持有的资源。
func (a *App) Close() error {
	return a.keepaliveLogger.Sync()
}

// Package keepalive 周期性触达全部账户，保持网关会话与市场元数据的有效性。
package keepalive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trade-console/internal/registry"
)

// Journal 记录每次触达的结果，由事件日志实现。
type Journal interface {
	RecordSweep(ctx context.Context, client string, err error)
}

// Scheduler 在独立于前台命令循环的定时器上运行保活扫描。
type Scheduler struct {
	registry *registry.Registry
	interval time.Duration
	logger   *zap.Logger
	journal  Journal
}

// NewScheduler 创建保活调度器。logger 应指向专用的保活日志文件。
func NewScheduler(reg *registry.Registry, interval time.Duration, logger *zap.Logger, journal Journal) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Scheduler{
		registry: reg,
		interval: interval,
		logger:   logger,
		journal:  journal,
	}
}

// Run 立即执行一次扫描，之后按固定间隔循环，直到上下文取消。
func (s *Scheduler) Run(ctx context.Context) error {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("保活任务已停止")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep 触达每个直接注册的账户，再按分组成员关系逐个触达一遍，
// 与前台命令无关。单个账户失败只记录，不中断扫描。
func (s *Scheduler) Sweep(ctx context.Context) {
	s.logger.Info("开始对全部账户与分组执行后台保活")

	for _, client := range s.registry.Clients() {
		s.touch(ctx, client)
	}

	for _, group := range s.registry.Groups() {
		for _, client := range group.Members {
			s.logger.Info("保活分组成员", zap.String("group", group.Name), zap.String("client", client.Name))
			s.touch(ctx, client)
		}
	}

	s.logger.Info("后台保活完成", zap.Duration("next_in", s.interval))
}

func (s *Scheduler) touch(ctx context.Context, client *registry.Client) {
	s.logger.Info("保活账户", zap.String("client", client.Name))

	gw := client.Gateway()
	err := gw.LoadMarkets(ctx)
	if err == nil {
		_, err = gw.FetchBalance(ctx)
	}

	if err != nil {
		s.logger.Error("保活账户失败",
			zap.String("client", client.Name),
			zap.Error(err),
		)
	}
	if s.journal != nil {
		s.journal.RecordSweep(ctx, client.Name, err)
	}
}

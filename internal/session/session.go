// Package session 管理会话状态：当前标的与最近一次成功登录选中的目标集合。
package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"trade-console/internal/registry"
)

// Target 为目标集合中的一项：展示名与账户引用。
type Target struct {
	Name   string
	Client *registry.Client
}

// Result 为扇出操作中单个目标的执行结果。
type Result struct {
	Target  string
	Message string
	Err     error
}

// UnknownTargetError 表示登录目标既不是账户也不是分组。
type UnknownTargetError struct {
	Target string
	Known  []string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("未知目标 %q，可用的账户与分组: %s", e.Target, strings.Join(e.Known, ", "))
}

// Session 持有显式会话状态，替代散落的全局变量。
type Session struct {
	registry   *registry.Registry
	logger     *zap.Logger
	targets    []Target
	instrument string
}

// New 创建会话，初始无目标集合。
func New(reg *registry.Registry, defaultInstrument string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		registry:   reg,
		logger:     logger,
		instrument: defaultInstrument,
	}
}

// Instrument 返回当前选中的统一标的代码。
func (s *Session) Instrument() string {
	return s.instrument
}

// SetInstrument 切换标的，对后续命令立即生效。
func (s *Session) SetInstrument(code string) {
	s.instrument = strings.ToUpper(strings.TrimSpace(code))
}

// Targets 返回当前目标集合；未登录时为空。
func (s *Session) Targets() []Target {
	return s.targets
}

// HasTargets 报告是否已有有效登录。
func (s *Session) HasTargets() bool {
	return len(s.targets) > 0
}

// Resolve 把登录目标名解析为有序目标集合。
// 优先匹配分组（保留分组声明顺序，不去重），其次匹配单个账户。
// 解析失败不触碰既有会话状态。
func (s *Session) Resolve(name string) ([]Target, error) {
	if group, ok := s.registry.Group(name); ok {
		targets := make([]Target, 0, len(group.Members))
		for _, member := range group.Members {
			targets = append(targets, Target{Name: member.Name, Client: member})
		}
		return targets, nil
	}

	if client, ok := s.registry.Client(name); ok {
		return []Target{{Name: client.Name, Client: client}}, nil
	}

	return nil, &UnknownTargetError{Target: name, Known: s.registry.Names()}
}

// Login 解析目标并整体替换目标集合，随后对每个目标做一次
// 余额探测。探测失败逐目标记录，不中断其余目标，也不回滚登录。
func (s *Session) Login(ctx context.Context, name string) ([]Result, error) {
	targets, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}

	s.targets = targets
	s.logger.Info("登录成功",
		zap.String("target", name),
		zap.Int("clients", len(targets)),
	)

	results := make([]Result, 0, len(targets))
	for _, target := range targets {
		balances, err := target.Client.Gateway().FetchBalance(ctx)
		if err != nil {
			results = append(results, Result{Target: target.Name, Err: err})
			continue
		}
		free := balances["USDT"].Free
		results = append(results, Result{
			Target:  target.Name,
			Message: fmt.Sprintf("USDT 可用余额 %.4f", free),
		})
	}

	return results, nil
}

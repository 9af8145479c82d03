// Package registry 维护启动时装配的账户与分组，进程生命周期内只读。
package registry

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"trade-console/internal/config"
	"trade-console/internal/exchange"
)

// Client 表示一个已配置的交易所账户及其网关句柄。
type Client struct {
	Name    string
	Kind    exchange.Kind
	gateway exchange.Gateway
}

// NewClient 构造账户并为网关加上每账户互斥保护。
func NewClient(name string, kind exchange.Kind, gw exchange.Gateway) *Client {
	return &Client{
		Name:    name,
		Kind:    kind,
		gateway: newLockedGateway(gw),
	}
}

// Gateway 返回互斥保护后的网关句柄。
func (c *Client) Gateway() exchange.Gateway {
	return c.gateway
}

// Group 表示一个有序账户分组，成员为共享引用。
type Group struct {
	Name    string
	Members []*Client
}

// Registry 聚合全部账户与分组。
type Registry struct {
	clients     map[string]*Client
	clientNames []string
	groups      map[string]*Group
	groupNames  []string
}

// Build 根据配置构建 Registry，网关按交易所变体实例化。
func Build(cfg *config.Config, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		clients: make(map[string]*Client, len(cfg.Clients)),
		groups:  make(map[string]*Group, len(cfg.Groups)),
	}

	for name := range cfg.Clients {
		r.clientNames = append(r.clientNames, name)
	}
	sort.Strings(r.clientNames)

	retry := exchange.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		MinDelay:    cfg.Retry.MinDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}

	for _, name := range r.clientNames {
		clientCfg := cfg.Clients[name]
		kind := exchange.Kind(clientCfg.Exchange)
		gw, err := exchange.NewClient(kind, exchange.Credentials{
			APIKey:     clientCfg.APIKey,
			APISecret:  clientCfg.APISecret,
			APIPass:    clientCfg.APIPassword,
			UseSandbox: clientCfg.UseSandbox,
		}, retry, logger)
		if err != nil {
			return nil, fmt.Errorf("registry: 初始化账户 %q 失败: %w", name, err)
		}
		r.clients[name] = NewClient(name, kind, gw)
		logger.Info("账户已装配",
			zap.String("client", name),
			zap.String("exchange", string(kind)),
		)
	}

	for name := range cfg.Groups {
		r.groupNames = append(r.groupNames, name)
	}
	sort.Strings(r.groupNames)

	for _, name := range r.groupNames {
		memberNames := cfg.Groups[name]
		members := make([]*Client, 0, len(memberNames))
		for _, memberName := range memberNames {
			member, ok := r.clients[memberName]
			if !ok {
				return nil, fmt.Errorf("registry: 分组 %q 引用了未知账户 %q", name, memberName)
			}
			members = append(members, member)
		}
		r.groups[name] = &Group{Name: name, Members: members}
	}

	return r, nil
}

// NewFromClients 直接从账户与分组装配 Registry，测试用。
func NewFromClients(clients []*Client, groups []*Group) *Registry {
	r := &Registry{
		clients: make(map[string]*Client, len(clients)),
		groups:  make(map[string]*Group, len(groups)),
	}
	for _, c := range clients {
		r.clients[c.Name] = c
		r.clientNames = append(r.clientNames, c.Name)
	}
	for _, g := range groups {
		r.groups[g.Name] = g
		r.groupNames = append(r.groupNames, g.Name)
	}
	return r
}

// Client 按名称查找账户。
func (r *Registry) Client(name string) (*Client, bool) {
	c, ok := r.clients[name]
	return c, ok
}

// Group 按名称查找分组。
func (r *Registry) Group(name string) (*Group, bool) {
	g, ok := r.groups[name]
	return g, ok
}

// Clients 按名称顺序返回全部账户。
func (r *Registry) Clients() []*Client {
	clients := make([]*Client, 0, len(r.clientNames))
	for _, name := range r.clientNames {
		clients = append(clients, r.clients[name])
	}
	return clients
}

// Groups 按名称顺序返回全部分组。
func (r *Registry) Groups() []*Group {
	groups := make([]*Group, 0, len(r.groupNames))
	for _, name := range r.groupNames {
		groups = append(groups, r.groups[name])
	}
	return groups
}

// Names 返回账户与分组名称的并集，用于登录失败时的提示。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clientNames)+len(r.groupNames))
	names = append(names, r.clientNames...)
	names = append(names, r.groupNames...)
	return names
}

package registry

import (
	"context"
	"sync"

	"trade-console/internal/exchange"
)

// lockedGateway 为每个账户的网关调用提供互斥保护。
// ccxt 客户端未承诺并发安全，前台命令与后台保活会同时触达同一账户，
// 因此在构造上限制为同一时刻只有一个网关调用在途。
type lockedGateway struct {
	mu    sync.Mutex
	inner exchange.Gateway
}

func newLockedGateway(inner exchange.Gateway) exchange.Gateway {
	return &lockedGateway{inner: inner}
}

func (g *lockedGateway) LoadMarkets(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.LoadMarkets(ctx)
}

func (g *lockedGateway) FetchBalance(ctx context.Context) (exchange.Balances, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.FetchBalance(ctx)
}

func (g *lockedGateway) FetchPositions(ctx context.Context) ([]exchange.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.FetchPositions(ctx)
}

func (g *lockedGateway) FetchTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.FetchTicker(ctx, symbol)
}

func (g *lockedGateway) FetchOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.FetchOpenOrders(ctx, symbol)
}

func (g *lockedGateway) CancelOrder(ctx context.Context, id string, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.CancelOrder(ctx, id, symbol)
}

func (g *lockedGateway) CreateMarketOrder(ctx context.Context, symbol string, side string, amount float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.CreateMarketOrder(ctx, symbol, side, amount)
}

func (g *lockedGateway) CreateLimitOrder(ctx context.Context, symbol string, side string, amount float64, price float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.CreateLimitOrder(ctx, symbol, side, amount, price)
}

func (g *lockedGateway) CreateOrder(ctx context.Context, symbol string, orderType string, side string, amount float64, params map[string]interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.CreateOrder(ctx, symbol, orderType, side, amount, params)
}

func (g *lockedGateway) SetLeverage(ctx context.Context, leverage int, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.SetLeverage(ctx, leverage, symbol)
}

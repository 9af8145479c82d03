package exchange

import "context"

// Gateway 抽象单个账户的交易所能力集合。
// 所有实现必须可被前台命令与后台保活任务并发持有；
// 调用级别的互斥由 registry 的包装器保证。
type Gateway interface {
	LoadMarkets(ctx context.Context) error
	FetchBalance(ctx context.Context) (Balances, error)
	FetchPositions(ctx context.Context) ([]Position, error)
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	CancelOrder(ctx context.Context, id string, symbol string) error
	CreateMarketOrder(ctx context.Context, symbol string, side string, amount float64) error
	CreateLimitOrder(ctx context.Context, symbol string, side string, amount float64, price float64) error
	CreateOrder(ctx context.Context, symbol string, orderType string, side string, amount float64, params map[string]interface{}) error
	SetLeverage(ctx context.Context, leverage int, symbol string) error
}

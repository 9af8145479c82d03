package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"
)

// RetryPolicy 统一控制交易所调用的重试行为。
type RetryPolicy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// Credentials 描述单个账户的接入凭证。
type Credentials struct {
	APIKey     string
	APISecret  string
	APIPass    string
	UseSandbox bool
}

// ccxtExchange 覆盖本系统用到的 ccxt 能力子集，
// Binanceusdm 与 Okx 的生成代码都满足该接口。
type ccxtExchange interface {
	LoadMarkets(params ...interface{}) (map[string]ccxt.MarketInterface, error)
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
	FetchPositions(options ...ccxt.FetchPositionsOptions) ([]ccxt.Position, error)
	FetchTicker(symbol string, options ...ccxt.FetchTickerOptions) (ccxt.Ticker, error)
	FetchOpenOrders(options ...ccxt.FetchOpenOrdersOptions) ([]ccxt.Order, error)
	CancelOrder(id string, options ...ccxt.CancelOrderOptions) (ccxt.Order, error)
	CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error)
	CreateLimitOrder(symbol string, side string, amount float64, price float64, options ...ccxt.CreateLimitOrderOptions) (ccxt.Order, error)
	CreateOrder(symbol string, typeVar string, side string, amount float64, options ...ccxt.CreateOrderOptions) (ccxt.Order, error)
	SetLeverage(leverage int64, options ...ccxt.SetLeverageOptions) (map[string]interface{}, error)
}

// Client 基于 ccxt 实现 Gateway，并带重试机制。
type Client struct {
	kind     Kind
	retry    RetryPolicy
	logger   *zap.Logger
	exchange ccxtExchange
}

var _ Gateway = (*Client)(nil)

// NewClient 按交易所变体构造 ccxt 客户端。
func NewClient(kind Kind, creds Credentials, retry RetryPolicy, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		},
	}
	if creds.APIKey != "" {
		userConfig["apiKey"] = creds.APIKey
	}
	if creds.APISecret != "" {
		userConfig["secret"] = creds.APISecret
	}
	if creds.APIPass != "" {
		userConfig["password"] = creds.APIPass
	}

	var ex ccxtExchange
	switch kind {
	case KindOkx:
		okx := ccxt.NewOkx(userConfig)
		if creds.UseSandbox {
			okx.SetSandboxMode(true)
		}
		ex = okx
	case KindBinanceUSDM:
		binance := ccxt.NewBinanceusdm(userConfig)
		if creds.UseSandbox {
			binance.SetSandboxMode(true)
		}
		ex = binance
	default:
		return nil, fmt.Errorf("exchange: 不支持的交易所类型 %q", kind)
	}

	return &Client{
		kind:     kind,
		retry:    retry,
		logger:   logger,
		exchange: ex,
	}, nil
}

// Kind 返回交易所变体标签。
func (c *Client) Kind() Kind {
	return c.kind
}

// LoadMarkets 刷新市场元数据。
func (c *Client) LoadMarkets(ctx context.Context) error {
	err := c.callWithRetry(ctx, "load_markets", func() error {
		_, err := c.exchange.LoadMarkets()
		return err
	})
	return wrapGateway("load_markets", err)
}

// FetchBalance 获取账户余额。
func (c *Client) FetchBalance(ctx context.Context) (Balances, error) {
	var raw ccxt.Balances
	err := c.callWithRetry(ctx, "fetch_balance", func() error {
		result, err := c.exchange.FetchBalance()
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, wrapGateway("fetch_balance", err)
	}

	balances := make(Balances)
	for code, total := range raw.Total {
		if total == nil {
			continue
		}
		entry := balances[code]
		entry.Total = *total
		balances[code] = entry
	}
	for code, free := range raw.Free {
		if free == nil {
			continue
		}
		entry := balances[code]
		entry.Free = *free
		balances[code] = entry
	}
	return balances, nil
}

// FetchPositions 获取全部持仓记录。
func (c *Client) FetchPositions(ctx context.Context) ([]Position, error) {
	var raw []ccxt.Position
	err := c.callWithRetry(ctx, "fetch_positions", func() error {
		result, err := c.exchange.FetchPositions()
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, wrapGateway("fetch_positions", err)
	}

	positions := make([]Position, 0, len(raw))
	for _, rawPos := range raw {
		positions = append(positions, convertPosition(rawPos))
	}
	return positions, nil
}

// FetchTicker 获取最新成交价。
func (c *Client) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	var raw ccxt.Ticker
	err := c.callWithRetry(ctx, "fetch_ticker", func() error {
		result, err := c.exchange.FetchTicker(symbol)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return Ticker{}, wrapGateway("fetch_ticker", err)
	}

	return Ticker{
		Symbol: symbol,
		Last:   derefFloat(raw.Last),
	}, nil
}

// FetchOpenOrders 获取指定符号的全部未成交委托。
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	var raw []ccxt.Order
	err := c.callWithRetry(ctx, "fetch_open_orders", func() error {
		result, err := c.exchange.FetchOpenOrders(ccxt.WithFetchOpenOrdersSymbol(symbol))
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, wrapGateway("fetch_open_orders", err)
	}

	orders := make([]Order, 0, len(raw))
	for _, rawOrder := range raw {
		orders = append(orders, convertOrder(rawOrder))
	}
	return orders, nil
}

// CancelOrder 撤销指定委托。
func (c *Client) CancelOrder(ctx context.Context, id string, symbol string) error {
	err := c.callWithRetry(ctx, "cancel_order", func() error {
		_, err := c.exchange.CancelOrder(id, ccxt.WithCancelOrderSymbol(symbol))
		return err
	})
	return wrapGateway("cancel_order", err)
}

// CreateMarketOrder 提交市价单。
func (c *Client) CreateMarketOrder(ctx context.Context, symbol string, side string, amount float64) error {
	err := c.callWithRetry(ctx, "create_market_order", func() error {
		_, err := c.exchange.CreateMarketOrder(symbol, side, amount)
		return err
	})
	return wrapGateway("create_market_order", err)
}

// CreateLimitOrder 提交限价单。
func (c *Client) CreateLimitOrder(ctx context.Context, symbol string, side string, amount float64, price float64) error {
	err := c.callWithRetry(ctx, "create_limit_order", func() error {
		_, err := c.exchange.CreateLimitOrder(symbol, side, amount, price)
		return err
	})
	return wrapGateway("create_limit_order", err)
}

// CreateOrder 提交带附加参数的委托，用于止损等触发单。
func (c *Client) CreateOrder(ctx context.Context, symbol string, orderType string, side string, amount float64, params map[string]interface{}) error {
	err := c.callWithRetry(ctx, "create_order", func() error {
		var opts []ccxt.CreateOrderOptions
		if len(params) > 0 {
			opts = append(opts, ccxt.WithCreateOrderParams(params))
		}
		_, err := c.exchange.CreateOrder(symbol, orderType, side, amount, opts...)
		return err
	})
	return wrapGateway("create_order", err)
}

// SetLeverage 设置指定符号的杠杆倍数。
func (c *Client) SetLeverage(ctx context.Context, leverage int, symbol string) error {
	err := c.callWithRetry(ctx, "set_leverage", func() error {
		_, err := c.exchange.SetLeverage(int64(leverage), ccxt.WithSetLeverageSymbol(symbol))
		return err
	})
	return wrapGateway("set_leverage", err)
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := c.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := c.classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= maxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (c *Client) classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) && ccxtErr.Type == ccxt.OnMaintenanceErrType {
		message := strings.TrimSpace(ccxtErr.Message)
		if message == "" {
			message = "exchange under maintenance"
		}
		return fmt.Errorf("%w: %s", ErrMaintenance, message), false
	}

	if IsRetryable(err) {
		return err, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}

func convertPosition(rawPos ccxt.Position) Position {
	// 优先取交易所原始符号：ccxt 统一符号对线性合约带结算后缀
	// （BTC/USDT:USDT），原始符号才能直接用于后续下单与行情查询。
	symbol := derefString(rawPos.Symbol)
	if rawPos.Info != nil {
		if v, ok := rawPos.Info["symbol"].(string); ok && v != "" {
			symbol = v
		}
	}

	size := derefFloat(rawPos.Contracts)
	side := strings.ToLower(strings.TrimSpace(derefString(rawPos.Side)))

	// 优先取交易所原始的带符号数量（binance 的 positionAmt）。
	amount := size
	if side == "short" && amount > 0 {
		amount = -amount
	}
	if rawPos.Info != nil {
		if v, ok := rawPos.Info["positionAmt"]; ok {
			if parsed := parseNumeric(v); parsed != 0 {
				amount = parsed
			}
		}
	}

	if side == "" {
		if amount > 0 {
			side = "long"
		} else if amount < 0 {
			side = "short"
		}
	}

	return Position{
		Symbol:     symbol,
		Amount:     amount,
		EntryPrice: derefFloat(rawPos.EntryPrice),
		Side:       side,
	}
}

func convertOrder(rawOrder ccxt.Order) Order {
	trigger := derefFloat(rawOrder.TriggerPrice)
	if trigger == 0 && rawOrder.Info != nil {
		trigger = parseNumeric(rawOrder.Info["stopPrice"])
	}

	return Order{
		ID:           derefString(rawOrder.Id),
		Type:         strings.ToLower(derefString(rawOrder.Type)),
		Side:         strings.ToLower(derefString(rawOrder.Side)),
		Symbol:       derefString(rawOrder.Symbol),
		Amount:       derefFloat(rawOrder.Amount),
		Price:        derefFloat(rawOrder.Price),
		TriggerPrice: trigger,
	}
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func parseNumeric(value interface{}) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return v
	case *float64:
		if v != nil {
			return *v
		}
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return 0
}

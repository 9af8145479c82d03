// Package engine 把下单意图转换为逐目标的具体委托并提交。
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trade-console/internal/session"
	"trade-console/internal/symbol"
)

// Side 表示下单方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Intent 描述一次下单意图，按调用构造，不持久化。
type Intent struct {
	Side       Side
	Instrument string
	Amount     AmountSpec
	LimitPrice *float64
}

// Engine 对目标集合执行下单意图，逐目标失败隔离。
type Engine struct {
	logger *zap.Logger
}

// New 创建执行引擎。
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Execute 对每个目标独立计算数量并提交委托。
// 单个目标的失败只记入该目标的结果，不影响其余目标；
// 不提供跨账户的原子性与回滚，这是独立账户交易的既定语义。
func (e *Engine) Execute(ctx context.Context, targets []session.Target, intent Intent) []session.Result {
	results := make([]session.Result, 0, len(targets))

	for _, target := range targets {
		gw := target.Client.Gateway()
		sym := symbol.Normalize(intent.Instrument, target.Client.Kind)

		amount := intent.Amount.Value
		if intent.Amount.Percent {
			balances, err := gw.FetchBalance(ctx)
			if err != nil {
				results = append(results, session.Result{Target: target.Name, Err: err})
				continue
			}
			free := balances["USDT"].Free
			if free <= 0 {
				results = append(results, session.Result{
					Target: target.Name,
					Err:    fmt.Errorf("USDT 可用余额不足，无法按百分比下单 free=%.8f", free),
				})
				continue
			}
			ticker, err := gw.FetchTicker(ctx, sym)
			if err != nil {
				results = append(results, session.Result{Target: target.Name, Err: err})
				continue
			}
			if ticker.Last <= 0 {
				results = append(results, session.Result{
					Target: target.Name,
					Err:    fmt.Errorf("最新价无效 symbol=%s last=%.8f", sym, ticker.Last),
				})
				continue
			}
			amount = free * (intent.Amount.Value / 100) / ticker.Last
		}

		var err error
		var message string
		if intent.LimitPrice != nil {
			err = gw.CreateLimitOrder(ctx, sym, string(intent.Side), amount, *intent.LimitPrice)
			message = fmt.Sprintf("已提交 %s 限价单 %.6f %s @ %.2f", intent.Side, amount, sym, *intent.LimitPrice)
		} else {
			err = gw.CreateMarketOrder(ctx, sym, string(intent.Side), amount)
			message = fmt.Sprintf("已提交 %s 市价单 %.6f %s", intent.Side, amount, sym)
		}
		if err != nil {
			results = append(results, session.Result{Target: target.Name, Err: err})
			continue
		}

		e.logger.Info("委托已提交",
			zap.String("client", target.Name),
			zap.String("symbol", sym),
			zap.String("side", string(intent.Side)),
			zap.Float64("amount", amount),
		)
		results = append(results, session.Result{Target: target.Name, Message: message})
	}

	return results
}

// SetLeverage 对每个目标设置当前标的的杠杆倍数。
func (e *Engine) SetLeverage(ctx context.Context, targets []session.Target, leverage int, instrument string) []session.Result {
	results := make([]session.Result, 0, len(targets))

	for _, target := range targets {
		sym := symbol.Normalize(instrument, target.Client.Kind)
		if err := target.Client.Gateway().SetLeverage(ctx, leverage, sym); err != nil {
			results = append(results, session.Result{Target: target.Name, Err: err})
			continue
		}
		results = append(results, session.Result{
			Target:  target.Name,
			Message: fmt.Sprintf("杠杆已设为 %dx (%s)", leverage, sym),
		})
	}

	return results
}

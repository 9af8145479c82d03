// Package position 负责跨目标的持仓查询、平仓与止损。
package position

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"trade-console/internal/session"
	"trade-console/internal/symbol"
)

var (
	// ErrNoOpenPosition 表示当前标的没有可操作的持仓。
	ErrNoOpenPosition = errors.New("no open position")
	// ErrUnsupportedScope 表示平仓范围参数不是 current/all。
	ErrUnsupportedScope = errors.New("unsupported scope")
	// ErrInvalidPrice 表示止损价格无法解析。
	ErrInvalidPrice = errors.New("invalid price")
)

// 平仓范围。
const (
	ScopeCurrent = "current"
	ScopeAll     = "all"
)

// Manager 对目标集合执行持仓相关操作，逐目标失败隔离。
type Manager struct {
	logger *zap.Logger
}

// NewManager 创建持仓管理器。
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// List 列出每个目标的非零持仓及按最新价计算的浮动盈亏。
// 只读操作，不改变任何状态。
func (m *Manager) List(ctx context.Context, targets []session.Target) []session.Result {
	results := make([]session.Result, 0, len(targets))

	for _, target := range targets {
		gw := target.Client.Gateway()
		positions, err := gw.FetchPositions(ctx)
		if err != nil {
			results = append(results, session.Result{Target: target.Name, Err: err})
			continue
		}

		lines := make([]string, 0, len(positions))
		var lineErr error
		for _, pos := range positions {
			if pos.Amount == 0 {
				continue
			}

			side := "long"
			if pos.Amount < 0 {
				side = "short"
			}

			// 行情按网关返回的符号查询，展示用统一代码。
			ticker, err := gw.FetchTicker(ctx, pos.Symbol)
			if err != nil {
				lineErr = err
				break
			}

			pnl := (ticker.Last - pos.EntryPrice) * math.Abs(pos.Amount)
			if side == "short" {
				pnl = -pnl
			}

			lines = append(lines, fmt.Sprintf("%s %s 数量 %.4f 开仓价 %.2f 盈亏 $%.2f",
				side, symbol.Canonical(pos.Symbol), pos.Amount, pos.EntryPrice, pnl))
		}
		if lineErr != nil {
			results = append(results, session.Result{Target: target.Name, Err: lineErr})
			continue
		}

		if len(lines) == 0 {
			results = append(results, session.Result{Target: target.Name, Message: "无持仓"})
			continue
		}
		results = append(results, session.Result{Target: target.Name, Message: strings.Join(lines, "\n")})
	}

	return results
}

// Close 平仓。scope 为 current 时只平当前标的；为 all 时平掉该目标
// 的全部非零持仓。其他取值为用户输入错误，不产生任何网关调用。
func (m *Manager) Close(ctx context.Context, targets []session.Target, scope string, instrument string) ([]session.Result, error) {
	if scope != ScopeCurrent && scope != ScopeAll {
		return nil, fmt.Errorf("%w: %q（应为 current 或 all）", ErrUnsupportedScope, scope)
	}

	results := make([]session.Result, 0, len(targets))

	for _, target := range targets {
		gw := target.Client.Gateway()
		positions, err := gw.FetchPositions(ctx)
		if err != nil {
			results = append(results, session.Result{Target: target.Name, Err: err})
			continue
		}

		want := ""
		if scope == ScopeCurrent {
			want = symbol.Canonical(symbol.Normalize(instrument, target.Client.Kind))
		}

		closed := make([]string, 0, len(positions))
		var closeErr error
		for _, pos := range positions {
			if pos.Amount == 0 {
				continue
			}
			sym := symbol.Canonical(pos.Symbol)
			if scope == ScopeCurrent && sym != want {
				continue
			}

			side := "sell"
			if pos.Amount < 0 {
				side = "buy"
			}
			// 平当前标的用会话选择的符号；平全部时沿用网关返回的
			// 符号，统一代码不能直接下单。
			orderSymbol := pos.Symbol
			if scope == ScopeCurrent {
				orderSymbol = symbol.Normalize(instrument, target.Client.Kind)
			}

			if err := gw.CreateMarketOrder(ctx, orderSymbol, side, math.Abs(pos.Amount)); err != nil {
				closeErr = err
				break
			}
			closed = append(closed, sym)

			m.logger.Info("持仓已平",
				zap.String("client", target.Name),
				zap.String("symbol", sym),
				zap.String("side", side),
				zap.Float64("quantity", math.Abs(pos.Amount)),
			)
		}
		if closeErr != nil {
			results = append(results, session.Result{Target: target.Name, Err: closeErr})
			continue
		}

		if len(closed) == 0 {
			results = append(results, session.Result{Target: target.Name, Message: "无可平仓位"})
			continue
		}
		results = append(results, session.Result{
			Target:  target.Name,
			Message: fmt.Sprintf("已平仓: %s", strings.Join(closed, ", ")),
		})
	}

	return results, nil
}

// SetStop 为当前标的的持仓设置止损市价触发单。
// 价格不是数字时直接返回 ErrInvalidPrice，不触达网关。
func (m *Manager) SetStop(ctx context.Context, targets []session.Target, instrument string, priceToken string) ([]session.Result, error) {
	stopPrice, err := strconv.ParseFloat(strings.TrimSpace(priceToken), 64)
	if err != nil || stopPrice <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrice, priceToken)
	}

	results := make([]session.Result, 0, len(targets))

	for _, target := range targets {
		gw := target.Client.Gateway()
		sym := symbol.Normalize(instrument, target.Client.Kind)

		positions, err := gw.FetchPositions(ctx)
		if err != nil {
			results = append(results, session.Result{Target: target.Name, Err: err})
			continue
		}

		var held *struct {
			amount float64
		}
		for _, pos := range positions {
			if pos.Amount != 0 && symbol.Canonical(pos.Symbol) == symbol.Canonical(sym) {
				held = &struct{ amount float64 }{amount: pos.Amount}
				break
			}
		}
		if held == nil {
			results = append(results, session.Result{
				Target: target.Name,
				Err:    fmt.Errorf("%w: %s", ErrNoOpenPosition, sym),
			})
			continue
		}

		side := "sell"
		if held.amount < 0 {
			side = "buy"
		}
		quantity := math.Abs(held.amount)

		params := map[string]interface{}{"stopPrice": stopPrice}
		if err := gw.CreateOrder(ctx, sym, "market", side, quantity, params); err != nil {
			results = append(results, session.Result{Target: target.Name, Err: err})
			continue
		}

		results = append(results, session.Result{
			Target:  target.Name,
			Message: fmt.Sprintf("止损已设置 %s %s %.4f @ %.2f", sym, side, quantity, stopPrice),
		})
	}

	return results, nil
}

// Balances 列出每个目标的全部非零余额。
func (m *Manager) Balances(ctx context.Context, targets []session.Target) []session.Result {
	results := make([]session.Result, 0, len(targets))

	for _, target := range targets {
		balances, err := target.Client.Gateway().FetchBalance(ctx)
		if err != nil {
			results = append(results, session.Result{Target: target.Name, Err: err})
			continue
		}

		currencies := make([]string, 0, len(balances))
		for currency, balance := range balances {
			if balance.Total > 0 {
				currencies = append(currencies, currency)
			}
		}
		sort.Strings(currencies)

		lines := make([]string, 0, len(currencies))
		for _, currency := range currencies {
			lines = append(lines, fmt.Sprintf("%s 余额: %v", currency, balances[currency].Total))
		}
		if len(lines) == 0 {
			results = append(results, session.Result{Target: target.Name, Message: "无余额"})
			continue
		}
		results = append(results, session.Result{Target: target.Name, Message: strings.Join(lines, "\n")})
	}

	return results
}

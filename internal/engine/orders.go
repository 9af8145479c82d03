package engine

import (
	"context"
	"fmt"
	"strings"

	"trade-console/internal/session"
	"trade-console/internal/symbol"
)

// ListOpenOrders 列出每个目标在当前标的上的全部未成交委托。
func (e *Engine) ListOpenOrders(ctx context.Context, targets []session.Target, instrument string) []session.Result {
	results := make([]session.Result, 0, len(targets))

	for _, target := range targets {
		sym := symbol.Normalize(instrument, target.Client.Kind)
		orders, err := target.Client.Gateway().FetchOpenOrders(ctx, sym)
		if err != nil {
			results = append(results, session.Result{Target: target.Name, Err: err})
			continue
		}

		if len(orders) == 0 {
			results = append(results, session.Result{
				Target:  target.Name,
				Message: fmt.Sprintf("%s 无未成交委托", sym),
			})
			continue
		}

		lines := make([]string, 0, len(orders))
		for _, order := range orders {
			price := order.Price
			if order.Type != "limit" {
				price = order.TriggerPrice
			}
			lines = append(lines, fmt.Sprintf("%s %s %s 数量 %.4f 价格 %.2f",
				order.Type, order.Side, symbol.Canonical(order.Symbol), order.Amount, price))
		}
		results = append(results, session.Result{Target: target.Name, Message: strings.Join(lines, "\n")})
	}

	return results
}

// CancelOpenOrders 撤销每个目标在当前标的上的全部未成交委托，含止损触发单。
func (e *Engine) CancelOpenOrders(ctx context.Context, targets []session.Target, instrument string) []session.Result {
	results := make([]session.Result, 0, len(targets))

	for _, target := range targets {
		gw := target.Client.Gateway()
		sym := symbol.Normalize(instrument, target.Client.Kind)

		orders, err := gw.FetchOpenOrders(ctx, sym)
		if err != nil {
			results = append(results, session.Result{Target: target.Name, Err: err})
			continue
		}

		var cancelErr error
		cancelled := 0
		for _, order := range orders {
			if err := gw.CancelOrder(ctx, order.ID, sym); err != nil {
				cancelErr = err
				break
			}
			cancelled++
		}
		if cancelErr != nil {
			results = append(results, session.Result{Target: target.Name, Err: cancelErr})
			continue
		}

		results = append(results, session.Result{
			Target:  target.Name,
			Message: fmt.Sprintf("已撤销 %s 的全部未成交委托 (%d)", sym, cancelled),
		})
	}

	return results
}

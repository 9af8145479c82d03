package position

import (
	"context"
	"errors"
	"strings"
	"testing"

	"trade-console/internal/exchange"
	"trade-console/internal/registry"
	"trade-console/internal/session"
)

func TestClose_CurrentSubmitsSingleOppositeOrder(t *testing.T) {
	// 线性合约的统一符号带结算后缀，仍须命中会话标的。
	gw := &fakeGateway{
		positions: []exchange.Position{
			{Symbol: "BTC/USDT:USDT", Amount: 2, EntryPrice: 30000, Side: "long"},
			{Symbol: "ETH/USDT:USDT", Amount: 1, EntryPrice: 2000, Side: "long"},
		},
	}
	target := makeTarget("alpha", exchange.KindBinanceUSDM, gw)

	results, err := NewManager(nil).Close(context.Background(), []session.Target{target}, ScopeCurrent, "BTCUSDT")
	if err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected target error: %v", results[0].Err)
	}
	if len(gw.orders) != 1 {
		t.Fatalf("expected exactly 1 closing order, got %d", len(gw.orders))
	}
	order := gw.orders[0]
	if order.symbol != "BTCUSDT" || order.side != "sell" || order.amount != 2 {
		t.Errorf("unexpected closing order: %+v", order)
	}
}

func TestClose_AllClosesEverySymbolWithOppositeSides(t *testing.T) {
	gw := &fakeGateway{
		positions: []exchange.Position{
			{Symbol: "BTC/USDT:USDT", Amount: 2, EntryPrice: 30000, Side: "long"},
			{Symbol: "ETH/USDT:USDT", Amount: -3, EntryPrice: 2000, Side: "short"},
			{Symbol: "SOL/USDT:USDT", Amount: 0, EntryPrice: 100},
		},
	}
	target := makeTarget("alpha", exchange.KindBinanceUSDM, gw)

	results, err := NewManager(nil).Close(context.Background(), []session.Target{target}, ScopeAll, "BTCUSDT")
	if err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected target error: %v", results[0].Err)
	}
	if len(gw.orders) != 2 {
		t.Fatalf("expected 2 closing orders, got %d", len(gw.orders))
	}
	// 平全部沿用网关返回的符号下单。
	if gw.orders[0].symbol != "BTC/USDT:USDT" || gw.orders[0].side != "sell" || gw.orders[0].amount != 2 {
		t.Errorf("unexpected BTC closing order: %+v", gw.orders[0])
	}
	if gw.orders[1].symbol != "ETH/USDT:USDT" || gw.orders[1].side != "buy" || gw.orders[1].amount != 3 {
		t.Errorf("unexpected ETH closing order: %+v", gw.orders[1])
	}
}

func TestClose_UnsupportedScopeMakesNoGatewayCalls(t *testing.T) {
	gw := &fakeGateway{}
	target := makeTarget("alpha", exchange.KindBinanceUSDM, gw)

	_, err := NewManager(nil).Close(context.Background(), []session.Target{target}, "some", "BTCUSDT")
	if !errors.Is(err, ErrUnsupportedScope) {
		t.Fatalf("expected ErrUnsupportedScope, got %v", err)
	}
	if gw.calls != 0 {
		t.Errorf("expected zero gateway calls, got %d", gw.calls)
	}
}

func TestSetStop_NonNumericPriceMakesNoGatewayCalls(t *testing.T) {
	gw := &fakeGateway{}
	target := makeTarget("alpha", exchange.KindBinanceUSDM, gw)

	_, err := NewManager(nil).SetStop(context.Background(), []session.Target{target}, "BTCUSDT", "abc")
	if !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if gw.calls != 0 {
		t.Errorf("expected zero gateway calls, got %d", gw.calls)
	}
}

func TestSetStop_SubmitsTriggeredMarketOrder(t *testing.T) {
	gw := &fakeGateway{
		positions: []exchange.Position{
			{Symbol: "BTC/USDT:USDT", Amount: -1.5, EntryPrice: 30000, Side: "short"},
		},
	}
	target := makeTarget("alpha", exchange.KindOkx, gw)

	results, err := NewManager(nil).SetStop(context.Background(), []session.Target{target}, "BTCUSDT", "28000")
	if err != nil {
		t.Fatalf("SetStop returned error: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected target error: %v", results[0].Err)
	}
	if len(gw.orders) != 1 {
		t.Fatalf("expected 1 stop order, got %d", len(gw.orders))
	}
	order := gw.orders[0]
	if order.typ != "market" || order.side != "buy" || order.amount != 1.5 {
		t.Errorf("unexpected stop order: %+v", order)
	}
	if order.symbol != "BTC-USDT" {
		t.Errorf("okx target must receive hyphenated symbol, got %s", order.symbol)
	}
	if order.params["stopPrice"] != 28000.0 {
		t.Errorf("expected stopPrice param 28000, got %v", order.params)
	}
}

func TestSetStop_NoOpenPosition(t *testing.T) {
	gw := &fakeGateway{
		positions: []exchange.Position{
			{Symbol: "ETH/USDT", Amount: 1, EntryPrice: 2000, Side: "long"},
		},
	}
	target := makeTarget("alpha", exchange.KindBinanceUSDM, gw)

	results, err := NewManager(nil).SetStop(context.Background(), []session.Target{target}, "BTCUSDT", "28000")
	if err != nil {
		t.Fatalf("SetStop returned error: %v", err)
	}
	if !errors.Is(results[0].Err, ErrNoOpenPosition) {
		t.Fatalf("expected ErrNoOpenPosition, got %v", results[0].Err)
	}
	if len(gw.orders) != 0 {
		t.Errorf("expected no orders, got %d", len(gw.orders))
	}
}

func TestList_ComputesPnlWithShortNegation(t *testing.T) {
	gw := &fakeGateway{
		positions: []exchange.Position{
			{Symbol: "BTC/USDT:USDT", Amount: 2, EntryPrice: 30000, Side: "long"},
			{Symbol: "ETH/USDT:USDT", Amount: -4, EntryPrice: 2000, Side: "short"},
		},
		tickers: map[string]float64{"BTC/USDT:USDT": 31000, "ETH/USDT:USDT": 2100},
	}
	target := makeTarget("alpha", exchange.KindBinanceUSDM, gw)

	results := NewManager(nil).List(context.Background(), []session.Target{target})
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	// long: (31000-30000)*2 = +2000; short: -(2100-2000)*4 = -400
	if !strings.Contains(results[0].Message, "$2000.00") {
		t.Errorf("expected long pnl +2000 in message: %q", results[0].Message)
	}
	if !strings.Contains(results[0].Message, "$-400.00") {
		t.Errorf("expected short pnl -400 in message: %q", results[0].Message)
	}
}

func makeTarget(name string, kind exchange.Kind, gw exchange.Gateway) session.Target {
	client := registry.NewClient(name, kind, gw)
	return session.Target{Name: name, Client: client}
}

type placedOrder struct {
	typ    string
	symbol string
	side   string
	amount float64
	params map[string]interface{}
}

type fakeGateway struct {
	positions []exchange.Position
	tickers   map[string]float64

	orders []placedOrder
	calls  int
}

func (f *fakeGateway) LoadMarkets(ctx context.Context) error {
	f.calls++
	return nil
}

func (f *fakeGateway) FetchBalance(ctx context.Context) (exchange.Balances, error) {
	f.calls++
	return exchange.Balances{"USDT": {Free: 1000, Total: 1000}}, nil
}

func (f *fakeGateway) FetchPositions(ctx context.Context) ([]exchange.Position, error) {
	f.calls++
	return f.positions, nil
}

func (f *fakeGateway) FetchTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	f.calls++
	last := f.tickers[symbol]
	return exchange.Ticker{Symbol: symbol, Last: last}, nil
}

func (f *fakeGateway) FetchOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	f.calls++
	return nil, nil
}

func (f *fakeGateway) CancelOrder(ctx context.Context, id string, symbol string) error {
	f.calls++
	return nil
}

func (f *fakeGateway) CreateMarketOrder(ctx context.Context, symbol string, side string, amount float64) error {
	f.calls++
	f.orders = append(f.orders, placedOrder{typ: "market", symbol: symbol, side: side, amount: amount})
	return nil
}

func (f *fakeGateway) CreateLimitOrder(ctx context.Context, symbol string, side string, amount float64, price float64) error {
	f.calls++
	f.orders = append(f.orders, placedOrder{typ: "limit", symbol: symbol, side: side, amount: amount})
	return nil
}

func (f *fakeGateway) CreateOrder(ctx context.Context, symbol string, orderType string, side string, amount float64, params map[string]interface{}) error {
	f.calls++
	f.orders = append(f.orders, placedOrder{typ: orderType, symbol: symbol, side: side, amount: amount, params: params})
	return nil
}

func (f *fakeGateway) SetLeverage(ctx context.Context, leverage int, symbol string) error {
	f.calls++
	return nil
}

package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"trade-console/internal/exchange"
	"trade-console/internal/registry"
)

func TestLoginGroup_PreservesDeclaredOrder(t *testing.T) {
	alpha := registry.NewClient("alpha", exchange.KindBinanceUSDM, &fakeGateway{})
	beta := registry.NewClient("beta", exchange.KindOkx, &fakeGateway{})
	gamma := registry.NewClient("gamma", exchange.KindBinanceUSDM, &fakeGateway{})
	reg := registry.NewFromClients(
		[]*registry.Client{alpha, beta, gamma},
		[]*registry.Group{{Name: "copyfuture", Members: []*registry.Client{gamma, alpha}}},
	)

	sess := New(reg, "BTCUSDT", nil)
	results, err := sess.Login(context.Background(), "copyfuture")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	targets := sess.Targets()
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].Name != "gamma" || targets[1].Name != "alpha" {
		t.Fatalf("expected group declaration order [gamma alpha], got [%s %s]", targets[0].Name, targets[1].Name)
	}
	if len(results) != 2 {
		t.Fatalf("expected one balance probe per target, got %d", len(results))
	}
}

func TestLoginClient_SingleTarget(t *testing.T) {
	alpha := registry.NewClient("alpha", exchange.KindBinanceUSDM, &fakeGateway{
		balances: exchange.Balances{"USDT": {Free: 123.5, Total: 200}},
	})
	reg := registry.NewFromClients([]*registry.Client{alpha}, nil)

	sess := New(reg, "BTCUSDT", nil)
	results, err := sess.Login(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if len(sess.Targets()) != 1 || sess.Targets()[0].Name != "alpha" {
		t.Fatalf("expected single target alpha, got %v", sess.Targets())
	}
	if results[0].Err != nil || !strings.Contains(results[0].Message, "123.5") {
		t.Fatalf("expected balance message with free amount, got %+v", results[0])
	}
}

func TestLoginUnknown_LeavesPriorSetAndReportsHint(t *testing.T) {
	alpha := registry.NewClient("alpha", exchange.KindBinanceUSDM, &fakeGateway{})
	reg := registry.NewFromClients(
		[]*registry.Client{alpha},
		[]*registry.Group{{Name: "copyfuture", Members: []*registry.Client{alpha}}},
	)

	sess := New(reg, "BTCUSDT", nil)
	if _, err := sess.Login(context.Background(), "alpha"); err != nil {
		t.Fatalf("valid login failed: %v", err)
	}

	_, err := sess.Login(context.Background(), "nosuch")
	var unknown *UnknownTargetError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTargetError, got %v", err)
	}
	for _, want := range []string{"alpha", "copyfuture"} {
		found := false
		for _, name := range unknown.Known {
			if name == want {
				found = true
			}
		}
		if !found {
			t.Errorf("hint missing %q: %v", want, unknown.Known)
		}
	}

	if len(sess.Targets()) != 1 || sess.Targets()[0].Name != "alpha" {
		t.Fatalf("failed login must leave prior target set untouched, got %v", sess.Targets())
	}
}

func TestLogin_BalanceProbeFailureDoesNotAbort(t *testing.T) {
	alpha := registry.NewClient("alpha", exchange.KindBinanceUSDM, &fakeGateway{})
	broken := registry.NewClient("broken", exchange.KindBinanceUSDM, &fakeGateway{
		balanceErr: errors.New("boom"),
	})
	reg := registry.NewFromClients(
		[]*registry.Client{alpha, broken},
		[]*registry.Group{{Name: "pair", Members: []*registry.Client{alpha, broken}}},
	)

	sess := New(reg, "BTCUSDT", nil)
	results, err := sess.Login(context.Background(), "pair")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 probe results, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("alpha probe should succeed, got %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Errorf("broken probe should fail")
	}
	if len(sess.Targets()) != 2 {
		t.Fatalf("login must keep the full target set despite probe failures")
	}
}

type fakeGateway struct {
	balances   exchange.Balances
	balanceErr error
}

func (f *fakeGateway) LoadMarkets(ctx context.Context) error { return nil }

func (f *fakeGateway) FetchBalance(ctx context.Context) (exchange.Balances, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if f.balances == nil {
		return exchange.Balances{"USDT": {Free: 1000, Total: 1000}}, nil
	}
	return f.balances, nil
}

func (f *fakeGateway) FetchPositions(ctx context.Context) ([]exchange.Position, error) {
	return nil, nil
}

func (f *fakeGateway) FetchTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	return exchange.Ticker{Symbol: symbol, Last: 100}, nil
}

func (f *fakeGateway) FetchOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	return nil, nil
}

func (f *fakeGateway) CancelOrder(ctx context.Context, id string, symbol string) error { return nil }

func (f *fakeGateway) CreateMarketOrder(ctx context.Context, symbol string, side string, amount float64) error {
	return nil
}

func (f *fakeGateway) CreateLimitOrder(ctx context.Context, symbol string, side string, amount float64, price float64) error {
	return nil
}

func (f *fakeGateway) CreateOrder(ctx context.Context, symbol string, orderType string, side string, amount float64, params map[string]interface{}) error {
	return nil
}

func (f *fakeGateway) SetLeverage(ctx context.Context, leverage int, symbol string) error {
	return nil
}

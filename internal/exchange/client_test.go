package exchange

import (
	"errors"
	"testing"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestConvertPosition_PrefersRawExchangeSymbol(t *testing.T) {
	// ccxt 统一符号对线性合约带结算后缀，原始符号才能和会话标的对上。
	pos := convertPosition(ccxt.Position{
		Symbol:     strPtr("BTC/USDT:USDT"),
		Contracts:  floatPtr(2),
		Side:       strPtr("long"),
		EntryPrice: floatPtr(30000),
		Info:       map[string]interface{}{"symbol": "BTCUSDT", "positionAmt": "2"},
	})

	if pos.Symbol != "BTCUSDT" {
		t.Errorf("expected raw exchange symbol, got %q", pos.Symbol)
	}
	if pos.Amount != 2 || pos.Side != "long" {
		t.Errorf("unexpected position: %+v", pos)
	}
}

func TestConvertPosition_UnifiedSymbolWhenInfoLacksIt(t *testing.T) {
	pos := convertPosition(ccxt.Position{
		Symbol:     strPtr("BTC/USDT:USDT"),
		Contracts:  floatPtr(1.5),
		Side:       strPtr("short"),
		EntryPrice: floatPtr(30000),
		Info:       map[string]interface{}{"instId": "BTC-USDT-SWAP"},
	})

	if pos.Symbol != "BTC/USDT:USDT" {
		t.Errorf("expected unified symbol fallback, got %q", pos.Symbol)
	}
	if pos.Amount != -1.5 {
		t.Errorf("short position must carry negative amount, got %v", pos.Amount)
	}
}

func TestConvertPosition_SignedAmountFromPositionAmt(t *testing.T) {
	pos := convertPosition(ccxt.Position{
		Symbol:     strPtr("ETH/USDT:USDT"),
		Contracts:  floatPtr(3),
		EntryPrice: floatPtr(2000),
		Info:       map[string]interface{}{"symbol": "ETHUSDT", "positionAmt": "-3"},
	})

	if pos.Amount != -3 {
		t.Errorf("expected signed amount -3, got %v", pos.Amount)
	}
	if pos.Side != "short" {
		t.Errorf("side must be inferred from sign, got %q", pos.Side)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		errType ccxt.ErrorType
		want    bool
	}{
		{ccxt.RateLimitExceededErrType, true},
		{ccxt.RequestTimeoutErrType, true},
		{ccxt.ExchangeNotAvailableErrType, true},
		{ccxt.AuthenticationErrorErrType, false},
		{ccxt.InsufficientFundsErrType, false},
	}

	for _, tc := range cases {
		err := &ccxt.Error{Type: tc.errType, Message: "x"}
		if got := IsRetryable(err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.errType, got, tc.want)
		}
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors must not be retryable")
	}
}

func TestClassifyError_DelegatesRetryDecision(t *testing.T) {
	c := &Client{}

	_, retry := c.classifyError(&ccxt.Error{Type: ccxt.DDoSProtectionErrType})
	if !retry {
		t.Error("ddos protection must be retryable")
	}

	_, retry = c.classifyError(&ccxt.Error{Type: ccxt.InvalidOrderErrType})
	if retry {
		t.Error("invalid order must not be retryable")
	}

	normalized, retry := c.classifyError(&ccxt.Error{Type: ccxt.OnMaintenanceErrType, Message: "upgrading"})
	if retry {
		t.Error("maintenance must not be retryable")
	}
	if !errors.Is(normalized, ErrMaintenance) {
		t.Errorf("maintenance must map to ErrMaintenance, got %v", normalized)
	}
}

// Package symbol 负责统一代码与各交易所符号格式之间的转换。
package symbol

import (
	"strings"

	"trade-console/internal/exchange"
)

// hyphenated 列出交易 API 要求计价资产带连字符的交易所变体。
var hyphenated = map[exchange.Kind]bool{
	exchange.KindOkx: true,
}

// Normalize 把统一代码转换为目标交易所要求的符号格式。
// 对需要连字符的变体，BTCUSDT 变为 BTC-USDT；重复调用不会二次插入。
func Normalize(instrument string, kind exchange.Kind) string {
	if !hyphenated[kind] {
		return instrument
	}
	if strings.Contains(instrument, "-USDT") {
		return instrument
	}
	return strings.Replace(instrument, "USDT", "-USDT", 1)
}

// Canonical 把交易所返回的符号还原为统一代码，供与会话选择比较。
// 线性合约的结算后缀（BTC/USDT:USDT 中的 :USDT）与分隔符一并去除，
// 因此 BTC/USDT:USDT、BTC-USDT、BTCUSDT 归一到同一个代码。
func Canonical(sym string) string {
	if i := strings.IndexByte(sym, ':'); i >= 0 {
		sym = sym[:i]
	}
	sym = strings.ReplaceAll(sym, "/", "")
	return strings.ReplaceAll(sym, "-", "")
}

package exchange

// Kind 标识交易所变体，决定符号规范化与杠杆接口的差异。
type Kind string

const (
	KindBinanceUSDM Kind = "binanceusdm"
	KindOkx         Kind = "okx"
)

// Balance 表示单一币种的余额。
type Balance struct {
	Free  float64
	Total float64
}

// Balances 为币种到余额的映射。
type Balances map[string]Balance

// Position 表示单个持仓记录，Amount 带符号（负数为空头）。
type Position struct {
	Symbol     string
	Amount     float64
	EntryPrice float64
	Side       string
}

// Ticker 为最新成交行情。
type Ticker struct {
	Symbol string
	Last   float64
}

// Order 表示一笔委托记录。
type Order struct {
	ID           string
	Type         string
	Side         string
	Symbol       string
	Amount       float64
	Price        float64
	TriggerPrice float64
}

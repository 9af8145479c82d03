package engine

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidAmount 表示数量参数无法解析或越界。
var ErrInvalidAmount = errors.New("invalid amount")

// AmountSpec 描述下单数量：绝对数量或占可用余额的百分比。
type AmountSpec struct {
	Percent bool
	Value   float64
}

// ParseAmount 解析数量参数。"0.5" 为绝对数量，"50%" 为百分比。
// 百分比必须位于 (0, ∞)；允许超过 100%（带杠杆账户）。
func ParseAmount(token string) (AmountSpec, error) {
	token = strings.TrimSpace(token)

	if strings.HasSuffix(token, "%") {
		value, err := strconv.ParseFloat(strings.TrimSuffix(token, "%"), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
			return AmountSpec{}, fmt.Errorf("%w: 百分比 %q 必须为正数", ErrInvalidAmount, token)
		}
		return AmountSpec{Percent: true, Value: value}, nil
	}

	value, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return AmountSpec{}, fmt.Errorf("%w: 数量 %q 必须为正数", ErrInvalidAmount, token)
	}
	return AmountSpec{Value: value}, nil
}

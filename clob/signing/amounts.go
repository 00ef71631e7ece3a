package signing

import (
	"fmt"
	"math/big"

	"github.com/betbot/clobkit/clob/types"
	"github.com/shopspring/decimal"
)

// RoundConfig 舍入配置
type RoundConfig struct {
	Price  int32 // 价格小数位数
	Size   int32 // 数量小数位数
	Amount int32 // 金额小数位数
}

// RawAmounts 链上整数金额
type RawAmounts struct {
	Maker *big.Int
	Taker *big.Int
}

// RoundConfigFor 根据 tick size 的小数位数推导舍入配置
func RoundConfigFor(tickSize types.TickSize) (RoundConfig, error) {
	tick, err := decimal.NewFromString(string(tickSize))
	if err != nil {
		return RoundConfig{}, fmt.Errorf("%w: 无效的 tick size %q: %v", types.ErrInvalidAmount, tickSize, err)
	}
	if !tick.IsPositive() {
		return RoundConfig{}, fmt.Errorf("%w: tick size 必须为正数: %q", types.ErrInvalidAmount, tickSize)
	}
	// 小数位数按字符串字面量计算，"0.010" 视为 3 位
	var tickDecimals int32
	if exp := tick.Exponent(); exp < 0 {
		tickDecimals = -exp
	}
	return RoundConfig{
		Price:  tickDecimals,
		Size:   SizeDecimals,
		Amount: tickDecimals + SizeDecimals,
	}, nil
}

// CalculateAmounts 计算订单的 maker/taker 原始金额
//
// 价格按 tick 位数、数量按 2 位四舍五入（远离零），成本按 tick+2 位四舍五入；
// 转换为整数时一律向下截断，保证金额不会被高估。
// BUY: maker 付出成本，taker 获得份额；SELL 相反。
func CalculateAmounts(side types.Side, price, size decimal.Decimal, tickSize types.TickSize) (*RawAmounts, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: 价格必须为正数: %s", types.ErrInvalidAmount, price)
	}
	if !size.IsPositive() {
		return nil, fmt.Errorf("%w: 数量必须为正数: %s", types.ErrInvalidAmount, size)
	}
	rc, err := RoundConfigFor(tickSize)
	if err != nil {
		return nil, err
	}

	roundedPrice := price.Round(rc.Price)
	roundedSize := size.Round(rc.Size)
	cost := roundedSize.Mul(roundedPrice).Round(rc.Amount)

	shares := roundedSize.Shift(rc.Size).Floor().BigInt()
	costRaw := cost.Shift(rc.Amount).Floor().BigInt()

	switch side {
	case types.SideBuy:
		return &RawAmounts{Maker: costRaw, Taker: shares}, nil
	case types.SideSell:
		return &RawAmounts{Maker: shares, Taker: costRaw}, nil
	default:
		return nil, fmt.Errorf("%w: 未知的订单方向 %q", types.ErrInvalidOrder, string(side))
	}
}

// PriceValid 按 tick 位数舍入后检查价格
//
// tick < 1 时舍入后的价格必须落在 [tick, 1-tick]；tick >= 1（没有小数位）时只要求不小于 tick。
func PriceValid(price decimal.Decimal, tickSize types.TickSize) bool {
	rc, err := RoundConfigFor(tickSize)
	if err != nil {
		return false
	}
	tick, _ := decimal.NewFromString(string(tickSize))
	rounded := price.Round(rc.Price)
	if rounded.LessThan(tick) {
		return false
	}
	one := decimal.NewFromInt(1)
	if tick.LessThan(one) {
		return rounded.LessThanOrEqual(one.Sub(tick))
	}
	return true
}

// TickFinerThan 判断 a 是否比 b 更细（数值更小）
func TickFinerThan(a, b types.TickSize) (bool, error) {
	da, err := decimal.NewFromString(string(a))
	if err != nil {
		return false, fmt.Errorf("%w: 无效的 tick size %q", types.ErrInvalidAmount, a)
	}
	db, err := decimal.NewFromString(string(b))
	if err != nil {
		return false, fmt.Errorf("%w: 无效的 tick size %q", types.ErrInvalidAmount, b)
	}
	return da.LessThan(db), nil
}

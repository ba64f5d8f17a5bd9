package v3math

import (
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// Q96 and Q128 are the fixed point scales used by pool state.
	Q96  = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

	MinSqrtRatio = uint256.NewInt(4295128739)
	MaxSqrtRatio = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")

	maxUint256 = new(uint256.Int).SetAllOne()
	lowMask32  = uint256.NewInt(0xffffffff)
)

// sqrt(1.0001)^(-2^k) in Q128 for k = 1..19; bit 0 is handled separately.
var tickRatios = [...]*uint256.Int{
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

var tickRatioBit0 = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")

// TickToSqrtRatioX96 returns sqrt(1.0001^tick) as a Q64.96 integer, bit-exact
// with the pool contracts.
func TickToSqrtRatioX96(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick %d out of range [%d, %d]", tick, MinTick, MaxTick)
	}
	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int).Set(Q128)
	if absTick&1 != 0 {
		ratio.Set(tickRatioBit0)
	}
	for i, magic := range tickRatios {
		if absTick&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, magic)
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	remainder := new(uint256.Int).And(ratio, lowMask32)
	sqrt := new(uint256.Int).Rsh(ratio, 32)
	if !remainder.IsZero() {
		sqrt.AddUint64(sqrt, 1)
	}
	return sqrt, nil
}

// MustTickToSqrtRatioX96 panics on an out of range tick.
func MustTickToSqrtRatioX96(tick int32) *uint256.Int {
	sqrt, err := TickToSqrtRatioX96(tick)
	if err != nil {
		panic(err)
	}
	return sqrt
}

// SqrtRatioX96ToPrice converts a Q96 square-root price into token1 per token0,
// adjusted for token decimals.
func SqrtRatioX96ToPrice(sqrtRatioX96 *uint256.Int, decimals0, decimals1 uint8) float64 {
	if sqrtRatioX96 == nil || sqrtRatioX96.IsZero() {
		return 0
	}
	ratio := new(big.Float).SetPrec(256).SetInt(sqrtRatioX96.ToBig())
	ratio.Quo(ratio, new(big.Float).SetInt(Q96.ToBig()))
	ratio.Mul(ratio, ratio)
	price, _ := ratio.Float64()
	return price * math.Pow10(int(decimals0)-int(decimals1))
}

// TickToPrice is the display price at a tick. It uses floating point and must
// not feed amount calculations.
func TickToPrice(tick int32, decimals0, decimals1 uint8) float64 {
	return math.Pow(1.0001, float64(tick)) * math.Pow10(int(decimals0)-int(decimals1))
}

// InRange reports whether currentTick lies within [tickLower, tickUpper].
func InRange(currentTick, tickLower, tickUpper int32) bool {
	return currentTick >= tickLower && currentTick <= tickUpper
}

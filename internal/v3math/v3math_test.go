package v3math

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickZeroIsQ96(t *testing.T) {
	sqrt, err := TickToSqrtRatioX96(0)
	require.NoError(t, err)
	assert.True(t, sqrt.Eq(Q96), "got %s", sqrt.Dec())
}

func TestTickBounds(t *testing.T) {
	minSqrt, err := TickToSqrtRatioX96(MinTick)
	require.NoError(t, err)
	assert.True(t, minSqrt.Eq(MinSqrtRatio), "min: %s", minSqrt.Dec())

	maxSqrt, err := TickToSqrtRatioX96(MaxTick)
	require.NoError(t, err)
	assert.True(t, maxSqrt.Eq(MaxSqrtRatio), "max: %s", maxSqrt.Dec())

	_, err = TickToSqrtRatioX96(MaxTick + 1)
	assert.Error(t, err)
	_, err = TickToSqrtRatioX96(MinTick - 1)
	assert.Error(t, err)
}

func TestTickReciprocal(t *testing.T) {
	q192 := new(big.Float).SetPrec(512).SetInt(new(big.Int).Lsh(big.NewInt(1), 192))
	for _, tick := range []int32{1, 2, 60, 1000, 46054, 200000, 500000, MaxTick} {
		up := MustTickToSqrtRatioX96(tick)
		down := MustTickToSqrtRatioX96(-tick)
		assert.True(t, up.Gt(Q96))
		assert.True(t, down.Lt(Q96))

		product := new(big.Float).SetPrec(512).SetInt(new(big.Int).Mul(up.ToBig(), down.ToBig()))
		ratio, _ := new(big.Float).Quo(product, q192).Float64()
		assert.InDelta(t, 1.0, ratio, 1e-8, "tick %d", tick)
	}
}

func TestTickMonotonic(t *testing.T) {
	prev := MustTickToSqrtRatioX96(-1000)
	for tick := int32(-999); tick <= 1000; tick += 7 {
		next := MustTickToSqrtRatioX96(tick)
		require.True(t, next.Gt(prev), "tick %d", tick)
		prev = next
	}
}

func TestTickToPriceDecimals(t *testing.T) {
	assert.Equal(t, 1e12, TickToPrice(0, 18, 6))
	assert.InDelta(t, 1.0001, TickToPrice(1, 18, 18), 1e-12)
}

func TestSqrtRatioX96ToPriceMatchesTick(t *testing.T) {
	for _, tick := range []int32{-50000, -1, 0, 1, 23028, 50000} {
		sqrt := MustTickToSqrtRatioX96(tick)
		got := SqrtRatioX96ToPrice(sqrt, 18, 6)
		want := TickToPrice(tick, 18, 6)
		assert.InEpsilon(t, want, got, 1e-9, "tick %d", tick)
	}
	assert.Zero(t, SqrtRatioX96ToPrice(new(uint256.Int), 18, 18))
}

func TestAmountsZeroLiquidity(t *testing.T) {
	a0, a1, err := AmountsForPosition(new(uint256.Int), Q96, -100, 100)
	require.NoError(t, err)
	assert.True(t, a0.IsZero())
	assert.True(t, a1.IsZero())
}

func TestAmountsOutsideRange(t *testing.T) {
	liquidity := uint256.NewInt(1_000_000_000_000_000_000)

	below := MustTickToSqrtRatioX96(-500)
	a0, a1, err := AmountsForPosition(liquidity, below, -100, 100)
	require.NoError(t, err)
	assert.False(t, a0.IsZero())
	assert.True(t, a1.IsZero())

	atLower := MustTickToSqrtRatioX96(-100)
	_, a1, err = AmountsForPosition(liquidity, atLower, -100, 100)
	require.NoError(t, err)
	assert.True(t, a1.IsZero())

	above := MustTickToSqrtRatioX96(500)
	a0, a1, err = AmountsForPosition(liquidity, above, -100, 100)
	require.NoError(t, err)
	assert.True(t, a0.IsZero())
	assert.False(t, a1.IsZero())

	atUpper := MustTickToSqrtRatioX96(100)
	a0, _, err = AmountsForPosition(liquidity, atUpper, -100, 100)
	require.NoError(t, err)
	assert.True(t, a0.IsZero())
}

func TestAmountsInRangeAreBalancedAtTickZero(t *testing.T) {
	liquidity := uint256.NewInt(1_000_000_000_000_000_000)
	a0, a1, err := AmountsForPosition(liquidity, Q96, -60, 60)
	require.NoError(t, err)
	require.False(t, a0.IsZero())
	require.False(t, a1.IsZero())

	f0, _ := new(big.Float).SetInt(a0.ToBig()).Float64()
	f1, _ := new(big.Float).SetInt(a1.ToBig()).Float64()
	assert.InEpsilon(t, f0, f1, 0.01)
}

func TestAmountDeltaOrderIndependent(t *testing.T) {
	liquidity := uint256.NewInt(123456789)
	a := MustTickToSqrtRatioX96(-200)
	b := MustTickToSqrtRatioX96(300)

	x, err := Amount0Delta(a, b, liquidity)
	require.NoError(t, err)
	y, err := Amount0Delta(b, a, liquidity)
	require.NoError(t, err)
	assert.True(t, x.Eq(y))

	x, err = Amount1Delta(a, b, liquidity)
	require.NoError(t, err)
	y, err = Amount1Delta(b, a, liquidity)
	require.NoError(t, err)
	assert.True(t, x.Eq(y))
}

func TestSubMod256Wraps(t *testing.T) {
	got := SubMod256(uint256.NewInt(5), uint256.NewInt(10))
	want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(5))
	assert.Equal(t, 0, got.ToBig().Cmp(want))

	assert.Equal(t, uint64(5), SubMod256(uint256.NewInt(10), uint256.NewInt(5)).Uint64())
}

func TestAccruedFeesInRange(t *testing.T) {
	fees := AccruedFees(0, -100, 100, Q128, FeeGrowthSnapshot{
		Global:       uint256.NewInt(1000),
		OutsideLower: new(uint256.Int),
		OutsideUpper: new(uint256.Int),
		InsideLast:   uint256.NewInt(900),
		TokensOwed:   new(uint256.Int),
	})
	assert.Equal(t, uint64(100), fees.Uint64())
}

func TestAccruedFeesAddsTokensOwed(t *testing.T) {
	fees := AccruedFees(0, -100, 100, Q128, FeeGrowthSnapshot{
		Global:     uint256.NewInt(1000),
		InsideLast: uint256.NewInt(900),
		TokensOwed: uint256.NewInt(7),
	})
	assert.Equal(t, uint64(107), fees.Uint64())
}

func TestAccruedFeesAcrossCounterWrap(t *testing.T) {
	// The global counter wrapped past 2^256 since the last checkpoint.
	insideLast := new(uint256.Int).Sub(new(uint256.Int), uint256.NewInt(95))
	fees := AccruedFees(0, -100, 100, Q128, FeeGrowthSnapshot{
		Global:     uint256.NewInt(5),
		InsideLast: insideLast,
	})
	assert.Equal(t, uint64(100), fees.Uint64())
}

func TestFeeGrowthInsideOutOfRange(t *testing.T) {
	global := uint256.NewInt(1000)
	lower := uint256.NewInt(300)
	upper := uint256.NewInt(200)

	// Below the range: everything above the lower tick is outside on the upper side.
	below := FeeGrowthInside(-200, -100, 100, global, lower, upper)
	assert.Equal(t, SubMod256(SubMod256(global, SubMod256(global, lower)), upper).Uint64(), below.Uint64())

	// Above the range.
	above := FeeGrowthInside(200, -100, 100, global, lower, upper)
	assert.Equal(t, SubMod256(SubMod256(global, lower), SubMod256(global, upper)).Uint64(), above.Uint64())

	// In range.
	inside := FeeGrowthInside(0, -100, 100, global, lower, upper)
	assert.Equal(t, uint64(500), inside.Uint64())
}

func TestInRangeInclusive(t *testing.T) {
	assert.True(t, InRange(-100, -100, 100))
	assert.True(t, InRange(100, -100, 100))
	assert.False(t, InRange(500, -100, 100))
	assert.False(t, InRange(-101, -100, 100))
}

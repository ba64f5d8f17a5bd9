package v3math

import "github.com/holiman/uint256"

// SubMod256 returns a - b modulo 2^256. Fee growth counters wrap, so this is
// the only subtraction allowed on them.
func SubMod256(a, b *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sub(a, b)
}

// FeeGrowthSnapshot holds the inputs for one token's fee accrual.
type FeeGrowthSnapshot struct {
	Global       *uint256.Int
	OutsideLower *uint256.Int
	OutsideUpper *uint256.Int
	InsideLast   *uint256.Int
	TokensOwed   *uint256.Int
}

// FeeGrowthInside derives the fee growth inside [tickLower, tickUpper] from
// the global counter and the outside counters at both boundary ticks.
func FeeGrowthInside(currentTick, tickLower, tickUpper int32, global, outsideLower, outsideUpper *uint256.Int) *uint256.Int {
	below := outsideLower
	if currentTick < tickLower {
		below = SubMod256(global, outsideLower)
	}
	above := outsideUpper
	if currentTick >= tickUpper {
		above = SubMod256(global, outsideUpper)
	}
	return SubMod256(SubMod256(global, below), above)
}

// FeesEarned is liquidity * (inside - insideLast) / 2^128, rounded down.
func FeesEarned(liquidity, inside, insideLast *uint256.Int) *uint256.Int {
	delta := SubMod256(inside, insideLast)
	earned, overflow := new(uint256.Int).MulDivOverflow(liquidity, delta, Q128)
	if overflow {
		// liquidity fits in 128 bits, so the quotient always fits in 256.
		return new(uint256.Int).SetAllOne()
	}
	return earned
}

// AccruedFees returns tokensOwed plus the fees earned since the position's
// last checkpoint.
func AccruedFees(currentTick, tickLower, tickUpper int32, liquidity *uint256.Int, s FeeGrowthSnapshot) *uint256.Int {
	inside := FeeGrowthInside(currentTick, tickLower, tickUpper, orZero(s.Global), orZero(s.OutsideLower), orZero(s.OutsideUpper))
	earned := FeesEarned(orZero(liquidity), inside, orZero(s.InsideLast))
	return earned.Add(earned, orZero(s.TokensOwed))
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

package v3math

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Amount0Delta returns liquidity * 2^96 * (sqrtB - sqrtA) / (sqrtB * sqrtA),
// rounded down. The bounds may be given in either order.
func Amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.IsZero() {
		return nil, fmt.Errorf("amount0 delta: zero sqrt price")
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)

	scaled, overflow := new(uint256.Int).MulDivOverflow(numerator1, numerator2, sqrtB)
	if overflow {
		return nil, fmt.Errorf("amount0 delta: overflow")
	}
	return scaled.Div(scaled, sqrtA), nil
}

// Amount1Delta returns liquidity * (sqrtB - sqrtA) / 2^96, rounded down.
func Amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	amount, overflow := new(uint256.Int).MulDivOverflow(liquidity, diff, Q96)
	if overflow {
		return nil, fmt.Errorf("amount1 delta: overflow")
	}
	return amount, nil
}

// AmountsForPosition splits a position's liquidity into token amounts at the
// current price.
func AmountsForPosition(liquidity, sqrtPriceCurrent *uint256.Int, tickLower, tickUpper int32) (amount0, amount1 *uint256.Int, err error) {
	if liquidity == nil || liquidity.IsZero() {
		return new(uint256.Int), new(uint256.Int), nil
	}
	if tickLower >= tickUpper {
		return nil, nil, fmt.Errorf("invalid tick range [%d, %d]", tickLower, tickUpper)
	}
	sqrtLower, err := TickToSqrtRatioX96(tickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := TickToSqrtRatioX96(tickUpper)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case !sqrtPriceCurrent.Gt(sqrtLower):
		amount0, err = Amount0Delta(sqrtLower, sqrtUpper, liquidity)
		if err != nil {
			return nil, nil, err
		}
		return amount0, new(uint256.Int), nil
	case !sqrtPriceCurrent.Lt(sqrtUpper):
		amount1, err = Amount1Delta(sqrtLower, sqrtUpper, liquidity)
		if err != nil {
			return nil, nil, err
		}
		return new(uint256.Int), amount1, nil
	default:
		amount0, err = Amount0Delta(sqrtPriceCurrent, sqrtUpper, liquidity)
		if err != nil {
			return nil, nil, err
		}
		amount1, err = Amount1Delta(sqrtLower, sqrtPriceCurrent, liquidity)
		if err != nil {
			return nil, nil, err
		}
		return amount0, amount1, nil
	}
}

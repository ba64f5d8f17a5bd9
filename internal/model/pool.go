package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolState is the live state of a V3 pool read at one point in time.
type PoolState struct {
	Address              common.Address
	SqrtPriceX96         *uint256.Int
	Tick                 int32
	FeeGrowthGlobal0X128 *uint256.Int
	FeeGrowthGlobal1X128 *uint256.Int
}

// TickInfo holds the per-tick fields needed for fee accrual.
type TickInfo struct {
	LiquidityGross        *uint256.Int
	FeeGrowthOutside0X128 *uint256.Int
	FeeGrowthOutside1X128 *uint256.Int
	Initialized           bool
}

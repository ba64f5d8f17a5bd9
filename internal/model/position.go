package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// PositionSnapshot is the raw state of a position NFT as returned by the
// position manager.
type PositionSnapshot struct {
	TokenID                  *big.Int
	Operator                 common.Address
	Token0                   common.Address
	Token1                   common.Address
	Fee                      uint32
	TickLower                int32
	TickUpper                int32
	Liquidity                *uint256.Int
	FeeGrowthInside0LastX128 *uint256.Int
	FeeGrowthInside1LastX128 *uint256.Int
	TokensOwed0              *uint256.Int
	TokensOwed1              *uint256.Int
}

// EnrichedPosition is the computed economic state of one position.
type EnrichedPosition struct {
	PositionSnapshot

	Owner  common.Address
	Pool   common.Address
	Token0 TokenMetadata
	Token1 TokenMetadata

	SqrtPriceX96 *uint256.Int
	CurrentTick  int32
	InRange      bool

	// Display prices of token0 in token1.
	LowerPrice   float64
	UpperPrice   float64
	CurrentPrice float64

	Amount0 decimal.Decimal
	Amount1 decimal.Decimal
	Fees0   decimal.Decimal
	Fees1   decimal.Decimal

	Price0USD decimal.Decimal
	Price1USD decimal.Decimal
	TVLUSD    decimal.Decimal
	FeesUSD   decimal.Decimal

	RewardAmount   decimal.Decimal
	RewardPriceUSD decimal.Decimal
	RewardUSD      decimal.Decimal

	CreatedAt *time.Time

	// Warnings lists optional steps that failed and were defaulted.
	Warnings []error
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position display statuses.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// TokenRow is the flat token descriptor carried by PositionRow.
type TokenRow struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// PositionRow is the flat, JSON friendly form of an EnrichedPosition.
type PositionRow struct {
	ID            string   `json:"id"`
	PairLabel     string   `json:"pair_label"`
	PoolAddress   string   `json:"pool_address"`
	WalletAddress string   `json:"wallet_address"`
	Token0        TokenRow `json:"token0"`
	Token1        TokenRow `json:"token1"`
	FeeTierBps    uint32   `json:"fee_tier_bps"`

	TickLower      int32  `json:"tick_lower"`
	TickLowerLabel string `json:"tick_lower_label"`
	TickUpper      int32  `json:"tick_upper"`
	TickUpperLabel string `json:"tick_upper_label"`
	CurrentTick    int32  `json:"current_tick"`

	Amount0 decimal.Decimal `json:"amount0"`
	Amount1 decimal.Decimal `json:"amount1"`
	Fee0    decimal.Decimal `json:"fee0"`
	Fee1    decimal.Decimal `json:"fee1"`

	LowerPrice   float64 `json:"lower_price"`
	UpperPrice   float64 `json:"upper_price"`
	CurrentPrice float64 `json:"current_price"`

	Price0USD decimal.Decimal `json:"price0_usd"`
	Price1USD decimal.Decimal `json:"price1_usd"`
	TVLUSD    decimal.Decimal `json:"tvl_usd"`
	FeesUSD   decimal.Decimal `json:"fees_usd"`

	RewardAmount   decimal.Decimal `json:"reward_amount"`
	RewardUSD      decimal.Decimal `json:"reward_usd"`
	RewardPriceUSD decimal.Decimal `json:"reward_price_usd"`

	InRange   bool       `json:"in_range"`
	Status    string     `json:"status"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`

	ScanID      string    `json:"scan_id,omitempty"`
	ScannedAt   time.Time `json:"scanned_at"`
	BlockNumber uint64    `json:"block_number,omitempty"`
}

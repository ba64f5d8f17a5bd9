package position

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"positionScope/internal/model"
	"positionScope/internal/v3math"
)

// PoolReader is the chain surface needed to describe a pool.
type PoolReader interface {
	PoolTokens(ctx context.Context, pool common.Address) ([2]common.Address, error)
	Slot0(ctx context.Context, pool common.Address) (*uint256.Int, int32, error)
	PoolLiquidity(ctx context.Context, pool common.Address) (*uint256.Int, error)
	TokenMetadata(ctx context.Context, token common.Address) (model.TokenMetadata, error)
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
}

// PoolReserve is one token side of a pool.
type PoolReserve struct {
	Token    model.TokenMetadata `json:"token"`
	Amount   decimal.Decimal     `json:"amount"`
	PriceUSD decimal.Decimal     `json:"price_usd"`
	ValueUSD decimal.Decimal     `json:"value_usd"`
}

// PoolReport is a point-in-time view of a pool.
type PoolReport struct {
	Address      common.Address  `json:"address"`
	Tick         int32           `json:"tick"`
	SqrtPriceX96 string          `json:"sqrt_price_x96"`
	Price        float64         `json:"price"`
	Liquidity    string          `json:"liquidity"`
	Reserves     [2]PoolReserve  `json:"reserves"`
	TVLUSD       decimal.Decimal `json:"tvl_usd"`
	Warnings     []string        `json:"warnings"`
}

// DescribePool reads state, active liquidity and token balances of pool.
// Missing prices leave the reserve value at zero and add a warning.
func DescribePool(ctx context.Context, reader PoolReader, prices PriceResolver, pool common.Address) (PoolReport, error) {
	report := PoolReport{Address: pool, Warnings: []string{}}

	tokens, err := reader.PoolTokens(ctx, pool)
	if err != nil {
		return report, fmt.Errorf("pool tokens: %w", err)
	}

	var (
		sqrt      *uint256.Int
		liquidity *uint256.Int
		metas     [2]model.TokenMetadata
		balances  [2]*big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sqrt, report.Tick, err = reader.Slot0(gctx, pool)
		return err
	})
	g.Go(func() error {
		var err error
		liquidity, err = reader.PoolLiquidity(gctx, pool)
		return err
	})
	for i, token := range tokens {
		g.Go(func() error {
			var err error
			metas[i], err = reader.TokenMetadata(gctx, token)
			return err
		})
		g.Go(func() error {
			var err error
			balances[i], err = reader.TokenBalance(gctx, token, pool)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("pool %s: %w", pool.Hex(), err)
	}

	report.SqrtPriceX96 = sqrt.Dec()
	report.Liquidity = liquidity.Dec()
	report.Price = v3math.SqrtRatioX96ToPrice(sqrt, metas[0].Decimals, metas[1].Decimals)

	report.TVLUSD = decimal.Zero
	for i := range tokens {
		reserve := PoolReserve{
			Token:    metas[i],
			Amount:   decimal.NewFromBigInt(balances[i], -int32(metas[i].Decimals)),
			PriceUSD: decimal.Zero,
			ValueUSD: decimal.Zero,
		}
		price, err := priceOrZero(prices.ResolvePriceUSD(ctx, tokens[i]))
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("price %s: %v", metas[i].Symbol, err))
		} else {
			reserve.PriceUSD = price
			reserve.ValueUSD = reserve.Amount.Mul(price)
		}
		report.TVLUSD = report.TVLUSD.Add(reserve.ValueUSD)
		report.Reserves[i] = reserve
	}
	return report, nil
}

package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"positionScope/internal/cache"
	"positionScope/internal/model"
)

// PoolAddress resolves the pool for a token pair and fee tier through the
// factory. Pools never move, so the answer is cached for MetadataTTL.
func (r *Reader) PoolAddress(ctx context.Context, token0, token1 common.Address, fee uint32) (common.Address, error) {
	key := fmt.Sprintf("pool:%s:%s:%d", strings.ToLower(token0.Hex()), strings.ToLower(token1.Hex()), fee)
	return cache.Memoize(ctx, r.cache, key, r.cfg.MetadataTTL, func(ctx context.Context) (common.Address, error) {
		var pool common.Address
		err := r.call(ctx, r.factoryABI, r.cfg.Factory, "getPool", &pool, token0, token1, new(big.Int).SetUint64(uint64(fee)))
		if err != nil {
			return common.Address{}, err
		}
		if pool == (common.Address{}) {
			return common.Address{}, fmt.Errorf("%w: %s/%s fee %d", ErrPoolNotFound, token0.Hex(), token1.Hex(), fee)
		}
		return pool, nil
	})
}

// PoolTokens returns token0 and token1 of a pool, cached for MetadataTTL.
func (r *Reader) PoolTokens(ctx context.Context, pool common.Address) ([2]common.Address, error) {
	key := "pool-tokens:" + strings.ToLower(pool.Hex())
	return cache.Memoize(ctx, r.cache, key, r.cfg.MetadataTTL, func(ctx context.Context) ([2]common.Address, error) {
		var tokens [2]common.Address
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return r.call(gctx, r.poolABI, pool, "token0", &tokens[0])
		})
		g.Go(func() error {
			return r.call(gctx, r.poolABI, pool, "token1", &tokens[1])
		})
		if err := g.Wait(); err != nil {
			return [2]common.Address{}, err
		}
		return tokens, nil
	})
}

// Slot0 reads the current square-root price and tick of a pool.
func (r *Reader) Slot0(ctx context.Context, pool common.Address) (*uint256.Int, int32, error) {
	var out Slot0Output
	if err := r.call(ctx, r.poolABI, pool, "slot0", &out); err != nil {
		return nil, 0, err
	}
	sqrt, err := toUint256(out.SqrtPriceX96)
	if err != nil {
		return nil, 0, fmt.Errorf("slot0 sqrtPriceX96: %w", err)
	}
	if sqrt.IsZero() {
		return nil, 0, fmt.Errorf("slot0: pool %s is not initialized", pool.Hex())
	}
	tick, err := int24FromBig(out.Tick)
	if err != nil {
		return nil, 0, fmt.Errorf("slot0 tick: %w", err)
	}
	return sqrt, tick, nil
}

// PoolState reads slot0 and both global fee growth counters concurrently.
func (r *Reader) PoolState(ctx context.Context, pool common.Address) (model.PoolState, error) {
	state := model.PoolState{Address: pool}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sqrt, tick, err := r.Slot0(gctx, pool)
		if err != nil {
			return err
		}
		state.SqrtPriceX96 = sqrt
		state.Tick = tick
		return nil
	})
	g.Go(func() error {
		var err error
		state.FeeGrowthGlobal0X128, state.FeeGrowthGlobal1X128, err = r.FeeGrowthGlobals(gctx, pool)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.PoolState{}, err
	}
	return state, nil
}

// FeeGrowthGlobals reads feeGrowthGlobal0X128 and feeGrowthGlobal1X128.
func (r *Reader) FeeGrowthGlobals(ctx context.Context, pool common.Address) (global0, global1 *uint256.Int, err error) {
	var raw0, raw1 *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.call(gctx, r.poolABI, pool, "feeGrowthGlobal0X128", &raw0)
	})
	g.Go(func() error {
		return r.call(gctx, r.poolABI, pool, "feeGrowthGlobal1X128", &raw1)
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if global0, err = toUint256(raw0); err != nil {
		return nil, nil, fmt.Errorf("feeGrowthGlobal0X128: %w", err)
	}
	if global1, err = toUint256(raw1); err != nil {
		return nil, nil, fmt.Errorf("feeGrowthGlobal1X128: %w", err)
	}
	return global0, global1, nil
}

// PoolLiquidity reads the in-range liquidity of a pool.
func (r *Reader) PoolLiquidity(ctx context.Context, pool common.Address) (*uint256.Int, error) {
	var liquidity *big.Int
	if err := r.call(ctx, r.poolABI, pool, "liquidity", &liquidity); err != nil {
		return nil, err
	}
	return toUint256(liquidity)
}

// Tick reads the fee growth outside counters of one initialized tick.
func (r *Reader) Tick(ctx context.Context, pool common.Address, tick int32) (model.TickInfo, error) {
	var out TicksOutput
	if err := r.call(ctx, r.poolABI, pool, "ticks", &out, big.NewInt(int64(tick))); err != nil {
		return model.TickInfo{}, err
	}
	info := model.TickInfo{Initialized: out.Initialized}
	var err error
	if info.LiquidityGross, err = toUint256(out.LiquidityGross); err != nil {
		return model.TickInfo{}, fmt.Errorf("ticks liquidityGross: %w", err)
	}
	if info.FeeGrowthOutside0X128, err = toUint256(out.FeeGrowthOutside0X128); err != nil {
		return model.TickInfo{}, fmt.Errorf("ticks feeGrowthOutside0X128: %w", err)
	}
	if info.FeeGrowthOutside1X128, err = toUint256(out.FeeGrowthOutside1X128); err != nil {
		return model.TickInfo{}, fmt.Errorf("ticks feeGrowthOutside1X128: %w", err)
	}
	return info, nil
}

// TickPair reads the lower and upper boundary ticks of a position concurrently.
func (r *Reader) TickPair(ctx context.Context, pool common.Address, tickLower, tickUpper int32) (lower, upper model.TickInfo, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lower, err = r.Tick(gctx, pool, tickLower)
		return err
	})
	g.Go(func() error {
		var err error
		upper, err = r.Tick(gctx, pool, tickUpper)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.TickInfo{}, model.TickInfo{}, err
	}
	return lower, upper, nil
}

// BlockNumber returns the latest block number, cached for BlockNumberTTL.
func (r *Reader) BlockNumber(ctx context.Context) (uint64, error) {
	return cache.Memoize(ctx, r.cache, "block-number", r.cfg.BlockNumberTTL, r.caller.BlockNumber)
}

// BlockTimestamp returns the timestamp of a block.
func (r *Reader) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	return r.caller.BlockTimestamp(ctx, number)
}

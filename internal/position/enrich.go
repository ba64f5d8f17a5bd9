package position

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"positionScope/internal/model"
	"positionScope/internal/resilience"
	"positionScope/internal/rewards"
	"positionScope/internal/v3math"
)

// DefaultPositionTimeout bounds the position read of one enrichment.
const DefaultPositionTimeout = 15 * time.Second

// Enrichment outcomes reported to the observer.
const (
	OutcomeEnriched = "enriched"
	OutcomePartial  = "partial"
	OutcomeDropped  = "dropped"
)

// ChainReader is the on-chain surface used by enrichment.
type ChainReader interface {
	Position(ctx context.Context, tokenID *big.Int) (model.PositionSnapshot, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	TokenMetadata(ctx context.Context, token common.Address) (model.TokenMetadata, error)
	PoolAddress(ctx context.Context, token0, token1 common.Address, fee uint32) (common.Address, error)
	Slot0(ctx context.Context, pool common.Address) (*uint256.Int, int32, error)
	FeeGrowthGlobals(ctx context.Context, pool common.Address) (*uint256.Int, *uint256.Int, error)
	TickPair(ctx context.Context, pool common.Address, tickLower, tickUpper int32) (model.TickInfo, model.TickInfo, error)
}

// PriceResolver resolves token USD prices.
type PriceResolver interface {
	ResolvePriceUSD(ctx context.Context, token common.Address) (float64, error)
}

// RewardSource returns off-chain incentive rewards per position.
type RewardSource interface {
	Enabled() bool
	Reward(ctx context.Context, tokenID *big.Int) (decimal.Decimal, error)
}

// CreationDater infers when a position was minted.
type CreationDater interface {
	CreationDate(ctx context.Context, tokenID *big.Int) (*time.Time, error)
}

// EnricherConfig wires the optional collaborators of an Enricher.
type EnricherConfig struct {
	Concurrency     int
	PositionTimeout time.Duration
	// RewardToken prices reward amounts; zero disables reward pricing.
	RewardToken common.Address
	Rewards     RewardSource
	Creation    CreationDater
	// Observe receives one enrichment outcome per position.
	Observe func(outcome string)
}

// Result is the outcome of enriching a list of positions.
type Result struct {
	Positions []model.EnrichedPosition
	Total     int
	Enriched  int
	Dropped   int
}

// Enricher computes the economic state of positions.
type Enricher struct {
	reader          ChainReader
	prices          PriceResolver
	concurrency     int
	positionTimeout time.Duration
	rewardToken     common.Address
	rewards         RewardSource
	creation        CreationDater
	observe         func(string)
	logger          *zap.Logger
}

func NewEnricher(reader ChainReader, prices PriceResolver, cfg EnricherConfig, logger *zap.Logger) (*Enricher, error) {
	if reader == nil {
		return nil, fmt.Errorf("chain reader is nil")
	}
	if prices == nil {
		return nil, fmt.Errorf("price resolver is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.PositionTimeout <= 0 {
		cfg.PositionTimeout = DefaultPositionTimeout
	}
	return &Enricher{
		reader:          reader,
		prices:          prices,
		concurrency:     cfg.Concurrency,
		positionTimeout: cfg.PositionTimeout,
		rewardToken:     cfg.RewardToken,
		rewards:         cfg.Rewards,
		creation:        cfg.Creation,
		observe:         cfg.Observe,
		logger:          logger,
	}, nil
}

// EnrichPositions enriches ids in chunks of concurrency, every chunk running
// in parallel and finishing before the next starts. Positions whose required
// reads fail are dropped and counted. Output order follows input order.
// A zero wallet means the owner is read from chain for each position.
func (e *Enricher) EnrichPositions(ctx context.Context, ids []*big.Int, wallet common.Address, concurrency int) (Result, error) {
	if concurrency <= 0 {
		concurrency = e.concurrency
	}
	result := Result{Total: len(ids)}
	if len(ids) == 0 {
		result.Positions = []model.EnrichedPosition{}
		return result, nil
	}

	chunks, err := SplitRange(uint64(len(ids)), uint64(concurrency))
	if err != nil {
		return result, err
	}

	pool := pond.NewPool(concurrency)
	defer pool.StopAndWait()

	slots := make([]*model.EnrichedPosition, len(ids))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return e.collect(result, slots), err
		}
		group := pool.NewGroupContext(ctx)
		groupCtx := group.Context()
		for index := chunk.From; index <= chunk.To; index++ {
			i := index
			group.Submit(func() {
				enriched, err := e.enrichRecovered(groupCtx, ids[i], wallet)
				if err != nil {
					e.logger.Warn("dropping position",
						zap.String("token_id", ids[i].String()),
						zap.Error(err),
					)
					e.report(OutcomeDropped)
					return
				}
				if len(enriched.Warnings) > 0 {
					e.report(OutcomePartial)
				} else {
					e.report(OutcomeEnriched)
				}
				slots[i] = enriched
			})
		}
		if err := group.Wait(); err != nil {
			e.logger.Warn("enrichment chunk interrupted",
				zap.Strings("token_ids", idStrings(ids[chunk.From:chunk.To+1])),
				zap.Error(err),
			)
		}
	}

	result = e.collect(result, slots)
	e.logger.Info("enrichment finished",
		zap.Int("total", result.Total),
		zap.Int("enriched", result.Enriched),
		zap.Int("dropped", result.Dropped),
	)
	return result, nil
}

// enrichRecovered runs EnrichPosition and turns a panic into an error so the
// position goes through the normal drop path.
func (e *Enricher) enrichRecovered(ctx context.Context, tokenID *big.Int, wallet common.Address) (p *model.EnrichedPosition, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("enrich position %s panicked: %v", tokenID, r)
		}
	}()
	return e.EnrichPosition(ctx, tokenID, wallet)
}

func idStrings(ids []*big.Int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (e *Enricher) collect(result Result, slots []*model.EnrichedPosition) Result {
	result.Positions = make([]model.EnrichedPosition, 0, len(slots))
	for _, slot := range slots {
		if slot != nil {
			result.Positions = append(result.Positions, *slot)
		}
	}
	result.Enriched = len(result.Positions)
	result.Dropped = result.Total - result.Enriched
	return result
}

func (e *Enricher) report(outcome string) {
	if e.observe != nil {
		e.observe(outcome)
	}
}

// EnrichPosition computes one position. The returned error is a
// *PartialEnrichmentFailure naming the required step that failed; failures of
// optional steps are defaulted and listed on Warnings instead.
func (e *Enricher) EnrichPosition(ctx context.Context, tokenID *big.Int, wallet common.Address) (*model.EnrichedPosition, error) {
	fail := func(step string, err error) error {
		return &PartialEnrichmentFailure{TokenID: tokenID, Step: step, Err: err}
	}
	out := &model.EnrichedPosition{}
	warn := func(step string, err error) {
		out.Warnings = append(out.Warnings, fail(step, err))
		e.logger.Debug("optional enrichment step failed",
			zap.String("token_id", tokenID.String()),
			zap.String("step", step),
			zap.Error(err),
		)
	}

	snap, err := resilience.WithTimeout(ctx, e.positionTimeout, "position read timeout", func(ctx context.Context) (model.PositionSnapshot, error) {
		return e.reader.Position(ctx, tokenID)
	})
	if err != nil {
		return nil, fail(StepPosition, err)
	}
	out.PositionSnapshot = snap

	out.Owner = wallet
	if wallet == (common.Address{}) {
		if out.Owner, err = e.reader.OwnerOf(ctx, tokenID); err != nil {
			return nil, fail(StepOwner, err)
		}
	}

	var meta0, meta1 model.TokenMetadata
	var metaErr0, metaErr1 error
	var mg errgroup.Group
	mg.Go(func() error {
		meta0, metaErr0 = e.reader.TokenMetadata(ctx, snap.Token0)
		return nil
	})
	mg.Go(func() error {
		meta1, metaErr1 = e.reader.TokenMetadata(ctx, snap.Token1)
		return nil
	})
	_ = mg.Wait()
	var defaulted bool
	if out.Token0, defaulted = metadataOrDefault(snap.Token0, meta0, metaErr0); defaulted {
		warn(StepMetadata0, metaErr0)
	}
	if out.Token1, defaulted = metadataOrDefault(snap.Token1, meta1, metaErr1); defaulted {
		warn(StepMetadata1, metaErr1)
	}

	if out.Pool, err = e.reader.PoolAddress(ctx, snap.Token0, snap.Token1, snap.Fee); err != nil {
		return nil, fail(StepPool, err)
	}
	if out.SqrtPriceX96, out.CurrentTick, err = e.reader.Slot0(ctx, out.Pool); err != nil {
		return nil, fail(StepSlot0, err)
	}

	d0, d1 := out.Token0.Decimals, out.Token1.Decimals
	out.InRange = v3math.InRange(out.CurrentTick, snap.TickLower, snap.TickUpper)
	out.LowerPrice = v3math.TickToPrice(snap.TickLower, d0, d1)
	out.UpperPrice = v3math.TickToPrice(snap.TickUpper, d0, d1)
	out.CurrentPrice = v3math.SqrtRatioX96ToPrice(out.SqrtPriceX96, d0, d1)

	var price0, price1, rewardPrice float64
	var priceErr0, priceErr1, rewardPriceErr error
	priceReward := e.rewards != nil && e.rewards.Enabled() && e.rewardToken != (common.Address{})
	var pg errgroup.Group
	pg.Go(func() error {
		price0, priceErr0 = e.prices.ResolvePriceUSD(ctx, snap.Token0)
		return nil
	})
	pg.Go(func() error {
		price1, priceErr1 = e.prices.ResolvePriceUSD(ctx, snap.Token1)
		return nil
	})
	if priceReward {
		pg.Go(func() error {
			rewardPrice, rewardPriceErr = e.prices.ResolvePriceUSD(ctx, e.rewardToken)
			return nil
		})
	}
	_ = pg.Wait()
	out.Price0USD, priceErr0 = priceOrZero(price0, priceErr0)
	out.Price1USD, priceErr1 = priceOrZero(price1, priceErr1)
	if priceReward {
		out.RewardPriceUSD, rewardPriceErr = priceOrZero(rewardPrice, rewardPriceErr)
	}
	if priceErr0 != nil {
		warn(StepPrice0, priceErr0)
	}
	if priceErr1 != nil {
		warn(StepPrice1, priceErr1)
	}
	if rewardPriceErr != nil {
		warn(StepRewardPrice, rewardPriceErr)
	}

	raw0, raw1, err := v3math.AmountsForPosition(snap.Liquidity, out.SqrtPriceX96, snap.TickLower, snap.TickUpper)
	if err != nil {
		return nil, fail(StepAmounts, err)
	}
	out.Amount0 = toDecimal(raw0, d0)
	out.Amount1 = toDecimal(raw1, d1)

	fees0, fees1, err := e.accruedFees(ctx, snap, out.Pool, out.CurrentTick)
	if err != nil {
		warn(StepFees, err)
		fees0, fees1 = orZero(snap.TokensOwed0), orZero(snap.TokensOwed1)
	}
	out.Fees0 = toDecimal(fees0, d0)
	out.Fees1 = toDecimal(fees1, d1)

	out.TVLUSD = out.Amount0.Mul(out.Price0USD).Add(out.Amount1.Mul(out.Price1USD))
	out.FeesUSD = out.Fees0.Mul(out.Price0USD).Add(out.Fees1.Mul(out.Price1USD))

	out.RewardAmount = decimal.Zero
	out.RewardUSD = decimal.Zero
	if e.rewards != nil && e.rewards.Enabled() {
		amount, err := e.rewards.Reward(ctx, tokenID)
		switch {
		case errors.Is(err, rewards.ErrDisabled):
		case err != nil:
			warn(StepReward, err)
		default:
			out.RewardAmount = amount
			out.RewardUSD = amount.Mul(out.RewardPriceUSD)
		}
	}

	if e.creation != nil {
		created, err := e.creation.CreationDate(ctx, tokenID)
		if err != nil {
			warn(StepCreationDate, err)
		} else {
			out.CreatedAt = created
		}
	}

	return out, nil
}

func (e *Enricher) accruedFees(ctx context.Context, snap model.PositionSnapshot, pool common.Address, currentTick int32) (*uint256.Int, *uint256.Int, error) {
	var (
		global0, global1 *uint256.Int
		lower, upper     model.TickInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		global0, global1, err = e.reader.FeeGrowthGlobals(gctx, pool)
		return err
	})
	g.Go(func() error {
		var err error
		lower, upper, err = e.reader.TickPair(gctx, pool, snap.TickLower, snap.TickUpper)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	fees0 := v3math.AccruedFees(currentTick, snap.TickLower, snap.TickUpper, snap.Liquidity, v3math.FeeGrowthSnapshot{
		Global:       global0,
		OutsideLower: lower.FeeGrowthOutside0X128,
		OutsideUpper: upper.FeeGrowthOutside0X128,
		InsideLast:   snap.FeeGrowthInside0LastX128,
		TokensOwed:   snap.TokensOwed0,
	})
	fees1 := v3math.AccruedFees(currentTick, snap.TickLower, snap.TickUpper, snap.Liquidity, v3math.FeeGrowthSnapshot{
		Global:       global1,
		OutsideLower: lower.FeeGrowthOutside1X128,
		OutsideUpper: upper.FeeGrowthOutside1X128,
		InsideLast:   snap.FeeGrowthInside1LastX128,
		TokensOwed:   snap.TokensOwed1,
	})
	return fees0, fees1, nil
}

// toDecimal scales a raw token amount by its decimals.
func toDecimal(raw *uint256.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw.ToBig(), -int32(decimals))
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

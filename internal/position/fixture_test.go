package position

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"positionScope/internal/cache"
	"positionScope/internal/chain/chaintest"
	"positionScope/internal/dex"
	"positionScope/internal/pricing"
	"positionScope/internal/v3math"
)

var (
	positionManager = common.HexToAddress("0xD9770b1C7A6ccd33C75b5bcB1c0078f46bE46657")
	factory         = common.HexToAddress("0x17AA157AC8C54034381b840Cb8f6bf7Fc355f0de")
	wflr            = common.HexToAddress("0x1D80c49BbBCd1C0911346656B529DF9E5c2F783d")
	eusdt           = common.HexToAddress("0x96B41289D90444B8adD57e6F265DB5aE8651DF29")
	rflr            = common.HexToAddress("0xffA188493C15DfAf2C206c97D8633377847b6a52")
	wflrUSDT        = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	wallet          = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type positionSpec struct {
	token0, token1 common.Address
	fee            int64
	lower, upper   int64
	liquidity      *big.Int
	insideLast0    *big.Int
	owed0          *big.Int
}

type fixture struct {
	t         *testing.T
	fake      *chaintest.Caller
	reader    *dex.Reader
	pmABI     abi.ABI
	poolABI   abi.ABI
	factory   abi.ABI
	erc20     abi.ABI
	mu        sync.Mutex
	positions map[string]positionSpec
	pools     map[[2]common.Address]common.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		fake:      chaintest.New(),
		positions: make(map[string]positionSpec),
		pools:     make(map[[2]common.Address]common.Address),
	}
	var err error
	f.pmABI, err = dex.PositionManagerABI()
	require.NoError(t, err)
	f.poolABI, err = dex.V3PoolABI()
	require.NoError(t, err)
	f.factory, err = dex.FactoryABI()
	require.NoError(t, err)
	f.erc20, err = dex.ERC20ABI()
	require.NoError(t, err)

	f.fake.Handle(positionManager, f.pmABI, "positions", func(args []any) ([]any, error) {
		id := args[0].(*big.Int)
		f.mu.Lock()
		p, ok := f.positions[id.String()]
		f.mu.Unlock()
		if !ok {
			return nil, errReverted
		}
		return []any{
			big.NewInt(0), common.Address{}, p.token0, p.token1, big.NewInt(p.fee),
			big.NewInt(p.lower), big.NewInt(p.upper), p.liquidity,
			orBig(p.insideLast0), big.NewInt(0), orBig(p.owed0), big.NewInt(0),
		}, nil
	})
	f.fake.Handle(factory, f.factory, "getPool", func(args []any) ([]any, error) {
		key := [2]common.Address{args[0].(common.Address), args[1].(common.Address)}
		f.mu.Lock()
		pool := f.pools[key]
		f.mu.Unlock()
		return []any{pool}, nil
	})

	f.reader, err = dex.NewReader(f.fake, cache.New(), dex.ReaderConfig{
		PositionManager: positionManager,
		Factory:         factory,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return f
}

var errReverted = &revertError{}

type revertError struct{}

func (*revertError) Error() string { return "execution reverted" }

func orBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func (f *fixture) token(addr common.Address, symbol string, decimals uint8) {
	f.fake.Returns(addr, f.erc20, "decimals", decimals)
	f.fake.Returns(addr, f.erc20, "symbol", symbol)
	f.fake.Returns(addr, f.erc20, "name", symbol+" token")
}

func (f *fixture) position(id int64, p positionSpec) {
	if p.fee == 0 {
		p.fee = 3000
	}
	if p.liquidity == nil {
		p.liquidity = big.NewInt(1_000_000_000_000)
	}
	f.mu.Lock()
	f.positions[big.NewInt(id).String()] = p
	f.mu.Unlock()
}

// pool registers a pool at tick with the given global fee growth and zero
// outside growth at every tick.
func (f *fixture) pool(addr, token0, token1 common.Address, tick int32, global0 *big.Int) {
	f.mu.Lock()
	f.pools[[2]common.Address{token0, token1}] = addr
	f.mu.Unlock()

	sqrt := v3math.MustTickToSqrtRatioX96(tick).ToBig()
	f.fake.Returns(addr, f.poolABI, "slot0", sqrt, big.NewInt(int64(tick)), uint16(0), uint16(1), uint16(1), uint8(0), true)
	f.fake.Returns(addr, f.poolABI, "token0", token0)
	f.fake.Returns(addr, f.poolABI, "token1", token1)
	f.fake.Returns(addr, f.poolABI, "feeGrowthGlobal0X128", orBig(global0))
	f.fake.Returns(addr, f.poolABI, "feeGrowthGlobal1X128", big.NewInt(0))
	f.fake.Returns(addr, f.poolABI, "ticks",
		big.NewInt(1), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), uint32(0), true)
}

func (f *fixture) wallet(owner common.Address, ids ...int64) {
	f.fake.Returns(positionManager, f.pmABI, "balanceOf", big.NewInt(int64(len(ids))))
	f.fake.Handle(positionManager, f.pmABI, "tokenOfOwnerByIndex", func(args []any) ([]any, error) {
		index := args[1].(*big.Int).Int64()
		if index >= int64(len(ids)) {
			return nil, errReverted
		}
		return []any{big.NewInt(ids[index])}, nil
	})
	f.fake.Returns(positionManager, f.pmABI, "ownerOf", owner)
}

func (f *fixture) registry(tokens ...pricing.TokenSources) *pricing.Registry {
	f.t.Helper()
	registry, err := pricing.NewRegistry(pricing.Config{
		Tokens:       tokens,
		StableTokens: []common.Address{eusdt},
	}, f.reader, cache.New(), zaptest.NewLogger(f.t))
	require.NoError(f.t, err)
	return registry
}

func (f *fixture) enricher(prices PriceResolver, cfg EnricherConfig) *Enricher {
	f.t.Helper()
	enricher, err := NewEnricher(f.reader, prices, cfg, zaptest.NewLogger(f.t))
	require.NoError(f.t, err)
	return enricher
}

func fixedPrice(token common.Address, usd float64) pricing.TokenSources {
	return pricing.TokenSources{Token: token, Sources: []pricing.Source{pricing.Fixed{USD: usd}}}
}

type fakeRewards struct {
	amount decimal.Decimal
	err    error
}

func (f fakeRewards) Enabled() bool { return true }

func (f fakeRewards) Reward(context.Context, *big.Int) (decimal.Decimal, error) {
	return f.amount, f.err
}

type fakeCreation struct {
	at  time.Time
	err error
}

func (f fakeCreation) CreationDate(context.Context, *big.Int) (*time.Time, error) {
	if f.err != nil {
		return nil, f.err
	}
	at := f.at
	return &at, nil
}

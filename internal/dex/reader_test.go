package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"positionScope/internal/cache"
	"positionScope/internal/chain/chaintest"
)

var (
	positionManager = common.HexToAddress("0xD9770b1C7A6ccd33C75b5bcB1c0078f46bE46657")
	factory         = common.HexToAddress("0x17AA157AC8C54034381b840Cb8f6bf7Fc355f0de")
	wflr            = common.HexToAddress("0x1D80c49BbBCd1C0911346656B529DF9E5c2F783d")
	eusdt           = common.HexToAddress("0x96B41289D90444B8adD57e6F265DB5aE8651DF29")
	pool            = common.HexToAddress("0x1111111111111111111111111111111111111111")
	wallet          = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func newTestReader(t *testing.T, fake *chaintest.Caller) *Reader {
	t.Helper()
	reader, err := NewReader(fake, cache.New(), ReaderConfig{
		PositionManager: positionManager,
		Factory:         factory,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return reader
}

func TestReaderPosition(t *testing.T) {
	fake := chaintest.New()
	pmABI, err := PositionManagerABI()
	require.NoError(t, err)

	fake.Returns(positionManager, pmABI, "positions",
		big.NewInt(0), common.Address{}, wflr, eusdt, big.NewInt(3000),
		big.NewInt(-600), big.NewInt(600), big.NewInt(1_000_000),
		big.NewInt(11), big.NewInt(22), big.NewInt(3), big.NewInt(4),
	)
	reader := newTestReader(t, fake)

	snap, err := reader.Position(context.Background(), big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, "42", snap.TokenID.String())
	assert.Equal(t, wflr, snap.Token0)
	assert.Equal(t, eusdt, snap.Token1)
	assert.Equal(t, uint32(3000), snap.Fee)
	assert.Equal(t, int32(-600), snap.TickLower)
	assert.Equal(t, int32(600), snap.TickUpper)
	assert.Equal(t, uint64(1_000_000), snap.Liquidity.Uint64())
	assert.Equal(t, uint64(11), snap.FeeGrowthInside0LastX128.Uint64())
	assert.Equal(t, uint64(4), snap.TokensOwed1.Uint64())

	// Second read is served from the cache.
	_, err = reader.Position(context.Background(), big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Calls("positions"))
}

func TestReaderDiscoveryCalls(t *testing.T) {
	fake := chaintest.New()
	pmABI, err := PositionManagerABI()
	require.NoError(t, err)

	fake.Returns(positionManager, pmABI, "balanceOf", big.NewInt(2))
	fake.Handle(positionManager, pmABI, "tokenOfOwnerByIndex", func(args []any) ([]any, error) {
		index := args[1].(*big.Int)
		return []any{new(big.Int).Add(index, big.NewInt(100))}, nil
	})
	fake.Returns(positionManager, pmABI, "ownerOf", wallet)
	reader := newTestReader(t, fake)

	balance, err := reader.PositionBalance(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), balance)

	id, err := reader.TokenOfOwnerByIndex(context.Background(), wallet, 1)
	require.NoError(t, err)
	assert.Equal(t, "101", id.String())

	owned, err := reader.IsPositionOwnedBy(context.Background(), id, wallet)
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestReaderTokenMetadataBytes32Fallback(t *testing.T) {
	fake := chaintest.New()
	erc20, err := erc20ABIStringInstance()
	require.NoError(t, err)
	erc20b32, err := erc20ABIBytes32Instance()
	require.NoError(t, err)

	var symbol, name [32]byte
	copy(symbol[:], "MKR")
	copy(name[:], "Maker")
	fake.Returns(wflr, erc20, "decimals", uint8(18))
	fake.Returns(wflr, erc20b32, "symbol", symbol)
	fake.Returns(wflr, erc20b32, "name", name)
	reader := newTestReader(t, fake)

	meta, err := reader.TokenMetadata(context.Background(), wflr)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), meta.Decimals)
	assert.Equal(t, "MKR", meta.Symbol)
	assert.Equal(t, "Maker", meta.Name)
}

func TestReaderTokenMetadataPartial(t *testing.T) {
	fake := chaintest.New()
	erc20, err := erc20ABIStringInstance()
	require.NoError(t, err)

	fake.Fails(eusdt, erc20, "decimals", errors.New("reverted"))
	fake.Returns(eusdt, erc20, "symbol", "eUSDT")
	fake.Returns(eusdt, erc20, "name", "Enosys USDT")
	reader := newTestReader(t, fake)

	meta, err := reader.TokenMetadata(context.Background(), eusdt)
	var metaErr *MetadataError
	require.ErrorAs(t, err, &metaErr)
	assert.True(t, metaErr.Has(FieldDecimals))
	assert.False(t, metaErr.Has(FieldSymbol))
	assert.Equal(t, "eUSDT", meta.Symbol)
	assert.Equal(t, eusdt, meta.Address)
}

func TestReaderPoolAddressNotFound(t *testing.T) {
	fake := chaintest.New()
	facABI, err := FactoryABI()
	require.NoError(t, err)
	fake.Returns(factory, facABI, "getPool", common.Address{})
	reader := newTestReader(t, fake)

	_, err = reader.PoolAddress(context.Background(), wflr, eusdt, 3000)
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestReaderPoolState(t *testing.T) {
	fake := chaintest.New()
	poolABI, err := V3PoolABI()
	require.NoError(t, err)

	sqrt := new(big.Int).Lsh(big.NewInt(1), 96)
	fake.Returns(pool, poolABI, "slot0", sqrt, big.NewInt(-5), uint16(1), uint16(2), uint16(3), uint8(0), true)
	fake.Returns(pool, poolABI, "feeGrowthGlobal0X128", big.NewInt(1000))
	fake.Returns(pool, poolABI, "feeGrowthGlobal1X128", big.NewInt(2000))
	fake.Handle(pool, poolABI, "ticks", func(args []any) ([]any, error) {
		tick := args[0].(*big.Int)
		outside := new(big.Int).Abs(tick)
		return []any{big.NewInt(1), big.NewInt(-1), outside, outside, big.NewInt(0), big.NewInt(0), uint32(0), true}, nil
	})
	reader := newTestReader(t, fake)

	state, err := reader.PoolState(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, int32(-5), state.Tick)
	assert.Equal(t, sqrt.String(), state.SqrtPriceX96.ToBig().String())
	assert.Equal(t, uint64(2000), state.FeeGrowthGlobal1X128.Uint64())

	lower, upper, err := reader.TickPair(context.Background(), pool, -60, 120)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), lower.FeeGrowthOutside0X128.Uint64())
	assert.Equal(t, uint64(120), upper.FeeGrowthOutside1X128.Uint64())
	assert.True(t, upper.Initialized)
}

func TestReaderSlot0Uninitialized(t *testing.T) {
	fake := chaintest.New()
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	fake.Returns(pool, poolABI, "slot0", big.NewInt(0), big.NewInt(0), uint16(0), uint16(0), uint16(0), uint8(0), false)
	reader := newTestReader(t, fake)

	_, _, err = reader.Slot0(context.Background(), pool)
	assert.Error(t, err)
}

func TestDecodeOutputsArity(t *testing.T) {
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	data, err := poolABI.Methods["slot0"].Outputs.Pack(big.NewInt(1), big.NewInt(0), uint16(0), uint16(0), uint16(0), uint8(0), true)
	require.NoError(t, err)

	var short struct {
		SqrtPriceX96 *big.Int `abi:"sqrtPriceX96"`
		Tick         *big.Int `abi:"tick"`
	}
	err = decodeOutputs(poolABI, "slot0", data, &short)
	var arity *ArityError
	require.ErrorAs(t, err, &arity)
	assert.Equal(t, 2, arity.Want)
	assert.Equal(t, 7, arity.Got)

	var full Slot0Output
	require.NoError(t, decodeOutputs(poolABI, "slot0", data, &full))
	assert.True(t, full.Unlocked)
}

func TestReaderPoolLiquidityBalanceAndBlock(t *testing.T) {
	fake := chaintest.New()
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	erc20, err := ERC20ABI()
	require.NoError(t, err)
	fake.Returns(pool, poolABI, "liquidity", big.NewInt(123_456_789))
	fake.Handle(wflr, erc20, "balanceOf", func(args []any) ([]any, error) {
		if args[0].(common.Address) != pool {
			return []any{big.NewInt(0)}, nil
		}
		return []any{big.NewInt(5_000)}, nil
	})
	fake.SetBlock(41_000_000, 1_760_000_000)
	reader := newTestReader(t, fake)

	liquidity, err := reader.PoolLiquidity(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(123_456_789), liquidity.Uint64())

	balance, err := reader.TokenBalance(context.Background(), wflr, pool)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), balance.Int64())
	balance, err = reader.TokenBalance(context.Background(), wflr, wallet)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())

	block, err := reader.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(41_000_000), block)
}

package position

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"positionScope/internal/cache"
)

func TestFindPositionsZeroBalance(t *testing.T) {
	f := newFixture(t)
	f.wallet(wallet)
	d := NewDiscoverer(f.reader, cache.New(), DiscoveryConfig{}, zaptest.NewLogger(t))

	ids, err := d.FindPositions(context.Background(), wallet, false)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
	assert.Equal(t, 0, f.fake.Calls("tokenOfOwnerByIndex"))
}

func TestFindPositionsBatchesAndSkipsFailures(t *testing.T) {
	f := newFixture(t)
	f.fake.Returns(positionManager, f.pmABI, "balanceOf", big.NewInt(25))
	f.fake.Handle(positionManager, f.pmABI, "tokenOfOwnerByIndex", func(args []any) ([]any, error) {
		index := args[1].(*big.Int).Int64()
		if index == 7 {
			return nil, errors.New("flaky endpoint")
		}
		return []any{big.NewInt(1000 + index)}, nil
	})
	d := NewDiscoverer(f.reader, cache.New(), DiscoveryConfig{BatchSize: 10}, zaptest.NewLogger(t))

	ids, err := d.FindPositions(context.Background(), wallet, false)
	require.NoError(t, err)
	require.Len(t, ids, 24)
	assert.Equal(t, "1000", ids[0].String())
	assert.Equal(t, "1008", ids[7].String())
	assert.Equal(t, "1024", ids[23].String())
	assert.Equal(t, 25, f.fake.Calls("tokenOfOwnerByIndex"))
}

func TestFindPositionsCachesUntilRefresh(t *testing.T) {
	f := newFixture(t)
	f.wallet(wallet, 1, 2)
	d := NewDiscoverer(f.reader, cache.New(), DiscoveryConfig{}, nil)

	for i := 0; i < 2; i++ {
		ids, err := d.FindPositions(context.Background(), wallet, false)
		require.NoError(t, err)
		assert.Len(t, ids, 2)
	}
	assert.Equal(t, 1, f.fake.Calls("balanceOf"))

	_, err := d.FindPositions(context.Background(), wallet, true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.fake.Calls("balanceOf"))
}

func TestFindPositionsBalanceFailureIsHard(t *testing.T) {
	f := newFixture(t)
	f.fake.Fails(positionManager, f.pmABI, "balanceOf", errors.New("all endpoints failed"))
	d := NewDiscoverer(f.reader, nil, DiscoveryConfig{}, nil)

	ids, err := d.FindPositions(context.Background(), wallet, false)
	assert.ErrorIs(t, err, ErrDiscoveryUnavailable)
	assert.Nil(t, ids)
}

func TestFindPositionsAllLookupsFailed(t *testing.T) {
	f := newFixture(t)
	f.fake.Returns(positionManager, f.pmABI, "balanceOf", big.NewInt(3))
	f.fake.Fails(positionManager, f.pmABI, "tokenOfOwnerByIndex", errors.New("down"))
	d := NewDiscoverer(f.reader, nil, DiscoveryConfig{}, nil)

	_, err := d.FindPositions(context.Background(), wallet, false)
	assert.ErrorIs(t, err, ErrDiscoveryUnavailable)
}

func TestFindPositionsPanickingLookupIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.fake.Returns(positionManager, f.pmABI, "balanceOf", big.NewInt(4))
	f.fake.Handle(positionManager, f.pmABI, "tokenOfOwnerByIndex", func(args []any) ([]any, error) {
		index := args[1].(*big.Int).Int64()
		if index == 2 {
			panic("bad response")
		}
		return []any{big.NewInt(500 + index)}, nil
	})
	d := NewDiscoverer(f.reader, cache.New(), DiscoveryConfig{}, zaptest.NewLogger(t))

	ids, err := d.FindPositions(context.Background(), wallet, false)
	require.NoError(t, err)
	got := make([]string, 0, len(ids))
	for _, id := range ids {
		got = append(got, id.String())
	}
	assert.Equal(t, []string{"500", "501", "503"}, got)
}

func TestFindPositionsHugeBalanceDoesNotPreallocate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &hugeWallet{cancel: cancel}
	d := NewDiscoverer(reader, cache.New(), DiscoveryConfig{BatchSize: 10}, nil)

	_, err := d.discover(ctx, wallet)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(10), reader.lookups.Load())
}

// hugeWallet claims an absurd balance and cancels discovery after the first batch.
type hugeWallet struct {
	cancel  context.CancelFunc
	lookups atomic.Int64
}

func (w *hugeWallet) PositionBalance(context.Context, common.Address) (uint64, error) {
	return math.MaxUint64, nil
}

func (w *hugeWallet) TokenOfOwnerByIndex(_ context.Context, _ common.Address, index uint64) (*big.Int, error) {
	if w.lookups.Add(1) == 10 {
		w.cancel()
	}
	return new(big.Int).SetUint64(index), nil
}

package position

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/cache"
)

// DefaultDiscoveryTTL is how long a wallet's position list is reused.
const DefaultDiscoveryTTL = 2 * time.Minute

const maxPreallocatedIDs = 256

// DiscoveryReader enumerates the position NFTs of a wallet.
type DiscoveryReader interface {
	PositionBalance(ctx context.Context, owner common.Address) (uint64, error)
	TokenOfOwnerByIndex(ctx context.Context, owner common.Address, index uint64) (*big.Int, error)
}

// DiscoveryConfig tunes discovery.
type DiscoveryConfig struct {
	BatchSize int
	TTL       time.Duration
}

// Discoverer lists the position IDs held by a wallet.
type Discoverer struct {
	reader    DiscoveryReader
	cache     *cache.Cache
	batchSize int
	ttl       time.Duration
	logger    *zap.Logger
}

func NewDiscoverer(reader DiscoveryReader, memo *cache.Cache, cfg DiscoveryConfig, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if memo == nil {
		memo = cache.New()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DiscoveryBatchSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultDiscoveryTTL
	}
	return &Discoverer{
		reader:    reader,
		cache:     memo,
		batchSize: cfg.BatchSize,
		ttl:       cfg.TTL,
		logger:    logger,
	}
}

func discoveryKey(wallet common.Address) string {
	return "positions:" + strings.ToLower(wallet.Hex())
}

// FindPositions returns the position IDs held by wallet, in index order. An
// empty slice means the wallet holds none; a failure to read the balance is
// returned as ErrDiscoveryUnavailable. Indices whose lookup fails are skipped.
// refresh discards a cached list first.
func (d *Discoverer) FindPositions(ctx context.Context, wallet common.Address, refresh bool) ([]*big.Int, error) {
	key := discoveryKey(wallet)
	if refresh {
		d.cache.Clear(key)
	}
	return cache.Memoize(ctx, d.cache, key, d.ttl, func(ctx context.Context) ([]*big.Int, error) {
		return d.discover(ctx, wallet)
	})
}

func (d *Discoverer) discover(ctx context.Context, wallet common.Address) ([]*big.Int, error) {
	balance, err := d.reader.PositionBalance(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: balanceOf %s: %w", ErrDiscoveryUnavailable, wallet.Hex(), err)
	}
	if balance == 0 {
		return []*big.Int{}, nil
	}

	pool := pond.NewPool(d.batchSize)
	defer pool.StopAndWait()

	ids := make([]*big.Int, 0, min(balance, maxPreallocatedIDs))
	seen := make(map[string]bool)
	var failed atomic.Int64
	// Batches are produced one at a time; balance comes from chain and is not
	// trusted for allocation sizes.
	for from := uint64(0); from < balance; {
		batch := batchAt(from, balance, uint64(d.batchSize))
		from = batch.To + 1
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slots := make([]*big.Int, batch.Len())
		group := pool.NewGroupContext(ctx)
		groupCtx := group.Context()
		for index := batch.From; index <= batch.To; index++ {
			i := index
			group.Submit(func() {
				id, err := d.tokenAt(groupCtx, wallet, i)
				if err != nil {
					failed.Add(1)
					d.logger.Warn("tokenOfOwnerByIndex failed",
						zap.String("wallet", wallet.Hex()),
						zap.Uint64("index", i),
						zap.Error(err),
					)
					return
				}
				slots[i-batch.From] = id
			})
		}
		// Each batch is a barrier; the next one starts after every lookup settles.
		if err := group.Wait(); err != nil {
			d.logger.Warn("discovery batch interrupted",
				zap.String("wallet", wallet.Hex()),
				zap.Uint64("from", batch.From),
				zap.Uint64("to", batch.To),
				zap.Error(err),
			)
		}

		for _, id := range slots {
			if id == nil || seen[id.String()] {
				continue
			}
			seen[id.String()] = true
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: all %d index lookups failed for %s", ErrDiscoveryUnavailable, balance, wallet.Hex())
	}

	d.logger.Info("discovered positions",
		zap.String("wallet", wallet.Hex()),
		zap.Uint64("balance", balance),
		zap.Int("found", len(ids)),
		zap.Int64("failed", failed.Load()),
	)
	return ids, nil
}

// tokenAt turns a panicking lookup into an ordinary failure.
func (d *Discoverer) tokenAt(ctx context.Context, wallet common.Address, index uint64) (id *big.Int, err error) {
	defer func() {
		if r := recover(); r != nil {
			id, err = nil, fmt.Errorf("tokenOfOwnerByIndex %d panicked: %v", index, r)
		}
	}()
	return d.reader.TokenOfOwnerByIndex(ctx, wallet, index)
}

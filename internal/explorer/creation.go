package explorer

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/cache"
	"positionScope/internal/dex"
)

// DefaultCreationTTL is how long a resolved creation date is reused.
const DefaultCreationTTL = 5 * time.Minute

// BlockTimer resolves block timestamps for logs that carry none.
type BlockTimer interface {
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// CreationDates infers when a position NFT was minted.
type CreationDates struct {
	client          *Client
	decoder         *dex.TransferDecoder
	positionManager common.Address
	blocks          BlockTimer
	cache           *cache.Cache
	ttl             time.Duration
	logger          *zap.Logger
}

// NewCreationDates wires the explorer client, the Transfer decoder and an
// optional block timer.
func NewCreationDates(client *Client, positionManager common.Address, blocks BlockTimer, memo *cache.Cache, ttl time.Duration, logger *zap.Logger) (*CreationDates, error) {
	if client == nil {
		return nil, fmt.Errorf("explorer client is nil")
	}
	decoder, err := dex.NewTransferDecoder()
	if err != nil {
		return nil, err
	}
	if memo == nil {
		memo = cache.New()
	}
	if ttl <= 0 {
		ttl = DefaultCreationTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreationDates{
		client:          client,
		decoder:         decoder,
		positionManager: positionManager,
		blocks:          blocks,
		cache:           memo,
		ttl:             ttl,
		logger:          logger,
	}, nil
}

// CreationDate returns the mint time of tokenID, or nil when the explorer has
// no record of it.
func (d *CreationDates) CreationDate(ctx context.Context, tokenID *big.Int) (*time.Time, error) {
	key := "creation-date:" + tokenID.String()
	return cache.Memoize(ctx, d.cache, key, d.ttl, func(ctx context.Context) (*time.Time, error) {
		created, err := d.fromTransfers(ctx, tokenID)
		if err != nil {
			d.logger.Debug("nft transfer lookup failed, trying logs",
				zap.String("token_id", tokenID.String()),
				zap.Error(err),
			)
		}
		if created != nil {
			return created, nil
		}
		return d.fromLogs(ctx, tokenID)
	})
}

func (d *CreationDates) fromTransfers(ctx context.Context, tokenID *big.Int) (*time.Time, error) {
	transfers, err := d.client.NFTTransfers(ctx, d.positionManager, nil)
	if err != nil {
		return nil, err
	}
	id := tokenID.String()
	var matching []NFTTransfer
	for _, tr := range transfers {
		if tr.ID() == id {
			matching = append(matching, tr)
		}
	}
	if len(matching) == 0 {
		return nil, nil
	}

	for _, tr := range matching {
		if common.HexToAddress(tr.From) == (common.Address{}) {
			return parseUnix(tr.TimeStamp)
		}
	}
	// Explorers list newest first, so the last entry is the oldest.
	return parseUnix(matching[len(matching)-1].TimeStamp)
}

func (d *CreationDates) fromLogs(ctx context.Context, tokenID *big.Int) (*time.Time, error) {
	logs, err := d.client.Logs(ctx, LogQuery{
		Address: d.positionManager,
		Topics:  [4]string{d.decoder.Topic0(), "", "", d.decoder.TokenTopic(tokenID)},
	})
	if err != nil {
		return nil, err
	}

	var first *dex.TransferEvent
	for _, log := range logs {
		event, err := d.decoder.Decode(log)
		if err != nil || event.TokenID.Cmp(tokenID) != 0 {
			continue
		}
		if event.IsMint() {
			first = &event
			break
		}
		if first == nil || event.BlockNumber < first.BlockNumber {
			first = &event
		}
	}
	if first == nil {
		return nil, nil
	}

	ts := first.Timestamp
	if ts == 0 {
		if d.blocks == nil {
			return nil, fmt.Errorf("log at block %d has no timestamp", first.BlockNumber)
		}
		if ts, err = d.blocks.BlockTimestamp(ctx, first.BlockNumber); err != nil {
			return nil, fmt.Errorf("block %d timestamp: %w", first.BlockNumber, err)
		}
	}
	created := time.Unix(int64(ts), 0).UTC()
	return &created, nil
}

func parseUnix(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("timestamp %q: %w", value, err)
	}
	created := time.Unix(secs, 0).UTC()
	return &created, nil
}

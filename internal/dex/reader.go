package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/cache"
	"positionScope/internal/chain"
	"positionScope/internal/model"
)

// ErrPoolNotFound is returned when the factory has no pool for a token pair and fee.
var ErrPoolNotFound = errors.New("dex: pool not found")

// Cache lifetimes for reads that tolerate staleness.
const (
	DefaultMetadataTTL    = 24 * time.Hour
	DefaultPositionTTL    = 2 * time.Minute
	DefaultBlockNumberTTL = 10 * time.Second
)

// MetadataError lists the ERC20 metadata fields that could not be read.
type MetadataError struct {
	Token   common.Address
	Missing []string
	Err     error

	partial model.TokenMetadata
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("token %s metadata missing %s: %v", e.Token.Hex(), strings.Join(e.Missing, ","), e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// Has reports whether field could not be read.
func (e *MetadataError) Has(field string) bool {
	for _, missing := range e.Missing {
		if missing == field {
			return true
		}
	}
	return false
}

// ReaderConfig holds contract addresses and cache lifetimes.
type ReaderConfig struct {
	PositionManager common.Address
	Factory         common.Address
	MetadataTTL     time.Duration
	PositionTTL     time.Duration
	BlockNumberTTL  time.Duration
}

// Reader performs typed read-only calls against the position manager, the
// factory, pools and ERC20 tokens.
type Reader struct {
	caller chain.Caller
	cache  *cache.Cache
	cfg    ReaderConfig
	logger *zap.Logger

	poolABI            abi.ABI
	positionManagerABI abi.ABI
	factoryABI         abi.ABI
	erc20ABI           abi.ABI
	erc20Bytes32ABI    abi.ABI
}

// NewReader parses the ABIs and fills cache lifetime defaults.
func NewReader(caller chain.Caller, memo *cache.Cache, cfg ReaderConfig, logger *zap.Logger) (*Reader, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if memo == nil {
		memo = cache.New()
	}
	if cfg.MetadataTTL <= 0 {
		cfg.MetadataTTL = DefaultMetadataTTL
	}
	if cfg.PositionTTL <= 0 {
		cfg.PositionTTL = DefaultPositionTTL
	}
	if cfg.BlockNumberTTL <= 0 {
		cfg.BlockNumberTTL = DefaultBlockNumberTTL
	}

	r := &Reader{caller: caller, cache: memo, cfg: cfg, logger: logger}
	var err error
	if r.poolABI, err = V3PoolABI(); err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	if r.positionManagerABI, err = PositionManagerABI(); err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	if r.factoryABI, err = FactoryABI(); err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	if r.erc20ABI, err = erc20ABIStringInstance(); err != nil {
		return nil, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	if r.erc20Bytes32ABI, err = erc20ABIBytes32Instance(); err != nil {
		return nil, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}
	return r, nil
}

// PositionManager returns the configured position manager address.
func (r *Reader) PositionManager() common.Address {
	return r.cfg.PositionManager
}

func (r *Reader) call(ctx context.Context, parsed abi.ABI, to common.Address, method string, out any, args ...any) error {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	return decodeOutputs(parsed, method, resp, out)
}

// PositionBalance returns how many position NFTs owner holds.
func (r *Reader) PositionBalance(ctx context.Context, owner common.Address) (uint64, error) {
	var balance *big.Int
	if err := r.call(ctx, r.positionManagerABI, r.cfg.PositionManager, "balanceOf", &balance, owner); err != nil {
		return 0, err
	}
	if !balance.IsUint64() {
		return 0, fmt.Errorf("balanceOf: value %s out of range", balance.String())
	}
	return balance.Uint64(), nil
}

// TokenOfOwnerByIndex returns the position ID at index in owner's enumeration.
func (r *Reader) TokenOfOwnerByIndex(ctx context.Context, owner common.Address, index uint64) (*big.Int, error) {
	var tokenID *big.Int
	err := r.call(ctx, r.positionManagerABI, r.cfg.PositionManager, "tokenOfOwnerByIndex", &tokenID, owner, new(big.Int).SetUint64(index))
	if err != nil {
		return nil, err
	}
	return tokenID, nil
}

// OwnerOf returns the current holder of a position NFT.
func (r *Reader) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	var owner common.Address
	if err := r.call(ctx, r.positionManagerABI, r.cfg.PositionManager, "ownerOf", &owner, tokenID); err != nil {
		return common.Address{}, err
	}
	return owner, nil
}

// IsPositionOwnedBy reports whether wallet currently holds tokenID.
func (r *Reader) IsPositionOwnedBy(ctx context.Context, tokenID *big.Int, wallet common.Address) (bool, error) {
	owner, err := r.OwnerOf(ctx, tokenID)
	if err != nil {
		return false, err
	}
	return owner == wallet, nil
}

// Position reads positions(tokenID), cached for PositionTTL.
func (r *Reader) Position(ctx context.Context, tokenID *big.Int) (model.PositionSnapshot, error) {
	key := "position:" + tokenID.String()
	return cache.Memoize(ctx, r.cache, key, r.cfg.PositionTTL, func(ctx context.Context) (model.PositionSnapshot, error) {
		var out PositionsOutput
		if err := r.call(ctx, r.positionManagerABI, r.cfg.PositionManager, "positions", &out, tokenID); err != nil {
			return model.PositionSnapshot{}, err
		}
		return snapshotFromOutput(tokenID, out)
	})
}

func snapshotFromOutput(tokenID *big.Int, out PositionsOutput) (model.PositionSnapshot, error) {
	snap := model.PositionSnapshot{
		TokenID:  new(big.Int).Set(tokenID),
		Operator: out.Operator,
		Token0:   out.Token0,
		Token1:   out.Token1,
	}
	var err error
	if snap.Fee, err = uint24FromBig(out.Fee); err != nil {
		return snap, fmt.Errorf("positions fee: %w", err)
	}
	if snap.TickLower, err = int24FromBig(out.TickLower); err != nil {
		return snap, fmt.Errorf("positions tickLower: %w", err)
	}
	if snap.TickUpper, err = int24FromBig(out.TickUpper); err != nil {
		return snap, fmt.Errorf("positions tickUpper: %w", err)
	}
	if snap.TickLower >= snap.TickUpper {
		return snap, fmt.Errorf("positions: tickLower %d >= tickUpper %d", snap.TickLower, snap.TickUpper)
	}
	if snap.Liquidity, err = toUint256(out.Liquidity); err != nil {
		return snap, fmt.Errorf("positions liquidity: %w", err)
	}
	if snap.FeeGrowthInside0LastX128, err = toUint256(out.FeeGrowthInside0LastX128); err != nil {
		return snap, fmt.Errorf("positions feeGrowthInside0LastX128: %w", err)
	}
	if snap.FeeGrowthInside1LastX128, err = toUint256(out.FeeGrowthInside1LastX128); err != nil {
		return snap, fmt.Errorf("positions feeGrowthInside1LastX128: %w", err)
	}
	if snap.TokensOwed0, err = toUint256(out.TokensOwed0); err != nil {
		return snap, fmt.Errorf("positions tokensOwed0: %w", err)
	}
	if snap.TokensOwed1, err = toUint256(out.TokensOwed1); err != nil {
		return snap, fmt.Errorf("positions tokensOwed1: %w", err)
	}
	return snap, nil
}

package pricing

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionScope/internal/cache"
	"positionScope/internal/model"
	"positionScope/internal/v3math"
)

// DefaultTTL keeps one valuation pass internally consistent.
const DefaultTTL = 30 * time.Second

// DefaultOracleTimeout bounds a single oracle request.
const DefaultOracleTimeout = 10 * time.Second

// PoolReader is the on-chain surface needed by pool sources.
type PoolReader interface {
	PoolTokens(ctx context.Context, pool common.Address) ([2]common.Address, error)
	Slot0(ctx context.Context, pool common.Address) (*uint256.Int, int32, error)
	TokenMetadata(ctx context.Context, token common.Address) (model.TokenMetadata, error)
}

// Config describes the price graph.
type Config struct {
	Tokens        []TokenSources
	StableTokens  []common.Address
	TTL           time.Duration
	OracleTimeout time.Duration
	HTTPClient    *http.Client
}

// Registry resolves token USD prices from ordered sources.
type Registry struct {
	sources       map[common.Address][]Source
	stable        map[common.Address]bool
	pools         PoolReader
	cache         *cache.Cache
	ttl           time.Duration
	oracleTimeout time.Duration
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewRegistry validates the price graph and rejects quote cycles.
func NewRegistry(cfg Config, pools PoolReader, memo *cache.Cache, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if memo == nil {
		memo = cache.New()
	}
	r := &Registry{
		sources:       make(map[common.Address][]Source, len(cfg.Tokens)),
		stable:        make(map[common.Address]bool, len(cfg.StableTokens)),
		pools:         pools,
		cache:         memo,
		ttl:           cfg.TTL,
		oracleTimeout: cfg.OracleTimeout,
		httpClient:    cfg.HTTPClient,
		logger:        logger,
	}
	if r.ttl <= 0 {
		r.ttl = DefaultTTL
	}
	if r.oracleTimeout <= 0 {
		r.oracleTimeout = DefaultOracleTimeout
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{}
	}
	for _, token := range cfg.StableTokens {
		r.stable[token] = true
	}

	for _, entry := range cfg.Tokens {
		if _, dup := r.sources[entry.Token]; dup {
			return nil, fmt.Errorf("pricing: token %s configured twice", entry.Token.Hex())
		}
		list := make([]Source, 0, len(entry.Sources))
		for _, src := range entry.Sources {
			switch s := src.(type) {
			case Fixed:
				if s.USD < 0 || math.IsNaN(s.USD) || math.IsInf(s.USD, 0) {
					return nil, fmt.Errorf("pricing: invalid fixed price %v for %s", s.USD, entry.Token.Hex())
				}
			case Pool:
				if s.Base == (common.Address{}) {
					s.Base = entry.Token
				}
				if s.Base != entry.Token {
					return nil, fmt.Errorf("pricing: pool source for %s has base %s", entry.Token.Hex(), s.Base.Hex())
				}
				if s.Pool == (common.Address{}) || s.Quote == (common.Address{}) {
					return nil, fmt.Errorf("pricing: pool source for %s needs pool and quote", entry.Token.Hex())
				}
				if pools == nil {
					return nil, fmt.Errorf("pricing: pool source for %s without a pool reader", entry.Token.Hex())
				}
				src = s
			case Oracle:
				if strings.TrimSpace(s.URL) == "" {
					return nil, fmt.Errorf("pricing: oracle source for %s needs a url", entry.Token.Hex())
				}
			default:
				return nil, fmt.Errorf("pricing: unsupported source %T", src)
			}
			list = append(list, src)
		}
		r.sources[entry.Token] = list
	}

	if err := validateGraph(r.sources, r.stable); err != nil {
		return nil, err
	}
	return r, nil
}

// IsStable reports whether token is treated as worth one USD.
func (r *Registry) IsStable(token common.Address) bool {
	return r.stable[token]
}

// Tokens lists every priceable token, stables included, in address order.
func (r *Registry) Tokens() []common.Address {
	out := make([]common.Address, 0, len(r.sources)+len(r.stable))
	for token := range r.sources {
		out = append(out, token)
	}
	for token := range r.stable {
		if _, ok := r.sources[token]; !ok {
			out = append(out, token)
		}
	}
	slices.SortFunc(out, func(a, b common.Address) int { return bytes.Compare(a[:], b[:]) })
	return out
}

// ResolvePriceUSD tries each source of token in order and returns the first
// price that resolves. Results are cached per token for the registry TTL.
func (r *Registry) ResolvePriceUSD(ctx context.Context, token common.Address) (float64, error) {
	key := "price:" + strings.ToLower(token.Hex())
	return cache.Memoize(ctx, r.cache, key, r.ttl, func(ctx context.Context) (float64, error) {
		return r.resolve(ctx, token)
	})
}

func (r *Registry) resolve(ctx context.Context, token common.Address) (float64, error) {
	list, ok := r.sources[token]
	if !ok && r.stable[token] {
		return 1, nil
	}

	priceErr := &PriceError{Token: token}
	for _, src := range list {
		price, err := r.resolveSource(ctx, token, src)
		if err == nil {
			err = checkPrice(price)
		}
		if err == nil {
			return price, nil
		}
		r.logger.Debug("price source failed",
			zap.String("token", token.Hex()),
			zap.String("source", src.String()),
			zap.Error(err),
		)
		priceErr.Attempts = append(priceErr.Attempts, fmt.Errorf("%s: %w", src, err))
		if ctx.Err() != nil {
			break
		}
	}
	return 0, priceErr
}

func (r *Registry) resolveSource(ctx context.Context, token common.Address, src Source) (float64, error) {
	switch s := src.(type) {
	case Fixed:
		return s.USD, nil
	case Pool:
		return r.resolvePool(ctx, s)
	case Oracle:
		return r.fetchOracle(ctx, s)
	default:
		return 0, fmt.Errorf("unsupported source %T", src)
	}
}

func (r *Registry) resolvePool(ctx context.Context, src Pool) (float64, error) {
	tokens, err := r.pools.PoolTokens(ctx, src.Pool)
	if err != nil {
		return 0, fmt.Errorf("pool tokens: %w", err)
	}
	sqrt, _, err := r.pools.Slot0(ctx, src.Pool)
	if err != nil {
		return 0, fmt.Errorf("slot0: %w", err)
	}
	meta0, err := r.pools.TokenMetadata(ctx, tokens[0])
	if err != nil {
		return 0, fmt.Errorf("token0 metadata: %w", err)
	}
	meta1, err := r.pools.TokenMetadata(ctx, tokens[1])
	if err != nil {
		return 0, fmt.Errorf("token1 metadata: %w", err)
	}

	// token1 per token0
	ratio := v3math.SqrtRatioX96ToPrice(sqrt, meta0.Decimals, meta1.Decimals)
	var price float64
	switch {
	case src.Base == tokens[0] && src.Quote == tokens[1]:
		price = ratio
	case src.Base == tokens[1] && src.Quote == tokens[0]:
		if ratio == 0 {
			return 0, fmt.Errorf("pool %s has zero price", src.Pool.Hex())
		}
		price = 1 / ratio
		if err := checkPrice(price); err != nil {
			return 0, fmt.Errorf("pool %s inverse: %w", src.Pool.Hex(), err)
		}
	default:
		return 0, fmt.Errorf("pool %s does not hold %s/%s", src.Pool.Hex(), src.Base.Hex(), src.Quote.Hex())
	}

	if r.stable[src.Quote] {
		return price, nil
	}
	quoteUSD, err := r.ResolvePriceUSD(ctx, src.Quote)
	if err != nil {
		return 0, fmt.Errorf("quote %s: %w", src.Quote.Hex(), err)
	}
	price *= quoteUSD
	if err := checkPrice(price); err != nil {
		return 0, fmt.Errorf("pool %s via %s: %w", src.Pool.Hex(), src.Quote.Hex(), err)
	}
	return price, nil
}

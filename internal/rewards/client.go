package rewards

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"positionScope/internal/cache"
	"positionScope/internal/pricing"
	"positionScope/internal/resilience"
)

const (
	DefaultURL     = "https://v3.dex.enosys.global/api/flr/v2/stats/rflr"
	DefaultTTL     = 30 * time.Second
	DefaultTimeout = 10 * time.Second
)

// ErrDisabled is returned when no reward URL is configured.
var ErrDisabled = errors.New("reward oracle disabled")

// Config configures the reward oracle.
type Config struct {
	URL        string
	TTL        time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client reads per position incentive rewards from an HTTP oracle that
// answers GET {url}/{tokenId} with a bare JSON number.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.Cache
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

func New(cfg Config, memo *cache.Cache, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if memo == nil {
		memo = cache.New()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		http:    cfg.HTTPClient,
		cache:   memo,
		ttl:     cfg.TTL,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Enabled reports whether a reward URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Reward returns the reward token amount accrued by tokenID.
func (c *Client) Reward(ctx context.Context, tokenID *big.Int) (decimal.Decimal, error) {
	if !c.Enabled() {
		return decimal.Zero, ErrDisabled
	}
	if tokenID == nil {
		return decimal.Zero, fmt.Errorf("token id is nil")
	}
	key := "reward:" + tokenID.String()
	return cache.Memoize(ctx, c.cache, key, c.ttl, func(ctx context.Context) (decimal.Decimal, error) {
		return c.fetch(ctx, tokenID)
	})
}

func (c *Client) fetch(ctx context.Context, tokenID *big.Int) (decimal.Decimal, error) {
	target := c.baseURL + "/" + tokenID.String()
	return resilience.WithTimeout(ctx, c.timeout, "reward oracle timeout", func(ctx context.Context) (decimal.Decimal, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return decimal.Zero, err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return decimal.Zero, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			c.logger.Warn("reward oracle returned non-200",
				zap.String("token_id", tokenID.String()),
				zap.Int("status", resp.StatusCode),
			)
			return decimal.Zero, fmt.Errorf("reward oracle status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return decimal.Zero, err
		}
		value, err := pricing.ExtractNumber(body, "")
		if err != nil {
			return decimal.Zero, fmt.Errorf("reward for %s: %w", tokenID, err)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return decimal.Zero, fmt.Errorf("reward for %s is not finite", tokenID)
		}
		return decimal.NewFromFloat(value), nil
	})
}

// Clear drops every cached reward.
func (c *Client) Clear() {
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, "reward:") {
			c.cache.Clear(key)
		}
	}
}

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"positionScope/internal/resilience"
)

var (
	ErrNoEndpoints        = errors.New("chain: no rpc endpoints configured")
	ErrAllEndpointsFailed = errors.New("chain: all rpc endpoints failed")
)

// RPCError is a failed call against one endpoint.
type RPCError struct {
	Endpoint string
	Method   string
	Err      error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s via %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *RPCError) Unwrap() error {
	return e.Err
}

// Caller is the read-only surface used by contract readers.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BatchCallContract(ctx context.Context, msgs []ethereum.CallMsg) ([]CallResult, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// CallResult is one element of a batched eth_call.
type CallResult struct {
	Data []byte
	Err  error
}

// Observer is told about every endpoint attempt.
type Observer func(endpoint, method string, elapsed time.Duration, err error)

type endpoint struct {
	url string
	rpc *rpc.Client
	eth *ethclient.Client
}

// Client sends reads to an ordered list of endpoints, moving to the next one
// when an attempt fails or times out.
type Client struct {
	endpoints []*endpoint
	timeout   time.Duration
	logger    *zap.Logger
	observer  Observer

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// Option configures a Client.
type Option func(*Client)

func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient dials every endpoint. HTTP endpoints connect lazily, so an
// unreachable node only shows up on the first call.
func NewClient(ctx context.Context, urls []string, timeout time.Duration, logger *zap.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		timeout: timeout,
		logger:  logger,
		tsCache: make(map[uint64]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		rpcClient, err := rpc.DialContext(ctx, url)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}
		c.endpoints = append(c.endpoints, &endpoint{
			url: url,
			rpc: rpcClient,
			eth: ethclient.NewClient(rpcClient),
		})
	}
	if len(c.endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	return c, nil
}

// Close closes the underlying RPC clients.
func (c *Client) Close() {
	for _, ep := range c.endpoints {
		ep.rpc.Close()
	}
}

// Endpoints returns the configured URLs in fallback order.
func (c *Client) Endpoints() []string {
	urls := make([]string, len(c.endpoints))
	for i, ep := range c.endpoints {
		urls[i] = ep.url
	}
	return urls
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return attempt(ctx, c, "eth_chainId", func(ctx context.Context, ep *endpoint) (*big.Int, error) {
		return ep.eth.ChainID(ctx)
	})
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return attempt(ctx, c, "eth_blockNumber", func(ctx context.Context, ep *endpoint) (uint64, error) {
		return ep.eth.BlockNumber(ctx)
	})
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return attempt(ctx, c, "eth_getBlockByNumber", func(ctx context.Context, ep *endpoint) (*types.Header, error) {
		return ep.eth.HeaderByNumber(ctx, number)
	})
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// CallContract performs an eth_call, falling back across endpoints.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return attempt(ctx, c, "eth_call", func(ctx context.Context, ep *endpoint) ([]byte, error) {
		return ep.eth.CallContract(ctx, msg, blockNumber)
	})
}

// BatchCallContract sends all calls in one JSON-RPC batch against the latest
// block. Transport failures move the whole batch to the next endpoint;
// per-call failures are reported in the matching CallResult.
func (c *Client) BatchCallContract(ctx context.Context, msgs []ethereum.CallMsg) ([]CallResult, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	return attempt(ctx, c, "eth_call_batch", func(ctx context.Context, ep *endpoint) ([]CallResult, error) {
		outputs := make([]hexutil.Bytes, len(msgs))
		batch := make([]rpc.BatchElem, len(msgs))
		for i, msg := range msgs {
			batch[i] = rpc.BatchElem{
				Method: "eth_call",
				Args:   []any{toCallArg(msg), "latest"},
				Result: &outputs[i],
			}
		}
		if err := ep.rpc.BatchCallContext(ctx, batch); err != nil {
			return nil, err
		}

		results := make([]CallResult, len(msgs))
		for i := range batch {
			results[i] = CallResult{Data: outputs[i], Err: batch[i].Error}
		}
		return results, nil
	})
}

func attempt[T any](ctx context.Context, c *Client, method string, fn func(context.Context, *endpoint) (T, error)) (T, error) {
	var zero T
	errs := make([]error, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		start := time.Now()
		out, err := resilience.WithTimeout(ctx, c.timeout, method+" via "+ep.url+" timed out", func(ctx context.Context) (T, error) {
			return fn(ctx, ep)
		})
		if c.observer != nil {
			c.observer(ep.url, method, time.Since(start), err)
		}
		if err == nil {
			return out, nil
		}

		rpcErr := &RPCError{Endpoint: ep.url, Method: method, Err: err}
		if ctx.Err() != nil || isRevert(err) {
			return zero, rpcErr
		}
		c.logger.Debug("rpc endpoint failed, trying next",
			zap.String("endpoint", ep.url),
			zap.String("method", method),
			zap.Error(err),
		)
		errs = append(errs, rpcErr)
	}
	return zero, errors.Join(append([]error{ErrAllEndpointsFailed}, errs...)...)
}

// isRevert reports execution reverts, which every endpoint would repeat.
func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 3 {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}

func toCallArg(msg ethereum.CallMsg) map[string]any {
	arg := map[string]any{
		"to":   msg.To,
		"data": hexutil.Bytes(msg.Data),
	}
	if msg.From != (common.Address{}) {
		arg["from"] = msg.From
	}
	return arg
}

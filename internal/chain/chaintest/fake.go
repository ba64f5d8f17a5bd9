// Package chaintest provides an in-memory chain.Caller for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"positionScope/internal/chain"
)

// ErrNoHandler is returned for calls nobody registered.
var ErrNoHandler = errors.New("chaintest: no handler")

// Handler answers one contract method with decoded arguments.
type Handler func(args []any) ([]any, error)

type route struct {
	method abi.Method
	fn     Handler
}

// Caller dispatches eth_call by target address and selector.
type Caller struct {
	mu         sync.Mutex
	routes     map[common.Address]map[[4]byte]route
	calls      map[string]int
	block      uint64
	timestamps map[uint64]uint64
}

var _ chain.Caller = (*Caller)(nil)

func New() *Caller {
	return &Caller{
		routes:     make(map[common.Address]map[[4]byte]route),
		calls:      make(map[string]int),
		timestamps: make(map[uint64]uint64),
	}
}

// Handle registers fn for method on contract to.
func (c *Caller) Handle(to common.Address, parsed abi.ABI, method string, fn Handler) {
	m, ok := parsed.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: method %s not in abi", method))
	}
	var selector [4]byte
	copy(selector[:], m.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.routes[to] == nil {
		c.routes[to] = make(map[[4]byte]route)
	}
	c.routes[to][selector] = route{method: m, fn: fn}
}

// Returns registers a constant answer.
func (c *Caller) Returns(to common.Address, parsed abi.ABI, method string, values ...any) {
	c.Handle(to, parsed, method, func([]any) ([]any, error) { return values, nil })
}

// Fails registers a constant error.
func (c *Caller) Fails(to common.Address, parsed abi.ABI, method string, err error) {
	c.Handle(to, parsed, method, func([]any) ([]any, error) { return nil, err })
}

// SetBlock sets the block number and its timestamp.
func (c *Caller) SetBlock(number, timestamp uint64) {
	c.mu.Lock()
	c.block = number
	c.timestamps[number] = timestamp
	c.mu.Unlock()
}

// SetTimestamp records a block timestamp.
func (c *Caller) SetTimestamp(number, timestamp uint64) {
	c.mu.Lock()
	c.timestamps[number] = timestamp
	c.mu.Unlock()
}

// Calls returns how many times method was called across all contracts.
func (c *Caller) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Caller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("chaintest: malformed call")
	}
	var selector [4]byte
	copy(selector[:], msg.Data[:4])

	c.mu.Lock()
	r, ok := c.routes[*msg.To][selector]
	if ok {
		c.calls[r.method.Name]++
	}
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s selector %x", ErrNoHandler, msg.To.Hex(), selector)
	}

	args, err := r.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("chaintest: unpack %s: %w", r.method.Name, err)
	}
	values, err := r.fn(args)
	if err != nil {
		return nil, err
	}
	return r.method.Outputs.Pack(values...)
}

func (c *Caller) BatchCallContract(ctx context.Context, msgs []ethereum.CallMsg) ([]chain.CallResult, error) {
	results := make([]chain.CallResult, len(msgs))
	for i, msg := range msgs {
		data, err := c.CallContract(ctx, msg, nil)
		results[i] = chain.CallResult{Data: data, Err: err}
	}
	return results, nil
}

func (c *Caller) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block, nil
}

func (c *Caller) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.timestamps[number]
	if !ok {
		return 0, fmt.Errorf("chaintest: no timestamp for block %d", number)
	}
	return ts, nil
}

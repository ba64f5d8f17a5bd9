package pricing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Source kinds as written in configuration.
const (
	KindFixed  = "fixed"
	KindPool   = "pool"
	KindOracle = "oracle"
)

// Source is one way of pricing a token in USD.
type Source interface {
	Kind() string
	String() string
}

// Fixed always returns USD.
type Fixed struct {
	USD float64
}

func (Fixed) Kind() string { return KindFixed }

func (s Fixed) String() string { return fmt.Sprintf("fixed(%g)", s.USD) }

// Pool prices Base in Quote from a pool's current sqrt price, then converts
// Quote to USD unless Quote is a stable token.
type Pool struct {
	Pool  common.Address
	Base  common.Address
	Quote common.Address
}

func (Pool) Kind() string { return KindPool }

func (s Pool) String() string { return fmt.Sprintf("pool(%s)", s.Pool.Hex()) }

// Oracle reads a number from an HTTP JSON feed. Field is a dot separated
// path into the response; empty means the body itself is the number.
type Oracle struct {
	URL   string
	Field string
}

func (Oracle) Kind() string { return KindOracle }

func (s Oracle) String() string { return fmt.Sprintf("oracle(%s)", s.URL) }

// TokenSources lists the sources of one token in the order they are tried.
type TokenSources struct {
	Token   common.Address
	Sources []Source
}

package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoSourceResolved means every configured source of a token failed.
var ErrNoSourceResolved = errors.New("pricing: no source resolved")

// PriceError carries the failure of each attempted source.
type PriceError struct {
	Token    common.Address
	Attempts []error
}

func (e *PriceError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s for %s: no sources configured", ErrNoSourceResolved, e.Token.Hex())
	}
	parts := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%s for %s: %s", ErrNoSourceResolved, e.Token.Hex(), strings.Join(parts, "; "))
}

func (e *PriceError) Unwrap() []error {
	return append([]error{ErrNoSourceResolved}, e.Attempts...)
}

// CycleError reports a token that transitively prices itself.
type CycleError struct {
	Path []common.Address
}

func (e *CycleError) Error() string {
	hops := make([]string, len(e.Path))
	for i, token := range e.Path {
		hops[i] = token.Hex()
	}
	return "pricing: quote cycle " + strings.Join(hops, " -> ")
}

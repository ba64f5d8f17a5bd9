package pricing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// validateGraph checks the token -> quote edges introduced by pool sources.
// Every non-stable quote must itself be priceable, and no token may reach
// itself through quotes.
func validateGraph(sources map[common.Address][]Source, stable map[common.Address]bool) error {
	edges := make(map[common.Address][]common.Address, len(sources))
	for token, list := range sources {
		for _, src := range list {
			pool, ok := src.(Pool)
			if !ok {
				continue
			}
			if pool.Quote == token {
				return &CycleError{Path: []common.Address{token, token}}
			}
			if stable[pool.Quote] {
				continue
			}
			if _, known := sources[pool.Quote]; !known {
				return fmt.Errorf("pricing: %s quotes %s which has no sources and is not stable", token.Hex(), pool.Quote.Hex())
			}
			edges[token] = append(edges[token], pool.Quote)
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[common.Address]int, len(edges))
	var stack []common.Address

	var visit func(token common.Address) error
	visit = func(token common.Address) error {
		switch state[token] {
		case visiting:
			path := []common.Address{token}
			for i := len(stack) - 1; i >= 0; i-- {
				path = append([]common.Address{stack[i]}, path...)
				if stack[i] == token {
					break
				}
			}
			return &CycleError{Path: path}
		case done:
			return nil
		}
		state[token] = visiting
		stack = append(stack, token)
		for _, next := range edges[token] {
			if err := visit(next); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[token] = done
		return nil
	}

	for token := range edges {
		if err := visit(token); err != nil {
			return err
		}
	}
	return nil
}

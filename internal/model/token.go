package model

import "github.com/ethereum/go-ethereum/common"

// TokenMetadata captures ERC20 metadata.
type TokenMetadata struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
}

package position

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrDiscoveryUnavailable means the wallet's positions could not be listed at
// all, as opposed to the wallet owning none.
var ErrDiscoveryUnavailable = errors.New("position discovery unavailable")

// Enrichment steps.
const (
	StepPosition     = "position"
	StepOwner        = "owner"
	StepMetadata0    = "metadata0"
	StepMetadata1    = "metadata1"
	StepPool         = "pool"
	StepSlot0        = "slot0"
	StepAmounts      = "amounts"
	StepPrice0       = "price0"
	StepPrice1       = "price1"
	StepRewardPrice  = "reward_price"
	StepFees         = "fees"
	StepReward       = "reward"
	StepCreationDate = "creation_date"
)

// PartialEnrichmentFailure records one step of an enrichment that failed.
// Optional steps attach it to the position as a warning; required steps
// return it and the position is dropped.
type PartialEnrichmentFailure struct {
	TokenID *big.Int
	Step    string
	Err     error
}

func (e *PartialEnrichmentFailure) Error() string {
	return fmt.Sprintf("position %s: %s: %v", e.TokenID, e.Step, e.Err)
}

func (e *PartialEnrichmentFailure) Unwrap() error {
	return e.Err
}

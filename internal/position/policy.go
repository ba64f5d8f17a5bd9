package position

import (
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"positionScope/internal/dex"
	"positionScope/internal/model"
)

// Orchestration defaults.
const (
	DefaultConcurrency = 5
	DiscoveryBatchSize = 10
)

// Values substituted for metadata that could not be read.
const (
	UnknownSymbol   = "UNKNOWN"
	UnknownName     = "Unknown Token"
	DefaultDecimals = 18
)

// ActiveTVLThreshold is the USD value above which a position counts as Active.
var ActiveTVLThreshold = decimal.NewFromInt(1)

// metadataOrDefault fills the fields that a failed read left empty. A
// *dex.MetadataError names the missing fields; any other error defaults all
// of them. The returned bool reports whether anything was defaulted.
func metadataOrDefault(token common.Address, meta model.TokenMetadata, err error) (model.TokenMetadata, bool) {
	if err == nil {
		return meta, false
	}
	meta.Address = token

	missing := func(string) bool { return true }
	var metaErr *dex.MetadataError
	if errors.As(err, &metaErr) {
		missing = metaErr.Has
	}
	if missing(dex.FieldDecimals) {
		meta.Decimals = DefaultDecimals
	}
	if missing(dex.FieldSymbol) || meta.Symbol == "" {
		meta.Symbol = UnknownSymbol
	}
	if missing(dex.FieldName) || meta.Name == "" {
		meta.Name = UnknownName
	}
	return meta, true
}

// priceOrZero applies the zero price default. A resolved price that is not a
// finite non-negative number counts as a failure.
func priceOrZero(price float64, err error) (decimal.Decimal, error) {
	if err != nil {
		return decimal.Zero, err
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return decimal.Zero, fmt.Errorf("unusable price %v", price)
	}
	return decimal.NewFromFloat(price), nil
}

// Status classifies a position by its USD value.
func Status(tvlUSD decimal.Decimal) string {
	if tvlUSD.GreaterThan(ActiveTVLThreshold) {
		return model.StatusActive
	}
	return model.StatusInactive
}

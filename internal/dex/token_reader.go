package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/cache"
	"positionScope/internal/model"
)

// Metadata field names reported by MetadataError.
const (
	FieldDecimals = "decimals"
	FieldSymbol   = "symbol"
	FieldName     = "name"
)

// TokenMetadata reads decimals, symbol and name in one batched call, falling
// back to the bytes32 encoding for symbol and name. Complete results are
// cached for MetadataTTL; a partial result is returned together with a
// *MetadataError and is not cached.
func (r *Reader) TokenMetadata(ctx context.Context, token common.Address) (model.TokenMetadata, error) {
	key := "token-metadata:" + strings.ToLower(token.Hex())
	meta, err := cache.Memoize(ctx, r.cache, key, r.cfg.MetadataTTL, func(ctx context.Context) (model.TokenMetadata, error) {
		return r.fetchTokenMetadata(ctx, token)
	})
	if err != nil {
		var metaErr *MetadataError
		if errors.As(err, &metaErr) {
			return metaErr.partial, err
		}
		return model.TokenMetadata{Address: token}, err
	}
	return meta, nil
}

func (r *Reader) fetchTokenMetadata(ctx context.Context, token common.Address) (model.TokenMetadata, error) {
	meta := model.TokenMetadata{Address: token}
	methods := []string{FieldDecimals, FieldSymbol, FieldName}

	msgs := make([]ethereum.CallMsg, len(methods))
	for i, method := range methods {
		data, err := r.erc20ABI.Pack(method)
		if err != nil {
			return meta, fmt.Errorf("pack %s: %w", method, err)
		}
		msgs[i] = ethereum.CallMsg{To: &token, Data: data}
	}

	failures := make(map[string]error, len(methods))
	results, err := r.caller.BatchCallContract(ctx, msgs)
	if err != nil || len(results) != len(methods) {
		if err == nil {
			err = fmt.Errorf("batch returned %d results for %d calls", len(results), len(methods))
		}
		for _, method := range methods {
			failures[method] = err
		}
	} else {
		for i, method := range methods {
			if results[i].Err != nil {
				failures[method] = results[i].Err
				continue
			}
			if err := r.decodeMetadataField(method, results[i].Data, &meta); err != nil {
				failures[method] = err
			}
		}
	}

	for _, method := range []string{FieldSymbol, FieldName} {
		if failures[method] == nil {
			continue
		}
		var raw [32]byte
		if err := r.call(ctx, r.erc20Bytes32ABI, token, method, &raw); err != nil {
			r.logger.Debug("bytes32 metadata fallback failed",
				zap.String("token", token.Hex()),
				zap.String("field", method),
				zap.Error(err),
			)
			continue
		}
		value := bytes32ToString(raw)
		if method == FieldSymbol {
			meta.Symbol = value
		} else {
			meta.Name = value
		}
		delete(failures, method)
	}

	if len(failures) == 0 {
		return meta, nil
	}
	metaErr := &MetadataError{Token: token, partial: meta}
	errs := make([]error, 0, len(failures))
	for _, method := range methods {
		if err, ok := failures[method]; ok {
			metaErr.Missing = append(metaErr.Missing, method)
			errs = append(errs, fmt.Errorf("%s: %w", method, err))
		}
	}
	metaErr.Err = errors.Join(errs...)
	return meta, metaErr
}

func (r *Reader) decodeMetadataField(method string, data []byte, meta *model.TokenMetadata) error {
	switch method {
	case FieldDecimals:
		return decodeOutputs(r.erc20ABI, method, data, &meta.Decimals)
	case FieldSymbol:
		return decodeOutputs(r.erc20ABI, method, data, &meta.Symbol)
	case FieldName:
		return decodeOutputs(r.erc20ABI, method, data, &meta.Name)
	default:
		return fmt.Errorf("unknown metadata field %s", method)
	}
}

// TokenBalance returns the ERC20 balance of account.
func (r *Reader) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := r.call(ctx, r.erc20ABI, token, "balanceOf", &balance, account); err != nil {
		return nil, err
	}
	return balance, nil
}

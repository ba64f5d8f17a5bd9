package explorer

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	poolAddress = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	wflrToken   = common.HexToAddress("0x1D80c49BbBCd1C0911346656B529DF9E5c2F783d")
)

func TestActivity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api":
			assert.Equal(t, "getcontractcreation", r.URL.Query().Get("action"))
			writeV1(t, w, "1", "OK", []map[string]string{{"contractAddress": poolAddress.Hex(), "contractCreator": "0xfactory", "txHash": "0xdeploy"}})
		case strings.HasSuffix(r.URL.Path, "/transactions"):
			assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"hash": "0xlatest", "block_number": 41000000, "method": "swap", "status": "ok"},
					{"hash": "0xolder", "block_number": 40999990, "method": "mint", "status": "ok"},
				},
			}))
		case strings.HasPrefix(r.URL.Path, "/api/v2/tokens/"):
			assert.NoError(t, json.NewEncoder(w).Encode(map[string]string{
				"address": wflrToken.Hex(), "symbol": "WFLR", "decimals": "18", "exchange_rate": "0.02",
			}))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	activity, err := client.Activity(context.Background(), poolAddress, []common.Address{wflrToken})
	require.NoError(t, err)
	assert.Equal(t, "0xfactory", activity.Creator)
	assert.Equal(t, "0xdeploy", activity.CreationTx)
	assert.Equal(t, 2, activity.RecentTransactions)
	require.NotNil(t, activity.LastTransaction)
	assert.Equal(t, "0xlatest", activity.LastTransaction.Hash)
	assert.Equal(t, uint64(41_000_000), activity.LastTransaction.BlockNumber)
	require.Len(t, activity.Tokens, 1)
	assert.Equal(t, "WFLR", activity.Tokens[0].Symbol)
	assert.Equal(t, "0.02", activity.Tokens[0].ExchangeRate)
}

func TestActivityTokenFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api":
			writeV1(t, w, "0", "No records found", []any{})
		case strings.HasSuffix(r.URL.Path, "/transactions"):
			_, _ = w.Write([]byte(`{"items":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	_, err := client.Activity(context.Background(), poolAddress, []common.Address{wflrToken})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token "+wflrToken.Hex())
}

func TestNewLogsRequestRate(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	_, err := New(Config{RPS: 4, Timeout: time.Second}, zap.New(core))
	require.NoError(t, err)

	entries := logs.FilterMessage("explorer client ready").All()
	require.Len(t, entries, 1)
	assert.Equal(t, 4.0, entries[0].ContextMap()["rps"])
	assert.Equal(t, DefaultV2URL, entries[0].ContextMap()["v2"])
}

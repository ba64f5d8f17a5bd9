package main

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"positionScope/internal/metrics"
	"positionScope/internal/position"
)

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, []tokenPrice{{Token: "0xabc", USD: 1.5}}))
	assert.JSONEq(t, `[{"token":"0xabc","usd":1.5}]`, buf.String())
}

func TestCronLoggerRoutesErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := cronLogger{zap.New(core).Sugar()}

	l.Info("wake", "now", 1)
	l.Error(errors.New("boom"), "panic", "job", "scan")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestObserveScanFeedsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	observe := observeScan(m)
	wallet := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	report := position.ScanReport{Summary: position.Summary{Active: 2, Inactive: 1, TVLUSD: decimal.NewFromFloat(12.5)}}
	observe(wallet, report, time.Second, nil)
	observe(wallet, position.ScanReport{}, time.Second, errors.New("rpc down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PositionsTracked.WithLabelValues(wallet.Hex(), "active")))
	assert.Equal(t, 12.5, testutil.ToFloat64(m.WalletTVLUSD.WithLabelValues(wallet.Hex())))
}

type lastScans map[string]time.Time

func (l lastScans) LastScan(_ context.Context, wallet string) (time.Time, bool, error) {
	if wallet == "" {
		return time.Time{}, false, errors.New("wallet required")
	}
	at, ok := l[wallet]
	return at, ok, nil
}

func TestLogLastScans(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	seen := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	fresh := common.HexToAddress("0x00000000000000000000000000000000000000a2")
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	logLastScans(context.Background(), lastScans{seen.Hex(): at}, []common.Address{seen, fresh}, zap.New(core))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "wallet last scanned", entries[0].Message)
	assert.Equal(t, at, entries[0].ContextMap()["at"])
	assert.Equal(t, "wallet never scanned", entries[1].Message)
}

type chainStub struct {
	id  *big.Int
	err error
}

func (c chainStub) ChainID(context.Context) (*big.Int, error) { return c.id, c.err }

func (c chainStub) Endpoints() []string { return []string{"https://flare-api.flare.network/ext/C/rpc"} }

func TestLogChain(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	logChain(context.Background(), chainStub{id: big.NewInt(14)}, logger)
	logChain(context.Background(), chainStub{err: errors.New("dial tcp: refused")}, logger)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "rpc connected", entries[0].Message)
	assert.Equal(t, "14", entries[0].ContextMap()["chain_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

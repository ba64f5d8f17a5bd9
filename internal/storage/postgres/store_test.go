package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionScope/internal/model"
)

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	assert.Error(t, err)
}

func TestWriteEmptyIsNoop(t *testing.T) {
	store := &Store{}
	assert.NoError(t, store.Write(context.Background(), nil))
}

func TestBuildBatch(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Minute)
	rows := []model.PositionRow{
		{ID: "1", WalletAddress: "0xAbC", TVLUSD: decimal.NewFromInt(3), ScanID: "11111111-1111-1111-1111-111111111111", ScannedAt: early, BlockNumber: 41_000_000},
		{ID: "2", WalletAddress: "0xabc", ScanID: "22222222-2222-2222-2222-222222222222", ScannedAt: late},
		{ID: "3", WalletAddress: "0xdef", ScannedAt: early, Warnings: []string{"position 3: reward: timeout"}},
	}

	batch := buildBatch(rows)
	require.Equal(t, 5, batch.Len())

	first := batch.QueuedQueries[0]
	assert.Equal(t, upsertPositionSQL, first.SQL)
	require.Len(t, first.Arguments, 31)
	assert.Equal(t, "0xabc", first.Arguments[0])
	assert.Equal(t, "1", first.Arguments[1])
	assert.Equal(t, []string{}, first.Arguments[27])
	assert.Equal(t, int64(41_000_000), first.Arguments[30])

	assert.Nil(t, batch.QueuedQueries[2].Arguments[28])
	assert.Equal(t, []string{"position 3: reward: timeout"}, batch.QueuedQueries[2].Arguments[27])

	abc := batch.QueuedQueries[3]
	assert.Equal(t, saveScanSQL, abc.SQL)
	assert.Equal(t, []any{"0xabc", "22222222-2222-2222-2222-222222222222", late}, abc.Arguments)

	def := batch.QueuedQueries[4]
	assert.Equal(t, []any{"0xdef", nil, early}, def.Arguments)
}

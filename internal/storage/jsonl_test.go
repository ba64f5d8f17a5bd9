package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionScope/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "positions.jsonl")
	store := NewJsonlStorage(path)
	scanned := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.Write(context.Background(), []model.PositionRow{
		{ID: "1", PairLabel: "WFLR/eUSDT", TVLUSD: decimal.RequireFromString("12.5"), Status: model.StatusActive, ScannedAt: scanned},
	}))
	require.NoError(t, store.Write(context.Background(), []model.PositionRow{
		{ID: "2", TVLUSD: decimal.Zero, Status: model.StatusInactive, ScannedAt: scanned},
	}))
	require.NoError(t, store.Write(context.Background(), nil))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	assert.Equal(t, "1", lines[0]["id"])
	assert.Equal(t, "12.5", lines[0]["tvl_usd"])
	assert.Equal(t, "Active", lines[0]["status"])
	assert.Equal(t, "2024-01-02T03:04:05Z", lines[0]["scanned_at"])
	assert.Equal(t, "2", lines[1]["id"])
}

func TestJsonlStorageRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewJsonlStorage(filepath.Join(t.TempDir(), "positions.jsonl"))
	err := store.Write(ctx, []model.PositionRow{{ID: "1"}})
	assert.ErrorIs(t, err, context.Canceled)
}

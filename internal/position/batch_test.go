package position

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRange(t *testing.T) {
	ranges, err := SplitRange(25, 10)
	require.NoError(t, err)
	assert.Equal(t, []IndexRange{{0, 9}, {10, 19}, {20, 24}}, ranges)
	assert.Equal(t, 5, ranges[2].Len())
}

func TestSplitRangeExactMultiple(t *testing.T) {
	ranges, err := SplitRange(10, 5)
	require.NoError(t, err)
	assert.Equal(t, []IndexRange{{0, 4}, {5, 9}}, ranges)
}

func TestSplitRangeEmpty(t *testing.T) {
	ranges, err := SplitRange(0, 10)
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestSplitRangeInvalidBatch(t *testing.T) {
	_, err := SplitRange(3, 0)
	assert.Error(t, err)
}

func TestBatchAtNearMaxCount(t *testing.T) {
	assert.Equal(t, IndexRange{0, 9}, batchAt(0, math.MaxUint64, 10))
	assert.Equal(t, IndexRange{math.MaxUint64 - 5, math.MaxUint64 - 1}, batchAt(math.MaxUint64-5, math.MaxUint64, 10))
}

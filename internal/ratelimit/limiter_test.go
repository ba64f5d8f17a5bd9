package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterDelaysThirdAcquire(t *testing.T) {
	limiter, err := New(2)
	require.NoError(t, err)

	start := time.Now()
	elapsed := make([]time.Duration, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, limiter.Acquire(context.Background()))
			elapsed[i] = time.Since(start)
		}(i)
	}
	wg.Wait()

	sort.Slice(elapsed, func(i, j int) bool { return elapsed[i] < elapsed[j] })
	assert.Less(t, elapsed[0], 100*time.Millisecond)
	assert.Less(t, elapsed[1], 100*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed[2], 450*time.Millisecond)
}

func TestLimiterRespectsContext(t *testing.T) {
	limiter, err := New(1)
	require.NoError(t, err)
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Acquire(ctx))
}

func TestNewRejectsNonPositiveRate(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}

func TestRequestsPerSecond(t *testing.T) {
	limiter, err := New(2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, limiter.RequestsPerSecond())
}

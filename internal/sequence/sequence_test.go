// internal/sequence/sequence_test.go
package sequence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNextFormat(t *testing.T) {
	g := New(nil)
	g.nowFn = fixedClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

	n, err := g.Next(context.Background(), "ORD")
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260314-000001", n)

	n, err = g.Next(context.Background(), "ORD")
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260314-000002", n)
}

func TestPrefixesCountIndependently(t *testing.T) {
	g := New(nil)
	g.nowFn = fixedClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

	_, err := g.Next(context.Background(), "ORD")
	require.NoError(t, err)

	n, err := g.Next(context.Background(), "RFQ")
	require.NoError(t, err)
	assert.Equal(t, "RFQ-20260314-000001", n)
}

func TestCounterResetsAcrossDays(t *testing.T) {
	g := New(nil)
	g.nowFn = fixedClock(time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC))

	_, err := g.Next(context.Background(), "ORD")
	require.NoError(t, err)

	g.nowFn = fixedClock(time.Date(2026, 3, 15, 0, 1, 0, 0, time.UTC))
	n, err := g.Next(context.Background(), "ORD")
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260315-000001", n)
}

func TestConcurrentAllocationsAreUnique(t *testing.T) {
	g := New(nil)
	g.nowFn = fixedClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

	const workers = 50
	var (
		mu      sync.Mutex
		numbers = make(map[string]bool, workers)
		wg      sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := g.Next(context.Background(), "ORD")
			assert.NoError(t, err)
			mu.Lock()
			numbers[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, workers)
}

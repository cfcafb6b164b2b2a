package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue([]string{"a", "b", "c"})
	require.Equal(t, 3, q.Size())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Next()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := q.Next()
	require.False(t, ok)
	require.Equal(t, 0, q.Size())
}

func TestQueueDoesNotAliasInput(t *testing.T) {
	t.Parallel()

	urls := []string{"a", "b"}
	q := NewQueue(urls)
	urls[0] = "mutated"

	got, ok := q.Next()
	require.True(t, ok)
	require.Equal(t, "a", got)
}

func TestQueueStats(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	q := NewQueue([]string{"a", "b", "c", "d"}, WithClock(func() time.Time { return now }))

	empty := q.Stats()
	require.Equal(t, 4, empty.Total)
	require.Equal(t, 4, empty.Remaining)
	require.Zero(t, empty.SuccessRate)

	q.Next()
	q.Next()
	q.RecordFailure()
	now = start.Add(90 * time.Second)

	stats := q.Stats()
	require.Equal(t, Stats{
		Total:       4,
		Processed:   2,
		Remaining:   2,
		Failed:      1,
		Elapsed:     90 * time.Second,
		SuccessRate: 0.5,
	}, stats)
	require.LessOrEqual(t, stats.Failed, stats.Processed)
}

func TestQueueConcurrentDequeueIsExclusive(t *testing.T) {
	t.Parallel()

	const n = 500
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://shop.test/product/%d", i)
	}
	q := NewQueue(urls)

	var (
		mu   sync.Mutex
		seen = make(map[string]int, n)
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				url, ok := q.Next()
				if !ok {
					return
				}
				mu.Lock()
				seen[url]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	for url, count := range seen {
		require.Equal(t, 1, count, url)
	}
	stats := q.Stats()
	require.Equal(t, n, stats.Processed)
	require.Zero(t, stats.Remaining)
}

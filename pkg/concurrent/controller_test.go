package concurrent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteWithTimeoutRespectsLimit(t *testing.T) {
	c := NewConcurrencyController(2)
	var running, peak int32

	tasks := make([]Task[int], 0, 6)
	for i := 0; i < 6; i++ {
		i := i
		tasks = append(tasks, func(ctx context.Context) (int, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return i, nil
		})
	}

	results, err := ExecuteWithTimeout(c, context.Background(), tasks, time.Second)
	require.NoError(t, err)
	assert.Len(t, results, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestExecuteWithTimeoutDeadline(t *testing.T) {
	c := NewConcurrencyController(1)
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	}

	results, err := ExecuteWithTimeout(c, context.Background(), tasks, 10*time.Millisecond)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Len(t, results, 1)
	assert.Error(t, results[0].Error)
}

func TestBatchProcessor(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string

	bp := NewBatchProcessor(2, func(batch []string) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, batch)
	})

	bp.Add("a")
	assert.Equal(t, 1, bp.Pending())
	bp.Add("b")
	bp.Add("c")
	bp.Flush()
	bp.Wait()

	assert.Equal(t, 0, bp.Pending())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 2)
	total := len(batches[0]) + len(batches[1])
	assert.Equal(t, 3, total)
}

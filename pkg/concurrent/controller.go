package concurrent

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Result pairs a task's value with its error.
type Result[T any] struct {
	Value T
	Error error
}

// Task is one unit of work run by ExecuteWithTimeout.
type Task[T any] func(ctx context.Context) (T, error)

// ConcurrencyController caps how many tasks run at once.
type ConcurrencyController struct {
	semaphore chan struct{}
}

// NewConcurrencyController creates a controller allowing maxConcurrency
// tasks in parallel; values below 1 are treated as 1.
func NewConcurrencyController(maxConcurrency int) *ConcurrencyController {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &ConcurrencyController{
		semaphore: make(chan struct{}, maxConcurrency),
	}
}

// ExecuteWithTimeout runs tasks under the controller's limit and returns the
// results in completion order. When the timeout elapses first, the results
// gathered so far are returned with context.DeadlineExceeded.
func ExecuteWithTimeout[T any](
	c *ConcurrencyController,
	ctx context.Context,
	tasks []Task[T],
	timeout time.Duration,
) ([]Result[T], error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var wg sync.WaitGroup
	resultChan := make(chan Result[T], len(tasks))

	for _, task := range tasks {
		wg.Add(1)
		go executeTask(c, timeoutCtx, &wg, task, resultChan)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]Result[T], 0, len(tasks))
	for result := range resultChan {
		results = append(results, result)
	}

	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return results, timeoutCtx.Err()
	}
	return results, nil
}

func executeTask[T any](
	c *ConcurrencyController,
	ctx context.Context,
	wg *sync.WaitGroup,
	task Task[T],
	resultChan chan<- Result[T],
) {
	defer wg.Done()

	select {
	case c.semaphore <- struct{}{}:
	case <-ctx.Done():
		var zero T
		resultChan <- Result[T]{Value: zero, Error: ctx.Err()}
		return
	}
	defer func() { <-c.semaphore }()

	value, err := task(ctx)
	resultChan <- Result[T]{Value: value, Error: err}
}

// BatchProcessor buffers items and hands them to processFunc in batches.
// Each batch is processed on its own goroutine; Wait blocks until all
// dispatched batches are done.
type BatchProcessor[T any] struct {
	batchSize   int
	processFunc func([]T)
	buffer      []T
	mu          sync.Mutex
	inflight    sync.WaitGroup
}

// NewBatchProcessor creates a processor flushing every batchSize items.
func NewBatchProcessor[T any](batchSize int, processFunc func([]T)) *BatchProcessor[T] {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchProcessor[T]{
		batchSize:   batchSize,
		processFunc: processFunc,
		buffer:      make([]T, 0, batchSize),
	}
}

// Add appends item, flushing when the batch is full.
func (bp *BatchProcessor[T]) Add(item T) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	bp.buffer = append(bp.buffer, item)
	if len(bp.buffer) >= bp.batchSize {
		bp.flush()
	}
}

// Flush dispatches whatever is buffered.
func (bp *BatchProcessor[T]) Flush() {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if len(bp.buffer) > 0 {
		bp.flush()
	}
}

// Pending returns the number of buffered, not yet dispatched items.
func (bp *BatchProcessor[T]) Pending() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}

// Wait blocks until every dispatched batch has been processed.
func (bp *BatchProcessor[T]) Wait() {
	bp.inflight.Wait()
}

// flush must be called with mu held.
func (bp *BatchProcessor[T]) flush() {
	batch := make([]T, len(bp.buffer))
	copy(batch, bp.buffer)
	bp.buffer = bp.buffer[:0]

	bp.inflight.Add(1)
	go func() {
		defer bp.inflight.Done()
		bp.processFunc(batch)
	}()
}

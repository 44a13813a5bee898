package policy

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures the concurrency limiter.
type BulkheadConfig struct {
	// MaxParallel is the maximum number of concurrent executions.
	// Default: 10
	MaxParallel int

	// MaxQueue is the number of callers that may wait for a slot. Callers
	// arriving with the queue full are rejected immediately.
	// Default: 0 (no queue, reject when all slots are busy)
	MaxQueue int
}

// Bulkhead bounds concurrent executions of one logical operation so a slow
// dependency cannot exhaust resources shared with unrelated operations.
// Waiters are admitted in arrival order (semaphore.Weighted queues FIFO).
type Bulkhead struct {
	config BulkheadConfig
	sem    *semaphore.Weighted

	mu       sync.Mutex
	active   int
	queued   int
	rejected int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxParallel <= 0 {
		config.MaxParallel = 10
	}
	if config.MaxQueue < 0 {
		config.MaxQueue = 0
	}
	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxParallel)),
	}
}

// Acquire claims an execution slot, waiting in FIFO order behind at most
// MaxQueue other callers. It returns ErrBulkheadFull without blocking when
// the queue is full, or ctx's error if ctx ends while queued.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		b.mu.Lock()
		b.active++
		b.mu.Unlock()
		return nil
	}

	b.mu.Lock()
	if b.queued >= b.config.MaxQueue {
		b.rejected++
		b.mu.Unlock()
		return ErrBulkheadFull
	}
	b.queued++
	b.mu.Unlock()

	err := b.sem.Acquire(ctx, 1)

	b.mu.Lock()
	b.queued--
	if err == nil {
		b.active++
	}
	b.mu.Unlock()
	return err
}

// Release returns a slot, admitting the oldest queued caller if any.
func (b *Bulkhead) Release() {
	b.mu.Lock()
	if b.active == 0 {
		b.mu.Unlock()
		return
	}
	b.active--
	b.mu.Unlock()
	b.sem.Release(1)
}

// BulkheadStats contains bulkhead counters.
type BulkheadStats struct {
	Active      int
	Queued      int
	MaxParallel int
	MaxQueue    int
	Rejected    int64
}

// Stats returns current bulkhead counters.
func (b *Bulkhead) Stats() BulkheadStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadStats{
		Active:      b.active,
		Queued:      b.queued,
		MaxParallel: b.config.MaxParallel,
		MaxQueue:    b.config.MaxQueue,
		Rejected:    b.rejected,
	}
}

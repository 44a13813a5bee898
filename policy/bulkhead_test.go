package policy

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitForQueued(t *testing.T, b *Bulkhead, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.Stats().Queued == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("queued = %d, want %d", b.Stats().Queued, want)
}

func TestBulkheadAdmitsUpToMaxParallel(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxParallel: 2, MaxQueue: 0})

	for i := 0; i < 2; i++ {
		if err := b.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if err := b.Acquire(context.Background()); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("third acquire = %v, want ErrBulkheadFull", err)
	}

	b.Release()
	if err := b.Acquire(context.Background()); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
}

func TestBulkheadQueueAndReject(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxParallel: 2, MaxQueue: 1})

	// 2 executing.
	for i := 0; i < 2; i++ {
		if err := b.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	// 1 queued.
	admitted := make(chan error, 1)
	go func() {
		admitted <- b.Acquire(context.Background())
	}()
	waitForQueued(t, b, 1)

	// The 4th caller is rejected without blocking.
	start := time.Now()
	err := b.Acquire(context.Background())
	if !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("fourth acquire = %v, want ErrBulkheadFull", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("rejection blocked for %v", elapsed)
	}

	stats := b.Stats()
	if stats.Active != 2 || stats.Queued != 1 || stats.Rejected != 1 {
		t.Errorf("stats = %+v, want 2 active / 1 queued / 1 rejected", stats)
	}

	// Releasing a slot admits the queued caller.
	b.Release()
	if err := <-admitted; err != nil {
		t.Fatalf("queued caller got %v", err)
	}
	stats = b.Stats()
	if stats.Active != 2 || stats.Queued != 0 {
		t.Errorf("stats after release = %+v, want 2 active / 0 queued", stats)
	}
}

func TestBulkheadFIFOAdmission(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxParallel: 1, MaxQueue: 2})
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	order := make(chan int, 2)
	enqueue := func(id int) {
		go func() {
			if err := b.Acquire(context.Background()); err == nil {
				order <- id
			}
		}()
	}

	enqueue(1)
	waitForQueued(t, b, 1)
	enqueue(2)
	waitForQueued(t, b, 2)

	b.Release()
	if got := <-order; got != 1 {
		t.Errorf("first admitted = %d, want 1", got)
	}
	b.Release()
	if got := <-order; got != 2 {
		t.Errorf("second admitted = %d, want 2", got)
	}
}

func TestBulkheadCancelWhileQueued(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxParallel: 1, MaxQueue: 1})
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	acquired := make(chan error, 1)
	go func() {
		acquired <- b.Acquire(ctx)
	}()
	waitForQueued(t, b, 1)

	cancel()
	if err := <-acquired; !errors.Is(err, context.Canceled) {
		t.Errorf("queued acquire = %v, want context.Canceled", err)
	}
	if stats := b.Stats(); stats.Queued != 0 {
		t.Errorf("queued = %d after cancellation, want 0", stats.Queued)
	}

	// The held slot is still usable afterwards.
	b.Release()
	if err := b.Acquire(context.Background()); err != nil {
		t.Errorf("acquire after cancel = %v", err)
	}
}

func TestBulkheadReleaseWithoutAcquire(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxParallel: 1})
	b.Release() // must not panic or free a phantom slot

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Acquire(context.Background()); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("second acquire = %v, want ErrBulkheadFull", err)
	}
}

func TestBulkheadDefaults(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{})
	stats := b.Stats()
	if stats.MaxParallel != 10 {
		t.Errorf("MaxParallel = %d, want 10", stats.MaxParallel)
	}
	if stats.MaxQueue != 0 {
		t.Errorf("MaxQueue = %d, want 0", stats.MaxQueue)
	}
}

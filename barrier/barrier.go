package barrier

import (
	"context"
	"sync/atomic"
)

// Barrier lets a goroutine wait until a known number of outcomes have been
// notified from any number of goroutines.
type Barrier struct {
	total int64
	count atomic.Int64
	doneC chan struct{}
}

// New returns a new Barrier that is released after total notifications. A
// total of zero or less returns an already released barrier.
func New(total int) *Barrier {
	b := &Barrier{
		total: int64(total),
		doneC: make(chan struct{}),
	}
	if b.total <= 0 {
		close(b.doneC)
	}
	return b
}

// Notify records one outcome. It returns true only for the notification that
// reached the total, that one releases the waiters.
func (b *Barrier) Notify() bool {
	// Add returns a different value to every caller so only one of them
	// can see the total.
	if b.count.Add(1) != b.total {
		return false
	}

	close(b.doneC)
	return true
}

// Wait blocks until the total has been reached. It returns immediately if
// the barrier has already been released.
func (b *Barrier) Wait() {
	<-b.doneC
}

// WaitContext is like Wait but it returns the context error if the context
// is done before the barrier is released.
func (b *Barrier) WaitContext(ctx context.Context) error {
	select {
	case <-b.doneC:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed when the barrier is released.
func (b *Barrier) Done() <-chan struct{} {
	return b.doneC
}

// Count returns the number of notified outcomes.
func (b *Barrier) Count() int {
	return int(b.count.Load())
}

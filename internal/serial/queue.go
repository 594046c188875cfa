// Package serial provides the FIFO queue that serializes every mutating plan and
// execution operation of a store instance.
package serial

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Queue runs operations one at a time in arrival order.
//
// Waiters suspend on a context-aware semaphore instead of spinning. The slot is held
// for the whole operation, read and write included, and handed to the next waiter
// only when the operation returns. A failing or panicking operation still releases
// the slot, so one error can never stall the operations queued behind it.
type Queue struct {
	sem     *semaphore.Weighted
	waiting atomic.Int64
}

// New returns an empty queue
func New() *Queue {
	return &Queue{sem: semaphore.NewWeighted(1)}
}

// Do waits for its turn and runs fn. An error from fn is returned to this caller
// only. If ctx ends while waiting, fn is not run and ctx.Err() is returned.
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	q.waiting.Add(1)
	acquireErr := q.sem.Acquire(ctx, 1)
	q.waiting.Add(-1)
	if acquireErr != nil {
		return acquireErr
	}
	defer q.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serial: operation panicked: %v", r)
		}
	}()

	return fn(ctx)
}

// Waiting returns the number of callers currently suspended in the queue
func (q *Queue) Waiting() int {
	return int(q.waiting.Load())
}

package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrWorkPanicked wraps a panic recovered from a work function.
var ErrWorkPanicked = errors.New("work function panicked")

// Limiter bounds the number of functions in flight across every caller that
// shares it. Admission is FIFO.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
}

// NewLimiter creates a Limiter admitting n functions at once. n < 1 is
// treated as 1.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		slog.Warn("invalid limiter capacity specified, using default",
			"specified_capacity", n,
			"default_capacity", 1)
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), capacity: n}
}

// Do waits for a free slot, runs fn and releases the slot however fn ends.
// If ctx is done before a slot frees up, Do returns ctx.Err() without
// running fn.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) (err error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inFlight.Add(1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrWorkPanicked, r)
		}
		l.inFlight.Add(-1)
		l.sem.Release(1)
	}()
	return fn(ctx)
}

// InFlight returns the number of functions currently running.
func (l *Limiter) InFlight() int {
	return int(l.inFlight.Load())
}

// Capacity returns the configured concurrency bound.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// Future is the pending result of Submit.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Submit runs fn through l in a new goroutine and returns its future.
func Submit[T any](ctx context.Context, l *Limiter, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.err = l.Do(ctx, func(ctx context.Context) error {
			v, err := fn(ctx)
			f.val = v
			return err
		})
	}()
	return f
}

// Wait blocks until the result is ready or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

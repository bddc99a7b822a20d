// Package waiter provides a single-settlement future.
//
// A Waiter is settled exactly once, either resolved with a value or
// rejected with an error. Later calls to Resolve or Reject are ignored
// and report false, so concurrent settlers can race safely and learn
// whether they won.
package waiter

import (
	"context"
	"sync"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Future is the read side of a Waiter
type Future[T any] interface {
	// Done is closed once the waiter is settled
	Done() <-chan struct{}

	// Wait blocks until the waiter is settled or the context is done
	Wait(context.Context) (T, error)

	// Result returns the outcome without blocking, and false if not settled
	Result() (T, bool, error)
}

type Waiter[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

var _ Future[any] = (*Waiter[any])(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func New[T any]() *Waiter[T] {
	return &Waiter[T]{done: make(chan struct{})}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Resolve settles the waiter with a value. Returns false if the waiter
// was already settled.
func (w *Waiter[T]) Resolve(value T) bool {
	return w.settle(value, nil)
}

// Reject settles the waiter with an error. Returns false if the waiter
// was already settled.
func (w *Waiter[T]) Reject(err error) bool {
	var zero T
	return w.settle(zero, err)
}

// Settle resolves or rejects depending on err
func (w *Waiter[T]) Settle(value T, err error) bool {
	if err != nil {
		return w.Reject(err)
	}
	return w.Resolve(value)
}

func (w *Waiter[T]) Done() <-chan struct{} {
	return w.done
}

// IsDone returns true once the waiter is settled
func (w *Waiter[T]) IsDone() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *Waiter[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-w.done:
		return w.value, w.err
	case <-ctx.Done():
		var zero T
		return zero, context.Cause(ctx)
	}
}

func (w *Waiter[T]) Result() (T, bool, error) {
	if !w.IsDone() {
		var zero T
		return zero, false, nil
	}
	return w.value, true, w.err
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (w *Waiter[T]) settle(value T, err error) bool {
	settled := false
	w.once.Do(func() {
		w.value, w.err = value, err
		settled = true
		close(w.done)
	})
	return settled
}

// Package counter implements an in-flight counter with zero-crossing
// listeners.
//
// Listeners registered with OnceZeroPriority always fire before listeners
// registered with OnceZero on the same zero-crossing, which lets an abort
// watcher deterministically win a race against a completion watcher.
package counter

import (
	"sync"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Counter struct {
	mu       sync.Mutex
	count    int
	priority []func()
	normal   []func()
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func New() *Counter {
	return new(Counter)
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (c *Counter) Increment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

// Decrement the counter. When the count reaches zero, every pending
// priority listener fires in registration order, followed by every
// pending normal listener in registration order.
func (c *Counter) Decrement() {
	c.mu.Lock()
	c.count--
	if c.count != 0 {
		c.mu.Unlock()
		return
	}
	priority, normal := c.priority, c.normal
	c.priority, c.normal = nil, nil
	c.mu.Unlock()

	// Listeners run outside the lock so they may use the counter
	for _, fn := range priority {
		fn()
	}
	for _, fn := range normal {
		fn()
	}
}

func (c *Counter) IsZero() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count == 0
}

func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// OnceZero calls fn on the next zero-crossing, or immediately if the
// counter is already zero.
func (c *Counter) OnceZero(fn func()) {
	c.once(fn, false)
}

// OnceZeroPriority calls fn on the next zero-crossing ahead of any
// OnceZero listener, or immediately if the counter is already zero.
func (c *Counter) OnceZeroPriority(fn func()) {
	c.once(fn, true)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (c *Counter) once(fn func(), priority bool) {
	c.mu.Lock()
	if c.count == 0 {
		c.mu.Unlock()
		fn()
		return
	}
	if priority {
		c.priority = append(c.priority, fn)
	} else {
		c.normal = append(c.normal, fn)
	}
	c.mu.Unlock()
}

// Package pump copies a single source into storage, and can be aborted
// while doing so.
//
// A pump settles once, with the number of bytes durably stored or with
// one of schema.ErrPumpAborted, schema.ErrFileSizeLimit or the error
// which interrupted the copy. A failed pump never commits its destination.
package pump

import (
	"context"
	"errors"
	"io"
	"sync"

	// Packages
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	waiter "github.com/mutablelogic/go-formdata/pkg/waiter"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Storage is the destination of a pump
type Storage interface {
	// NewWriter opens key for exclusive write. Cancelling the context
	// before Close discards the write.
	NewWriter(context.Context, string) (io.WriteCloser, error)

	// Size returns the number of bytes stored at key
	Size(context.Context, string) (int64, error)
}

type Pump struct {
	src     *Detachable
	storage Storage
	key     string
	done    *waiter.Waiter[int64]
	idle    chan struct{}
	once    sync.Once

	mu         sync.Mutex
	started    bool
	aborted    bool
	committing bool
	cancel     context.CancelCauseFunc
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns an idle pump which copies src into key
func New(src Source, storage Storage, key string) *Pump {
	return &Pump{
		src:     NewDetachable(src),
		storage: storage,
		key:     key,
		done:    waiter.New[int64](),
		idle:    make(chan struct{}),
	}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Key returns the destination key
func (p *Pump) Key() string {
	return p.key
}

// Done returns the outcome of the pump
func (p *Pump) Done() waiter.Future[int64] {
	return p.done
}

// Idle is closed once the pump has settled and no commit of its
// destination is in progress. A pump which fails while reading its
// source is idle at once, since its write can no longer commit.
func (p *Pump) Idle() <-chan struct{} {
	return p.idle
}

// Start copies the source into storage and returns the stored size. Calling
// Start a second time waits for the outcome of the first call.
func (p *Pump) Start(ctx context.Context) (int64, error) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return p.done.Wait(ctx)
	}
	p.started = true
	if p.aborted {
		p.mu.Unlock()
		p.setIdle()
		return 0, schema.ErrPumpAborted
	}
	if p.src.Truncated() {
		p.mu.Unlock()
		p.done.Reject(schema.ErrFileSizeLimit)
		p.setIdle()
		return 0, schema.ErrFileSizeLimit
	}
	ctx, cancel := context.WithCancelCause(ctx)
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel(nil)

	// Open the destination
	w, err := p.storage.NewWriter(ctx, p.key)
	if err != nil {
		p.done.Reject(err)
		cancel(err)
		p.setIdle()
		return p.result()
	}

	// Copy in the background, and wait for the outcome, the source limit
	// or cancellation
	go p.copy(ctx, w)
	select {
	case <-p.done.Done():
	case <-p.src.Limit():
		p.fail(schema.ErrFileSizeLimit)
	case <-ctx.Done():
		p.fail(context.Cause(ctx))
	}

	return p.result()
}

// Abort the pump. The source is detached and the destination write is
// discarded. Abort is a no-op once the pump has settled.
func (p *Pump) Abort() {
	p.mu.Lock()
	p.aborted = true
	p.mu.Unlock()
	p.fail(schema.ErrPumpAborted)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (p *Pump) copy(ctx context.Context, w io.WriteCloser) {
	defer p.setIdle()
	_, err := io.Copy(w, p.src)
	if err == nil && p.src.Truncated() {
		err = schema.ErrFileSizeLimit
	}
	if err != nil {
		if errors.Is(err, schema.ErrDetached) {
			err = context.Cause(ctx)
		}
		p.fail(err)
		w.Close()
		return
	}

	// Commit the write and measure what was stored. A failure from here
	// on waits for the commit to return before the pump is idle.
	p.mu.Lock()
	p.committing = true
	p.mu.Unlock()
	if err := w.Close(); err != nil {
		p.fail(err)
		return
	}
	size, err := p.storage.Size(ctx, p.key)
	if err != nil {
		p.fail(err)
	} else {
		p.done.Resolve(size)
	}
}

// fail settles the pump with err, detaches the source and cancels the
// destination write
func (p *Pump) fail(err error) {
	if err == nil {
		err = schema.ErrPumpAborted
	}
	if !p.done.Reject(err) {
		return
	}
	p.src.Detach()
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel(err)
	}

	// The write is cancelled before any commit starts
	p.mu.Lock()
	committing := p.committing
	p.mu.Unlock()
	if !committing {
		p.setIdle()
	}
}

func (p *Pump) setIdle() {
	p.once.Do(func() {
		close(p.idle)
	})
}

func (p *Pump) result() (int64, error) {
	size, _, err := p.done.Result()
	return size, err
}

// Package handler orchestrates the concurrent tasks which consume the
// parts of a form.
//
// A Handler tracks a set of required keys. Each task started for a key
// runs its parse function in its own goroutine. The handler succeeds with
// one result per task once every required key is satisfied, and fails as
// soon as any task fails, cancelling the context of every other task.
package handler

import (
	"context"
	"fmt"
	"slices"
	"sync"

	// Packages
	pump "github.com/mutablelogic/go-formdata/pkg/pump"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	waiter "github.com/mutablelogic/go-formdata/pkg/waiter"
	lo "github.com/samber/lo"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Handler[T any] struct {
	*opt[T]
	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   func() bool
	done   *waiter.Waiter[[]T]
	idle   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	accepting bool
	settling  bool
	pending   map[string]struct{}
	tasks     []*waiter.Waiter[T]
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a handler which accepts tasks for its required keys. The
// handler aborts with the cause of ctx when ctx is cancelled. A handler
// with no required keys has succeeded with no results on return.
func New[T any](ctx context.Context, opts ...Opt[T]) (*Handler[T], error) {
	self, err := newHandler(opts...)
	if err != nil {
		return nil, err
	}
	self.start(ctx)
	return self, nil
}

func newHandler[T any](opts ...Opt[T]) (*Handler[T], error) {
	self := new(Handler[T])
	if opt, err := apply(opts...); err != nil {
		return nil, err
	} else {
		self.opt = opt
	}

	self.logger = self.logger.With("component", self.name)
	self.done = waiter.New[[]T]()
	self.idle = make(chan struct{})
	self.accepting = true
	self.pending = make(map[string]struct{}, len(self.required))
	for _, key := range self.required {
		self.pending[key] = struct{}{}
	}

	// Return success
	return self, nil
}

func (h *Handler[T]) start(ctx context.Context) {
	// Abort when the parent context is cancelled
	h.ctx, h.cancel = context.WithCancelCause(ctx)
	h.stop = context.AfterFunc(ctx, func() {
		h.Abort(context.Cause(ctx))
	})

	// Nothing is required, so settle now
	if len(h.pending) == 0 {
		h.mu.Lock()
		h.accepting = false
		h.settling = true
		h.mu.Unlock()
		h.settle()
	}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WantFile returns true if a file task would be accepted for key
func (h *Handler[T]) WantFile(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allowFiles && h.want(key)
}

// WantField returns true if a field task would be accepted for key
func (h *Handler[T]) WantField(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allowFields && h.want(key)
}

// StartFileTask parses src in the background and returns the outcome of
// the task. It fails with ErrUnwantedTask when no file is wanted for key.
func (h *Handler[T]) StartFileTask(key string, src pump.Source) (waiter.Future[T], error) {
	h.mu.Lock()
	if !h.allowFiles || !h.want(key) {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: file %q", schema.ErrUnwantedTask, key)
	}
	task := h.newTask()
	h.mu.Unlock()

	go h.run(key, task, func(ctx context.Context) (T, error) {
		return h.parseFile(ctx, key, src)
	})
	return task, nil
}

// StartFieldTask parses field in the background and returns the outcome
// of the task. It fails with ErrUnwantedTask when no field is wanted for key.
func (h *Handler[T]) StartFieldTask(key string, field schema.Field) (waiter.Future[T], error) {
	h.mu.Lock()
	if !h.allowFields || !h.want(key) {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: field %q", schema.ErrUnwantedTask, key)
	}
	task := h.newTask()
	h.mu.Unlock()

	go h.run(key, task, func(ctx context.Context) (T, error) {
		return h.parseField(ctx, key, field)
	})
	return task, nil
}

// Finish stops accepting tasks and settles the handler in the background
// once every outstanding task has settled. The handler fails with
// MissingEntriesError if any required key is not satisfied by then.
func (h *Handler[T]) Finish() {
	h.mu.Lock()
	h.accepting = false
	if h.settling || h.done.IsDone() {
		h.mu.Unlock()
		return
	}
	h.settling = true
	h.mu.Unlock()

	go h.settle()
}

// Abort stops accepting tasks and fails the handler with err, unless it
// has already settled. The context passed to every task is cancelled
// with err as the cause.
func (h *Handler[T]) Abort(err error) {
	h.mu.Lock()
	h.accepting = false
	h.mu.Unlock()

	if err == nil {
		err = context.Canceled
	}
	if !h.done.Reject(err) {
		return
	}
	h.cancel(err)
	h.logger.Debugf(h.ctx, "aborted: %v", err)

	// Clean up in the background; the outcome is already settled
	go func() {
		defer h.release()
		ctx := context.WithoutCancel(h.ctx)
		if h.onAbort != nil {
			if err := h.onAbort(ctx); err != nil {
				h.logger.Printf(ctx, "abort: %v", err)
			}
		}
		if _, err := h.waitTasks(); err != nil {
			h.logger.Debugf(ctx, "tasks failed on abort: %v", err)
		}
	}()
}

// Done returns the outcome of the handler
func (h *Handler[T]) Done() waiter.Future[[]T] {
	return h.done
}

// Wait for the outcome of the handler
func (h *Handler[T]) Wait(ctx context.Context) ([]T, error) {
	return h.done.Wait(ctx)
}

// Idle is closed once the handler has settled and its tasks and
// callbacks have returned
func (h *Handler[T]) Idle() <-chan struct{} {
	return h.idle
}

// Accepting returns true while new tasks may be started
func (h *Handler[T]) Accepting() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.accepting
}

// Pending returns the required keys not yet satisfied, sorted
func (h *Handler[T]) Pending() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := lo.Keys(h.pending)
	slices.Sort(keys)
	return keys
}

// Tasks returns the tasks started so far
func (h *Handler[T]) Tasks() []waiter.Future[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.Map(h.tasks, func(task *waiter.Waiter[T], _ int) waiter.Future[T] {
		return task
	})
}

// Context returns the context passed to every task
func (h *Handler[T]) Context() context.Context {
	return h.ctx
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (h *Handler[T]) want(key string) bool {
	if !h.accepting {
		return false
	}
	_, ok := h.pending[key]
	return ok
}

func (h *Handler[T]) newTask() *waiter.Waiter[T] {
	task := waiter.New[T]()
	h.tasks = append(h.tasks, task)
	return task
}

func (h *Handler[T]) run(key string, task *waiter.Waiter[T], fn func(context.Context) (T, error)) {
	value, err := fn(h.ctx)
	if err != nil {
		h.Abort(err)
		task.Reject(err)
		return
	}

	// A resolved task never leaves its key pending
	h.mu.Lock()
	delete(h.pending, key)
	empty := len(h.pending) == 0
	h.mu.Unlock()
	task.Resolve(value)
	h.logger.Debugf(h.ctx, "task %q done", key)

	// Finish when the last required key is satisfied
	if empty {
		h.Finish()
	}
}

func (h *Handler[T]) settle() {
	if h.onFinish != nil {
		if err := h.onFinish(h.ctx); err != nil {
			h.Abort(err)
			return
		}
	}

	results, err := h.waitTasks()
	if err != nil {
		h.Abort(err)
		return
	}
	if missing := h.Pending(); len(missing) > 0 {
		h.Abort(&schema.MissingEntriesError{Keys: missing})
		return
	}
	if h.done.Resolve(results) {
		h.release()
	}
}

// waitTasks waits for every task, collecting the results and errors
func (h *Handler[T]) waitTasks() ([]T, error) {
	h.mu.Lock()
	tasks := slices.Clone(h.tasks)
	h.mu.Unlock()

	results := make([]T, 0, len(tasks))
	var errs []error
	for _, task := range tasks {
		if value, err := task.Wait(context.Background()); err != nil {
			errs = append(errs, err)
		} else {
			results = append(results, value)
		}
	}
	if len(errs) > 0 {
		return nil, &schema.TaskErrors{Errs: errs}
	}
	return results, nil
}

// release the context and signal idle
func (h *Handler[T]) release() {
	h.once.Do(func() {
		h.stop()
		h.cancel(nil)
		close(h.idle)
	})
}

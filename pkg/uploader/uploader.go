// Package uploader coordinates the pumps of a set of uploads, so that they
// can be finished, aborted or removed together.
package uploader

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"path"
	"slices"
	"sync"

	// Packages
	uuid "github.com/google/uuid"
	counter "github.com/mutablelogic/go-formdata/pkg/counter"
	pump "github.com/mutablelogic/go-formdata/pkg/pump"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	waiter "github.com/mutablelogic/go-formdata/pkg/waiter"
	attribute "go.opentelemetry.io/otel/attribute"
	metric "go.opentelemetry.io/otel/metric"
	errgroup "golang.org/x/sync/errgroup"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Storage is the destination of an uploader
type Storage interface {
	pump.Storage

	// Delete removes key, failing with fs.ErrNotExist when it is absent
	Delete(context.Context, string) error
}

type Uploader struct {
	*opt
	storage  Storage
	counter  *counter.Counter
	done     *waiter.Waiter[[]schema.FileInfo]
	files    metric.Int64Counter
	bytes    metric.Int64Counter
	failures metric.Int64Counter

	mu        sync.Mutex
	accepting bool
	pumps     []*pump.Pump
	keys      []string
	committed map[string]bool
	results   []schema.FileInfo
}

const (
	meterName = "github.com/mutablelogic/go-formdata/pkg/uploader"
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns an uploader which accepts uploads until it is finished
// or aborted
func New(storage Storage, opts ...Opt) (*Uploader, error) {
	self := new(Uploader)
	if opt, err := apply(opts...); err != nil {
		return nil, err
	} else {
		self.opt = opt
	}

	// Counters
	var err error
	if self.files, err = self.meter.Int64Counter(schema.SchemaName+".uploader.files", metric.WithDescription("Number of files uploaded")); err != nil {
		return nil, err
	}
	if self.bytes, err = self.meter.Int64Counter(schema.SchemaName+".uploader.bytes", metric.WithDescription("Number of bytes uploaded"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if self.failures, err = self.meter.Int64Counter(schema.SchemaName+".uploader.failures", metric.WithDescription("Number of failed uploads")); err != nil {
		return nil, err
	}

	self.storage = storage
	self.counter = counter.New()
	self.done = waiter.New[[]schema.FileInfo]()
	self.accepting = true
	self.committed = make(map[string]bool)
	self.logger = self.logger.With("component", "uploader")

	// Return success
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Upload copies src into a new key under the prefix. The returned error is
// the outcome of this upload alone.
func (u *Uploader) Upload(ctx context.Context, name string, src pump.Source) (schema.FileInfo, error) {
	u.mu.Lock()
	if !u.accepting {
		u.mu.Unlock()
		return schema.FileInfo{}, schema.ErrNoNewUploads
	}
	key := path.Join(u.prefix, uuid.NewString())
	p := pump.New(src, u.storage, key)
	u.pumps = append(u.pumps, p)
	u.keys = append(u.keys, key)
	u.counter.Increment()
	u.mu.Unlock()

	// Decrement after the result is recorded, so that zero listeners see it
	defer u.counter.Decrement()

	attrs := metric.WithAttributes(attribute.String("name", name))
	size, err := p.Start(ctx)
	if err != nil {
		u.failures.Add(ctx, 1, attrs)
		u.logger.Debugf(ctx, "upload %q to %q failed: %v", name, key, err)
		return schema.FileInfo{}, err
	}

	info := schema.FileInfo{Name: name, Path: key, Size: size}
	u.mu.Lock()
	u.results = append(u.results, info)
	u.committed[key] = true
	u.mu.Unlock()

	u.files.Add(ctx, 1, attrs)
	u.bytes.Add(ctx, size, attrs)
	u.logger.Debugf(ctx, "uploaded %q to %q (%d bytes)", name, key, size)

	return info, nil
}

// Finish stops accepting uploads. The uploader resolves with the
// successful uploads once every in-flight upload has settled.
func (u *Uploader) Finish() {
	u.mu.Lock()
	u.accepting = false
	u.mu.Unlock()

	u.counter.OnceZero(func() {
		u.done.Resolve(u.Files())
	})
}

// Abort stops accepting uploads and aborts every in-flight upload. The
// uploader rejects with ErrUploadsAborted, even when Finish was called
// and the last upload settles concurrently.
func (u *Uploader) Abort() {
	u.mu.Lock()
	u.accepting = false
	pumps := slices.Clone(u.pumps)
	u.mu.Unlock()

	if !u.done.IsDone() {
		u.counter.OnceZeroPriority(func() {
			u.done.Reject(schema.ErrUploadsAborted)
		})
	}
	for _, p := range pumps {
		p.Abort()
	}
}

// Done returns the aggregate outcome
func (u *Uploader) Done() waiter.Future[[]schema.FileInfo] {
	return u.done
}

// Wait for the aggregate outcome
func (u *Uploader) Wait(ctx context.Context) ([]schema.FileInfo, error) {
	return u.done.Wait(ctx)
}

// IsDone returns true once the aggregate outcome is settled
func (u *Uploader) IsDone() bool {
	return u.done.IsDone()
}

// Files returns the successful uploads so far
func (u *Uploader) Files() []schema.FileInfo {
	u.mu.Lock()
	defer u.mu.Unlock()
	return slices.Clone(u.results)
}

// Keys returns every key allocated, whether or not its upload succeeded
func (u *Uploader) Keys() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return slices.Clone(u.keys)
}

// Remove finishes the uploader, waits for in-flight uploads to settle and
// their writers to close, and then deletes every allocated key. Every deletion is attempted. Returns
// the keys when all deletions succeed, or DeleteErrors otherwise. A key
// whose upload never completed may be absent from storage.
func (u *Uploader) Remove(ctx context.Context) ([]string, error) {
	u.Finish()
	if _, err := u.Wait(ctx); err != nil {
		u.logger.Debugf(ctx, "removing uploads after: %v", err)
	}

	// A failed pump may still be closing its destination
	u.mu.Lock()
	pumps := slices.Clone(u.pumps)
	u.mu.Unlock()
	for _, p := range pumps {
		select {
		case <-p.Idle():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	keys := u.Keys()
	u.mu.Lock()
	committed := maps.Clone(u.committed)
	u.mu.Unlock()

	// Delete in parallel, collecting every error
	errs := make([]error, len(keys))
	var group errgroup.Group
	group.SetLimit(u.concurrency)
	for i, key := range keys {
		group.Go(func() error {
			err := u.storage.Delete(ctx, key)
			if errors.Is(err, fs.ErrNotExist) && !committed[key] {
				err = nil
			}
			errs[i] = err
			return nil
		})
	}
	group.Wait()

	var result schema.DeleteErrors
	for _, err := range errs {
		if err != nil {
			result.Errs = append(result.Errs, err)
		}
	}
	if len(result.Errs) > 0 {
		return nil, &result
	}

	u.logger.Debugf(ctx, "removed %d uploads", len(keys))
	return keys, nil
}

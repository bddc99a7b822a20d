// Package manager holds the named storage backends of a formdata server.
// It parses forms into a backend and routes object operations to it,
// each within a trace span.
package manager

import (
	"context"
	"io"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	formdata "github.com/mutablelogic/go-formdata"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Manager struct {
	opts
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a manager. It fails and closes any backend already opened
// when an option fails.
func New(ctx context.Context, opts ...Opt) (*Manager, error) {
	self := new(Manager)
	if opt, err := applyOpts(opts); err != nil {
		return nil, err
	} else {
		self.opts = opt
	}
	return self, nil
}

// Close every backend
func (manager *Manager) Close() error {
	return manager.close()
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Backends returns the backend names in the order they were added
func (manager *Manager) Backends() []string {
	return manager.names
}

// Backend returns a backend by name, or nil
func (manager *Manager) Backend(name string) formdata.Backend {
	return manager.backends[name]
}

func (manager *Manager) CreateObject(ctx context.Context, name string, req schema.CreateObjectRequest) (*schema.Object, error) {
	return traced(ctx, manager, name, "CreateObject", func(ctx context.Context, b formdata.Backend) (*schema.Object, error) {
		return b.CreateObject(ctx, req)
	})
}

func (manager *Manager) GetObject(ctx context.Context, name string, req schema.GetObjectRequest) (*schema.Object, error) {
	return traced(ctx, manager, name, "GetObject", func(ctx context.Context, b formdata.Backend) (*schema.Object, error) {
		return b.GetObject(ctx, req)
	})
}

// ReadObject returns the content and metadata of an object. The caller
// closes the reader.
func (manager *Manager) ReadObject(ctx context.Context, name string, req schema.ReadObjectRequest) (io.ReadCloser, *schema.Object, error) {
	var obj *schema.Object
	r, err := traced(ctx, manager, name, "ReadObject", func(ctx context.Context, b formdata.Backend) (r io.ReadCloser, err error) {
		r, obj, err = b.ReadObject(ctx, req)
		return r, err
	})
	return r, obj, err
}

func (manager *Manager) ListObjects(ctx context.Context, name string, req schema.ListObjectsRequest) (*schema.ListObjectsResponse, error) {
	return traced(ctx, manager, name, "ListObjects", func(ctx context.Context, b formdata.Backend) (*schema.ListObjectsResponse, error) {
		return b.ListObjects(ctx, req)
	})
}

func (manager *Manager) DeleteObject(ctx context.Context, name string, req schema.DeleteObjectRequest) (*schema.Object, error) {
	return traced(ctx, manager, name, "DeleteObject", func(ctx context.Context, b formdata.Backend) (*schema.Object, error) {
		return b.DeleteObject(ctx, req)
	})
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// traced runs fn on the named backend within a span for op
func traced[T any](ctx context.Context, manager *Manager, name, op string, fn func(context.Context, formdata.Backend) (T, error)) (result T, err error) {
	backend, err := manager.backendForName(name)
	if err != nil {
		return result, err
	}
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName(op))
	defer func() { endFunc(err) }()
	return fn(child, backend)
}

func (manager *Manager) backendForName(name string) (formdata.Backend, error) {
	if backend, exists := manager.backends[name]; exists {
		return backend, nil
	}
	return nil, httpresponse.ErrNotFound.Withf("no backend found for name %q", name)
}

func spanManagerName(op string) string {
	return schema.SchemaName + ".manager." + op
}

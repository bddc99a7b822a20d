package formdata

import (
	"context"
	"io"
	"net/url"

	// Packages
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// INTERFACES

// Logger is the interface for structured logging
type Logger interface {
	// Print a message
	Print(context.Context, ...any)

	// Print a formatted message
	Printf(context.Context, string, ...any)

	// Print a debug message
	Debug(context.Context, ...any)

	// Print a formatted debug message
	Debugf(context.Context, string, ...any)

	// Return a logger with additional key-value attributes
	With(...any) Logger
}

// Storage is the interface used to write, measure and remove uploaded
// parts. Keys are relative to the storage root and never start with "/".
type Storage interface {
	// NewWriter opens key for exclusive write. It fails with fs.ErrExist
	// when the key already exists. Cancelling the context before Close
	// discards the write.
	NewWriter(context.Context, string) (io.WriteCloser, error)

	// Size returns the number of bytes stored at key
	Size(context.Context, string) (int64, error)

	// Delete removes key, failing with fs.ErrNotExist when it is absent
	Delete(context.Context, string) error
}

// Backend is a named storage location
type Backend interface {
	io.Closer
	Storage

	// Name returns the name of the backend
	Name() string

	// URL returns the backend destination URL
	URL() *url.URL

	// Create object in the backend
	CreateObject(context.Context, schema.CreateObjectRequest) (*schema.Object, error)

	// Get object metadata from the backend
	GetObject(context.Context, schema.GetObjectRequest) (*schema.Object, error)

	// Read object content from the backend. Caller must close the returned reader.
	ReadObject(context.Context, schema.ReadObjectRequest) (io.ReadCloser, *schema.Object, error)

	// List objects in the backend
	ListObjects(context.Context, schema.ListObjectsRequest) (*schema.ListObjectsResponse, error)

	// Delete a single object from the backend
	DeleteObject(context.Context, schema.DeleteObjectRequest) (*schema.Object, error)
}

package schema

import (
	"io"
	"maps"
	"path"
	"slices"
	"time"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Object is a stored part, or any other object in a backend
type Object struct {
	Name        string     `json:"name,omitempty"` // backend name
	Path        string     `json:"path,omitempty"` // absolute path within the backend
	Size        int64      `json:"size"`
	ModTime     time.Time  `json:"modtime,omitzero"`
	ContentType string     `json:"type,omitempty"`
	ETag        string     `json:"etag,omitempty"`
	Meta        ObjectMeta `json:"meta,omitempty"`
}

// ObjectMeta holds user metadata. S3 lowercases metadata keys, so keys
// should be lowercase.
type ObjectMeta map[string]string

// CreateObjectRequest writes Body to Path. The content type is sniffed
// when empty.
type CreateObjectRequest struct {
	Path        string
	Body        io.Reader `json:"-"`
	ContentType string
	ModTime     time.Time
	Meta        ObjectMeta
	IfNotExists bool // fail with a conflict when the object exists
}

type GetObjectRequest struct {
	Path string
}

type ReadObjectRequest struct {
	GetObjectRequest
}

type DeleteObjectRequest struct {
	Path string
}

// ListObjectsRequest lists the objects under Path, or the object at Path.
// Only immediate children are listed unless Recursive is set.
type ListObjectsRequest struct {
	Path      string `json:"path,omitempty"`
	Recursive bool   `json:"recursive,omitempty"`
}

// BackendListResponse holds the URL of each backend, keyed by name
type BackendListResponse struct {
	Body map[string]string `json:"body"`
}

type ListObjectsResponse struct {
	Name  string   `json:"name,omitempty"`
	Count int      `json:"count"`
	Body  []Object `json:"body,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// FileName returns the name to save the object as: the base of the client
// filename recorded on upload, or else the last element of the path
func (o Object) FileName() string {
	if name := o.Meta[AttrFileName]; name != "" {
		return path.Base(name)
	}
	return path.Base(o.Path)
}

// Names returns the backend names, sorted
func (r BackendListResponse) Names() []string {
	return slices.Sorted(maps.Keys(r.Body))
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (o Object) String() string {
	return types.Stringify(o)
}

func (r ListObjectsRequest) String() string {
	return types.Stringify(r)
}

func (r ListObjectsResponse) String() string {
	return types.Stringify(r)
}

func (r BackendListResponse) String() string {
	return types.Stringify(r)
}

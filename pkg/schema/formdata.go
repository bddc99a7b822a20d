package schema

import (
	// Packages
	"github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// FileInfo describes a form part which has been persisted to storage.
type FileInfo struct {
	Name     string `json:"name"`               // form part name
	Filename string `json:"filename,omitempty"` // client-supplied filename, if any
	Path     string `json:"path"`               // storage key
	Size     int64  `json:"size"`               // bytes durably written
}

// Field is a non-file form part.
type Field struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	ValueTruncated bool   `json:"-"`
}

// Limits bounds the size and shape of a multipart stream. A zero value
// for any count or size means unlimited, except FieldNameSize and
// FieldSize which fall back to their defaults.
type Limits struct {
	FieldNameSize int   `json:"fieldnamesize,omitempty"`
	FieldSize     int   `json:"fieldsize,omitempty"`
	Fields        int   `json:"fields,omitempty"`
	FileSize      int64 `json:"filesize,omitempty"`
	Files         int   `json:"files,omitempty"`
	Parts         int   `json:"parts,omitempty"`
}

// ParseFormRequest selects which form parts are returned, persisted or
// streamed, and where persisted parts are written.
type ParseFormRequest struct {
	Path    string   `json:"path,omitempty"`    // base path for persisted parts
	Persist []string `json:"persist,omitempty"` // parts written to storage
	Fields  []string `json:"field,omitempty"`   // parts returned as values
	Stream  string   `json:"stream,omitempty"`  // part written as-is to Path/Stream
	Limits
}

// Form is the outcome of parsing a multipart stream.
type Form struct {
	Name   string     `json:"name,omitempty"`
	Fields []Field    `json:"fields,omitempty"`
	Files  []FileInfo `json:"files,omitempty"`
	Stream *Object    `json:"stream,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithDefaults returns the limits with defaults applied
func (l Limits) WithDefaults() Limits {
	if l.FieldNameSize <= 0 {
		l.FieldNameSize = DefaultFieldNameSize
	}
	if l.FieldSize <= 0 {
		l.FieldSize = DefaultFieldSize
	}
	return l
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (f FileInfo) String() string {
	return types.Stringify(f)
}

func (f Field) String() string {
	return types.Stringify(f)
}

func (l Limits) String() string {
	return types.Stringify(l)
}

func (r ParseFormRequest) String() string {
	return types.Stringify(r)
}

func (f Form) String() string {
	return types.Stringify(f)
}

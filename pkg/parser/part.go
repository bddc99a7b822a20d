package parser

import (
	"io"
	"mime/multipart"

	// Packages
	pump "github.com/mutablelogic/go-formdata/pkg/pump"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// filePart is a file part limited to the maximum file size
type filePart struct {
	*pump.LimitedSource
	filename string
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newFilePart(part *multipart.Part, limits schema.Limits) *pump.Detachable {
	return pump.NewDetachable(&filePart{
		LimitedSource: pump.LimitReader(part, limits.FileSize),
		filename:      part.FileName(),
	})
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Filename returns the client-supplied filename
func (f *filePart) Filename() string {
	return f.filename
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// readField reads the value of a field part, truncated to the maximum
// field size. The remainder of the part is discarded. The name is never
// truncated, so a handler can reject a name over the limit.
func readField(part *multipart.Part, limits schema.Limits) (schema.Field, error) {
	field := schema.Field{Name: part.FormName()}

	data, err := io.ReadAll(io.LimitReader(part, int64(limits.FieldSize)+1))
	if err != nil {
		return field, err
	}
	if len(data) > limits.FieldSize {
		data = data[:limits.FieldSize]
		field.ValueTruncated = true
		if _, err := io.Copy(io.Discard, part); err != nil {
			return field, err
		}
	}
	field.Value = string(data)
	return field, nil
}

package schema

////////////////////////////////////////////////////////////////////////////////
// TYPES

const (
	SchemaName = "formdata"

	// AttrLastModified is the metadata key used to store the object modification time.
	// S3 normalizes metadata keys to lowercase, so we use lowercase for consistency.
	AttrLastModified = "last-modified"

	// AttrFormName is the metadata key used to store the form part name of
	// a persisted upload.
	AttrFormName = "form-name"

	// AttrFileName is the metadata key used to store the client-supplied
	// filename of a persisted upload.
	AttrFileName = "file-name"

	// ObjectMetaHeader is the response header which carries the object
	// metadata as JSON
	ObjectMetaHeader = "X-Object-Meta"
)

const (
	// DefaultFieldNameSize is the maximum length of a field name, in bytes
	DefaultFieldNameSize = 100

	// DefaultFieldSize is the maximum length of a field value, in bytes
	DefaultFieldSize = 1024
)

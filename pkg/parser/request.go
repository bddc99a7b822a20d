package parser

import (
	"fmt"
	"mime/multipart"
	"net/http"

	// Packages
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// FromRequest returns a reader for the parts of a multipart request body.
// It fails with schema.ParsingErrors when the body is not multipart.
func FromRequest(r *http.Request) (*multipart.Reader, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, &schema.ParsingErrors{Errs: []error{
			fmt.Errorf("%w %q: %v", schema.ErrUnsupportedContentType, r.Header.Get("Content-Type"), err),
		}}
	}
	return reader, nil
}

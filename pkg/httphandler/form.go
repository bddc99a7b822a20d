package httphandler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	// Packages
	bytesize "github.com/inhies/go-bytesize"
	manager "github.com/mutablelogic/go-formdata/pkg/manager"
	parser "github.com/mutablelogic/go-formdata/pkg/parser"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
	lo "github.com/samber/lo"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// formQuery holds the scalar query parameters of a form upload
type formQuery struct {
	Stream        string `json:"stream,omitempty"`
	FieldNameSize int    `json:"fieldnamesize,omitempty"`
	FieldSize     int    `json:"fieldsize,omitempty"`
	Fields        int    `json:"fields,omitempty"`
	Files         int    `json:"files,omitempty"`
	Parts         int    `json:"parts,omitempty"`
	FileSize      string `json:"filesize,omitempty"`
}

const formDescription = "Parse a multipart/form-data upload. Query parameters select the parts " +
	"persisted (persist, repeatable), returned (field, repeatable) or streamed (stream)"

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func formUpload(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	req, err := formRequest(r.URL.Query())
	if err != nil {
		return httpresponse.Error(w, httpresponse.ErrBadRequest.With(err.Error()))
	} else {
		req.Path = types.NormalisePath(r.PathValue("path"))
	}

	// Read the parts of the body
	reader, err := parser.FromRequest(r)
	if err != nil {
		return httpresponse.Error(w, formError(err))
	}
	form, err := mgr.ParseForm(r.Context(), r.PathValue("name"), req, reader)
	if err != nil {
		return httpresponse.Error(w, formError(err))
	}

	// Return the form
	return httpresponse.JSON(w, http.StatusCreated, httprequest.Indent(r), form)
}

// formRequest reads the parts to persist, return and stream, and the
// parsing limits, from the query
func formRequest(values url.Values) (schema.ParseFormRequest, error) {
	var query formQuery
	if err := httprequest.Query(values, &query); err != nil {
		return schema.ParseFormRequest{}, err
	}
	req := schema.ParseFormRequest{
		Persist: lo.Compact(values["persist"]),
		Fields:  lo.Compact(values["field"]),
		Stream:  query.Stream,
		Limits: schema.Limits{
			FieldNameSize: query.FieldNameSize,
			FieldSize:     query.FieldSize,
			Fields:        query.Fields,
			Files:         query.Files,
			Parts:         query.Parts,
		},
	}
	if query.FileSize != "" {
		size, err := parseSize(query.FileSize)
		if err != nil {
			return schema.ParseFormRequest{}, fmt.Errorf("filesize: %w", err)
		}
		req.FileSize = size
	}
	return req, nil
}

// parseSize accepts a byte count or a size with a unit, such as 10MB
func parseSize(value string) (int64, error) {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid size %q", value)
		}
		return n, nil
	}
	size, err := bytesize.Parse(value)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", value)
	}
	return int64(size), nil
}

// formError returns a bad request for a rejected form, or err otherwise
func formError(err error) error {
	var parsing *schema.ParsingErrors
	if errors.As(err, &parsing) {
		return httpresponse.ErrBadRequest.With(parsing.Error())
	}
	return err
}

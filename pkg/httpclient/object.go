package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// objectResponse reads the object metadata header, and copies any body
// to w
type objectResponse struct {
	obj *schema.Object
	w   io.Writer
}

// chunkWriter passes each write to a callback
type chunkWriter func([]byte) error

var _ client.Unmarshaler = (*objectResponse)(nil)

const chunkSize = 32 * 1024

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ListObjects returns the stored parts of a backend, under an optional
// path prefix
func (c *Client) ListObjects(ctx context.Context, name string, req schema.ListObjectsRequest) (*schema.ListObjectsResponse, error) {
	query := url.Values{}
	if req.Path != "" {
		query.Set("path", req.Path)
	}
	if req.Recursive {
		query.Set("recursive", strconv.FormatBool(req.Recursive))
	}

	var response schema.ListObjectsResponse
	if err := c.DoWithContext(ctx, client.NewRequest(), &response, client.OptPath(name), client.OptQuery(query)); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetObject returns the metadata of a stored part, with a HEAD request
func (c *Client) GetObject(ctx context.Context, name string, req schema.GetObjectRequest) (*schema.Object, error) {
	response := objectResponse{w: io.Discard}
	if err := c.DoWithContext(ctx, client.NewRequestEx(http.MethodHead, ""), &response, client.OptPath(name, req.Path)); err != nil {
		return nil, err
	}
	return response.obj, nil
}

// ReadObject downloads a stored part, calling fn with each chunk as it
// arrives. The chunk is reused between calls. A nil fn discards the
// content.
func (c *Client) ReadObject(ctx context.Context, name string, req schema.ReadObjectRequest, fn func([]byte) error) (*schema.Object, error) {
	response := objectResponse{w: io.Discard}
	if fn != nil {
		response.w = chunkWriter(fn)
	}
	if err := c.DoWithContext(ctx, client.NewRequest(), &response, client.OptPath(name, req.Path)); err != nil {
		return nil, err
	}
	return response.obj, nil
}

// DeleteObject removes a stored part and returns its metadata
func (c *Client) DeleteObject(ctx context.Context, name string, req schema.DeleteObjectRequest) (*schema.Object, error) {
	var response schema.Object
	if err := c.DoWithContext(ctx, client.NewRequestEx(http.MethodDelete, "application/json"), &response, client.OptPath(name, req.Path)); err != nil {
		return nil, err
	}
	return &response, nil
}

///////////////////////////////////////////////////////////////////////////////
// INTERFACE IMPLEMENTATION

func (r *objectResponse) Unmarshal(header http.Header, body io.Reader) error {
	data := header.Get(schema.ObjectMetaHeader)
	if data == "" {
		return fmt.Errorf("missing %s header in response", schema.ObjectMetaHeader)
	}
	r.obj = new(schema.Object)
	if err := json.Unmarshal([]byte(data), r.obj); err != nil {
		return fmt.Errorf("%s: %w", schema.ObjectMetaHeader, err)
	}
	_, err := io.CopyBuffer(r.w, body, make([]byte, chunkSize))
	return err
}

func (fn chunkWriter) Write(data []byte) (int, error) {
	if err := fn(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

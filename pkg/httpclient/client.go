// Package httpclient is a typed client for the formdata REST API.
//
// Create a client with the API endpoint, then submit a form which persists
// the "doc" part and returns the "title" field:
//
//	c, err := httpclient.New("http://localhost:8080/api/formdata")
//	if err != nil {
//	   panic(err)
//	}
//	form, err := c.ParseForm(ctx, "media", schema.ParseFormRequest{
//	    Path:    "/uploads",
//	    Persist: []string{"doc"},
//	    Fields:  []string{"title"},
//	}, httpclient.FieldPart("title", "Holiday"), httpclient.FilePart("doc", "notes.txt", r))
package httpclient

import (
	"context"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type Client struct {
	*client.Client
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a client for the API at url
func New(url string, opts ...client.ClientOpt) (*Client, error) {
	if c, err := client.New(append(opts, client.OptEndpoint(url))...); err != nil {
		return nil, err
	} else {
		return &Client{c}, nil
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ListBackends returns the URL of each backend, keyed by name
func (c *Client) ListBackends(ctx context.Context) (*schema.BackendListResponse, error) {
	var response schema.BackendListResponse
	if err := c.DoWithContext(ctx, client.NewRequest(), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

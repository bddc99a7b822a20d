package httpclient

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Part is a single part of a submitted form. It is a file when Filename
// is set, and a field otherwise.
type Part struct {
	Name     string
	Filename string
	Body     io.Reader
}

// formPayload implements client.Payload for a streamed multipart body
type formPayload struct {
	body        io.Reader
	contentType string
}

var _ client.Payload = (*formPayload)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// FieldPart returns a field part with a value
func FieldPart(name, value string) Part {
	return Part{Name: name, Body: strings.NewReader(value)}
}

// FilePart returns a file part which reads its content from r
func FilePart(name, filename string, r io.Reader) Part {
	return Part{Name: name, Filename: filename, Body: r}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ParseForm submits parts as a multipart form to the named backend. The
// parts are written in order as the request is sent, and req selects which
// of them the server persists, returns or streams.
func (c *Client) ParseForm(ctx context.Context, name string, req schema.ParseFormRequest, parts ...Part) (*schema.Form, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(mw, parts))
	}()
	defer pr.Close()

	opts := []client.RequestOpt{client.OptQuery(formQuery(req)), client.OptNoTimeout()}
	if path := strings.Trim(req.Path, "/"); path != "" {
		opts = append(opts, client.OptPath(name, path))
	} else {
		opts = append(opts, client.OptPath(name))
	}

	var response schema.Form
	if err := c.DoWithContext(ctx, &formPayload{body: pr, contentType: mw.FormDataContentType()}, &response, opts...); err != nil {
		return nil, err
	}
	return &response, nil
}

///////////////////////////////////////////////////////////////////////////////
// INTERFACE IMPLEMENTATION

func (p *formPayload) Method() string {
	return http.MethodPost
}

func (p *formPayload) Accept() string {
	return types.ContentTypeJSON
}

func (p *formPayload) Type() string {
	return p.contentType
}

func (p *formPayload) Read(b []byte) (int, error) {
	return p.body.Read(b)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func writeParts(mw *multipart.Writer, parts []Part) error {
	for _, part := range parts {
		var w io.Writer
		var err error
		if part.Filename != "" {
			w, err = mw.CreateFormFile(part.Name, part.Filename)
		} else {
			w, err = mw.CreateFormField(part.Name)
		}
		if err != nil {
			return err
		}
		if part.Body != nil {
			if _, err := io.Copy(w, part.Body); err != nil {
				return err
			}
		}
	}
	return mw.Close()
}

// formQuery encodes the parts to persist, return and stream, and the limits
func formQuery(req schema.ParseFormRequest) url.Values {
	query := make(url.Values)
	for _, key := range req.Persist {
		query.Add("persist", key)
	}
	for _, key := range req.Fields {
		query.Add("field", key)
	}
	if req.Stream != "" {
		query.Set("stream", req.Stream)
	}
	setInt := func(key string, value int64) {
		if value > 0 {
			query.Set(key, strconv.FormatInt(value, 10))
		}
	}
	setInt("fieldnamesize", int64(req.FieldNameSize))
	setInt("fieldsize", int64(req.FieldSize))
	setInt("fields", int64(req.Limits.Fields))
	setInt("files", int64(req.Files))
	setInt("parts", int64(req.Parts))
	setInt("filesize", req.FileSize)
	return query
}

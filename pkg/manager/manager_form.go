package manager

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"path"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	formdata "github.com/mutablelogic/go-formdata"
	handler "github.com/mutablelogic/go-formdata/pkg/handler"
	parser "github.com/mutablelogic/go-formdata/pkg/parser"
	pump "github.com/mutablelogic/go-formdata/pkg/pump"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ParseForm reads the parts of a multipart stream into a named backend.
// Persisted parts are written under req.Path, and the live stream part, if
// any, is written to req.Path/req.Stream. On failure everything written
// is removed again.
func (manager *Manager) ParseForm(ctx context.Context, name string, req schema.ParseFormRequest, r *multipart.Reader) (_ *schema.Form, err error) {
	backend, err := manager.backendForName(name)
	if err != nil {
		return nil, err
	}

	// OTEL span
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("ParseForm"))
	defer func() { endFunc(err) }()

	// Create the parser
	limits := capLimits(req.Limits, manager.limits)
	p, err := parser.New(backend,
		parser.WithPersist(req.Persist...),
		parser.WithFields(req.Fields...),
		parser.WithStream(req.Stream),
		parser.WithLimits(limits),
		parser.WithPrefix(req.Path),
		parser.WithLogger(manager.logger.With("backend", name)),
		parser.WithMeter(manager.meter),
	)
	if err != nil {
		return nil, err
	}
	if err := p.Start(child, r); err != nil {
		return nil, err
	}

	// Write the live stream to storage as it arrives. A stream over the
	// file size limit fails the write and the form.
	form := &schema.Form{Name: backend.Name()}
	var streamErr error
	if req.Stream != "" {
		if stream, err := p.Stream(child); err == nil && stream != nil {
			meta := schema.ObjectMeta{schema.AttrFormName: req.Stream}
			if filename := handler.Filename(stream); filename != "" {
				meta[schema.AttrFileName] = filename
			}
			obj, err := backend.CreateObject(child, schema.CreateObjectRequest{
				Path: path.Join("/", req.Path, req.Stream),
				Body: limitedBody{stream},
				Meta: meta,
			})
			if obj != nil {
				form.Stream = obj
			}
			switch {
			case stream.Truncated():
				streamErr = &schema.FileSizeError{Key: req.Stream, Limit: limits.FileSize}
			case err != nil:
				streamErr = err
			}
			if streamErr != nil {
				p.Abort(streamErr)
			}
		}
	}

	// Wait for the parser, rolling back on failure. The parser may already
	// have succeeded when the stream write fails.
	err = p.Wait(child)
	if err == nil && streamErr != nil {
		err = &schema.ParsingErrors{Errs: []error{streamErr}, StreamErr: streamErr}
	}
	if err != nil {
		p.Abort(err)
		manager.rollback(context.WithoutCancel(child), backend, p, form.Stream)
		return nil, err
	}

	// Collect the results
	if form.Fields, err = p.Fields(child); err != nil {
		return nil, err
	}
	if form.Files, err = p.Files(child); err != nil {
		return nil, err
	}

	// Return success
	return form, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// limitedBody fails a read at the end of a source cut short by its limit
type limitedBody struct {
	pump.Source
}

func (b limitedBody) Read(data []byte) (int, error) {
	n, err := b.Source.Read(data)
	if errors.Is(err, io.EOF) && b.Truncated() {
		err = schema.ErrFileSizeLimit
	}
	return n, err
}

// capLimits returns the limits of a form, each capped by the non-zero
// limit of the manager
func capLimits(limits, upper schema.Limits) schema.Limits {
	limits.FieldNameSize = capLimit(limits.FieldNameSize, upper.FieldNameSize)
	limits.FieldSize = capLimit(limits.FieldSize, upper.FieldSize)
	limits.Fields = capLimit(limits.Fields, upper.Fields)
	limits.FileSize = capLimit(limits.FileSize, upper.FileSize)
	limits.Files = capLimit(limits.Files, upper.Files)
	limits.Parts = capLimit(limits.Parts, upper.Parts)
	return limits
}

func capLimit[T int | int64](value, upper T) T {
	if upper > 0 && (value <= 0 || value > upper) {
		return upper
	}
	return value
}

// rollback removes the persisted parts and the stream of a failed form
func (manager *Manager) rollback(ctx context.Context, backend formdata.Backend, p *parser.Parser, stream *schema.Object) {
	var result error
	if _, err := p.Remove(ctx); err != nil {
		result = errors.Join(result, err)
	}
	if stream != nil {
		if _, err := backend.DeleteObject(ctx, schema.DeleteObjectRequest{Path: stream.Path}); err != nil {
			result = errors.Join(result, err)
		}
	}
	if result != nil {
		manager.logger.Printf(ctx, "rollback of %q: %v", backend.Name(), result)
	}
}

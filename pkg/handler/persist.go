package handler

import (
	"context"
	"errors"

	// Packages
	pump "github.com/mutablelogic/go-formdata/pkg/pump"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	uploader "github.com/mutablelogic/go-formdata/pkg/uploader"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// PersistHandler writes named files and fields to storage
type PersistHandler struct {
	*Handler[schema.FileInfo]
	uploader *uploader.Uploader
	limits   schema.Limits
}

// Named is implemented by sources which carry a client-supplied filename
type Named interface {
	Filename() string
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewPersistHandler returns a handler which requires each of keys, as a
// file or a field, and uploads them with u. The handler owns u from then on.
func NewPersistHandler(ctx context.Context, u *uploader.Uploader, keys []string, limits schema.Limits, opts ...Opt[schema.FileInfo]) (*PersistHandler, error) {
	self := &PersistHandler{uploader: u, limits: limits.WithDefaults()}
	handler, err := newHandler(append(opts,
		WithName[schema.FileInfo]("persist"),
		WithRequired[schema.FileInfo](keys...),
		WithFileParser(self.parseFile),
		WithFieldParser(self.parseField),
		WithOnFinish[schema.FileInfo](self.onFinish),
		WithOnAbort[schema.FileInfo](self.onAbort),
	)...)
	if err != nil {
		return nil, err
	}
	self.Handler = handler
	self.start(ctx)
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Files returns the parts uploaded so far
func (p *PersistHandler) Files() []schema.FileInfo {
	return p.uploader.Files()
}

// Remove every upload, once in-flight uploads have settled
func (p *PersistHandler) Remove(ctx context.Context) ([]string, error) {
	return p.uploader.Remove(ctx)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (p *PersistHandler) parseFile(ctx context.Context, key string, src pump.Source) (schema.FileInfo, error) {
	if src.Truncated() {
		return schema.FileInfo{}, &schema.FileSizeError{Key: key, Limit: p.limits.FileSize}
	}
	if err := checkName(key, p.limits); err != nil {
		return schema.FileInfo{}, err
	}
	info, err := p.upload(ctx, key, src)
	if err != nil {
		return info, err
	}
	info.Filename = Filename(src)
	return info, nil
}

func (p *PersistHandler) parseField(ctx context.Context, key string, field schema.Field) (schema.FileInfo, error) {
	if err := checkField(key, field, p.limits); err != nil {
		return schema.FileInfo{}, err
	}
	return p.upload(ctx, key, pump.StringSource(field.Value))
}

func (p *PersistHandler) upload(ctx context.Context, key string, src pump.Source) (schema.FileInfo, error) {
	info, err := p.uploader.Upload(ctx, key, src)
	if errors.Is(err, schema.ErrFileSizeLimit) {
		return info, &schema.FileSizeError{Key: key, Limit: p.limits.FileSize}
	} else if err != nil {
		return info, err
	}
	p.logger.Debugf(ctx, "%q uploaded to %q", key, info.Path)
	return info, nil
}

// Filename returns the client-supplied filename of src, looking through
// detachable wrappers
func Filename(src pump.Source) string {
	for src != nil {
		if named, ok := src.(Named); ok {
			return named.Filename()
		} else if d, ok := src.(*pump.Detachable); ok {
			src = d.Source
		} else {
			break
		}
	}
	return ""
}

func (p *PersistHandler) onFinish(context.Context) error {
	p.uploader.Finish()
	return nil
}

func (p *PersistHandler) onAbort(ctx context.Context) error {
	p.uploader.Abort()
	if _, err := p.uploader.Wait(ctx); err == nil {
		return schema.ErrUploadsNotAborted
	}
	return nil
}

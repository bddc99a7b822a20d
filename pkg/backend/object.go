package backend

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"maps"
	"strings"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	blob "gocloud.dev/blob"
	gcerrors "gocloud.dev/gcerrors"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// CreateObject writes the request body to an object, replacing any object
// at the path unless IfNotExists is set
func (b *blobbackend) CreateObject(ctx context.Context, req schema.CreateObjectRequest) (*schema.Object, error) {
	p, key := objectPath(req.Path), b.objectKey(req.Path)
	name := b.qualify(p)
	if req.Body == nil {
		return nil, httpresponse.ErrBadRequest.Withf("missing body for %q", name)
	}
	if req.IfNotExists {
		if _, err := b.bucket.Attributes(ctx, key); err == nil {
			return nil, httpresponse.ErrConflict.Withf("object %q already exists", name)
		} else if gcerrors.Code(err) != gcerrors.NotFound {
			return nil, objectErr(err, name)
		}
	}

	// The caller's metadata is copied before the modification time is added
	var meta schema.ObjectMeta
	if len(req.Meta) > 0 || !req.ModTime.IsZero() {
		meta = maps.Clone(req.Meta)
		if meta == nil {
			meta = make(schema.ObjectMeta, 1)
		}
		if !req.ModTime.IsZero() {
			meta[schema.AttrLastModified] = req.ModTime.Format(time.RFC3339)
		}
	}

	// A cancelled writer discards what was written
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := b.bucket.NewWriter(wctx, key, &blob.WriterOptions{
		ContentType: req.ContentType,
		Metadata:    meta,
	})
	if err != nil {
		return nil, objectErr(err, name)
	}
	if _, err := io.Copy(w, req.Body); err != nil {
		cancel()
		return nil, objectErr(errors.Join(err, w.Close()), name)
	}
	if err := w.Close(); err != nil {
		return nil, objectErr(err, name)
	}

	attrs, err := b.bucket.Attributes(ctx, key)
	if err != nil {
		return &schema.Object{Name: b.Name(), Path: p, ContentType: req.ContentType}, nil
	}
	return b.object(p, attrs), nil
}

// GetObject returns object metadata
func (b *blobbackend) GetObject(ctx context.Context, req schema.GetObjectRequest) (*schema.Object, error) {
	p := objectPath(req.Path)
	attrs, err := b.bucket.Attributes(ctx, b.objectKey(p))
	if err != nil {
		return nil, objectErr(err, b.qualify(p))
	}
	return b.object(p, attrs), nil
}

// ReadObject returns a reader for the object content, which the caller
// must close
func (b *blobbackend) ReadObject(ctx context.Context, req schema.ReadObjectRequest) (io.ReadCloser, *schema.Object, error) {
	obj, err := b.GetObject(ctx, req.GetObjectRequest)
	if err != nil {
		return nil, nil, err
	}
	r, err := b.bucket.NewReader(ctx, b.objectKey(obj.Path), nil)
	if err != nil {
		return nil, nil, objectErr(err, b.qualify(obj.Path))
	}
	return r, obj, nil
}

// ListObjects returns the object at the path or, when there is none, the
// objects under it. Without Recursive, only immediate children are listed
// and subdirectories appear as entries of their own.
func (b *blobbackend) ListObjects(ctx context.Context, req schema.ListObjectsRequest) (*schema.ListObjectsResponse, error) {
	p, key := objectPath(req.Path), b.objectKey(req.Path)
	response := &schema.ListObjectsResponse{Name: b.Name()}

	// A single object
	if key != "" && !strings.HasSuffix(key, "/") {
		if attrs, err := b.bucket.Attributes(ctx, key); err == nil {
			response.Body = []schema.Object{*b.object(p, attrs)}
			response.Count = 1
			return response, nil
		}
	}

	opts := &blob.ListOptions{Prefix: strings.TrimSuffix(key, "/")}
	if opts.Prefix != "" {
		opts.Prefix += "/"
	}
	if !req.Recursive {
		opts.Delimiter = "/"
	}
	iter := b.bucket.List(opts)
	for {
		item, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, objectErr(err, b.qualify(p))
		}
		if item.Key == opts.Prefix {
			continue
		}
		obj := schema.Object{
			Name:    b.Name(),
			Path:    b.pathForKey(item.Key),
			Size:    item.Size,
			ModTime: item.ModTime,
		}
		if len(item.MD5) > 0 {
			obj.ETag = hex.EncodeToString(item.MD5)
		}
		response.Body = append(response.Body, obj)
	}

	response.Count = len(response.Body)
	return response, nil
}

// DeleteObject removes an object and returns its metadata
func (b *blobbackend) DeleteObject(ctx context.Context, req schema.DeleteObjectRequest) (*schema.Object, error) {
	obj, err := b.GetObject(ctx, schema.GetObjectRequest{Path: req.Path})
	if err != nil {
		return nil, err
	}
	if err := b.bucket.Delete(ctx, b.objectKey(obj.Path)); err != nil {
		return nil, objectErr(err, b.qualify(obj.Path))
	}
	return obj, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// qualify returns name:path for error messages
func (b *blobbackend) qualify(p string) string {
	return b.Name() + ":" + p
}

func (b *blobbackend) object(p string, attrs *blob.Attributes) *schema.Object {
	obj := &schema.Object{
		Name:        b.Name(),
		Path:        p,
		Size:        attrs.Size,
		ModTime:     attrs.ModTime,
		ContentType: attrs.ContentType,
		ETag:        attrs.ETag,
	}
	if len(attrs.Metadata) > 0 {
		obj.Meta = attrs.Metadata
	}
	return obj
}

// Package backend stores uploaded form parts and objects in a gocloud blob
// bucket. A backend URL names the bucket and the backend:
//
//	mem://name[/prefix]
//	file://name/absolute/directory
//	s3://bucket[/prefix]?region=...
//
// The host is the backend name. For mem:// and s3:// the path is a key
// prefix within the bucket; for file:// it is the bucket directory.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	// Packages
	aws "github.com/aws/aws-sdk-go-v2/aws"
	s3 "github.com/aws/aws-sdk-go-v2/service/s3"
	formdata "github.com/mutablelogic/go-formdata"
	types "github.com/mutablelogic/go-server/pkg/types"
	otelaws "go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	blob "gocloud.dev/blob"
	s3blob "gocloud.dev/blob/s3blob"

	// Drivers
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type blobbackend struct {
	*opt
	url    *url.URL
	bucket *blob.Bucket
	prefix string // key prefix within the bucket, without slashes
}

var _ formdata.Backend = (*blobbackend)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewBlobBackend opens the bucket for a backend URL
func NewBlobBackend(ctx context.Context, u string, opts ...Opt) (*blobbackend, error) {
	self := new(blobbackend)
	if url, err := url.Parse(u); err != nil {
		return nil, err
	} else {
		self.url = url
	}
	if opt, err := apply(opts...); err != nil {
		return nil, err
	} else {
		self.opt = opt
	}

	// The name must be usable as a path segment
	if !types.IsIdentifier(self.url.Host) {
		return nil, fmt.Errorf("backend name %q must be a valid identifier", self.url.Host)
	}

	// Open the bucket
	bucket, err := self.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	self.bucket = bucket

	// Return success
	return self, nil
}

// NewFileBackend opens a file:// backend called name, rooted at dir
func NewFileBackend(ctx context.Context, name, dir string, opts ...Opt) (*blobbackend, error) {
	if !path.IsAbs(dir) {
		return nil, fmt.Errorf("backend dir %q must be an absolute path", dir)
	}
	return NewBlobBackend(ctx, "file://"+name+path.Clean(dir), opts...)
}

// Close the bucket
func (b *blobbackend) Close() error {
	var result error
	if b.bucket != nil {
		result = errors.Join(result, b.bucket.Close())
		b.bucket = nil
	}
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Name returns the name of the backend
func (b *blobbackend) Name() string {
	return b.url.Host
}

// URL returns the backend URL without credentials. The query is only set
// for s3:// backends, with the region, endpoint and anonymous flag.
func (b *blobbackend) URL() *url.URL {
	u := &url.URL{Scheme: b.url.Scheme, Host: b.url.Host, Path: b.url.Path}
	if u.Scheme != "s3" {
		return u
	}

	q := url.Values{}
	switch {
	case b.region != "":
		q.Set("region", b.region)
	case b.url.Query().Get("region") != "":
		q.Set("region", b.url.Query().Get("region"))
	case b.awsConfig != nil && b.awsConfig.Region != "":
		q.Set("region", b.awsConfig.Region)
	}
	if b.endpoint != nil {
		endpoint := *b.endpoint
		endpoint.User = nil
		q.Set("endpoint", endpoint.String())
	}
	if b.anonymous {
		q.Set("anonymous", "true")
	}
	u.RawQuery = q.Encode()
	return u
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (b *blobbackend) open(ctx context.Context) (*blob.Bucket, error) {
	switch b.url.Scheme {
	case "file":
		u := &url.URL{Scheme: "file", Path: b.url.Path}
		u.RawQuery = b.query("file", b.url.Query()).Encode()
		return blob.OpenBucket(ctx, u.String())
	case "s3":
		b.prefix = strings.Trim(b.url.Path, "/")
		if b.awsConfig != nil {
			return s3blob.OpenBucket(ctx, b.s3Client(), b.url.Host, nil)
		}
		u := &url.URL{Scheme: "s3", Host: b.url.Host}
		u.RawQuery = b.query("s3", b.url.Query()).Encode()
		return blob.OpenBucket(ctx, u.String())
	case "mem":
		b.prefix = strings.Trim(b.url.Path, "/")
		return blob.OpenBucket(ctx, (&url.URL{Scheme: "mem", Host: b.url.Host}).String())
	default:
		return nil, fmt.Errorf("unsupported backend scheme %q", b.url.Scheme)
	}
}

func (b *blobbackend) s3Client() *s3.Client {
	cfg := b.awsConfig.Copy()
	if b.region != "" {
		cfg.Region = b.region
	}
	if b.anonymous {
		cfg.Credentials = aws.AnonymousCredentials{}
	}
	if b.tracer != nil {
		otelaws.AppendMiddlewares(&cfg.APIOptions)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if b.endpoint != nil {
			o.BaseEndpoint = aws.String(b.endpoint.String())
			o.UsePathStyle = true
		}
	})
}

// objectPath returns the absolute, clean form of an object path
func objectPath(p string) string {
	return path.Clean("/" + p)
}

// objectKey returns the bucket key for an object path or storage key. The
// root maps to the prefix itself, followed by a slash.
func (b *blobbackend) objectKey(p string) string {
	rel := strings.TrimPrefix(objectPath(p), "/")
	switch {
	case b.prefix == "":
		return rel
	case rel == "":
		return b.prefix + "/"
	default:
		return b.prefix + "/" + rel
	}
}

// pathForKey returns the object path for a bucket key
func (b *blobbackend) pathForKey(key string) string {
	if b.prefix != "" {
		key = strings.TrimPrefix(key, b.prefix+"/")
	}
	return objectPath(key)
}

package backend

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemBackend(t *testing.T, u string) *blobbackend {
	t.Helper()
	b, err := NewBlobBackend(context.Background(), u)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func mustCreate(t *testing.T, b *blobbackend, p, content, contentType string, meta schema.ObjectMeta) *schema.Object {
	t.Helper()
	obj, err := b.CreateObject(context.Background(), schema.CreateObjectRequest{
		Path:        p,
		Body:        strings.NewReader(content),
		ContentType: contentType,
		Meta:        meta,
	})
	require.NoError(t, err)
	return obj
}

func TestCreateObject(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t, "mem://testbucket")

	t.Run("simple", func(t *testing.T) {
		assert := assert.New(t)
		obj := mustCreate(t, b, "/test.txt", "hello world", "text/plain", nil)
		assert.Equal("testbucket", obj.Name)
		assert.Equal("/test.txt", obj.Path)
		assert.Equal(int64(11), obj.Size)
		assert.Equal("text/plain", obj.ContentType)
	})

	t.Run("relative path", func(t *testing.T) {
		obj := mustCreate(t, b, "dir/../relative.txt", "x", "text/plain", nil)
		assert.Equal(t, "/relative.txt", obj.Path)
	})

	t.Run("modtime and metadata", func(t *testing.T) {
		assert := assert.New(t)
		meta := schema.ObjectMeta{"author": "test"}
		modtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		obj, err := b.CreateObject(ctx, schema.CreateObjectRequest{
			Path:    "/meta.txt",
			Body:    strings.NewReader("meta"),
			ModTime: modtime,
			Meta:    meta,
		})
		require.NoError(t, err)
		assert.Equal("test", obj.Meta["author"])
		assert.Equal(modtime.Format(time.RFC3339), obj.Meta[schema.AttrLastModified])
		assert.Len(meta, 1, "caller metadata must not be mutated")
	})

	t.Run("if not exists", func(t *testing.T) {
		mustCreate(t, b, "/exists.txt", "first", "text/plain", nil)
		_, err := b.CreateObject(ctx, schema.CreateObjectRequest{
			Path:        "/exists.txt",
			Body:        strings.NewReader("second"),
			IfNotExists: true,
		})
		assert.ErrorContains(t, err, "already exists")
	})

	t.Run("missing body", func(t *testing.T) {
		_, err := b.CreateObject(ctx, schema.CreateObjectRequest{Path: "/nobody.txt"})
		assert.Error(t, err)
	})
}

func TestGetObject(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t, "mem://testbucket")
	mustCreate(t, b, "/data.json", `{"foo":"bar"}`, "application/json", schema.ObjectMeta{"author": "test"})
	mustCreate(t, b, "/subdir/nested.txt", "nested content", "text/plain", nil)

	tests := []struct {
		name     string
		path     string
		wantSize int64
		wantType string
		wantErr  bool
	}{
		{"file with metadata", "/data.json", 13, "application/json", false},
		{"nested file", "/subdir/nested.txt", 14, "text/plain", false},
		{"not found", "/notfound.txt", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			obj, err := b.GetObject(ctx, schema.GetObjectRequest{Path: tt.path})
			if tt.wantErr {
				assert.ErrorContains(err, "not found")
				return
			}
			require.NoError(t, err)
			assert.Equal("testbucket", obj.Name)
			assert.Equal(tt.path, obj.Path)
			assert.Equal(tt.wantSize, obj.Size)
			assert.Equal(tt.wantType, obj.ContentType)
		})
	}
}

func TestReadObject(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t, "mem://testbucket/prefix")
	mustCreate(t, b, "/hello.txt", "hello world", "text/plain", nil)

	t.Run("read", func(t *testing.T) {
		assert := assert.New(t)
		r, obj, err := b.ReadObject(ctx, schema.ReadObjectRequest{GetObjectRequest: schema.GetObjectRequest{Path: "/hello.txt"}})
		require.NoError(t, err)
		defer r.Close()
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal("hello world", string(data))
		assert.Equal("/hello.txt", obj.Path)
		assert.Equal(int64(11), obj.Size)
	})

	t.Run("stored under bucket prefix", func(t *testing.T) {
		exists, err := b.bucket.Exists(ctx, "prefix/hello.txt")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("not found", func(t *testing.T) {
		_, _, err := b.ReadObject(ctx, schema.ReadObjectRequest{GetObjectRequest: schema.GetObjectRequest{Path: "/missing.txt"}})
		assert.ErrorContains(t, err, "not found")
	})
}

func TestListObjects(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t, "mem://testbucket")
	mustCreate(t, b, "/a.txt", "a", "text/plain", nil)
	mustCreate(t, b, "/dir/b.txt", "bb", "text/plain", nil)
	mustCreate(t, b, "/dir/sub/c.txt", "ccc", "text/plain", nil)

	paths := func(resp *schema.ListObjectsResponse) []string {
		result := make([]string, 0, len(resp.Body))
		for _, obj := range resp.Body {
			result = append(result, obj.Path)
		}
		return result
	}

	t.Run("single object", func(t *testing.T) {
		resp, err := b.ListObjects(ctx, schema.ListObjectsRequest{Path: "/a.txt"})
		require.NoError(t, err)
		assert.Equal(t, []string{"/a.txt"}, paths(resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("recursive", func(t *testing.T) {
		resp, err := b.ListObjects(ctx, schema.ListObjectsRequest{Path: "/dir", Recursive: true})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"/dir/b.txt", "/dir/sub/c.txt"}, paths(resp))
	})

	t.Run("immediate children", func(t *testing.T) {
		resp, err := b.ListObjects(ctx, schema.ListObjectsRequest{Path: "/dir"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"/dir/b.txt", "/dir/sub"}, paths(resp))
	})

	t.Run("root", func(t *testing.T) {
		resp, err := b.ListObjects(ctx, schema.ListObjectsRequest{Recursive: true})
		require.NoError(t, err)
		assert.Equal(t, 3, resp.Count)
		assert.Equal(t, "testbucket", resp.Name)
	})
}

func TestDeleteObject(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend(t, "mem://testbucket")
	mustCreate(t, b, "/delete.txt", "gone", "text/plain", nil)

	obj, err := b.DeleteObject(ctx, schema.DeleteObjectRequest{Path: "/delete.txt"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), obj.Size)

	_, err = b.GetObject(ctx, schema.GetObjectRequest{Path: "/delete.txt"})
	assert.ErrorContains(t, err, "not found")

	_, err = b.DeleteObject(ctx, schema.DeleteObjectRequest{Path: "/delete.txt"})
	assert.ErrorContains(t, err, "not found")
}

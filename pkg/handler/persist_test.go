package handler_test

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"strings"
	"testing"

	// Packages
	formdata "github.com/mutablelogic/go-formdata"
	backend "github.com/mutablelogic/go-formdata/pkg/backend"
	handler "github.com/mutablelogic/go-formdata/pkg/handler"
	logger "github.com/mutablelogic/go-formdata/pkg/logger"
	pump "github.com/mutablelogic/go-formdata/pkg/pump"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	uploader "github.com/mutablelogic/go-formdata/pkg/uploader"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

type namedSource struct {
	*pump.LimitedSource
	filename string
}

func (s namedSource) Filename() string {
	return s.filename
}

func newPersistHandler(t *testing.T, keys []string, limits schema.Limits) (*handler.PersistHandler, formdata.Backend) {
	t.Helper()
	storage, err := backend.NewBlobBackend(context.Background(), "mem://persist")
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	u, err := uploader.New(storage, uploader.WithPrefix("uploads"))
	require.NoError(t, err)
	h, err := handler.NewPersistHandler(context.Background(), u, keys, limits)
	require.NoError(t, err)
	return h, storage
}

func TestPersistHandler(t *testing.T) {
	assert := assert.New(t)
	ctx := waitCtx(t)
	h, storage := newPersistHandler(t, []string{"doc", "note"}, schema.Limits{})

	assert.True(h.WantFile("doc"))
	assert.True(h.WantField("note"))

	_, err := h.StartFileTask("doc", namedSource{pump.StringSource("document body"), "doc.txt"})
	require.NoError(t, err)
	_, err = h.StartFieldTask("note", schema.Field{Name: "note", Value: "a note"})
	require.NoError(t, err)

	files, err := h.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)

	byName := map[string]schema.FileInfo{}
	for _, file := range files {
		byName[file.Name] = file
		assert.True(strings.HasPrefix(file.Path, "uploads/"), file.Path)
		size, err := storage.Size(ctx, file.Path)
		require.NoError(t, err)
		assert.Equal(file.Size, size)
	}
	assert.Equal("doc.txt", byName["doc"].Filename)
	assert.Equal(int64(13), byName["doc"].Size)
	assert.Empty(byName["note"].Filename)
	assert.Equal(int64(6), byName["note"].Size)
	assert.ElementsMatch(files, h.Files())

	// Remove every upload
	keys, err := h.Remove(ctx)
	require.NoError(t, err)
	assert.Len(keys, 2)
	for _, key := range keys {
		_, err := storage.Size(ctx, key)
		assert.ErrorIs(err, fs.ErrNotExist)
	}
}

func TestPersistHandlerFileSize(t *testing.T) {
	assert := assert.New(t)
	ctx := waitCtx(t)
	h, _ := newPersistHandler(t, []string{"doc"}, schema.Limits{FileSize: 4})

	_, err := h.StartFileTask("doc", pump.LimitReader(strings.NewReader("more than four bytes"), 4))
	require.NoError(t, err)

	_, err = h.Wait(ctx)
	assert.Equal(&schema.FileSizeError{Key: "doc", Limit: 4}, err)
	assert.Empty(h.Files())
}

func TestPersistHandlerTruncatedField(t *testing.T) {
	h, _ := newPersistHandler(t, []string{"note"}, schema.Limits{})
	_, err := h.StartFieldTask("note", schema.Field{Value: "abc", ValueTruncated: true})
	require.NoError(t, err)

	_, err = h.Wait(waitCtx(t))
	assert.Equal(t, &schema.TruncatedFieldError{Key: "note"}, err)
}

func TestPersistHandlerAbort(t *testing.T) {
	assert := assert.New(t)
	ctx := waitCtx(t)
	h, storage := newPersistHandler(t, []string{"doc", "other"}, schema.Limits{})

	// An upload in flight when the handler aborts is discarded
	r, w := io.Pipe()
	defer w.Close()
	task, err := h.StartFileTask("doc", pump.LimitReader(r, 0))
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	h.Abort(nil)
	_, err = h.Wait(ctx)
	assert.ErrorIs(err, context.Canceled)
	_, err = task.Wait(ctx)
	assert.Error(err)

	<-h.Idle()
	assert.Empty(h.Files())
	resp, err := storage.ListObjects(ctx, schema.ListObjectsRequest{Recursive: true})
	require.NoError(t, err)
	assert.Zero(resp.Count)
}

func TestPersistHandlerAbortAfterUploads(t *testing.T) {
	assert := assert.New(t)
	storage, err := backend.NewBlobBackend(context.Background(), "mem://persist")
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	u, err := uploader.New(storage)
	require.NoError(t, err)

	var buf bytes.Buffer
	h, err := handler.NewPersistHandler(context.Background(), u, []string{"doc", "other"}, schema.Limits{},
		handler.WithLogger[schema.FileInfo](logger.New(&buf, logger.Text, false)),
	)
	require.NoError(t, err)

	// The uploads resolve on finish, before the missing entry aborts
	task, err := h.StartFieldTask("doc", schema.Field{Name: "doc", Value: "data"})
	require.NoError(t, err)
	_, err = task.Wait(waitCtx(t))
	require.NoError(t, err)
	h.Finish()

	_, err = h.Wait(waitCtx(t))
	var missing *schema.MissingEntriesError
	assert.ErrorAs(err, &missing)
	<-h.Idle()
	assert.Contains(buf.String(), schema.ErrUploadsNotAborted.Error())
	assert.Equal(1, strings.Count(buf.String(), schema.ErrUploadsNotAborted.Error()))
}

package uploader_test

import (
	"context"
	"io"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	// Packages
	pump "github.com/mutablelogic/go-formdata/pkg/pump"
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
	uploader "github.com/mutablelogic/go-formdata/pkg/uploader"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
	blob "gocloud.dev/blob"
	gcerrors "gocloud.dev/gcerrors"

	// Drivers
	_ "gocloud.dev/blob/memblob"
)

////////////////////////////////////////////////////////////////////////////////
// STORAGE

type bucketStorage struct {
	*blob.Bucket
}

func (s bucketStorage) NewWriter(ctx context.Context, key string) (io.WriteCloser, error) {
	return s.Bucket.NewWriter(ctx, key, nil)
}

func (s bucketStorage) Size(ctx context.Context, key string) (int64, error) {
	attrs, err := s.Attributes(ctx, key)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

func (s bucketStorage) Delete(ctx context.Context, key string) error {
	if err := s.Bucket.Delete(ctx, key); gcerrors.Code(err) == gcerrors.NotFound {
		return &fs.PathError{Op: "delete", Path: key, Err: fs.ErrNotExist}
	} else {
		return err
	}
}

// slowStorage holds each writer's Close until release is closed
type slowStorage struct {
	bucketStorage
	closing chan struct{}
	release chan struct{}
}

type slowWriter struct {
	io.WriteCloser
	s slowStorage
}

func (s slowStorage) NewWriter(ctx context.Context, key string) (io.WriteCloser, error) {
	w, err := s.bucketStorage.NewWriter(ctx, key)
	if err != nil {
		return nil, err
	}
	return slowWriter{w, s}, nil
}

func (w slowWriter) Close() error {
	close(w.s.closing)
	<-w.s.release
	return w.WriteCloser.Close()
}

func newUploader(t *testing.T, opts ...uploader.Opt) (*uploader.Uploader, bucketStorage) {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { bucket.Close() })

	storage := bucketStorage{bucket}
	u, err := uploader.New(storage, opts...)
	require.NoError(t, err)
	return u, storage
}

////////////////////////////////////////////////////////////////////////////////
// TESTS

func Test_Uploader_Finish(t *testing.T) {
	assert := assert.New(t)
	u, storage := newUploader(t, uploader.WithPrefix("/uploads/"))

	a, err := u.Upload(context.Background(), "a", pump.StringSource("aaa"))
	assert.NoError(err)
	assert.Equal("a", a.Name)
	assert.EqualValues(3, a.Size)
	assert.True(strings.HasPrefix(a.Path, "uploads/"))

	b, err := u.Upload(context.Background(), "b", pump.StringSource("bbbbb"))
	assert.NoError(err)
	assert.EqualValues(5, b.Size)
	assert.NotEqual(a.Path, b.Path)

	u.Finish()
	files, err := u.Wait(context.Background())
	assert.NoError(err)
	assert.Equal([]schema.FileInfo{a, b}, files)

	data, err := storage.ReadAll(context.Background(), b.Path)
	assert.NoError(err)
	assert.Equal("bbbbb", string(data))

	// No uploads once finished
	_, err = u.Upload(context.Background(), "c", pump.StringSource("c"))
	assert.ErrorIs(err, schema.ErrNoNewUploads)
}

func Test_Uploader_FinishEmpty(t *testing.T) {
	assert := assert.New(t)
	u, _ := newUploader(t)

	u.Finish()
	assert.True(u.IsDone())
	files, err := u.Wait(context.Background())
	assert.NoError(err)
	assert.Empty(files)
}

func Test_Uploader_FailedUploadStillFinishes(t *testing.T) {
	assert := assert.New(t)
	u, _ := newUploader(t)

	src := pump.LimitReader(strings.NewReader("too long"), 2)
	_, err := u.Upload(context.Background(), "a", src)
	assert.ErrorIs(err, schema.ErrFileSizeLimit)

	u.Finish()
	files, err := u.Wait(context.Background())
	assert.NoError(err)
	assert.Empty(files)
	assert.Len(u.Keys(), 1)
}

func Test_Uploader_AbortInFlight(t *testing.T) {
	assert := assert.New(t)
	u, _ := newUploader(t)

	// Start uploads which block on their sources
	var wg sync.WaitGroup
	writers := make([]*io.PipeWriter, 3)
	errs := make([]error, 3)
	for i := range writers {
		r, w := io.Pipe()
		writers[i] = w
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = u.Upload(context.Background(), "file", pump.LimitReader(r, 0))
		}()
		_, err := w.Write([]byte("data"))
		assert.NoError(err)
	}

	// Finish and abort race on the last pump settling
	u.Finish()
	u.Abort()
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(err, schema.ErrPumpAborted)
	}
	_, err := u.Wait(context.Background())
	assert.ErrorIs(err, schema.ErrUploadsAborted)

	for _, w := range writers {
		w.Close()
	}
}

func Test_Uploader_AbortAfterFinish(t *testing.T) {
	assert := assert.New(t)
	u, _ := newUploader(t)

	_, err := u.Upload(context.Background(), "a", pump.StringSource("a"))
	assert.NoError(err)
	u.Finish()
	u.Abort()

	// Already resolved; abort does not change the outcome
	files, err := u.Wait(context.Background())
	assert.NoError(err)
	assert.Len(files, 1)
}

func Test_Uploader_Remove(t *testing.T) {
	assert := assert.New(t)
	u, storage := newUploader(t)

	a, err := u.Upload(context.Background(), "a", pump.StringSource("a"))
	assert.NoError(err)
	b, err := u.Upload(context.Background(), "b", pump.StringSource("b"))
	assert.NoError(err)

	keys, err := u.Remove(context.Background())
	assert.NoError(err)
	assert.ElementsMatch([]string{a.Path, b.Path}, keys)

	for _, key := range keys {
		ok, err := storage.Exists(context.Background(), key)
		assert.NoError(err)
		assert.False(ok)
	}
}

func Test_Uploader_RemoveMissing(t *testing.T) {
	assert := assert.New(t)
	u, storage := newUploader(t)

	a, err := u.Upload(context.Background(), "a", pump.StringSource("a"))
	assert.NoError(err)
	b, err := u.Upload(context.Background(), "b", pump.StringSource("b"))
	assert.NoError(err)

	// Remove the files behind the uploader's back
	assert.NoError(storage.Delete(context.Background(), a.Path))
	assert.NoError(storage.Delete(context.Background(), b.Path))

	_, err = u.Remove(context.Background())
	var deleteErrs *schema.DeleteErrors
	if assert.ErrorAs(err, &deleteErrs) {
		assert.Len(deleteErrs.Errs, 2)
		assert.Len(strings.Split(err.Error(), "\n"), 2)
	}
	assert.ErrorIs(err, fs.ErrNotExist)
}

func Test_Uploader_RemoveAfterAbort(t *testing.T) {
	assert := assert.New(t)
	u, _ := newUploader(t)

	r, w := io.Pipe()
	defer w.Close()
	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background(), "a", pump.LimitReader(r, 0))
		done <- err
	}()
	_, err := w.Write([]byte("data"))
	assert.NoError(err)

	u.Abort()
	select {
	case err := <-done:
		assert.ErrorIs(err, schema.ErrPumpAborted)
	case <-time.After(time.Second):
		t.Fatal("upload did not settle after abort")
	}

	// The aborted upload never committed, so removal succeeds
	keys, err := u.Remove(context.Background())
	assert.NoError(err)
	assert.Len(keys, 1)
}

func Test_Uploader_RemoveWaitsForCommit(t *testing.T) {
	assert := assert.New(t)
	_, bucket := newUploader(t)
	storage := slowStorage{bucket, make(chan struct{}), make(chan struct{})}
	u, err := uploader.New(storage)
	require.NoError(t, err)

	uploaded := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background(), "a", pump.StringSource("data"))
		uploaded <- err
	}()

	// Abort while the write is committing
	<-storage.closing
	u.Abort()
	assert.ErrorIs(<-uploaded, schema.ErrPumpAborted)

	removed := make(chan error, 1)
	go func() {
		_, err := u.Remove(context.Background())
		removed <- err
	}()
	select {
	case <-removed:
		t.Fatal("remove returned while a write was committing")
	case <-time.After(10 * time.Millisecond):
	}

	close(storage.release)
	select {
	case err := <-removed:
		assert.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("remove did not return")
	}
	for _, key := range u.Keys() {
		ok, err := bucket.Exists(context.Background(), key)
		require.NoError(t, err)
		assert.False(ok, key)
	}
}

func Test_Uploader_Options(t *testing.T) {
	assert := assert.New(t)

	_, err := uploader.New(nil, uploader.WithConcurrency(0))
	assert.Error(err)

	u, _ := newUploader(t, uploader.WithPrefix("../escape"))
	info, err := u.Upload(context.Background(), "a", pump.StringSource("a"))
	assert.NoError(err)
	assert.True(strings.HasPrefix(info.Path, "escape/"))
}

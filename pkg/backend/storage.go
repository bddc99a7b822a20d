package backend

import (
	"context"
	"io"
	"io/fs"

	// Packages
	gcerrors "gocloud.dev/gcerrors"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// NewWriter opens key for exclusive write. Cancelling ctx before the writer
// is closed discards the write.
func (b *blobbackend) NewWriter(ctx context.Context, key string) (io.WriteCloser, error) {
	bk := b.objectKey(key)
	if _, err := b.bucket.Attributes(ctx, bk); err == nil {
		return nil, storageErr("create", key, fs.ErrExist)
	} else if gcerrors.Code(err) != gcerrors.NotFound {
		return nil, storageErr("create", key, err)
	}

	w, err := b.bucket.NewWriter(ctx, bk, nil)
	if err != nil {
		return nil, storageErr("create", key, err)
	}
	return w, nil
}

// Size returns the number of bytes stored at key
func (b *blobbackend) Size(ctx context.Context, key string) (int64, error) {
	attrs, err := b.bucket.Attributes(ctx, b.objectKey(key))
	if err != nil {
		return 0, storageErr("stat", key, err)
	}
	return attrs.Size, nil
}

// Delete removes key
func (b *blobbackend) Delete(ctx context.Context, key string) error {
	return storageErr("delete", key, b.bucket.Delete(ctx, b.objectKey(key)))
}

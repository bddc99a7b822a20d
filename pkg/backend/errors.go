package backend

import (
	"errors"
	"io/fs"
	"syscall"

	// Packages
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	gcerrors "gocloud.dev/gcerrors"
)

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// objectErr returns the HTTP error for a failed object operation on name
func objectErr(err error, name string) error {
	if err == nil {
		return nil
	}

	// gcerrors loses the os error chain for file:// buckets
	if errors.Is(err, syscall.EISDIR) || errors.Is(err, syscall.EEXIST) {
		return httpresponse.ErrBadRequest.Withf("cannot overwrite directory with file: %q", name)
	}
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return httpresponse.ErrNotFound.Withf("object %q not found", name)
	case gcerrors.PermissionDenied:
		return httpresponse.ErrForbidden.Withf("permission denied for %q", name)
	case gcerrors.InvalidArgument:
		return httpresponse.ErrBadRequest.Withf("invalid argument for %q: %v", name, err)
	case gcerrors.FailedPrecondition, gcerrors.AlreadyExists:
		return httpresponse.ErrConflict.Withf("object %q: %v", name, err)
	default:
		return httpresponse.ErrInternalError.Withf("%q: %v", name, err)
	}
}

// storageErr returns a *fs.PathError for a failed storage operation on
// key, with the matching fs error where there is one
func storageErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		err = fs.ErrNotExist
	case gcerrors.AlreadyExists:
		err = fs.ErrExist
	case gcerrors.PermissionDenied:
		err = fs.ErrPermission
	}
	return &fs.PathError{Op: op, Path: key, Err: err}
}

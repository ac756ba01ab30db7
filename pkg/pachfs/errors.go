package pachfs

import (
	"io/fs"

	"emperror.dev/errors"

	"github.com/tybritten/fs-pach/pkg/pfs"
)

// fsError is a taxonomy sentinel. Where an io/fs equivalent exists the
// sentinel also matches it, so errors.Is(err, fs.ErrNotExist) keeps
// working for callers living in the io/fs world.
type fsError struct {
	msg string
	std error
}

func (e *fsError) Error() string { return e.msg }

func (e *fsError) Is(target error) bool { return e.std != nil && target == e.std }

var (
	ErrResourceNotFound  error = &fsError{msg: "resource not found", std: fs.ErrNotExist}
	ErrDirectoryExpected error = &fsError{msg: "directory expected"}
	ErrFileExpected      error = &fsError{msg: "file expected"}
	ErrFileExists        error = &fsError{msg: "file already exists", std: fs.ErrExist}
	ErrDirectoryExists   error = &fsError{msg: "directory already exists", std: fs.ErrExist}
	ErrDirectoryNotEmpty error = &fsError{msg: "directory not empty"}
	ErrDestinationExists error = &fsError{msg: "destination exists", std: fs.ErrExist}
	ErrRemoveRoot        error = &fsError{msg: "cannot remove root directory"}
	ErrPermissionDenied  error = &fsError{msg: "permission denied", std: fs.ErrPermission}
	ErrOperationFailed   error = &fsError{msg: "operation failed"}
	ErrRemoteConnection  error = &fsError{msg: "remote connection error"}
)

// translate maps a backend failure onto the filesystem error taxonomy.
// No backend error type crosses the package boundary.
func translate(err error, path string) error {
	if err == nil {
		return nil
	}
	var rpcErr *pfs.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case pfs.CodeNotFound:
			return errors.Wrapf(ErrResourceNotFound, "'%s'", path)
		case pfs.CodePermissionDenied:
			return errors.Wrapf(ErrPermissionDenied, "'%s': %s", path, rpcErr.Message)
		case pfs.CodeUnavailable:
			return errors.Wrapf(ErrRemoteConnection, "'%s': %s", path, rpcErr.Message)
		default:
			return errors.Wrapf(ErrOperationFailed, "'%s': %s", path, rpcErr.Message)
		}
	}
	// failure before or outside the call proper
	return errors.Wrapf(ErrRemoteConnection, "'%s': %v", path, err)
}

func notFound(path string) error {
	return errors.Wrapf(ErrResourceNotFound, "'%s'", path)
}

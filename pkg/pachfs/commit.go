package pachfs

import (
	"context"

	"github.com/tybritten/fs-pach/pkg/pfs"
)

// withCommit runs body inside a freshly opened write session against the
// filesystem's branch. Everything body stages becomes visible atomically
// when the session finishes. The session is finished on the error path
// too, so the backend is never left with a dangling commit. body is
// expected to return errors already translated into the filesystem
// taxonomy.
func (pachFS *FS) withCommit(ctx context.Context, p string, body func(commit pfs.Commit) error) error {
	client, err := pachFS.acquire()
	if err != nil {
		return err
	}
	defer pachFS.release(client)
	commit, err := client.OpenCommit(ctx, pachFS.coord)
	if err != nil {
		return translate(err, p)
	}
	bodyErr := body(commit)
	finishErr := commit.Finish(ctx)
	if bodyErr != nil {
		return bodyErr
	}
	if finishErr != nil {
		return translate(finishErr, p)
	}
	return nil
}

package pachfs

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"path"

	"emperror.dev/errors"

	"github.com/tybritten/fs-pach/pkg/pfs"
)

// MkDir makes a directory visible by committing a zero-length sentinel
// marker under its key. The parent must already be a directory. The
// returned SubFS is scoped to the new directory.
func (pachFS *FS) MkDir(name string) (*SubFS, error) {
	pachFS.debugf("%s - MkDir(%s)", pachFS, name)
	ctx := context.Background()
	p := normPath(name)
	if p == "/" {
		return nil, errors.Wrapf(ErrDirectoryExists, "'%s'", name)
	}
	parentEntry, err := pachFS.resolve(ctx, path.Dir(p))
	if err != nil {
		return nil, err
	}
	if !parentEntry.IsDir() {
		return nil, notFound(name)
	}
	entry, err := pachFS.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if entry.Exists() {
		return nil, errors.Wrapf(ErrDirectoryExists, "'%s'", name)
	}
	sentinelKey := pachFS.pathToDirKey(p) + sentinelName
	if err := pachFS.withCommit(ctx, p, func(commit pfs.Commit) error {
		if err := commit.PutFile(ctx, sentinelKey, bytes.NewReader(nil)); err != nil {
			return translate(err, p)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return NewSubFS(pachFS, p), nil
}

// Remove deletes a single file inside its own commit.
func (pachFS *FS) Remove(name string) error {
	pachFS.debugf("%s - Remove(%s)", pachFS, name)
	ctx := context.Background()
	p := normPath(name)
	entry, err := pachFS.resolve(ctx, p)
	if err != nil {
		return err
	}
	if !entry.Exists() {
		return notFound(name)
	}
	if entry.IsDir() {
		return errors.Wrapf(ErrFileExpected, "'%s'", name)
	}
	key := pachFS.pathToKey(p)
	return pachFS.withCommit(ctx, p, func(commit pfs.Commit) error {
		if err := commit.DeleteFile(ctx, key); err != nil {
			return translate(err, p)
		}
		return nil
	})
}

// RemoveDir removes an empty directory by deleting its sentinel marker.
// The root cannot be removed, and a directory holding anything besides
// the sentinel fails with ErrDirectoryNotEmpty.
func (pachFS *FS) RemoveDir(name string) error {
	pachFS.debugf("%s - RemoveDir(%s)", pachFS, name)
	ctx := context.Background()
	p := normPath(name)
	if p == "/" {
		return errors.Wrapf(ErrRemoveRoot, "'%s'", name)
	}
	entry, err := pachFS.resolve(ctx, p)
	if err != nil {
		return err
	}
	if !entry.Exists() {
		return notFound(name)
	}
	if !entry.IsDir() {
		return errors.Wrapf(ErrDirectoryExpected, "'%s'", name)
	}
	empty, err := pachFS.IsEmpty(p)
	if err != nil {
		return err
	}
	if !empty {
		return errors.Wrapf(ErrDirectoryNotEmpty, "'%s'", name)
	}
	dirKey := pachFS.pathToDirKey(p)
	return pachFS.withCommit(ctx, p, func(commit pfs.Commit) error {
		if err := commit.DeleteFile(ctx, dirKey+sentinelName); err != nil {
			return translate(err, p)
		}
		return nil
	})
}

// ReadFile fetches a file's full content, satisfying fs.ReadFileFS.
func (pachFS *FS) ReadFile(name string) ([]byte, error) {
	pachFS.debugf("%s - ReadFile(%s)", pachFS, name)
	p := normPath(name)
	data := bytes.NewBuffer(nil)
	if err := pachFS.fetchInto(context.Background(), p, pachFS.pathToKey(p), data); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}

// WriteFile replaces a file's content inside its own commit. Absent
// parents become implicit directories; a parent resolving as a file or a
// path denoting a directory is rejected.
func (pachFS *FS) WriteFile(name string, data []byte) error {
	pachFS.debugf("%s - WriteFile(%s, %d bytes)", pachFS, name, len(data))
	ctx := context.Background()
	p := normPath(name)
	if p == "/" {
		return errors.Wrapf(ErrFileExpected, "'%s'", name)
	}
	if parent := path.Dir(p); parent != "/" {
		parentEntry, err := pachFS.resolve(ctx, parent)
		if err != nil {
			return err
		}
		if parentEntry.Kind == KindFile {
			return errors.Wrapf(ErrDirectoryExpected, "'%s'", parent)
		}
	}
	entry, err := pachFS.resolve(ctx, p)
	if err != nil {
		return err
	}
	if entry.IsDir() {
		return errors.Wrapf(ErrFileExpected, "'%s'", name)
	}
	key := pachFS.pathToKey(p)
	return pachFS.withCommit(ctx, p, func(commit pfs.Commit) error {
		if err := commit.PutFile(ctx, key, bytes.NewReader(data)); err != nil {
			return translate(err, p)
		}
		return nil
	})
}

// Download streams a file's content to w.
func (pachFS *FS) Download(name string, w io.Writer) error {
	pachFS.debugf("%s - Download(%s)", pachFS, name)
	p := normPath(name)
	return pachFS.fetchInto(context.Background(), p, pachFS.pathToKey(p), w)
}

// Upload replaces a file's content from r inside its own commit.
func (pachFS *FS) Upload(name string, r io.Reader) error {
	pachFS.debugf("%s - Upload(%s)", pachFS, name)
	ctx := context.Background()
	p := normPath(name)
	key := pachFS.pathToKey(p)
	return pachFS.withCommit(ctx, p, func(commit pfs.Commit) error {
		if err := commit.PutFile(ctx, key, r); err != nil {
			return translate(err, p)
		}
		return nil
	})
}

// Copy copies a file to a new key inside one commit. Without overwrite an
// existing destination fails with ErrDestinationExists.
func (pachFS *FS) Copy(src, dst string, overwrite bool) error {
	pachFS.debugf("%s - Copy(%s, %s)", pachFS, src, dst)
	ctx := context.Background()
	srcPath := normPath(src)
	dstPath := normPath(dst)
	if !overwrite {
		exists, err := pachFS.Exists(dstPath)
		if err != nil {
			return err
		}
		if exists {
			return errors.Wrapf(ErrDestinationExists, "'%s'", dst)
		}
	}
	entry, err := pachFS.resolve(ctx, srcPath)
	if err != nil {
		return err
	}
	if !entry.Exists() {
		return notFound(src)
	}
	if entry.IsDir() {
		return errors.Wrapf(ErrFileExpected, "'%s'", src)
	}
	srcKey := pachFS.pathToKey(srcPath)
	dstKey := pachFS.pathToKey(dstPath)
	return pachFS.withCommit(ctx, srcPath, func(commit pfs.Commit) error {
		if err := commit.CopyFile(ctx, srcKey, dstKey); err != nil {
			return translate(err, srcPath)
		}
		return nil
	})
}

// Move is Copy followed by Remove of the source, as two independent
// commits. It is deliberately not atomic: a reader between the commits
// sees both source and destination.
func (pachFS *FS) Move(src, dst string, overwrite bool) error {
	pachFS.debugf("%s - Move(%s, %s)", pachFS, src, dst)
	if err := pachFS.Copy(src, dst, overwrite); err != nil {
		return err
	}
	return pachFS.Remove(src)
}

var _ fs.ReadFileFS = &FS{}

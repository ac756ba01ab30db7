package pachfs

import (
	"context"
	"io/fs"
	"path"
	"strings"

	"emperror.dev/errors"

	"github.com/tybritten/fs-pach/pkg/pfs"
)

// getObject lists the backend entries at path's key. A path may denote a
// directory with children even though the bare key holds no object, so an
// absent bare key is retried once with the directory-form key before the
// not-found surfaces. This is an ordered lookup chain, not error-driven
// control flow: only a genuine double miss leaves this function as
// ErrResourceNotFound.
func (pachFS *FS) getObject(ctx context.Context, p, key string) ([]pfs.EntryInfo, error) {
	client, err := pachFS.acquire()
	if err != nil {
		return nil, err
	}
	defer pachFS.release(client)
	entries, err := pfs.ListAll(ctx, client, pachFS.coord, strings.TrimSuffix(key, pachFS.delimiter))
	if err == nil {
		return entries, nil
	}
	if terr := translate(err, p); !errors.Is(terr, ErrResourceNotFound) {
		return nil, terr
	}
	dirKey := strings.TrimSuffix(key, pachFS.delimiter) + pachFS.delimiter
	entries, err = pfs.ListAll(ctx, client, pachFS.coord, dirKey)
	if err != nil {
		return nil, translate(err, p)
	}
	return entries, nil
}

// resolve classifies a path as file, directory or absent. Directory-ness
// is a derived property of the live key space and is never cached.
func (pachFS *FS) resolve(ctx context.Context, p string) (*Entry, error) {
	p = normPath(p)
	if p == "/" {
		return &Entry{Path: "/", Kind: KindDirectory}, nil
	}
	key := pachFS.pathToKey(p)
	entries, err := pachFS.getObject(ctx, p, key)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return &Entry{Path: p, Kind: KindAbsent}, nil
		}
		return nil, err
	}
	for _, ei := range entries {
		if ei.Key != key {
			continue
		}
		if ei.IsDir {
			return &Entry{Path: p, Kind: KindDirectory}, nil
		}
		return &Entry{Path: p, Kind: KindFile, Size: ei.SizeBytes, ModTime: ei.ModTime}, nil
	}
	if len(entries) == 0 {
		return &Entry{Path: p, Kind: KindAbsent}, nil
	}
	return &Entry{Path: p, Kind: KindDirectory, Implicit: true}, nil
}

// Exists reports whether the path denotes a file or directory. Transport
// and permission failures are returned, a plain miss is not an error.
func (pachFS *FS) Exists(name string) (bool, error) {
	pachFS.debugf("%s - Exists(%s)", pachFS, name)
	entry, err := pachFS.resolve(context.Background(), name)
	if err != nil {
		return false, err
	}
	return entry.Exists(), nil
}

func (pachFS *FS) IsDir(name string) (bool, error) {
	pachFS.debugf("%s - IsDir(%s)", pachFS, name)
	entry, err := pachFS.resolve(context.Background(), name)
	if err != nil {
		return false, err
	}
	return entry.IsDir(), nil
}

func (pachFS *FS) IsFile(name string) (bool, error) {
	pachFS.debugf("%s - IsFile(%s)", pachFS, name)
	entry, err := pachFS.resolve(context.Background(), name)
	if err != nil {
		return false, err
	}
	return entry.Kind == KindFile, nil
}

// Stat resolves a path to its metadata. A found result is only trusted
// when the parent itself resolves as a directory; this keeps phantom
// files under nonexistent directories from leaking out.
func (pachFS *FS) Stat(name string) (fs.FileInfo, error) {
	pachFS.debugf("%s - Stat(%s)", pachFS, name)
	ctx := context.Background()
	p := normPath(name)
	if parent := path.Dir(p); parent != "/" && p != "/" {
		parentEntry, err := pachFS.resolve(ctx, parent)
		if err != nil {
			return nil, err
		}
		if !parentEntry.IsDir() {
			return nil, notFound(name)
		}
	}
	entry, err := pachFS.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if !entry.Exists() {
		return nil, notFound(name)
	}
	return &FileInfo{entry: *entry}, nil
}

var _ fs.StatFS = &FS{}

package pachfs

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"

	"emperror.dev/errors"

	"github.com/tybritten/fs-pach/pkg/pfs"
)

// scanDir streams the immediate children of a directory to fn in backend
// order. The .empty sentinel marker is filtered out; it exists only to
// make otherwise-empty directories visible. Listing a file fails with
// ErrDirectoryExpected, listing an absent path with ErrResourceNotFound.
func (pachFS *FS) scanDir(ctx context.Context, p string, fn func(Entry) error) error {
	p = normPath(p)
	entry, err := pachFS.resolve(ctx, p)
	if err != nil {
		return err
	}
	if !entry.Exists() {
		return notFound(p)
	}
	if !entry.IsDir() {
		return errors.Wrapf(ErrDirectoryExpected, "'%s'", p)
	}
	client, err := pachFS.acquire()
	if err != nil {
		return err
	}
	defer pachFS.release(client)
	dirKey := pachFS.pathToDirKey(p)
	err = client.ListEntries(ctx, pachFS.coord, dirKey, func(ei pfs.EntryInfo) error {
		rel := strings.TrimPrefix(ei.Key, dirKey)
		base, _, _ := strings.Cut(rel, pachFS.delimiter)
		if base == "" {
			return nil
		}
		if base == sentinelName && !ei.IsDir {
			return nil
		}
		kind := KindFile
		if ei.IsDir {
			kind = KindDirectory
		}
		if err := fn(Entry{
			Path:     path.Join(p, base),
			Kind:     kind,
			Size:     ei.SizeBytes,
			ModTime:  ei.ModTime,
			Implicit: ei.IsDir,
		}); err != nil {
			return &scanStop{err: err}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	var stop *scanStop
	if errors.As(err, &stop) {
		return stop.err
	}
	// dir-ness is already established; a not-found here means the
	// directory is empty (e.g. the bare root of a scoped prefix)
	if terr := translate(err, p); !errors.Is(terr, ErrResourceNotFound) {
		return terr
	}
	return nil
}

// scanStop carries a caller-provided error out of a backend scan.
type scanStop struct{ err error }

func (s *scanStop) Error() string { return s.err.Error() }

func (s *scanStop) Unwrap() error { return s.err }

// Scan lazily yields the immediate children of a directory as the backend
// pages its results.
func (pachFS *FS) Scan(name string, fn func(Entry) error) error {
	pachFS.debugf("%s - Scan(%s)", pachFS, name)
	return pachFS.scanDir(context.Background(), name, fn)
}

// ReadDir lists a directory eagerly, sorted by basename.
func (pachFS *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	pachFS.debugf("%s - ReadDir(%s)", pachFS, name)
	result := []fs.DirEntry{}
	err := pachFS.scanDir(context.Background(), name, func(entry Entry) error {
		result = append(result, DirEntry{&FileInfo{entry: entry}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result, nil
}

// ListDir lists the basenames of a directory's children, sorted.
func (pachFS *FS) ListDir(name string) ([]string, error) {
	entries, err := pachFS.ReadDir(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, de := range entries {
		names = append(names, de.Name())
	}
	return names, nil
}

// WalkDir walks the tree rooted at name depth-first, calling fn for every
// entry below the root. fs.SkipDir from a directory skips its subtree.
func (pachFS *FS) WalkDir(name string, fn fs.WalkDirFunc) error {
	pachFS.debugf("%s - WalkDir(%s)", pachFS, name)
	return pachFS.walk(context.Background(), normPath(name), fn)
}

func (pachFS *FS) walk(ctx context.Context, p string, fn fs.WalkDirFunc) error {
	var children []Entry
	if err := pachFS.scanDir(ctx, p, func(entry Entry) error {
		children = append(children, entry)
		return nil
	}); err != nil {
		return err
	}
	for _, child := range children {
		err := fn(child.Path, DirEntry{&FileInfo{entry: child}}, nil)
		if child.IsDir() {
			if err == fs.SkipDir {
				continue
			}
			if err != nil {
				return err
			}
			if err := pachFS.walk(ctx, child.Path, fn); err != nil {
				return err
			}
			continue
		}
		if err != nil && err != fs.SkipDir {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether a directory holds nothing besides its sentinel
// marker.
func (pachFS *FS) IsEmpty(name string) (bool, error) {
	pachFS.debugf("%s - IsEmpty(%s)", pachFS, name)
	empty := true
	err := pachFS.scanDir(context.Background(), name, func(Entry) error {
		empty = false
		return nil
	})
	if err != nil {
		return false, err
	}
	return empty, nil
}

var _ fs.ReadDirFS = &FS{}

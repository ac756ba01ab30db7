package pachfs

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"

	"emperror.dev/errors"

	"github.com/tybritten/fs-pach/pkg/pfs"
)

// File bridges random-access read/write semantics onto a backend that
// only knows whole-object get and put. The handle owns a local temporary
// file exclusively between open and close; reads, writes, seeks and
// truncation touch only that buffer. A writable handle flushes its full
// buffer into a fresh commit on Close.
type File struct {
	pachFS   *FS
	path     string
	key      string
	buf      *os.File
	readable bool
	writable bool
	closed   bool
}

// Open opens a file for reading, satisfying fs.FS.
func (pachFS *FS) Open(name string) (fs.File, error) {
	return pachFS.OpenFile(name, os.O_RDONLY)
}

// OpenFile opens a file with os.O_* flag semantics. O_CREATE without
// O_EXCL overwrites; O_EXCL on an existing path fails with ErrFileExists;
// O_APPEND and O_RDWR without O_TRUNC fetch the existing content first.
// Creating under an absent parent is allowed and makes the parent an
// implicit directory; a parent that resolves as a file rejects the
// create.
func (pachFS *FS) OpenFile(name string, flag int) (*File, error) {
	pachFS.debugf("%s - OpenFile(%s, %d)", pachFS, name, flag)
	ctx := context.Background()
	p := normPath(name)
	if p == "/" {
		return nil, errors.Wrapf(ErrFileExpected, "'%s'", name)
	}
	accMode := flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR)
	f := &File{
		pachFS:   pachFS,
		path:     p,
		key:      pachFS.pathToKey(p),
		readable: accMode != os.O_WRONLY,
		writable: accMode != os.O_RDONLY,
	}
	create := flag&os.O_CREATE != 0
	if create {
		if parent := path.Dir(p); parent != "/" {
			parentEntry, err := pachFS.resolve(ctx, parent)
			if err != nil {
				return nil, err
			}
			if parentEntry.Kind == KindFile {
				return nil, errors.Wrapf(ErrDirectoryExpected, "'%s'", parent)
			}
		}
	}
	entry, err := pachFS.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if entry.Exists() {
		if entry.IsDir() {
			return nil, errors.Wrapf(ErrFileExpected, "'%s'", name)
		}
		if create && flag&os.O_EXCL != 0 {
			return nil, errors.Wrapf(ErrFileExists, "'%s'", name)
		}
	} else if !create {
		return nil, notFound(name)
	}
	buf, err := os.CreateTemp(pachFS.tempDir, "pachfs-*")
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create local buffer for '%s'", name)
	}
	f.buf = buf
	// the final buffer replaces the remote object wholesale, so existing
	// content is fetched unless the open explicitly truncates
	fetch := entry.Exists() && flag&os.O_TRUNC == 0
	if fetch {
		if err := pachFS.fetchInto(ctx, p, f.key, buf); err != nil {
			buf.Close()
			os.Remove(buf.Name())
			return nil, err
		}
	}
	whence := io.SeekStart
	if flag&os.O_APPEND != 0 {
		whence = io.SeekEnd
	}
	if _, err := buf.Seek(0, whence); err != nil {
		buf.Close()
		os.Remove(buf.Name())
		return nil, errors.Wrapf(err, "cannot seek local buffer for '%s'", name)
	}
	return f, nil
}

// fetchInto streams the whole object at key into w.
func (pachFS *FS) fetchInto(ctx context.Context, p, key string, w io.Writer) error {
	client, err := pachFS.acquire()
	if err != nil {
		return err
	}
	defer pachFS.release(client)
	rc, err := client.GetFile(ctx, pachFS.coord, key)
	if err != nil {
		return translate(err, p)
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		return errors.Wrapf(ErrRemoteConnection, "'%s': %v", p, err)
	}
	return nil
}

func (f *File) Read(b []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if !f.readable {
		return 0, errors.Errorf("'%s' not open for reading", f.path)
	}
	return f.buf.Read(b)
}

func (f *File) Write(b []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if !f.writable {
		return 0, errors.Errorf("'%s' not open for writing", f.path)
	}
	return f.buf.Write(b)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	return f.buf.Seek(offset, whence)
}

// Truncate shortens or extends the local buffer. A negative size truncates
// at the current position.
func (f *File) Truncate(size int64) error {
	if f.closed {
		return fs.ErrClosed
	}
	if !f.writable {
		return errors.Errorf("'%s' not open for writing", f.path)
	}
	if size < 0 {
		pos, err := f.buf.Seek(0, io.SeekCurrent)
		if err != nil {
			return errors.WithStack(err)
		}
		size = pos
	}
	return errors.WithStack(f.buf.Truncate(size))
}

// Stat describes the handle's local buffer, which for a freshly opened
// read handle equals the remote object.
func (f *File) Stat() (fs.FileInfo, error) {
	if f.closed {
		return nil, fs.ErrClosed
	}
	bufInfo, err := f.buf.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot stat local buffer of '%s'", f.path)
	}
	return &FileInfo{entry: Entry{
		Path:    f.path,
		Kind:    KindFile,
		Size:    bufInfo.Size(),
		ModTime: bufInfo.ModTime(),
	}}, nil
}

// Close flushes a writable handle's buffer to the backend inside a fresh
// commit, then releases the local buffer. The buffer is released even
// when the flush fails; the flush failure still reaches the caller.
func (f *File) Close() error {
	if f.closed {
		return fs.ErrClosed
	}
	f.closed = true
	ctx := context.Background()
	var flushErr error
	if f.writable {
		if _, err := f.buf.Seek(0, io.SeekStart); err != nil {
			flushErr = errors.Wrapf(err, "cannot rewind local buffer of '%s'", f.path)
		} else {
			flushErr = f.pachFS.withCommit(ctx, f.path, func(commit pfs.Commit) error {
				if err := commit.PutFile(ctx, f.key, f.buf); err != nil {
					return translate(err, f.path)
				}
				return nil
			})
		}
	}
	closeErr := f.buf.Close()
	removeErr := os.Remove(f.buf.Name())
	return errors.Combine(flushErr, closeErr, removeErr)
}

var (
	_ fs.File            = &File{}
	_ io.ReadWriteSeeker = &File{}
	_ fs.FS              = &FS{}
)

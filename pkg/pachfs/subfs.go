package pachfs

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
)

// SubFS scopes a filesystem to a subdirectory. All paths are rebased onto
// the prefix before delegation; the underlying FS stays shared, including
// its client pool.
type SubFS struct {
	*FS
	pathPrefix string
}

func NewSubFS(pachFS *FS, pathPrefix string) *SubFS {
	return &SubFS{
		FS:         pachFS,
		pathPrefix: normPath(pathPrefix),
	}
}

func (subFS *SubFS) String() string {
	return fmt.Sprintf("%s%s", subFS.FS.String(), subFS.pathPrefix)
}

func (subFS *SubFS) rebase(name string) string {
	return path.Join(subFS.pathPrefix, normPath(name))
}

func (subFS *SubFS) Open(name string) (fs.File, error) {
	return subFS.FS.Open(subFS.rebase(name))
}

func (subFS *SubFS) OpenFile(name string, flag int) (*File, error) {
	return subFS.FS.OpenFile(subFS.rebase(name), flag)
}

func (subFS *SubFS) Stat(name string) (fs.FileInfo, error) {
	return subFS.FS.Stat(subFS.rebase(name))
}

func (subFS *SubFS) Exists(name string) (bool, error) {
	return subFS.FS.Exists(subFS.rebase(name))
}

func (subFS *SubFS) IsDir(name string) (bool, error) {
	return subFS.FS.IsDir(subFS.rebase(name))
}

func (subFS *SubFS) IsFile(name string) (bool, error) {
	return subFS.FS.IsFile(subFS.rebase(name))
}

func (subFS *SubFS) IsEmpty(name string) (bool, error) {
	return subFS.FS.IsEmpty(subFS.rebase(name))
}

func (subFS *SubFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return subFS.FS.ReadDir(subFS.rebase(name))
}

func (subFS *SubFS) ListDir(name string) ([]string, error) {
	return subFS.FS.ListDir(subFS.rebase(name))
}

func (subFS *SubFS) Scan(name string, fn func(Entry) error) error {
	return subFS.FS.Scan(subFS.rebase(name), fn)
}

// WalkDir walks below the scoped root; paths handed to fn are relative to
// the prefix again.
func (subFS *SubFS) WalkDir(name string, fn fs.WalkDirFunc) error {
	prefix := strings.TrimRight(subFS.pathPrefix, "/")
	return subFS.FS.WalkDir(subFS.rebase(name), func(p string, d fs.DirEntry, err error) error {
		return fn(strings.TrimPrefix(p, prefix), d, err)
	})
}

func (subFS *SubFS) MkDir(name string) (*SubFS, error) {
	return subFS.FS.MkDir(subFS.rebase(name))
}

func (subFS *SubFS) Remove(name string) error {
	return subFS.FS.Remove(subFS.rebase(name))
}

func (subFS *SubFS) RemoveDir(name string) error {
	return subFS.FS.RemoveDir(subFS.rebase(name))
}

func (subFS *SubFS) ReadFile(name string) ([]byte, error) {
	return subFS.FS.ReadFile(subFS.rebase(name))
}

func (subFS *SubFS) WriteFile(name string, data []byte) error {
	return subFS.FS.WriteFile(subFS.rebase(name), data)
}

func (subFS *SubFS) Download(name string, w io.Writer) error {
	return subFS.FS.Download(subFS.rebase(name), w)
}

func (subFS *SubFS) Upload(name string, r io.Reader) error {
	return subFS.FS.Upload(subFS.rebase(name), r)
}

func (subFS *SubFS) Copy(src, dst string, overwrite bool) error {
	return subFS.FS.Copy(subFS.rebase(src), subFS.rebase(dst), overwrite)
}

func (subFS *SubFS) Move(src, dst string, overwrite bool) error {
	return subFS.FS.Move(subFS.rebase(src), subFS.rebase(dst), overwrite)
}

func (subFS *SubFS) Sub(name string) *SubFS {
	rebased := subFS.rebase(name)
	if rebased == subFS.pathPrefix {
		return subFS
	}
	return NewSubFS(subFS.FS, rebased)
}

// check interface satisfaction
var (
	_ fs.FS         = &SubFS{}
	_ fs.ReadDirFS  = &SubFS{}
	_ fs.ReadFileFS = &SubFS{}
	_ fs.StatFS     = &SubFS{}
)

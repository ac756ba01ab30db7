package pachfs

import (
	"io/fs"
	"path"
	"time"
)

// Kind classifies the result of a path lookup.
type Kind int

const (
	KindAbsent Kind = iota
	KindFile
	KindDirectory
)

// Entry is the resolved result of a path lookup. Directory entries carry
// Implicit when their existence is inferred purely from keys beneath their
// prefix, with no marker object of their own.
type Entry struct {
	Path     string
	Kind     Kind
	Size     int64
	ModTime  time.Time
	Implicit bool
}

func (e *Entry) Exists() bool { return e.Kind != KindAbsent }

func (e *Entry) IsDir() bool { return e.Kind == KindDirectory }

// FileInfo adapts an Entry to fs.FileInfo.
type FileInfo struct {
	entry Entry
}

func (fi *FileInfo) Name() string {
	if fi.entry.Path == "/" {
		return "/"
	}
	return path.Base(fi.entry.Path)
}

func (fi *FileInfo) Size() int64 { return fi.entry.Size }

func (fi *FileInfo) Mode() fs.FileMode {
	if fi.entry.IsDir() {
		return fs.ModeDir
	}
	return 0
}

func (fi *FileInfo) ModTime() time.Time { return fi.entry.ModTime }

func (fi *FileInfo) IsDir() bool { return fi.entry.IsDir() }

func (fi *FileInfo) Sys() any { return nil }

var _ fs.FileInfo = &FileInfo{}

type DirEntry struct {
	*FileInfo
}

func (de DirEntry) Type() fs.FileMode { return de.Mode() }

func (de DirEntry) Info() (fs.FileInfo, error) { return de.FileInfo, nil }

var _ fs.DirEntry = DirEntry{}

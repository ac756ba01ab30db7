package pfs

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Coordinate identifies the versioned namespace all operations address:
// a repo within a project, pinned to a branch name or commit ID.
// Branches accept writes, commit IDs are read-only.
type Coordinate struct {
	Project string
	Repo    string
	Branch  string
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%s/%s@%s", c.Project, c.Repo, c.Branch)
}

// EntryInfo is one row of a listing. Key is the canonical backend key:
// delimiter-joined, without a leading delimiter. Keys have no inherent
// type, IsDir reflects the backend's own classification.
type EntryInfo struct {
	Key       string
	IsDir     bool
	SizeBytes int64
	ModTime   time.Time
}

// Client is the backend contract the filesystem consumes. Implementations
// talk to a versioned storage cluster; transport and wire protocol are
// their business entirely. A Client must not be used concurrently.
type Client interface {
	// ListEntries queries the entries at key. An exact file key yields that
	// single entry, a directory key yields its immediate children. Entries
	// are streamed to fn as backend pages arrive; a non-nil error from fn
	// stops the scan. An absent key raises a not-found condition.
	ListEntries(ctx context.Context, coord Coordinate, key string, fn func(EntryInfo) error) error

	// GetFile fetches the whole object at key. There are no range reads.
	GetFile(ctx context.Context, coord Coordinate, key string) (io.ReadCloser, error)

	// OpenCommit opens a write session against coord's branch.
	OpenCommit(ctx context.Context, coord Coordinate) (Commit, error)

	Close() error
}

// Commit is an open write session. Staged operations become visible
// atomically when Finish is called; Finish must always be called, error
// path included, so no dangling commit is left behind.
type Commit interface {
	PutFile(ctx context.Context, key string, r io.Reader) error
	DeleteFile(ctx context.Context, key string) error
	CopyFile(ctx context.Context, srcKey, dstKey string) error
	Finish(ctx context.Context) error
}

// Dialer produces a fresh client handle, bound to whatever connection
// settings the caller resolved beforehand.
type Dialer func() (Client, error)

// ConnectConfig carries the connection settings an opener resolves from
// URI parameters and the configuration file.
type ConnectConfig struct {
	Host      string
	Port      int
	AuthToken string
	TLS       bool
}

// DialFunc turns connection settings into a client. The concrete transport
// lives outside this module.
type DialFunc func(cfg ConnectConfig) (Client, error)

// ListAll is the eager companion of Client.ListEntries.
func ListAll(ctx context.Context, c Client, coord Coordinate, key string) ([]EntryInfo, error) {
	var entries []EntryInfo
	if err := c.ListEntries(ctx, coord, key, func(e EntryInfo) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		return nil, err
	}
	return entries, nil
}

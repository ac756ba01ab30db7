// Package pachfs implements a filesystem over a Pachyderm-style versioned
// object store. Paths map onto a flat, delimiter-joined key space scoped
// to a repo/branch coordinate; directory structure is derived from the
// keys rather than stored; every mutation is buffered into its own atomic
// commit. The backend is consumed solely through the pfs.Client contract.
package pachfs

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"emperror.dev/errors"
	"github.com/je4/utils/v2/pkg/zLogger"

	"github.com/tybritten/fs-pach/pkg/pfs"
)

const sentinelName = ".empty"

// Options carries the construction-time settings of a filesystem. All
// fields are optional.
type Options struct {
	// DirPath confines the filesystem to a directory prefix within the
	// repo. Defaults to "/".
	DirPath string
	// Delimiter separates key segments in the backend. Defaults to "/".
	Delimiter string
	// TempDir hosts the local buffers of open file handles. Defaults to
	// os.TempDir().
	TempDir string
}

// FS is a filesystem over one repo/branch coordinate. The coordinate,
// scoped root and delimiter are immutable after construction; the only
// mutable shared state is the pool of backend client handles, so an FS is
// safe for concurrent use. Mutations from concurrent goroutines each open
// their own commit, last committer wins.
type FS struct {
	dial      pfs.Dialer
	coord     pfs.Coordinate
	dirPath   string
	prefix    string
	delimiter string
	tempDir   string
	logger    zLogger.ZLogger

	mu     sync.Mutex
	idle   []pfs.Client
	closed bool
}

// NewFS builds a filesystem on top of dial. The dialer is invoked lazily,
// once per client handle the pool needs; handles are never shared between
// concurrent operations.
func NewFS(dial pfs.Dialer, coord pfs.Coordinate, opts *Options, logger zLogger.ZLogger) (*FS, error) {
	if dial == nil {
		return nil, errors.New("no dialer given")
	}
	if coord.Repo == "" {
		return nil, errors.New("no repo name given")
	}
	if coord.Project == "" {
		coord.Project = "default"
	}
	if coord.Branch == "" {
		coord.Branch = "master"
	}
	if opts == nil {
		opts = &Options{}
	}
	dirPath := normPath(opts.DirPath)
	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = "/"
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	pachFS := &FS{
		dial:      dial,
		coord:     coord,
		dirPath:   dirPath,
		prefix:    strings.Trim(dirPath, "/"),
		delimiter: delimiter,
		tempDir:   tempDir,
		logger:    logger,
	}
	return pachFS, nil
}

func (pachFS *FS) String() string {
	return fmt.Sprintf("pachfs://%s%s", pachFS.coord, pachFS.dirPath)
}

// Coordinate returns the repo/branch coordinate the filesystem addresses.
func (pachFS *FS) Coordinate() pfs.Coordinate { return pachFS.coord }

// Sub returns a view of the filesystem scoped to name. The directory is
// not required to exist.
func (pachFS *FS) Sub(name string) *SubFS {
	return NewSubFS(pachFS, name)
}

// acquire hands out a backend client handle for the duration of one call.
// Handles are pooled rather than bound to goroutines; a handle is never
// used by two operations at once.
func (pachFS *FS) acquire() (pfs.Client, error) {
	pachFS.mu.Lock()
	if pachFS.closed {
		pachFS.mu.Unlock()
		return nil, errors.Wrapf(ErrOperationFailed, "'%s' is closed", pachFS)
	}
	if n := len(pachFS.idle); n > 0 {
		client := pachFS.idle[n-1]
		pachFS.idle = pachFS.idle[:n-1]
		pachFS.mu.Unlock()
		return client, nil
	}
	pachFS.mu.Unlock()
	client, err := pachFS.dial()
	if err != nil {
		return nil, errors.Wrapf(ErrRemoteConnection, "cannot dial backend for %s: %v", pachFS.coord, err)
	}
	return client, nil
}

func (pachFS *FS) release(client pfs.Client) {
	pachFS.mu.Lock()
	defer pachFS.mu.Unlock()
	if pachFS.closed {
		_ = client.Close()
		return
	}
	pachFS.idle = append(pachFS.idle, client)
}

// Close drains the client pool. The filesystem is unusable afterwards.
func (pachFS *FS) Close() error {
	pachFS.mu.Lock()
	defer pachFS.mu.Unlock()
	if pachFS.closed {
		return nil
	}
	pachFS.closed = true
	var errs []error
	for _, client := range pachFS.idle {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	pachFS.idle = nil
	return errors.Combine(errs...)
}

func (pachFS *FS) debugf(format string, args ...any) {
	if pachFS.logger != nil {
		pachFS.logger.Debug().Msgf(format, args...)
	}
}
